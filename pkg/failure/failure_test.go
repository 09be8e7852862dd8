package failure

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessages(t *testing.T) {
	cause := errors.New("Original error")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"network", Network("chat", "Network failed", cause), "Network error: Network failed"},
		{"timeout", Timeout("chat", 30*time.Second, nil), "chat timed out after 30.0 seconds"},
		{"connection", Connection("localhost:8080", nil), "Failed to connect to localhost:8080"},
		{"exhausted", Exhausted(3, cause, nil), "All 3 retry attempts failed"},
		{"response", Response("Bad response", map[string]any{"error": "x"}), "Invalid response: Bad response"},
		{"status", Status(503, []byte("unavailable")), "HTTP 503: unavailable"},
		{"api key", APIKeyMissing("SECRET_AI_API_KEY"), "Environment variable SECRET_AI_API_KEY must be set"},
		{"secret value", SecretValueMissing("SECRET_NODE_URL"), "Missing environment variable SECRET_NODE_URL"},
		{"invalid", InvalidInput(""), "Invalid value"},
		{"not implemented", NotImplemented("attestation"), "Not implemented"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			assert.Contains(t, msg, tt.want)
			assert.Contains(t, msg, "Secret AI SDK Error: ")
		})
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := Status(401, nil)
	wrapped := fmt.Errorf("chat: %w", WithAttempt(base, 1, time.Millisecond))

	assert.Equal(t, KindHTTPStatus, KindOf(wrapped))
	assert.Equal(t, 401, StatusCode(wrapped))
	assert.True(t, errors.Is(wrapped, base))
	assert.True(t, IsNetwork(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestIsKindWalksNestedErrors(t *testing.T) {
	inner := Connection("node", errors.New("refused"))
	outer := Exhausted(2, WithAttempt(inner, 2, 0), []error{inner, inner})

	assert.True(t, IsKind(outer, KindRetryExhausted))
	assert.True(t, IsKind(outer, KindConnection))
	assert.False(t, IsKind(outer, KindTimeout))
	assert.Equal(t, KindRetryExhausted, KindOf(outer))
}

func TestAttemptError(t *testing.T) {
	require.NoError(t, WithAttempt(nil, 1, 0))

	cause := Timeout("generate", time.Second, nil)
	err := WithAttempt(cause, 2, 1500*time.Millisecond)

	var ae *AttemptError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 2, ae.Attempt)
	assert.Equal(t, 1500*time.Millisecond, ae.Elapsed)
	assert.Contains(t, err.Error(), "attempt 2 (1.5s)")

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, time.Second, fe.Timeout)
}

func TestStatusBodyTruncated(t *testing.T) {
	body := make([]byte, 300)
	for i := range body {
		body[i] = 'a'
	}
	msg := Status(502, body).Error()
	assert.Contains(t, msg, "...")
	assert.Less(t, len(msg), 320)
}
