package secret

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/scrtlabs/secret-ai-sdk-go/internal/testutil/secretnode"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/config"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/retry"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuerier answers from canned JSON and records the queries it sees.
type fakeQuerier struct {
	answers map[string]string
	queries []map[string]map[string]any
	err     error
}

func (f *fakeQuerier) QueryContract(_ context.Context, contract string, query, out any) error {
	if f.err != nil {
		return f.err
	}
	q := query.(map[string]any)
	var name string
	var args map[string]any
	for k, v := range q {
		name, args = k, v.(map[string]any)
	}
	f.queries = append(f.queries, map[string]map[string]any{name: args})
	return json.Unmarshal([]byte(f.answers[name]), out)
}

func TestNew_MissingValues(t *testing.T) {
	q := &fakeQuerier{}
	tests := []struct {
		cfg  config.Secret
		want string
	}{
		{config.Secret{NodeURL: "n", Contract: "c"}, config.EnvChainID},
		{config.Secret{ChainID: "c", Contract: "c"}, config.EnvNodeURL},
		{config.Secret{ChainID: "c", NodeURL: "n"}, config.EnvContract},
	}
	for _, tt := range tests {
		_, err := New(tt.cfg, q)
		var fe *failure.Error
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, failure.KindSecretValueMissing, fe.Kind)
		assert.Equal(t, tt.want, fe.Variable)
	}

	_, err := New(config.Pulsar, nil)
	assert.Error(t, err)
}

func TestClient_ModelsAndURLs(t *testing.T) {
	q := &fakeQuerier{answers: map[string]string{
		"get_models": `{"models":["llama3.3:70b","deepseek-r1:70b"]}`,
		"get_u_r_ls": `{"urls":["https://secretai1.scrtlabs.com:21434"]}`,
	}}
	c, err := New(config.Pulsar, q)
	require.NoError(t, err)
	assert.Equal(t, "pulsar-3", c.ChainID())

	models, err := c.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.3:70b", "deepseek-r1:70b"}, models)

	urls, err := c.URLs(context.Background(), "llama3.3:70b")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://secretai1.scrtlabs.com:21434"}, urls)

	_, err = c.URLs(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, q.queries, 3)
	assert.Empty(t, q.queries[0]["get_models"])
	assert.Equal(t, "llama3.3:70b", q.queries[1]["get_u_r_ls"]["model"])
	assert.NotContains(t, q.queries[2]["get_u_r_ls"], "model")
}

func TestClient_MissingField(t *testing.T) {
	q := &fakeQuerier{answers: map[string]string{
		"get_models": `{"workers":[]}`,
		"get_u_r_ls": `{}`,
	}}
	c, err := New(config.Pulsar, q)
	require.NoError(t, err)

	_, err = c.Models(context.Background())
	assert.Equal(t, failure.KindResponseInvalid, failure.KindOf(err))
	_, err = c.URLs(context.Background(), "m")
	assert.Equal(t, failure.KindResponseInvalid, failure.KindOf(err))
}

func TestClient_QuerierErrorWrapped(t *testing.T) {
	c, err := New(config.Pulsar, &fakeQuerier{err: failure.Status(503, nil)})
	require.NoError(t, err)
	_, err = c.Models(context.Background())
	assert.Equal(t, 503, failure.StatusCode(err))
	assert.True(t, strings.HasPrefix(err.Error(), "get_models: "))
}

func TestClient_SubscriberSignature(t *testing.T) {
	key, err := PrivateKeyFromMnemonic(testMnemonic)
	require.NoError(t, err)

	q := &fakeQuerier{answers: map[string]string{"get_models": `{"models":[]}`}}
	c, err := New(config.Pulsar, q, WithSubscriberKey(key))
	require.NoError(t, err)
	_, err = c.Models(context.Background())
	require.NoError(t, err)

	args := q.queries[0]["get_models"]
	pub, err := hex.DecodeString(args["subscriber_public_key"].(string))
	require.NoError(t, err)
	sig, err := hex.DecodeString(args["signature"].(string))
	require.NoError(t, err)
	assert.Len(t, pub, 33)
	assert.Len(t, sig, 64)

	digest := sha256.Sum256(pub)
	assert.True(t, crypto.VerifySignature(pub, digest[:], sig))

	_, err = New(config.Pulsar, q, WithSubscriberKey("zz"))
	assert.Equal(t, failure.KindInvalidInput, failure.KindOf(err))
}

func newQuerierTransport(attempts int) *transport.Client {
	return transport.New(retry.MustPolicy(attempts, time.Millisecond, 2, time.Millisecond*4, false), config.Timeouts{},
		transport.WithRetryOptions(retry.WithoutLogging(), retry.WithSleeper(func(context.Context, time.Duration) error { return nil })))
}

func TestLCDQuerier(t *testing.T) {
	var calls int32
	node := secretnode.New(t, "secret1contract", func(name string, args map[string]any) (any, int) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, http.StatusServiceUnavailable
		}
		if name != "get_u_r_ls" {
			return nil, http.StatusBadRequest
		}
		return map[string]any{"urls": []string{"https://" + args["model"].(string) + ".example"}}, http.StatusOK
	})

	q := NewLCDQuerier(node.URL+"/", newQuerierTransport(3))
	c, err := New(config.Secret{ChainID: "secret-4", NodeURL: node.URL + "/", Contract: "secret1contract"}, q)
	require.NoError(t, err)

	urls, err := c.URLs(context.Background(), "llama")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://llama.example"}, urls)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	urls, err = c.URLs(context.Background(), "mistral")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://mistral.example"}, urls)

	// The IO key and code hash are fetched once per querier.
	assert.Equal(t, 1, node.Count("tx_key"))
	assert.Equal(t, 1, node.Count("code_hash"))
	assert.Equal(t, 3, node.Count("query"))
	require.Len(t, node.Queries(), 3)
	assert.Equal(t, map[string]any{"get_u_r_ls": map[string]any{"model": "mistral"}}, node.Queries()[2])
}

func TestLCDQuerier_SubscriberSignatureEncrypted(t *testing.T) {
	key, err := PrivateKeyFromMnemonic(testMnemonic)
	require.NoError(t, err)
	node := secretnode.New(t, config.Pulsar.Contract, func(string, map[string]any) (any, int) {
		return map[string]any{"models": []string{"llama3.3:70b"}}, http.StatusOK
	})

	cfg := config.Pulsar
	cfg.NodeURL = node.URL
	c, err := New(cfg, NewLCDQuerier(node.URL, newQuerierTransport(1)), WithSubscriberKey(key))
	require.NoError(t, err)
	models, err := c.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.3:70b"}, models)

	args := node.Queries()[0]["get_models"].(map[string]any)
	assert.Len(t, args["subscriber_public_key"], 66)
	assert.Len(t, args["signature"], 128)
}

func TestLCDQuerier_UnknownContract(t *testing.T) {
	node := secretnode.New(t, "secret1contract", func(string, map[string]any) (any, int) {
		return map[string]any{}, http.StatusOK
	})
	var out map[string]any
	err := NewLCDQuerier(node.URL, newQuerierTransport(1)).QueryContract(context.Background(), "secret1other", map[string]any{"get_models": map[string]any{}}, &out)
	assert.Equal(t, http.StatusNotFound, failure.StatusCode(err))
	assert.Zero(t, node.Count("query"))
}

func TestLCDQuerier_BadAnswers(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no data", `{"code":3,"message":"query wasm contract failed"}`},
		{"not base64", `{"data":"%%%"}`},
		{"not encrypted for us", `{"data":"` + base64.StdEncoding.EncodeToString(make([]byte, 48)) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.URL.Path == "/registration/v1beta1/tx-key":
					_, _ = w.Write([]byte(`{"key":"` + base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{9}, 32)) + `"}`))
				case strings.HasPrefix(r.URL.Path, "/compute/v1beta1/code_hash/"):
					_, _ = w.Write([]byte(`{"code_hash":"` + strings.Repeat("ab", 32) + `"}`))
				default:
					_, _ = w.Write([]byte(tt.body))
				}
			}))
			defer srv.Close()

			var out map[string]any
			err := NewLCDQuerier(srv.URL, newQuerierTransport(1)).QueryContract(context.Background(), "c", map[string]any{"get_models": map[string]any{}}, &out)
			assert.Equal(t, failure.KindResponseInvalid, failure.KindOf(err))
		})
	}
}

func TestLCDQuerier_BadNodeMetadata(t *testing.T) {
	tests := []struct {
		name     string
		txKey    string
		codeHash string
	}{
		{"short io key", base64.StdEncoding.EncodeToString(make([]byte, 16)), strings.Repeat("ab", 32)},
		{"bad code hash", base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{9}, 32)), "not-hex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var queried int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch {
				case r.URL.Path == "/registration/v1beta1/tx-key":
					_ = json.NewEncoder(w).Encode(map[string]string{"key": tt.txKey})
				case strings.HasPrefix(r.URL.Path, "/compute/v1beta1/code_hash/"):
					_ = json.NewEncoder(w).Encode(map[string]string{"code_hash": tt.codeHash})
				default:
					atomic.AddInt32(&queried, 1)
				}
			}))
			defer srv.Close()

			var out map[string]any
			err := NewLCDQuerier(srv.URL, newQuerierTransport(1)).QueryContract(context.Background(), "c", map[string]any{"get_models": map[string]any{}}, &out)
			assert.Equal(t, failure.KindResponseInvalid, failure.KindOf(err))
			assert.Zero(t, atomic.LoadInt32(&queried))
		})
	}
}
