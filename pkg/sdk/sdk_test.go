package sdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/scrtlabs/secret-ai-sdk-go/internal/testutil/secretnode"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/config"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/registry"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/retry"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/secret"
	"go.uber.org/zap"
)

type countingObserver struct{ n int }

func (c *countingObserver) ObserveAttempt(context.Context, retry.Event) { c.n++ }

func TestNew_Defaults(t *testing.T) {
	cfg := &config.Config{LogLevel: "error"}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer s.Close()

	if _, ok := s.Registry().(*secret.Client); !ok {
		t.Fatalf("expected on-chain registry, got %T", s.Registry())
	}
	if cfg.Secret != config.Pulsar {
		t.Fatalf("expected Pulsar defaults, got %#v", cfg.Secret)
	}
	if level.Level() != zap.ErrorLevel {
		t.Fatalf("log level = %v, want error", level.Level())
	}
	if s.Transport().Policy().MaxAttempts() != 4 {
		t.Fatalf("attempts = %d, want 4", s.Transport().Policy().MaxAttempts())
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	_, err := New(&config.Config{Retry: config.Retry{Multiplier: 0.1}})
	if !failure.IsKind(err, failure.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestNewChatClient_UsesRegistry(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","model":"llama3.3:70b","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	obs := &countingObserver{}
	reg := registry.NewStatic(map[string][]string{"llama3.3:70b": {srv.URL}})
	s, err := New(&config.Config{APIKey: "k"}, WithRegistry(reg), WithObserver(obs), WithMetrics(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer s.Close()

	models, err := s.Models(context.Background())
	if err != nil || len(models) != 1 {
		t.Fatalf("Models = %v, %v", models, err)
	}

	c, err := s.NewChatClient(context.Background(), models[0])
	if err != nil {
		t.Fatalf("NewChatClient returned error: %v", err)
	}
	if c.Host() != srv.URL {
		t.Fatalf("host = %s, want %s", c.Host(), srv.URL)
	}
	resp, err := c.Generate(context.Background(), "", "ping", nil)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Content != "pong" || gotModel != "llama3.3:70b" {
		t.Fatalf("unexpected response %q for model %q", resp.Content, gotModel)
	}
	if obs.n != 1 {
		t.Fatalf("observer saw %d attempts, want 1", obs.n)
	}
}

func TestNewChatClient_Errors(t *testing.T) {
	s, err := New(&config.Config{APIKey: "k"}, WithRegistry(registry.NewStatic(nil)))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := s.NewChatClient(context.Background(), "missing"); !failure.IsKind(err, failure.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	s, err = New(&config.Config{Host: "https://worker"}, WithRegistry(registry.NewStatic(nil)))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = s.NewChatClient(context.Background(), "m")
	if !failure.IsKind(err, failure.KindAPIKeyMissing) {
		t.Fatalf("expected missing api key, got %v", err)
	}
}

func TestNew_OnChainDiscovery(t *testing.T) {
	node := secretnode.New(t, "secret1abc", func(name string, _ map[string]any) (any, int) {
		if name != "get_models" {
			return nil, http.StatusBadRequest
		}
		return map[string]any{"models": []string{"deepseek-r1:70b"}}, http.StatusOK
	})

	cfg := &config.Config{Secret: config.Secret{NodeURL: node.URL, Contract: "secret1abc"}}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	models, err := s.Models(context.Background())
	if err != nil {
		t.Fatalf("Models returned error: %v", err)
	}
	if len(models) != 1 || models[0] != "deepseek-r1:70b" {
		t.Fatalf("unexpected models %v", models)
	}
	if got := node.Count("query"); got != 1 {
		t.Fatalf("node saw %d encrypted queries, want 1", got)
	}
}

func TestNewVoiceClient(t *testing.T) {
	s, err := New(&config.Config{APIKey: "k"}, WithRegistry(registry.NewStatic(nil)))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := s.NewVoiceClient(); err != nil {
		t.Fatalf("NewVoiceClient returned error: %v", err)
	}
}
