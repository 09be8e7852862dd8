package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scrtlabs/secret-ai-sdk-go/pkg/registry"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/sdk"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/secret"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// envMap is a config.LookupFunc over a fixed map.
type envMap map[string]string

func (e envMap) lookup(k string) (string, bool) {
	v, ok := e[k]
	return v, ok
}

// runCmd executes the command tree with env as the environment and a static
// registry in place of the chain, returning captured stdout.
func runCmd(t *testing.T, env envMap, stdin string, args ...string) (string, error) {
	t.Helper()
	if env == nil {
		env = envMap{}
	}
	if _, ok := env["SECRET_SDK_LOG_LEVEL"]; !ok {
		env["SECRET_SDK_LOG_LEVEL"] = "error"
	}
	g := &globals{
		lookup: env.lookup,
		opts: []sdk.Option{sdk.WithRegistry(registry.NewStatic(map[string][]string{
			"llama3.3:70b": {"https://worker-a:21434"},
			"deepseek-r1":  {"https://worker-b:21434"},
		}))},
	}
	root := buildRoot(g)
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runCmd(t, nil, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "secret-ai") {
		t.Errorf("version output missing 'secret-ai': %q", out)
	}
}

func TestModels_Table(t *testing.T) {
	out, err := runCmd(t, nil, "", "models")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	for _, want := range []string{"MODEL", "llama3.3:70b", "deepseek-r1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestURLs_JSON(t *testing.T) {
	out, err := runCmd(t, nil, "", "--json", "urls", "--model", "deepseek-r1")
	if err != nil {
		t.Fatalf("urls: %v", err)
	}
	var urls []string
	if err := json.Unmarshal([]byte(out), &urls); err != nil {
		t.Fatalf("unmarshal urls: %v (output: %q)", err, out)
	}
	if len(urls) != 1 || urls[0] != "https://worker-b:21434" {
		t.Errorf("urls = %v", urls)
	}
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"llama3.3:70b",
"choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	env := envMap{
		"SECRET_AI_API_KEY": "k",
		"SECRET_AI_HOST":    srv.URL,
	}
	out, err := runCmd(t, env, "", "chat", "--model", "llama3.3:70b", "--prompt", "ping")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if strings.TrimSpace(out) != "pong" {
		t.Errorf("chat output = %q, want pong", out)
	}
}

func TestChat_MissingAPIKey(t *testing.T) {
	if _, err := runCmd(t, nil, "", "chat", "--prompt", "ping"); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestChat_MissingPrompt(t *testing.T) {
	if _, err := runCmd(t, envMap{"SECRET_AI_API_KEY": "k"}, "", "chat"); err == nil {
		t.Fatal("expected error for missing --prompt")
	}
}

func TestKeygen(t *testing.T) {
	out, err := runCmd(t, nil, testMnemonic+"\n", "keygen")
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	want, err := secret.PrivateKeyFromMnemonic(testMnemonic)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != want {
		t.Errorf("keygen = %q, want %q", out, want)
	}
}

func TestKeygen_BadMnemonic(t *testing.T) {
	if _, err := runCmd(t, nil, "too short", "keygen"); err == nil {
		t.Fatal("expected error for short mnemonic")
	}
}

func TestVoiceHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			_, _ = io.WriteString(w, `{"status":"ok"}`)
		case "/health":
			_, _ = io.WriteString(w, `{"status":"healthy"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	env := envMap{
		"SECRET_AI_API_KEY": "k",
		"SECRET_AI_STT_URL": srv.URL,
		"SECRET_AI_TTS_URL": srv.URL,
	}
	out, err := runCmd(t, env, "", "voice", "health")
	if err != nil {
		t.Fatalf("voice health: %v", err)
	}
	if !strings.Contains(out, "stt: ok") || !strings.Contains(out, "tts: healthy") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestConfigFile_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret-ai.yaml")
	raw := "profile: claive\nmodel: from-file\nretry:\n  max_retries: 0\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	g := &globals{configPath: path, lookup: envMap{"CLAIVE_AI_MODEL": "from-env"}.lookup}
	cfg, err := g.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Profile != "claive" {
		t.Errorf("profile = %q, want claive", cfg.Profile)
	}
	if cfg.Model != "from-env" {
		t.Errorf("model = %q, want from-env", cfg.Model)
	}
	if cfg.Retry.MaxRetries == nil || *cfg.Retry.MaxRetries != 0 {
		t.Errorf("max retries = %v, want explicit 0", cfg.Retry.MaxRetries)
	}
}

func TestProfileFlag_Unknown(t *testing.T) {
	if _, err := runCmd(t, nil, "", "--profile", "nope", "models"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}
