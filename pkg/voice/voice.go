// Package voice is the client for the Secret AI speech services: a
// speech-to-text worker and an OpenAI-compatible text-to-speech worker.
// Every call goes through the SDK's retry policy.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/scrtlabs/secret-ai-sdk-go/pkg/config"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/transport"
	"go.uber.org/zap"
)

// Client calls the STT and TTS services.
type Client struct {
	stt string
	tts string
	tc  *transport.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTransport shares a transport (policy, timeouts, observers, HTTP
// client). The API key of cfg is applied on top.
func WithTransport(tc *transport.Client) Option {
	return func(c *Client) { c.tc = tc }
}

// New builds a Client for cfg.Voice. It fails with failure.KindAPIKeyMissing
// when cfg has no API key.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	v := cfg.Voice.WithDefaults()
	c := &Client{
		stt: strings.TrimRight(v.STTURL, "/"),
		tts: strings.TrimRight(v.TTSURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tc == nil {
		policy, err := cfg.Retry.Policy()
		if err != nil {
			return nil, err
		}
		c.tc = transport.New(policy, cfg.Timeouts)
	}
	c.tc = c.tc.Derive(transport.WithBasicAPIKey(cfg.APIKey))
	return c, nil
}

// Transcription is the answer of the STT service.
type Transcription struct {
	Text            string `json:"text"`
	Language        string `json:"language,omitempty"`
	ChunksProcessed int    `json:"chunks_processed,omitempty"`
	PartialResults  []any  `json:"partial_results,omitempty"`
}

// Transcribe uploads audio as the multipart field "audio" and returns the
// transcript. The audio is buffered so it can be resent on retry.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string) (*Transcription, error) {
	return c.transcribe(ctx, "stt", "/stt", audio, filename)
}

// TranscribeStreaming uses the chunked STT endpoint. The result also holds
// the partial transcripts.
func (c *Client) TranscribeStreaming(ctx context.Context, audio io.Reader, filename string) (*Transcription, error) {
	return c.transcribe(ctx, "stt_stream", "/stt_stream", audio, filename)
}

// TranscribeFile opens path and transcribes it.
func (c *Client) TranscribeFile(ctx context.Context, path string) (*Transcription, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()
	return c.Transcribe(ctx, f, filepath.Base(path))
}

func (c *Client) transcribe(ctx context.Context, op, path string, audio io.Reader, filename string) (*Transcription, error) {
	if audio == nil {
		return nil, failure.InvalidInput("nil audio")
	}
	if filename == "" {
		filename = "audio.wav"
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	h := http.Header{}
	h.Set("Content-Type", mw.FormDataContentType())
	h.Set("Accept", "application/json")
	raw, err := c.tc.Do(ctx, transport.Request{
		Op:     op,
		Method: http.MethodPost,
		URL:    c.stt + path,
		Header: h,
		Body:   body.Bytes(),
	})
	if err != nil {
		return nil, err
	}
	var t Transcription
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, failure.Response(fmt.Sprintf("%s: %v", op, err), string(raw))
	}
	return &t, nil
}

// STTHealth returns the STT service health report.
func (c *Client) STTHealth(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.tc.JSON(ctx, "stt_health", http.MethodGet, c.stt+"/healthz", nil, &out)
	return out, err
}

// TTSHealth returns the TTS service health report.
func (c *Client) TTSHealth(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.tc.JSON(ctx, "tts_health", http.MethodGet, c.tts+"/health", nil, &out)
	return out, err
}

// SaveAudio writes data to path, adding ".<format>" when path has no
// extension and creating missing directories. It returns the final path.
func SaveAudio(data []byte, path, format string) (string, error) {
	if filepath.Ext(path) == "" && format != "" {
		path += "." + format
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}
	zap.L().Info("audio saved", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

func escape(s string) string { return url.PathEscape(s) }
