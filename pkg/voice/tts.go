package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/transport"
)

// Speech defaults.
const (
	DefaultModel  = "tts-1"
	DefaultVoice  = "af_alloy"
	DefaultFormat = "mp3"
)

// SpeechRequest is the body of /v1/audio/speech. Zero fields take the
// defaults; Extra carries service-specific parameters such as
// volume_multiplier.
type SpeechRequest struct {
	Model          string
	Input          string
	Voice          string
	ResponseFormat string
	Speed          float64
	Stream         bool
	Extra          map[string]any
}

func (r SpeechRequest) body() (map[string]any, error) {
	if strings.TrimSpace(r.Input) == "" {
		return nil, failure.InvalidInput("empty speech input")
	}
	if r.Speed == 0 {
		r.Speed = 1
	}
	if r.Speed < 0.25 || r.Speed > 4 {
		return nil, failure.InvalidInput(fmt.Sprintf("speed must be within [0.25, 4], got %g", r.Speed))
	}
	m := make(map[string]any, len(r.Extra)+6)
	for k, v := range r.Extra {
		m[k] = v
	}
	m["model"] = or(r.Model, DefaultModel)
	m["input"] = r.Input
	m["voice"] = or(r.Voice, DefaultVoice)
	m["response_format"] = or(r.ResponseFormat, DefaultFormat)
	m["speed"] = r.Speed
	if r.Stream {
		m["stream"] = true
	}
	return m, nil
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Synthesize returns the encoded audio for r. With r.Stream set the server
// streams the audio; the chunks are joined before returning.
func (c *Client) Synthesize(ctx context.Context, r SpeechRequest) ([]byte, error) {
	m, err := r.body()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, failure.InvalidInput(err.Error())
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return c.tc.Do(ctx, transport.Request{
		Op:     "synthesize",
		Method: http.MethodPost,
		URL:    c.tts + "/v1/audio/speech",
		Header: h,
		Body:   b,
	})
}

// Model describes a TTS model.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	Created int64  `json:"created,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// Models lists the TTS models.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	var out struct {
		Data []Model `json:"data"`
	}
	if err := c.tc.JSON(ctx, "tts_models", http.MethodGet, c.tts+"/v1/models", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Model returns one TTS model, or nil when the service does not know id.
func (c *Client) Model(ctx context.Context, id string) (*Model, error) {
	if id == "" {
		return nil, failure.InvalidInput("empty model id")
	}
	var m Model
	err := c.tc.JSON(ctx, "tts_model", http.MethodGet, c.tts+"/v1/models/"+escape(id), nil, &m)
	if failure.StatusCode(err) == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Voices lists the voice names.
func (c *Client) Voices(ctx context.Context) ([]string, error) {
	var out struct {
		Voices []string `json:"voices"`
	}
	if err := c.tc.JSON(ctx, "tts_voices", http.MethodGet, c.tts+"/v1/audio/voices", nil, &out); err != nil {
		return nil, err
	}
	return out.Voices, nil
}

// CombineVoices blends voices into a new voice and returns the voice
// tensor file. At least two voices are required.
func (c *Client) CombineVoices(ctx context.Context, voices ...string) ([]byte, error) {
	if len(voices) < 2 {
		return nil, failure.InvalidInput("at least two voices are required")
	}
	b, err := json.Marshal(voices)
	if err != nil {
		return nil, failure.InvalidInput(err.Error())
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return c.tc.Do(ctx, transport.Request{
		Op:     "combine_voices",
		Method: http.MethodPost,
		URL:    c.tts + "/v1/audio/voices/combine",
		Header: h,
		Body:   b,
	})
}

// Download fetches a file produced earlier by the TTS service.
func (c *Client) Download(ctx context.Context, name string) ([]byte, error) {
	if name == "" || strings.Contains(name, "/") {
		return nil, failure.InvalidInput(fmt.Sprintf("invalid file name %q", name))
	}
	return c.tc.Do(ctx, transport.Request{
		Op:  "download",
		URL: c.tts + "/v1/download/" + escape(name),
	})
}
