// Package chat is the client for Secret AI confidential inference workers.
// Workers expose an OpenAI-compatible API, which is reached through
// github.com/openai/openai-go with its own retries disabled; retries,
// timeouts and error classification are those of package retry.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/config"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/retry"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/transport"
	"go.uber.org/zap"
)

// Role of a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System, User and Assistant build messages.
func System(s string) Message    { return Message{Role: RoleSystem, Content: s} }
func User(s string) Message      { return Message{Role: RoleUser, Content: s} }
func Assistant(s string) Message { return Message{Role: RoleAssistant, Content: s} }

// Options tunes sampling. Nil fields use the server defaults.
type Options struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   int64
}

// Usage reports token counts.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Response is a completed answer.
type Response struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Client sends chat requests to one inference worker.
type Client struct {
	api        openai.Client
	host       string
	model      string
	validate   bool
	tc         *transport.Client
	streamHTTP *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHost sets the worker URL, overriding config.Config.Host.
func WithHost(host string) Option {
	return func(c *Client) { c.host = host }
}

// WithModel sets the default model, overriding config.Config.Model.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

// WithTransport shares a transport (policy, timeouts, observers, HTTP client).
func WithTransport(tc *transport.Client) Option {
	return func(c *Client) { c.tc = tc }
}

// New builds a Client. It fails with failure.KindAPIKeyMissing when cfg has
// no API key and with failure.KindInvalidInput when no host is known.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	c := &Client{
		host:     cfg.Host,
		model:    cfg.Model,
		validate: !config.BoolValue(cfg.SkipResponseValidation),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.host == "" {
		return nil, failure.InvalidInput("no inference host: set Host or discover one through the registry")
	}
	if _, err := url.Parse(c.host); err != nil {
		return nil, failure.InvalidInput("inference host: " + err.Error())
	}
	if c.tc == nil {
		policy, err := cfg.Retry.Policy()
		if err != nil {
			return nil, err
		}
		c.tc = transport.New(policy, cfg.Timeouts)
	}

	hc := c.tc.HTTPClient()
	sc := *hc
	sc.Timeout = 0
	c.streamHTTP = &sc

	c.api = openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL(c.host)),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(0),
	)
	return c, nil
}

// Host returns the worker URL.
func (c *Client) Host() string { return c.host }

func baseURL(host string) string {
	host = strings.TrimRight(host, "/")
	if strings.HasSuffix(host, "/v1") {
		return host + "/"
	}
	return host + "/v1/"
}

func (c *Client) params(model string, msgs []Message, o *Options) (openai.ChatCompletionNewParams, error) {
	if model == "" {
		model = c.model
	}
	if model == "" {
		return openai.ChatCompletionNewParams{}, failure.InvalidInput("no model given")
	}
	if len(msgs) == 0 {
		return openai.ChatCompletionNewParams{}, failure.InvalidInput("no messages given")
	}
	p := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)),
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			p.Messages = append(p.Messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			p.Messages = append(p.Messages, openai.AssistantMessage(m.Content))
		case RoleUser, "":
			p.Messages = append(p.Messages, openai.UserMessage(m.Content))
		default:
			return p, failure.InvalidInput("unknown message role " + string(m.Role))
		}
	}
	if o != nil {
		if o.Temperature != nil {
			p.Temperature = openai.Float(*o.Temperature)
		}
		if o.TopP != nil {
			p.TopP = openai.Float(*o.TopP)
		}
		if o.MaxTokens > 0 {
			p.MaxTokens = openai.Int(o.MaxTokens)
		}
	}
	return p, nil
}

// Chat sends msgs to model (the client default when empty) and returns the
// first choice.
func (c *Client) Chat(ctx context.Context, model string, msgs []Message, o *Options) (*Response, error) {
	p, err := c.params(model, msgs, o)
	if err != nil {
		return nil, err
	}
	return retry.Do(ctx, c.tc.Policy(), c.tc.Timeout(), c.complete(p), c.tc.RetryOptions(retry.WithOperation("chat"))...)
}

// ChatAsync is the non-blocking form of Chat. The single result is
// delivered on the returned channel, which is then closed.
func (c *Client) ChatAsync(ctx context.Context, model string, msgs []Message, o *Options) <-chan retry.Result[*Response] {
	p, err := c.params(model, msgs, o)
	if err != nil {
		ch := make(chan retry.Result[*Response], 1)
		ch <- retry.Result[*Response]{Err: err}
		close(ch)
		return ch
	}
	return retry.Go(ctx, c.tc.Policy(), c.tc.Timeout(), c.complete(p), c.tc.RetryOptions(retry.WithOperation("chat"))...)
}

// complete returns the attempt of one chat call. All attempts share one
// request ID.
func (c *Client) complete(p openai.ChatCompletionNewParams) retry.Operation[*Response] {
	id := uuid.NewString()
	return func(ctx context.Context) (*Response, error) {
		cc, err := c.api.Chat.Completions.New(ctx, p, option.WithHeader(transport.HeaderRequestID, id))
		if err != nil {
			return nil, c.convert("chat", err)
		}
		return c.response(cc)
	}
}

// Generate answers a single prompt.
func (c *Client) Generate(ctx context.Context, model, prompt string, o *Options) (*Response, error) {
	if prompt == "" {
		return nil, failure.InvalidInput("empty prompt")
	}
	return c.Chat(ctx, model, []Message{User(prompt)}, o)
}

// Attestation returns the worker's attestation report. Workers do not
// publish one yet, so the report is empty.
func (c *Client) Attestation(context.Context) (map[string]any, error) {
	return map[string]any{}, nil
}

func (c *Client) response(cc *openai.ChatCompletion) (*Response, error) {
	if cc == nil {
		if c.validate {
			return nil, failure.Response("Received null response", nil)
		}
		return &Response{}, nil
	}
	if c.validate {
		if raw := cc.RawJSON(); raw != "" {
			var probe struct {
				Error any `json:"error"`
			}
			if json.Unmarshal([]byte(raw), &probe) == nil && probe.Error != nil {
				return nil, failure.Response("Server returned error", probe.Error)
			}
		}
		if len(cc.Choices) == 0 {
			return nil, failure.Response("response has no choices", cc.ID)
		}
	}
	r := &Response{
		ID:    cc.ID,
		Model: cc.Model,
		Usage: Usage{
			PromptTokens:     cc.Usage.PromptTokens,
			CompletionTokens: cc.Usage.CompletionTokens,
			TotalTokens:      cc.Usage.TotalTokens,
		},
	}
	if len(cc.Choices) > 0 {
		r.Content = cc.Choices[0].Message.Content
		r.FinishReason = string(cc.Choices[0].FinishReason)
	}
	if c.validate && r.Content == "" {
		zap.L().Warn("response message has no content", zap.String("id", r.ID))
	}
	return r, nil
}

// convert maps openai-go and transport errors into the failure taxonomy.
func (c *Client) convert(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return failure.Status(apiErr.StatusCode, []byte(apiErr.Error()))
	}
	host := c.host
	if u, perr := url.Parse(c.host); perr == nil && u.Host != "" {
		host = u.Host
	}
	return transport.Convert(op, host, c.timeout(), err)
}

func (c *Client) timeout() time.Duration { return c.tc.Timeout() }
