package sdk

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/scrtlabs/secret-ai-sdk-go/internal/metrics"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/chat"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/config"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/registry"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/retry"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/secret"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/transport"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/voice"
	"go.uber.org/zap"
)

// SecretAI is the public interface for discovering models and constructing
// per-worker clients.
type SecretAI interface {
	// Models lists the models registered on the network.
	Models(ctx context.Context) ([]string, error)

	// URLs lists the worker URLs serving model, or all workers when model
	// is empty.
	URLs(ctx context.Context, model string) ([]string, error)

	// NewChatClient creates a chat client bound to a worker serving model.
	NewChatClient(ctx context.Context, model string) (*chat.Client, error)

	// NewVoiceClient creates a client for the speech services.
	NewVoiceClient() (*voice.Client, error)

	// Close releases resources associated with the SDK instance.
	Close()
}

// level is the level of the global logger installed by init. New adjusts it
// from the configuration.
var level = zap.NewAtomicLevelAt(zap.InfoLevel)

// init configures a default global zap logger for the SDK. Applications may
// replace it with zap.ReplaceGlobals(...) if they need custom logging.
func init() {
	c := zap.Config{
		Level:            level,
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := c.Build()
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)
}

// Core is the concrete SDK implementation.
type Core struct {
	*config.Config
	tc       *transport.Client
	registry registry.Registry
	metrics  *metrics.Metrics
}

// Option customizes New.
type Option func(*options)

type options struct {
	registry   registry.Registry
	querier    secret.ContractQuerier
	subscriber string
	metricsReg prometheus.Registerer
	observers  []retry.Observer
	httpClient *http.Client
}

// WithRegistry replaces on-chain discovery, e.g. with a registry.Static.
func WithRegistry(r registry.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithContractQuerier replaces the LCD querier used for on-chain discovery.
func WithContractQuerier(q secret.ContractQuerier) Option {
	return func(o *options) { o.querier = q }
}

// WithSubscriberKey signs registry queries with the hex-encoded key.
// Subscription-gated registries (the Claive deployment) require it.
func WithSubscriberKey(privHex string) Option {
	return func(o *options) { o.subscriber = privHex }
}

// WithMetrics registers Prometheus instrumentation of every call with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.metricsReg = reg }
}

// WithObserver adds retry observers to every call.
func WithObserver(obs ...retry.Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs...) }
}

// WithHTTPClient replaces the HTTP client built from the configured timeouts.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// New validates cfg, sets the log level and builds the shared transport and
// registry. cfg is modified in place by Validate.
func New(cfg *config.Config, opts ...Option) (*Core, error) {
	if cfg == nil {
		return nil, failure.InvalidInput("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	level.SetLevel(cfg.Level())
	if cfg.LogLevel != "" {
		if _, ok := config.ParseLogLevel(cfg.LogLevel); !ok {
			zap.L().Warn("unknown log level, using info", zap.String("level", cfg.LogLevel))
		}
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	policy, err := cfg.Retry.Policy()
	if err != nil {
		return nil, err
	}

	c := &Core{Config: cfg}
	if o.metricsReg != nil {
		c.metrics = metrics.New(o.metricsReg)
	}
	retryOpts := []retry.Option{retry.WithObserver(o.observers...)}
	if c.metrics != nil {
		retryOpts = append(retryOpts, retry.WithObserver(c.metrics))
	}
	c.tc = transport.New(policy, cfg.Timeouts,
		transport.WithHTTPClient(o.httpClient),
		transport.WithRetryOptions(retryOpts...))

	c.registry = o.registry
	if c.registry == nil {
		q := o.querier
		if q == nil {
			q = secret.NewLCDQuerier(cfg.Secret.NodeURL, c.tc)
		}
		var sopts []secret.Option
		if o.subscriber != "" {
			sopts = append(sopts, secret.WithSubscriberKey(o.subscriber))
		}
		sc, err := secret.New(cfg.Secret, q, sopts...)
		if err != nil {
			return nil, err
		}
		c.registry = sc
	}

	zap.L().Debug("sdk initialized",
		zap.String("profile", string(cfg.Profile)),
		zap.String("chain_id", cfg.Secret.ChainID),
		zap.Stringer("retry", policy))
	return c, nil
}

// Registry returns the model registry in use.
func (c *Core) Registry() registry.Registry { return c.registry }

// Transport returns the shared retrying transport.
func (c *Core) Transport() *transport.Client { return c.tc }

// Models implements SecretAI.
func (c *Core) Models(ctx context.Context) ([]string, error) {
	return c.registry.Models(ctx)
}

// URLs implements SecretAI.
func (c *Core) URLs(ctx context.Context, model string) ([]string, error) {
	return c.registry.URLs(ctx, model)
}

// NewChatClient implements SecretAI. The worker is cfg.Host when set,
// otherwise one of the URLs the registry lists for model, picked at random
// to spread load.
func (c *Core) NewChatClient(ctx context.Context, model string) (*chat.Client, error) {
	if model == "" {
		model = c.Model
	}
	host := c.Host
	if host == "" {
		urls, err := c.registry.URLs(ctx, model)
		if err != nil {
			return nil, fmt.Errorf("discover worker: %w", err)
		}
		if len(urls) == 0 {
			return nil, failure.InvalidInput(fmt.Sprintf("no worker serves model %q", model))
		}
		host = urls[rand.IntN(len(urls))]
	}
	zap.L().Debug("chat worker selected", zap.String("model", model), zap.String("host", host))
	return chat.New(c.Config, chat.WithHost(host), chat.WithModel(model), chat.WithTransport(c.tc))
}

// NewVoiceClient implements SecretAI.
func (c *Core) NewVoiceClient() (*voice.Client, error) {
	return voice.New(c.Config, voice.WithTransport(c.tc))
}

// Close releases idle connections of the shared HTTP client.
func (c *Core) Close() {
	c.tc.HTTPClient().CloseIdleConnections()
}

var _ SecretAI = (*Core)(nil)
