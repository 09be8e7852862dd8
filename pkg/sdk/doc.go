// Package sdk provides the high-level entry point for Secret AI confidential
// inference.
//
// The SDK discovers inference workers through the Secret Network
// worker-management contract and hands out chat and voice clients whose
// calls share one retrying transport.
//
// # Quick Start
//
//	import (
//		"github.com/scrtlabs/secret-ai-sdk-go/pkg/chat"
//		"github.com/scrtlabs/secret-ai-sdk-go/pkg/config"
//		"github.com/scrtlabs/secret-ai-sdk-go/pkg/sdk"
//	)
//
//	func main() {
//		cfg, err := config.FromEnv(config.SecretAI, os.LookupEnv)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		s, err := sdk.New(cfg)
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer s.Close()
//
//		models, err := s.Models(ctx)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		c, err := s.NewChatClient(ctx, models[0])
//		if err != nil {
//			log.Fatal(err)
//		}
//		resp, err := c.Chat(ctx, "", []chat.Message{
//			chat.System("You are a helpful assistant."),
//			chat.User("What is a secret contract?"),
//		}, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(resp.Content)
//	}
//
// # Architecture
//
// The SDK coordinates several subsystems:
//
//   - Registry: model and worker discovery (package secret, or registry.Static)
//   - Transport: HTTP with per-attempt timeouts and retries (packages transport, retry)
//   - Chat: OpenAI-compatible inference (package chat)
//   - Voice: speech-to-text and text-to-speech (package voice)
//
// # Errors
//
// Every failure is a *failure.Error. Transient network failures are retried
// with exponential backoff; once attempts run out the error has kind
// failure.KindRetryExhausted and carries the history of every attempt.
//
// # Logging
//
// The package installs a console zap logger as the global logger. Its level
// follows Config.LogLevel and Config.Debug. Replace it with zap.ReplaceGlobals
// for custom output.
//
// # Metrics
//
// WithMetrics registers Prometheus counters and histograms for every attempt
// of every call:
//
//	s, err := sdk.New(cfg, sdk.WithMetrics(prometheus.DefaultRegisterer))
package sdk
