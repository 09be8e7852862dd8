package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/option"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/failure"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/retry"
	"github.com/scrtlabs/secret-ai-sdk-go/pkg/transport"
)

// StreamFunc receives each content delta in order. Returning an error stops
// the stream and Stream returns that error.
type StreamFunc func(delta string) error

// errFirstDelta is the cancellation cause of a stream whose worker sent no
// content within the request timeout.
var errFirstDelta = errors.New("no content before first-delta deadline")

// Stream sends msgs and passes the answer to fn as it is generated. The
// returned Response holds the concatenated content.
//
// The request timeout bounds the wait for the first delta, not the whole
// answer. Failures before the first delta, a stalled worker included, are
// retried like Chat; once a delta has reached fn the call is no longer
// retried, since the caller has already consumed part of the answer. fn is
// never invoked after Stream returns.
func (c *Client) Stream(ctx context.Context, model string, msgs []Message, o *Options, fn StreamFunc) (*Response, error) {
	p, err := c.params(model, msgs, o)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		fn = func(string) error { return nil }
	}

	var (
		mu     sync.Mutex
		closed bool
	)
	deliver := func(sctx context.Context, d string) error {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return context.Canceled
		}
		if err := sctx.Err(); err != nil {
			return err
		}
		return fn(d)
	}
	defer func() {
		mu.Lock()
		closed = true
		mu.Unlock()
	}()

	var delivered atomic.Bool
	classify := func(err error) retry.Class {
		if err != nil && delivered.Load() {
			return retry.Terminal
		}
		return retry.Classify(err)
	}

	id := uuid.NewString()
	first := c.timeout()
	return retry.Do(ctx, c.tc.Policy(), 0, func(ctx context.Context) (*Response, error) {
		sctx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		if first > 0 {
			timer := time.AfterFunc(first, func() {
				if !delivered.Load() {
					cancel(errFirstDelta)
				}
			})
			defer timer.Stop()
		}

		stream := c.api.Chat.Completions.NewStreaming(sctx, p,
			option.WithHTTPClient(c.streamHTTP),
			option.WithHeader(transport.HeaderRequestID, id))
		defer stream.Close()

		var (
			b    strings.Builder
			resp Response
		)
		for stream.Next() {
			chunk := stream.Current()
			if resp.ID == "" {
				resp.ID, resp.Model = chunk.ID, chunk.Model
			}
			for _, ch := range chunk.Choices {
				if ch.FinishReason != "" {
					resp.FinishReason = string(ch.FinishReason)
				}
				if ch.Delta.Content == "" {
					continue
				}
				delivered.Store(true)
				b.WriteString(ch.Delta.Content)
				if err := deliver(sctx, ch.Delta.Content); err != nil {
					return nil, err
				}
			}
			if chunk.Usage.TotalTokens > 0 {
				resp.Usage = Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
				}
			}
		}
		if ctx.Err() == nil && errors.Is(context.Cause(sctx), errFirstDelta) {
			return nil, failure.Timeout("stream", first, errFirstDelta)
		}
		if err := stream.Err(); err != nil {
			return nil, c.convert("stream", err)
		}
		resp.Content = b.String()
		if c.validate && resp.Content == "" && !delivered.Load() {
			return nil, failure.Response("stream ended without content", resp.ID)
		}
		return &resp, nil
	}, c.tc.RetryOptions(retry.WithOperation("stream"), retry.WithClassifier(classify))...)
}
