// Package genai wraps the generative port with the call policy every stage
// shares: a per-call timeout, bounded retries with exponential backoff, JSON
// decoding and a typed failure once the retry budget is spent.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/bryanwahyu/essay-workshop/internal/domain/ai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

// Policy bounds one logical call.
type Policy struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"maxRetries"`
	Backoff    time.Duration `yaml:"backoff"`
}

// DefaultPolicy: 60s per attempt, 2 retries, 500ms doubling backoff.
func DefaultPolicy() Policy {
	return Policy{Timeout: 60 * time.Second, MaxRetries: 2, Backoff: 500 * time.Millisecond}
}

// Validator is implemented by response types that check their own shape after
// decoding. A failed check is treated like malformed JSON.
type Validator interface {
	Validate() error
}

// Target names the stage a call belongs to, for errors and logs.
type Target struct {
	Stage    string
	Analyzer string
}

// Caller applies Policy to an ai.Client.
type Caller struct {
	client ai.Client
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewCaller(client ai.Client, p Policy) *Caller {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return &Caller{client: client, policy: p, sleep: sleepCtx}
}

// WithSleep replaces the backoff sleeper; tests use it to skip waiting.
func (c *Caller) WithSleep(fn func(ctx context.Context, d time.Duration) error) *Caller {
	cp := *c
	cp.sleep = fn
	return &cp
}

// JSON sends req and decodes the response into out, which must be a non-nil
// pointer. Each attempt decodes into a fresh value and out is only written by
// the accepted one, so fields of a rejected attempt never leak through. Token
// usage of every attempt is returned, including failed ones.
func (c *Caller) JSON(ctx context.Context, t Target, req ai.Request, out any) (essay.TokenUsage, error) {
	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return essay.TokenUsage{}, fmt.Errorf("%s: decode target must be a non-nil pointer, got %T", req.Purpose, out)
	}
	req.JSONMode = true
	return c.do(ctx, t, req, func(text string) error {
		fresh := reflect.New(dst.Type().Elem())
		if err := ai.DecodeJSON(req.Purpose, text, fresh.Interface()); err != nil {
			return err
		}
		if v, ok := fresh.Interface().(Validator); ok {
			if err := v.Validate(); err != nil {
				return &ai.ParseError{Purpose: req.Purpose, Err: err}
			}
		}
		dst.Elem().Set(fresh.Elem())
		return nil
	})
}

func (c *Caller) do(ctx context.Context, t Target, req ai.Request, accept func(string) error) (essay.TokenUsage, error) {
	var (
		usage   essay.TokenUsage
		lastErr error
	)
	attempts := c.policy.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := c.policy.Backoff * time.Duration(1<<(attempt-1))
			if err := c.sleep(ctx, wait); err != nil {
				return usage, fmt.Errorf("%s: %w", req.Purpose, err)
			}
		}

		resp, err := c.attempt(ctx, req)
		usage.Add(essay.TokenUsage{Prompt: resp.PromptTokens, Completion: resp.CompletionTokens})
		if err == nil {
			err = accept(resp.Text)
			if err == nil {
				return usage, nil
			}
		}
		if ctx.Err() != nil {
			return usage, fmt.Errorf("%s: %w", req.Purpose, ctx.Err())
		}
		lastErr = err
		if !retryable(err) {
			return usage, &essay.StageFailedError{Stage: t.Stage, Analyzer: t.Analyzer, Attempts: attempt + 1, Err: err}
		}
		if attempt+1 < attempts {
			slog.WarnContext(ctx, "generative call retry",
				"purpose", req.Purpose,
				"stage", t.Stage,
				"analyzer", t.Analyzer,
				"attempt", attempt+1,
				"error", err)
		}
	}
	return usage, &essay.StageFailedError{Stage: t.Stage, Analyzer: t.Analyzer, Attempts: attempts, Err: lastErr}
}

func (c *Caller) attempt(ctx context.Context, req ai.Request) (ai.Response, error) {
	callCtx := ctx
	if c.policy.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.policy.Timeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := c.client.Complete(callCtx, req)
	slog.DebugContext(ctx, "generative call",
		"purpose", req.Purpose,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.PromptTokens,
		"completion_tokens", resp.CompletionTokens,
		"error", err)
	return resp, err
}

// retryable: timeouts, quota, transient provider errors, empty and malformed
// responses. Rejections are final.
func retryable(err error) bool {
	switch {
	case errors.Is(err, ai.ErrRejected):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
