// Package aitest provides a scripted ai.Client for tests.
package aitest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/bryanwahyu/essay-workshop/internal/domain/ai"
)

// Handler answers one request.
type Handler func(ctx context.Context, req ai.Request) (ai.Response, error)

// Fake routes requests by Purpose prefix to handlers. It is safe for
// concurrent use.
type Fake struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []ai.Request
	// Fallback answers purposes with no handler; nil means an error.
	Fallback Handler
}

func New() *Fake {
	return &Fake{handlers: make(map[string]Handler)}
}

// On registers h for requests whose Purpose starts with prefix. The longest
// matching prefix wins.
func (f *Fake) On(prefix string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[prefix] = h
	return f
}

// OnJSON answers prefix with v marshalled to JSON.
func (f *Fake) OnJSON(prefix string, v any) *Fake {
	return f.On(prefix, JSON(v))
}

func (f *Fake) Complete(ctx context.Context, req ai.Request) (ai.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	h := f.match(req.Purpose)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ai.Response{}, err
	}
	if h == nil {
		return ai.Response{}, fmt.Errorf("aitest: no handler for %q", req.Purpose)
	}
	return h(ctx, req)
}

func (f *Fake) match(purpose string) Handler {
	best := ""
	var h Handler
	for prefix, candidate := range f.handlers {
		if strings.HasPrefix(purpose, prefix) && len(prefix) >= len(best) {
			best, h = prefix, candidate
		}
	}
	if h == nil {
		return f.Fallback
	}
	return h
}

// Calls returns a copy of every request received so far.
func (f *Fake) Calls() []ai.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.Request(nil), f.calls...)
}

// Count returns how many requests had a Purpose starting with prefix.
func (f *Fake) Count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c.Purpose, prefix) {
			n++
		}
	}
	return n
}

// JSON returns a handler that always answers with v as JSON.
func JSON(v any) Handler {
	body, err := json.Marshal(v)
	return func(context.Context, ai.Request) (ai.Response, error) {
		if err != nil {
			return ai.Response{}, err
		}
		return ai.Response{Text: string(body), PromptTokens: 10, CompletionTokens: 5}, nil
	}
}

// Text returns a handler that always answers with s.
func Text(s string) Handler {
	return func(context.Context, ai.Request) (ai.Response, error) {
		return ai.Response{Text: s, PromptTokens: 10, CompletionTokens: 5}, nil
	}
}

// Fail returns a handler that always fails with err.
func Fail(err error) Handler {
	return func(context.Context, ai.Request) (ai.Response, error) {
		return ai.Response{}, err
	}
}

// Sequence answers with each handler in turn, repeating the last one.
func Sequence(hs ...Handler) Handler {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context, req ai.Request) (ai.Response, error) {
		mu.Lock()
		h := hs[i]
		if i < len(hs)-1 {
			i++
		}
		mu.Unlock()
		return h(ctx, req)
	}
}

// Block waits until ctx is done and returns its error.
func Block() Handler {
	return func(ctx context.Context, _ ai.Request) (ai.Response, error) {
		<-ctx.Done()
		return ai.Response{}, ctx.Err()
	}
}
