// Package mock implements the MOCK provider: a
// deterministic-ish stand-in adapter used by the dispatch-core test suite
// and by local development, shaped after the simplest HTTP-free adapter
// pattern in this codebase, but with no network call at all, since its
// entire point is to exercise retry/timing behavior without a live vendor.
package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/llmgate/llmgate/internal/catalog"
	"github.com/llmgate/llmgate/internal/errs"
	"github.com/llmgate/llmgate/internal/llm"
	"github.com/llmgate/llmgate/internal/providers"
)

func init() {
	providers.Register(catalog.Mock, New)
}

// Adapter is the MOCK provider: it echoes the user's last message back
// wrapped in a timing sentence, after sleeping a random duration. ThrottleTimes
// lets a caller (typically a test) force the adapter to raise throttling
// errors N times before succeeding, exercising the retry wrapper.
type Adapter struct {
	model         catalog.Model
	MinSleep      time.Duration
	MaxSleep      time.Duration
	ThrottleTimes int32

	calls int32
}

// New builds a Mock adapter bound to the given catalog model. Sleep bounds
// default to a 5-10s range; a model's Config map may override
// them with "sleep_min_seconds"/"sleep_max_seconds"/"throttle_times".
func New(model catalog.Model) (providers.Adapter, error) {
	a := &Adapter{model: model, MinSleep: 5 * time.Second, MaxSleep: 10 * time.Second}
	if model.Config != nil {
		num := func(key string) (float64, bool) {
			switch v := model.Config[key].(type) {
			case float64:
				return v, true
			case int:
				return float64(v), true
			}
			return 0, false
		}
		if v, ok := num("sleep_min_seconds"); ok {
			a.MinSleep = time.Duration(v * float64(time.Second))
		}
		if v, ok := num("sleep_max_seconds"); ok {
			a.MaxSleep = time.Duration(v * float64(time.Second))
		}
		if v, ok := num("throttle_times"); ok {
			a.ThrottleTimes = int32(v)
		}
	}
	return a, nil
}

func (a *Adapter) Start(ctx context.Context) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error  { return nil }

func (a *Adapter) ServiceCall(ctx context.Context, req *llm.Request) (string, llm.ModelTokens, bool, error) {
	if n := atomic.AddInt32(&a.calls, 1); n <= a.ThrottleTimes {
		return "", llm.ModelTokens{}, false, errs.New(errs.Throttling, "mock adapter simulated throttle %d/%d", n, a.ThrottleTimes)
	}

	sleepRange := a.MaxSleep - a.MinSleep
	sleep := a.MinSleep
	if sleepRange > 0 {
		sleep += time.Duration(rand.Int63n(int64(sleepRange)))
	}

	select {
	case <-time.After(sleep):
	case <-ctx.Done():
		return "", llm.ModelTokens{}, false, errs.Wrap(errs.Timeout, ctx.Err(), "mock adapter call canceled during simulated latency")
	}

	lastText := ""
	for i := len(req.Conversation.Messages) - 1; i >= 0; i-- {
		if req.Conversation.Messages[i].Text != "" {
			lastText = req.Conversation.Messages[i].Text
			break
		}
	}

	text := fmt.Sprintf("%s (message took %.0f seconds to generate).", lastText, sleep.Seconds())
	return text, llm.ModelTokens{Price: a.model.Price}, false, nil
}
