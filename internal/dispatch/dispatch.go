// Package dispatch implements the Dispatch Core: the single
// entry point that orchestrates one chat call end to end — schema prep,
// adapter invocation, the throttling retry wrapper, structured-output
// parsing, timing, and a fire-and-forget metrics hand-off.
package dispatch

import (
	"context"
	"time"

	"github.com/llmgate/llmgate/internal/catalog"
	"github.com/llmgate/llmgate/internal/errs"
	"github.com/llmgate/llmgate/internal/llm"
	"github.com/llmgate/llmgate/internal/providers"
)

// MetricsSink receives a fire-and-forget record of one completed (or
// failed) call; the dispatch core's own latency never waits on it.
// internal/metricslog.Manager satisfies this.
type MetricsSink interface {
	AddLog(modelKey string, record Record)
}

// Record is the metric fact the dispatch core hands to a MetricsSink once
// per call, win or lose.
type Record struct {
	ModelKey        string
	CallStartTime   time.Time
	CallEndTime     time.Time
	CallDuration    time.Duration
	StatusCode      int
	TokensPerSecond float64
	InternalRetries int
}

// Dispatcher binds a model registry to the adapter factory table and
// drives the per-call state machine.
type Dispatcher struct {
	Registry *catalog.Registry
	Metrics  MetricsSink

	// now and sleep are overridable for deterministic tests of the retry
	// wrapper's timing; production callers leave them nil and get
	// time.Now/time.Sleep.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Dispatcher bound to a catalog registry and a metrics sink.
func New(registry *catalog.Registry, metrics MetricsSink) *Dispatcher {
	return &Dispatcher{Registry: registry, Metrics: metrics}
}

func (d *Dispatcher) clock() func() time.Time {
	if d.now != nil {
		return d.now
	}
	return time.Now
}

func (d *Dispatcher) sleeper() func(ctx context.Context, dur time.Duration) error {
	if d.sleep != nil {
		return d.sleep
	}
	return defaultSleep
}

func defaultSleep(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle runs one full chat call against the model identified by modelID:
// resolve the model and its adapter, start the adapter, run the retry
// wrapper, optionally parse structured output, accumulate tokens, stamp
// timing, and hand a metrics record off without blocking the caller on it.
func (d *Dispatcher) Handle(ctx context.Context, modelID string, req *llm.Request) (*llm.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, errs.Wrap(errs.Conversion, err, "invalid request")
	}

	model, err := d.Registry.GetModel(modelID)
	if err != nil {
		return nil, errs.Wrap(errs.ModelNotFound, err, "model %q not found", modelID)
	}

	adapter, err := providers.New(model)
	if err != nil {
		return nil, errs.Wrap(errs.ModelNotFound, err, "no adapter for model %q", modelID)
	}

	now := d.clock()
	startTime := now()
	if err := adapter.Start(ctx); err != nil {
		d.recordFailure(model.ID, startTime, now(), err, 0)
		return nil, err
	}
	defer adapter.Stop(ctx)

	text, tokens, native, retries, err := d.retryWrapper(ctx, req, adapter)
	endTime := now()
	if err != nil {
		d.recordFailure(model.ID, startTime, endTime, err, retries)
		return nil, err
	}

	resp := &llm.Response{
		ID:               req.ID,
		ResponseModel:    req.ResponseModel,
		RawOutput:        text,
		NativeStructured: native,
		Conversation:     req.Conversation,
		LLMModel:         model,
		Tokens:           llm.NewTokenTracker(),
		StartTime:        startTime,
		EndTime:          endTime,
		TotalDuration:    endTime.Sub(startTime),
	}
	resp.Tokens.Add(model.ID, tokens)

	if req.ResponseModel != nil {
		if _, err := resp.Output(); err != nil {
			d.recordFailure(model.ID, startTime, endTime, err, retries)
			return nil, err
		}
	}

	d.recordSuccess(model.ID, startTime, endTime, tokens, retries)
	return resp, nil
}

// retryWrapper runs adapter.ServiceCall, retrying only on throttling
// errors with pure exponential backoff: delay before the
// k-th retry is 2^(k-1) seconds (1s, 2s, 4s, ...). Any other error
// propagates immediately; exhausting max_retries raises a terminal
// throttling error.
func (d *Dispatcher) retryWrapper(ctx context.Context, req *llm.Request, adapter providers.Adapter) (string, llm.ModelTokens, bool, int, error) {
	now := d.clock()
	sleep := d.sleeper()
	attemptsStart := now()

	k := 0
	for {
		text, tokens, native, err := adapter.ServiceCall(ctx, req)
		if err == nil {
			return text, tokens, native, k, nil
		}
		if !errs.Is(err, errs.Throttling) {
			return "", llm.ModelTokens{}, false, k, err
		}
		k++
		if k > req.MaxRetries {
			elapsed := now().Sub(attemptsStart).Seconds()
			return "", llm.ModelTokens{}, false, k - 1, errs.NewThrottlingExhausted(k-1, elapsed)
		}
		delay := time.Duration(1<<uint(k-1)) * time.Second
		if serr := sleep(ctx, delay); serr != nil {
			return "", llm.ModelTokens{}, false, k, errs.Wrap(errs.Timeout, serr, "backoff sleep canceled after %d retries", k)
		}
	}
}

func (d *Dispatcher) recordSuccess(modelKey string, start, end time.Time, tokens llm.ModelTokens, retries int) {
	if d.Metrics == nil {
		return
	}
	dur := end.Sub(start)
	tps := 0.0
	if dur > 0 {
		tps = float64(tokens.Total) / dur.Seconds()
	}
	go d.Metrics.AddLog(modelKey, Record{
		ModelKey:        modelKey,
		CallStartTime:   start,
		CallEndTime:     end,
		CallDuration:    dur,
		StatusCode:      200,
		TokensPerSecond: tps,
		InternalRetries: retries,
	})
}

func (d *Dispatcher) recordFailure(modelKey string, start, end time.Time, err error, retries int) {
	if d.Metrics == nil {
		return
	}
	go d.Metrics.AddLog(modelKey, Record{
		ModelKey:        modelKey,
		CallStartTime:   start,
		CallEndTime:     end,
		CallDuration:    end.Sub(start),
		StatusCode:      statusCodeForError(err),
		InternalRetries: retries,
	})
}

// statusCodeForError maps an error kind onto a representative HTTP status
// for the metrics status_counter; this is a one-way summary
// used only for aggregate stats, not a wire response.
func statusCodeForError(err error) int {
	var e *errs.Error
	if !errs.As(err, &e) {
		return 500
	}
	switch e.Kind {
	case errs.Credentials:
		return 401
	case errs.ModelNotFound:
		return 404
	case errs.Conversion:
		return 422
	case errs.Throttling:
		return 429
	case errs.Timeout:
		return 504
	case errs.StructuredResponse:
		return 422
	default:
		return 502
	}
}
