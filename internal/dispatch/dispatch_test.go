package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/llmgate/llmgate/internal/catalog"
	"github.com/llmgate/llmgate/internal/conversation"
	"github.com/llmgate/llmgate/internal/errs"
	"github.com/llmgate/llmgate/internal/llm"
	"github.com/llmgate/llmgate/internal/providers"
)

type scriptedAdapter struct {
	mu          sync.Mutex
	errs        []error
	finalText   string
	finalTokens llm.ModelTokens
	finalNative bool
	calls       int
}

func (a *scriptedAdapter) Start(ctx context.Context) error { return nil }
func (a *scriptedAdapter) Stop(ctx context.Context) error  { return nil }

func (a *scriptedAdapter) ServiceCall(ctx context.Context, req *llm.Request) (string, llm.ModelTokens, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calls < len(a.errs) {
		err := a.errs[a.calls]
		a.calls++
		return "", llm.ModelTokens{}, false, err
	}
	a.calls++
	return a.finalText, a.finalTokens, a.finalNative, nil
}

type fakeSink struct {
	mu sync.Mutex
	records []Record
	done chan struct{}
}

func newFakeSink() *fakeSink { return &fakeSink{done: make(chan struct{}, 16)} }

func (f *fakeSink) AddLog(modelKey string, record Record) {
	f.mu.Lock()
	f.records = append(f.records, record)
	f.mu.Unlock()
	f.done <- struct{}{}
}

func testRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	reg, err := catalog.Load([]byte(`
PROVIDERS:
  MOCK:
    config: {}
MODELS:
  "MOCK/echo":
    internal_model_id: echo
    max_tokens: 1000
    max_output_tokens: 100
`))
	require.NoError(t, err)
	return reg
}

func newDispatcherWithAdapter(t *testing.T, reg *catalog.Registry, sink MetricsSink, adapter providers.Adapter) *Dispatcher {
	t.Helper()
	d := New(reg, sink)
	noSleep := func(ctx context.Context, dur time.Duration) error { return nil }
	d.sleep = noSleep
	d.now = time.Now
	providers.Register(catalog.Mock, func(m catalog.Model) (providers.Adapter, error) { return adapter, nil })
	return d
}

func TestHandleSucceedsAfterThrottling(t *testing.T) {
	reg := testRegistry(t)
	adapter := &scriptedAdapter{
		errs: []error{errs.New(errs.Throttling, "slow down"), errs.New(errs.Throttling, "slow down")},
		finalText: "hello",
		finalTokens: llm.ModelTokens{Total: 10},
	}
	sink := newFakeSink()
	d := newDispatcherWithAdapter(t, reg, sink, adapter)

	req := llm.NewRequest(conversation.FromPrompt("hi"))
	resp, err := d.Handle(context.Background(), "MOCK/echo", req)
	require.NoError(t, err)
	require.Equal(t, "hello", resp.RawOutput)
	require.True(t, resp.EndTime.After(resp.StartTime) || resp.EndTime.Equal(resp.StartTime))

	<-sink.done
	sink.mu.Lock()
	require.Len(t, sink.records, 1)
	require.Equal(t, 200, sink.records[0].StatusCode)
	require.Equal(t, 2, sink.records[0].InternalRetries)
	sink.mu.Unlock()
}

func TestHandleExhaustsRetries(t *testing.T) {
	reg := testRegistry(t)
	throttles := make([]error, 0, 10)
	for i := 0; i < llm.DefaultMaxRetries+1; i++ {
		throttles = append(throttles, errs.New(errs.Throttling, "slow down"))
	}
	adapter := &scriptedAdapter{errs: throttles}
	sink := newFakeSink()
	d := newDispatcherWithAdapter(t, reg, sink, adapter)

	req := llm.NewRequest(conversation.FromPrompt("hi"))
	_, err := d.Handle(context.Background(), "MOCK/echo", req)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Throttling))
}

func TestHandlePropagatesNonThrottlingErrorImmediately(t *testing.T) {
	reg := testRegistry(t)
	adapter := &scriptedAdapter{errs: []error{errs.New(errs.Conversion, "bad request")}}
	sink := newFakeSink()
	d := newDispatcherWithAdapter(t, reg, sink, adapter)

	req := llm.NewRequest(conversation.FromPrompt("hi"))
	_, err := d.Handle(context.Background(), "MOCK/echo", req)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Conversion))
	require.Equal(t, 1, adapter.calls)
}

func TestHandleUnknownModelReturnsModelNotFound(t *testing.T) {
	reg := testRegistry(t)
	d := New(reg, nil)

	req := llm.NewRequest(conversation.FromPrompt("hi"))
	_, err := d.Handle(context.Background(), "MOCK/missing", req)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.ModelNotFound))
}
