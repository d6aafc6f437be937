package agentsession

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeIterator struct {
	events []StreamEvent
	idx    int
	err    error
}

func (f *fakeIterator) Next() (StreamEvent, bool) {
	if f.idx >= len(f.events) {
		return StreamEvent{}, false
	}
	e := f.events[f.idx]
	f.idx++
	return e, true
}
func (f *fakeIterator) Err() error   { return f.err }
func (f *fakeIterator) Close() error { return nil }

// scriptedClient replays one slice of events per Stream call, in order.
type scriptedClient struct {
	turns [][]StreamEvent
	calls int
}

func (c *scriptedClient) Stream(ctx context.Context, req ChatRequest) (StreamIterator, error) {
	if c.calls >= len(c.turns) {
		return &fakeIterator{}, nil
	}
	t := c.turns[c.calls]
	c.calls++
	return &fakeIterator{events: t}, nil
}

// blockingClient blocks in Stream until either block is closed or ctx is cancelled.
type blockingClient struct {
	started chan struct{}
	block   chan struct{}
	once    sync.Once
}

func (c *blockingClient) Stream(ctx context.Context, req ChatRequest) (StreamIterator, error) {
	c.once.Do(func() { close(c.started) })
	select {
	case <-c.block:
		return &fakeIterator{events: []StreamEvent{{Kind: EventDone}}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeExecutor struct {
	fn func(ToolCall) (string, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, call ToolCall) (string, error) {
	if f.fn != nil {
		return f.fn(call)
	}
	return "ok", nil
}

func textEvents(s string) []StreamEvent {
	return []StreamEvent{
		{Kind: EventTextChunk, Text: s},
		{Kind: EventDone, Usage: Usage{PromptTokens: 10, CompletionTokens: 5}},
	}
}

func TestAskDirectTextReply(t *testing.T) {
	client := &scriptedClient{turns: [][]StreamEvent{textEvents("hello")}}
	s := New("sess-1", client, &fakeExecutor{}, nil, nil, Config{})

	res, err := s.Ask(context.Background(), TextMessage(RoleUser, "hi"), nil, Hooks{})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Text != "hello" || res.ToolCalls != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
	if s.State() != StateComplete {
		t.Errorf("expected complete state, got %s", s.State())
	}
}

func TestAskWithToolCallRound(t *testing.T) {
	toolTurn := []StreamEvent{
		{Kind: EventToolCallEnd, ToolCall: ToolCall{ID: "1", Name: "read_file", ArgsJSON: `{"path":"a.go"}`}},
		{Kind: EventDone},
	}
	finalTurn := textEvents("done")
	client := &scriptedClient{turns: [][]StreamEvent{toolTurn, finalTurn}}

	var executed []ToolCall
	executor := &fakeExecutor{fn: func(c ToolCall) (string, error) {
		executed = append(executed, c)
		return "contents", nil
	}}

	s := New("sess-2", client, executor, nil, nil, Config{})
	res, err := s.Ask(context.Background(), TextMessage(RoleUser, "read the file"), nil, Hooks{})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.ToolCalls != 1 || res.Text != "done" {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(executed) != 1 || executed[0].Name != "read_file" {
		t.Errorf("expected read_file executed once, got %+v", executed)
	}
}

func TestAskPromptBudgetExceeded(t *testing.T) {
	client := &scriptedClient{}
	s := New("sess-3", client, &fakeExecutor{}, nil, nil, Config{MaxPromptTokensPerAttempt: 1})

	_, err := s.Ask(context.Background(), TextMessage(RoleUser, "this prompt is long enough to exceed one token"), nil, Hooks{})
	if !errors.Is(err, ErrPromptBudgetExceeded) {
		t.Fatalf("expected ErrPromptBudgetExceeded, got %v", err)
	}
	if s.State() != StateFailed {
		t.Errorf("expected failed state, got %s", s.State())
	}
}

func TestAskAttemptTokenBudgetExceeded(t *testing.T) {
	turn := []StreamEvent{
		{Kind: EventTextChunk, Text: "partial"},
		{Kind: EventUsageUpdate, Usage: Usage{PromptTokens: 1000, CompletionTokens: 1000}},
		{Kind: EventDone},
	}
	client := &scriptedClient{turns: [][]StreamEvent{turn}}
	s := New("sess-4", client, &fakeExecutor{}, nil, nil, Config{MaxPromptTokensPerAttempt: 100})

	_, err := s.Ask(context.Background(), TextMessage(RoleUser, "hi"), nil, Hooks{})
	if !errors.Is(err, ErrAttemptTokenBudgetExceeded) {
		t.Fatalf("expected ErrAttemptTokenBudgetExceeded, got %v", err)
	}
}

func TestAskRejectsConcurrentCall(t *testing.T) {
	client := &blockingClient{started: make(chan struct{}), block: make(chan struct{})}
	s := New("sess-5", client, &fakeExecutor{}, nil, nil, Config{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Ask(context.Background(), TextMessage(RoleUser, "first"), nil, Hooks{})
	}()

	<-client.started
	_, err := s.Ask(context.Background(), TextMessage(RoleUser, "second"), nil, Hooks{})
	if !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}

	close(client.block)
	wg.Wait()
}

func TestCancelAbortsInFlightAsk(t *testing.T) {
	client := &blockingClient{started: make(chan struct{}), block: make(chan struct{})}
	s := New("sess-6", client, &fakeExecutor{}, nil, nil, Config{})

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Ask(context.Background(), TextMessage(RoleUser, "first"), nil, Hooks{})
		errCh <- err
	}()

	<-client.started
	s.Cancel()

	err := <-errCh
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if s.State() != StateCancelled {
		t.Errorf("expected cancelled state, got %s", s.State())
	}
}

func TestRestoreReplacesConversation(t *testing.T) {
	client := &scriptedClient{}
	s := New("sess-7", client, &fakeExecutor{}, nil, nil, Config{})

	seed := []Message{TextMessage(RoleSystem, "you are helpful"), TextMessage(RoleUser, "hi")}
	if err := s.Restore(seed); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(s.Messages()) != 2 {
		t.Errorf("expected restored conversation of length 2, got %d", len(s.Messages()))
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle state after restore, got %s", s.State())
	}
}

func TestSetModelRejectedWhileBusy(t *testing.T) {
	client := &blockingClient{started: make(chan struct{}), block: make(chan struct{})}
	s := New("sess-8", client, &fakeExecutor{}, nil, nil, Config{})

	go func() { _, _ = s.Ask(context.Background(), TextMessage(RoleUser, "first"), nil, Hooks{}) }()
	<-client.started

	if err := s.SetModel("other-model"); !errors.Is(err, ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy, got %v", err)
	}
	close(client.block)
}

func TestAskMaxIterationsExceeded(t *testing.T) {
	loopTurn := []StreamEvent{
		{Kind: EventToolCallEnd, ToolCall: ToolCall{ID: "1", Name: "poll", ArgsJSON: `{}`}},
		{Kind: EventDone},
	}
	var turns [][]StreamEvent
	for i := 0; i < 5; i++ {
		turns = append(turns, loopTurn)
	}
	client := &scriptedClient{turns: turns}
	s := New("sess-9", client, &fakeExecutor{}, nil, nil, Config{MaxIterations: 3, ToolLoop: ToolLoopConfig{CircuitBreakerThreshold: 1000}})

	_, err := s.Ask(context.Background(), TextMessage(RoleUser, "poll until done"), nil, Hooks{})
	if !errors.Is(err, ErrMaxIterationsExceeded) {
		t.Fatalf("expected ErrMaxIterationsExceeded, got %v", err)
	}
}
