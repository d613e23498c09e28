package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LJTian/NewsDesk/internal/collector"
)

type recordingSink struct {
	name  string
	err   error
	panic bool
	got   []Result
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Consume(_ context.Context, res Result) error {
	if s.panic {
		panic("sink exploded")
	}
	s.got = append(s.got, res)
	return s.err
}

func TestDispatchSurvivesFailingSinks(t *testing.T) {
	res := Result{"a": {Source: "a", Items: []collector.NewsItem{{Title: "x", Source: "a"}}}}
	bad := &recordingSink{name: "bad", err: errors.New("disk full")}
	boom := &recordingSink{name: "boom", panic: true}
	good := &recordingSink{name: "good"}

	Dispatch(context.Background(), res, bad, boom, good)

	if len(bad.got) != 1 {
		t.Fatalf("failing sink should still have been called once")
	}
	if len(good.got) != 1 || good.got[0].TotalItems() != 1 {
		t.Fatalf("sink after a panicking sink should receive the result: %+v", good.got)
	}
}

func TestConsumeSafelyConvertsPanic(t *testing.T) {
	err := consumeSafely(context.Background(), &recordingSink{name: "boom", panic: true}, Result{})
	if err == nil {
		t.Fatalf("expected error from panicking sink")
	}
}

func TestRunOnceDispatchesToSinks(t *testing.T) {
	f := newFakeFetcher(map[string]fakePage{"http://a/ultimas": {html: pageA}})
	orch, err := NewOrchestrator([]collector.SourceDescriptor{descriptor("a"), descriptor("b")}, f, time.Second)
	if err != nil {
		t.Fatalf("NewOrchestrator error: %v", err)
	}
	sink := &recordingSink{name: "rec"}
	s, err := New("@every 1h", orch, sink)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	res := s.RunOnce(context.Background())
	if len(res) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(res))
	}
	if len(sink.got) != 1 || len(sink.got[0]) != 2 {
		t.Fatalf("sink should receive the full result once: %+v", sink.got)
	}
}

func TestTickSkipsWhileRunning(t *testing.T) {
	f := newFakeFetcher(map[string]fakePage{"http://a/ultimas": {html: pageA}})
	orch, _ := NewOrchestrator([]collector.SourceDescriptor{descriptor("a")}, f, time.Second)
	sink := &recordingSink{name: "rec"}
	s, err := New("@every 1h", orch, sink)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	s.running.Store(true)
	s.tick()
	if len(sink.got) != 0 {
		t.Fatalf("tick should be skipped while a run is in progress")
	}

	s.running.Store(false)
	s.tick()
	if len(sink.got) != 1 {
		t.Fatalf("tick should run once the previous run finished")
	}
	if s.running.Load() {
		t.Fatalf("running flag should be cleared after tick")
	}
}

func TestNewRejectsBadCronSpec(t *testing.T) {
	orch, _ := NewOrchestrator(nil, newFakeFetcher(nil), time.Second)
	if _, err := New("not a cron spec", orch); err == nil {
		t.Fatalf("expected error for invalid cron spec")
	}
}
