package broadcast

import (
	"context"
	"errors"
	"testing"
)

type countingSink struct {
	calls int
	err   error
}

func (s *countingSink) Publish(context.Context, string, any) error {
	s.calls++
	return s.err
}

func TestFanout_DeliversDespiteFailures(t *testing.T) {
	boom := errors.New("boom")
	failing := &countingSink{err: boom}
	ok := &countingSink{}
	f := NewFanout(discardLogger(), failing, nil, ok)

	err := f.Publish(context.Background(), "market-update", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Fatalf("calls = %d, %d", failing.calls, ok.calls)
	}
}

func TestFanout_Empty(t *testing.T) {
	if err := NewFanout(nil).Publish(context.Background(), "market-update", nil); err != nil {
		t.Fatalf("err = %v", err)
	}
}
