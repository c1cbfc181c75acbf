package readstate

import (
	"context"
	"sync"
	"testing"
	"time"

	"clienthub-backend/internal/model"
)

type markRecorder struct {
	mu    sync.Mutex
	calls []int64
}

func (r *markRecorder) mark(ctx context.Context, actor Actor, conversationID string, throughSeq int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, throughSeq)
}

func (r *markRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *markRecorder) last() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return 0
	}
	return r.calls[len(r.calls)-1]
}

func TestSchedulerFiresAfterDelay(t *testing.T) {
	recorder := &markRecorder{}
	scheduler := newSchedulerWithMark(20*time.Millisecond, recorder.mark)
	defer scheduler.Stop()

	actor := Actor{Kind: model.ActorKindTeamMember, ID: "member-1", TenantID: "tenant-1"}
	scheduler.Schedule(actor, "conv-1", 7)

	deadline := time.After(time.Second)
	for recorder.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduled mark-read never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if recorder.last() != 7 {
		t.Fatalf("expected mark through 7, got %d", recorder.last())
	}
}

func TestSchedulerCancelBeforeDelay(t *testing.T) {
	recorder := &markRecorder{}
	scheduler := newSchedulerWithMark(50*time.Millisecond, recorder.mark)
	defer scheduler.Stop()

	actor := Actor{Kind: model.ActorKindClient, ID: "client-1", TenantID: "tenant-1"}
	scheduler.Schedule(actor, "conv-1", 3)
	scheduler.Cancel(actor, "conv-1")

	time.Sleep(120 * time.Millisecond)
	if recorder.count() != 0 {
		t.Fatalf("cancelled timer must not fire, got %d calls", recorder.count())
	}
}

func TestSchedulerReschedulingResetsTimerAndSeq(t *testing.T) {
	recorder := &markRecorder{}
	scheduler := newSchedulerWithMark(40*time.Millisecond, recorder.mark)
	defer scheduler.Stop()

	actor := Actor{Kind: model.ActorKindTeamMember, ID: "member-1", TenantID: "tenant-1"}
	scheduler.Schedule(actor, "conv-1", 3)
	time.Sleep(20 * time.Millisecond)
	scheduler.Schedule(actor, "conv-1", 5)

	time.Sleep(200 * time.Millisecond)
	if recorder.count() != 1 {
		t.Fatalf("expected exactly one mark, got %d", recorder.count())
	}
	if recorder.last() != 5 {
		t.Fatalf("expected the re-armed seq 5, got %d", recorder.last())
	}
}

func TestSchedulerStopCancelsAllPending(t *testing.T) {
	recorder := &markRecorder{}
	scheduler := newSchedulerWithMark(50*time.Millisecond, recorder.mark)

	actor := Actor{Kind: model.ActorKindTeamMember, ID: "member-1", TenantID: "tenant-1"}
	scheduler.Schedule(actor, "conv-1", 1)
	scheduler.Schedule(actor, "conv-2", 2)
	scheduler.Stop()

	time.Sleep(120 * time.Millisecond)
	if recorder.count() != 0 {
		t.Fatalf("stopped scheduler must not fire, got %d calls", recorder.count())
	}
}
