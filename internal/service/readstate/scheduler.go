package readstate

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"clienthub-backend/internal/model"
)

// DefaultMarkReadDelay is how long a conversation must stay in view before
// its messages are marked read. Glancing at a thread and navigating away
// within the delay leaves the watermark untouched.
const DefaultMarkReadDelay = 1500 * time.Millisecond

// Scheduler defers MarkRead calls behind a dwell timer. Each (conversation,
// actor) pair has at most one pending timer; scheduling again resets it.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
	delay   time.Duration
	mark    func(ctx context.Context, actor Actor, conversationID string, throughSeq int64)
}

func NewScheduler(svc *Service, delay time.Duration) *Scheduler {
	s := &Scheduler{
		pending: make(map[string]*time.Timer),
		delay:   delay,
	}
	if s.delay <= 0 {
		s.delay = DefaultMarkReadDelay
	}
	s.mark = func(ctx context.Context, actor Actor, conversationID string, throughSeq int64) {
		if _, err := svc.MarkRead(ctx, actor, conversationID, throughSeq); err != nil {
			log.Printf("readstate: deferred mark-read failed for %s: %v", conversationID, err)
		}
	}
	return s
}

func newSchedulerWithMark(delay time.Duration, mark func(ctx context.Context, actor Actor, conversationID string, throughSeq int64)) *Scheduler {
	if delay <= 0 {
		delay = DefaultMarkReadDelay
	}
	return &Scheduler{
		pending: make(map[string]*time.Timer),
		delay:   delay,
		mark:    mark,
	}
}

// Schedule arms (or re-arms) the dwell timer for the pair.
func (s *Scheduler) Schedule(actor Actor, conversationID string, throughSeq int64) {
	key := pendingKey(conversationID, actor.Kind, actor.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.pending[key]; ok {
		timer.Stop()
	}
	s.pending[key] = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		s.mark(context.Background(), actor, conversationID, throughSeq)
	})
}

// Cancel drops the pending timer, if any. Called when the conversation
// leaves the viewport before the delay elapses.
func (s *Scheduler) Cancel(actor Actor, conversationID string) {
	key := pendingKey(conversationID, actor.Kind, actor.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.pending[key]; ok {
		timer.Stop()
		delete(s.pending, key)
	}
}

// Stop cancels every pending timer. Used on shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, timer := range s.pending {
		timer.Stop()
		delete(s.pending, key)
	}
}

func pendingKey(conversationID string, kind model.ActorKind, actorID string) string {
	return fmt.Sprintf("%s#%s#%s", conversationID, kind, actorID)
}
