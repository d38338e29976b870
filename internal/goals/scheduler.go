package goals

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler collapses bursts of trade mutations into one recomputation per
// user. Each Schedule call resets the user's pending timer; errors from the
// fired recompute are logged and swallowed since this is a background
// consistency job.
type Scheduler struct {
	Engine *Engine
	Logger *zap.Logger
	Delay  time.Duration

	mu     sync.Mutex
	timers map[uint64]*time.Timer
	closed bool
}

func NewScheduler(engine *Engine, logger *zap.Logger, delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Scheduler{
		Engine: engine,
		Logger: logger,
		Delay:  delay,
		timers: map[uint64]*time.Timer{},
	}
}

func (s *Scheduler) Schedule(userID uint64) {
	if s == nil || s.Engine == nil || userID == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if timer, ok := s.timers[userID]; ok {
		timer.Stop()
	}
	s.timers[userID] = time.AfterFunc(s.Delay, func() {
		s.fire(userID)
	})
}

func (s *Scheduler) fire(userID uint64) {
	s.mu.Lock()
	delete(s.timers, userID)
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	if err := s.Engine.Recalc(context.Background(), userID); err != nil && s.Logger != nil {
		s.Logger.Warn("goal recalc failed", zap.Uint64("user_id", userID), zap.Error(err))
	}
}

// Close cancels all pending timers. Schedule becomes a no-op afterwards.
func (s *Scheduler) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
