// Package reminders schedules one-shot "time to watch" notifications.
package reminders

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const notificationTitle = "Movie Reminder"

var (
	ErrReminderInPast   = errors.New("reminders: fire time must be in the future")
	ErrReminderNotFound = errors.New("reminders: reminder not found")
	ErrMissingUser      = errors.New("reminders: user id is required")
	ErrMissingTitle     = errors.New("reminders: title is required")
	errSchedulerClosed  = errors.New("reminders: scheduler closed")
)

// Reminder is a pending notification for one user.
type Reminder struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	MediaType  string    `json:"mediaType,omitempty"`
	ExternalID int64     `json:"externalId,omitempty"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	FireAt     time.Time `json:"fireAt"`
}

// Request describes what to remind about and when.
type Request struct {
	UserID     string
	MediaType  string
	ExternalID int64
	MediaTitle string
	FireAt     time.Time
}

// Timer is the cancellable handle returned by AfterFunc.
type Timer interface {
	Stop() bool
}

// SchedulerConfig describes the scheduler's collaborators.
type SchedulerConfig struct {
	Clock     func() time.Time
	AfterFunc func(time.Duration, func()) Timer
	Deliver   func(Reminder)
	NewID     func() string
	Logger    *zap.Logger
}

type entry struct {
	reminder Reminder
	timer    Timer
}

// Scheduler keeps reminders in memory and fires each one once.
type Scheduler struct {
	now       func() time.Time
	afterFunc func(time.Duration, func()) Timer
	deliver   func(Reminder)
	newID     func() string
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]entry
	closed  bool
}

// NewScheduler applies defaults: wall clock, time.AfterFunc timers and UUIDv7 ids.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	afterFunc := cfg.AfterFunc
	if afterFunc == nil {
		afterFunc = func(delay time.Duration, fire func()) Timer {
			return time.AfterFunc(delay, fire)
		}
	}
	newID := cfg.NewID
	if newID == nil {
		newID = func() string {
			id, err := uuid.NewV7()
			if err != nil {
				return uuid.NewString()
			}
			return id.String()
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		now:       clock,
		afterFunc: afterFunc,
		deliver:   cfg.Deliver,
		newID:     newID,
		logger:    logger,
		pending:   make(map[string]entry),
	}
}

// Schedule registers a reminder that fires at request.FireAt, which must lie in the future.
func (s *Scheduler) Schedule(request Request) (Reminder, error) {
	userID := strings.TrimSpace(request.UserID)
	if userID == "" {
		return Reminder{}, ErrMissingUser
	}
	mediaTitle := strings.TrimSpace(request.MediaTitle)
	if mediaTitle == "" {
		return Reminder{}, ErrMissingTitle
	}
	delay := request.FireAt.Sub(s.now())
	if delay <= 0 {
		return Reminder{}, ErrReminderInPast
	}

	reminder := Reminder{
		ID:         s.newID(),
		UserID:     userID,
		MediaType:  request.MediaType,
		ExternalID: request.ExternalID,
		Title:      notificationTitle,
		Body:       fmt.Sprintf("Time to watch %s!", mediaTitle),
		FireAt:     request.FireAt.UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Reminder{}, errSchedulerClosed
	}
	timer := s.afterFunc(delay, func() { s.fire(reminder.ID) })
	s.pending[reminder.ID] = entry{reminder: reminder, timer: timer}
	s.logger.Debug("reminder scheduled", zap.String("reminder_id", reminder.ID), zap.Time("fire_at", reminder.FireAt))
	return reminder, nil
}

// Cancel drops a pending reminder owned by userID.
func (s *Scheduler) Cancel(userID, reminderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.pending[reminderID]
	if !ok || pending.reminder.UserID != userID {
		return ErrReminderNotFound
	}
	pending.timer.Stop()
	delete(s.pending, reminderID)
	return nil
}

// Pending lists the user's reminders that have not fired, soonest first.
func (s *Scheduler) Pending(userID string) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	reminders := make([]Reminder, 0)
	for _, pending := range s.pending {
		if pending.reminder.UserID == userID {
			reminders = append(reminders, pending.reminder)
		}
	}
	sort.Slice(reminders, func(i, j int) bool {
		if !reminders[i].FireAt.Equal(reminders[j].FireAt) {
			return reminders[i].FireAt.Before(reminders[j].FireAt)
		}
		return reminders[i].ID < reminders[j].ID
	})
	return reminders
}

// Close stops every pending timer; later calls to Schedule fail.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, pending := range s.pending {
		pending.timer.Stop()
		delete(s.pending, id)
	}
}

func (s *Scheduler) fire(reminderID string) {
	s.mu.Lock()
	pending, ok := s.pending[reminderID]
	if ok {
		delete(s.pending, reminderID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.logger.Info("reminder delivered", zap.String("reminder_id", reminderID), zap.String("user_id", pending.reminder.UserID))
	if s.deliver != nil {
		s.deliver(pending.reminder)
	}
}
