package reminders

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	delay   time.Duration
	fire    func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (f *fakeTimers) AfterFunc(delay time.Duration, fire func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	timer := &fakeTimer{delay: delay, fire: fire}
	f.timers = append(f.timers, timer)
	return timer
}

func (f *fakeTimers) fireAll() {
	f.mu.Lock()
	timers := append([]*fakeTimer(nil), f.timers...)
	f.mu.Unlock()
	for _, timer := range timers {
		if !timer.stopped {
			timer.fire()
		}
	}
}

var schedulerNow = time.Date(2024, time.June, 1, 18, 0, 0, 0, time.UTC)

func newTestScheduler(timers *fakeTimers, delivered *[]Reminder) *Scheduler {
	sequence := 0
	return NewScheduler(SchedulerConfig{
		Clock:     func() time.Time { return schedulerNow },
		AfterFunc: timers.AfterFunc,
		Deliver: func(reminder Reminder) {
			*delivered = append(*delivered, reminder)
		},
		NewID: func() string {
			sequence++
			return fmt.Sprintf("reminder-%d", sequence)
		},
	})
}

func TestScheduleBuildsNotificationAndFiresOnce(t *testing.T) {
	timers := &fakeTimers{}
	var delivered []Reminder
	scheduler := newTestScheduler(timers, &delivered)

	reminder, err := scheduler.Schedule(Request{
		UserID:     "user-1",
		MediaType:  "movie",
		ExternalID: 603,
		MediaTitle: "The Matrix",
		FireAt:     schedulerNow.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if reminder.Title != "Movie Reminder" || reminder.Body != "Time to watch The Matrix!" {
		t.Fatalf("unexpected notification %q / %q", reminder.Title, reminder.Body)
	}
	if timers.timers[0].delay != 2*time.Hour {
		t.Fatalf("unexpected delay %v", timers.timers[0].delay)
	}
	if pending := scheduler.Pending("user-1"); len(pending) != 1 {
		t.Fatalf("expected one pending reminder, got %d", len(pending))
	}

	timers.fireAll()
	timers.fireAll()
	if len(delivered) != 1 || delivered[0].ID != reminder.ID {
		t.Fatalf("expected a single delivery, got %#v", delivered)
	}
	if pending := scheduler.Pending("user-1"); len(pending) != 0 {
		t.Fatalf("expected no pending reminders after delivery, got %d", len(pending))
	}
}

func TestScheduleRejectsInvalidRequests(t *testing.T) {
	scheduler := newTestScheduler(&fakeTimers{}, &[]Reminder{})
	testCases := []struct {
		name    string
		request Request
		want    error
	}{
		{name: "past", request: Request{UserID: "u", MediaTitle: "Heat", FireAt: schedulerNow.Add(-time.Minute)}, want: ErrReminderInPast},
		{name: "now", request: Request{UserID: "u", MediaTitle: "Heat", FireAt: schedulerNow}, want: ErrReminderInPast},
		{name: "no user", request: Request{MediaTitle: "Heat", FireAt: schedulerNow.Add(time.Minute)}, want: ErrMissingUser},
		{name: "no title", request: Request{UserID: "u", FireAt: schedulerNow.Add(time.Minute)}, want: ErrMissingTitle},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if _, err := scheduler.Schedule(testCase.request); !errors.Is(err, testCase.want) {
				t.Fatalf("expected %v, got %v", testCase.want, err)
			}
		})
	}
}

func TestCancelStopsReminderForOwnerOnly(t *testing.T) {
	timers := &fakeTimers{}
	var delivered []Reminder
	scheduler := newTestScheduler(timers, &delivered)

	reminder, err := scheduler.Schedule(Request{UserID: "user-1", MediaTitle: "Heat", FireAt: schedulerNow.Add(time.Hour)})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if err := scheduler.Cancel("user-2", reminder.ID); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("expected not found for another user, got %v", err)
	}
	if err := scheduler.Cancel("user-1", reminder.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	timers.fireAll()
	if len(delivered) != 0 {
		t.Fatalf("expected cancelled reminder not to fire")
	}
}

func TestPendingOrdersSoonestFirst(t *testing.T) {
	scheduler := newTestScheduler(&fakeTimers{}, &[]Reminder{})
	for _, offset := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		if _, err := scheduler.Schedule(Request{UserID: "user-1", MediaTitle: "Heat", FireAt: schedulerNow.Add(offset)}); err != nil {
			t.Fatalf("schedule failed: %v", err)
		}
	}
	pending := scheduler.Pending("user-1")
	if len(pending) != 3 {
		t.Fatalf("expected three reminders, got %d", len(pending))
	}
	for i := 1; i < len(pending); i++ {
		if pending[i].FireAt.Before(pending[i-1].FireAt) {
			t.Fatalf("reminders out of order at %d", i)
		}
	}

	scheduler.Close()
	if len(scheduler.Pending("user-1")) != 0 {
		t.Fatalf("expected close to drop pending reminders")
	}
	if _, err := scheduler.Schedule(Request{UserID: "user-1", MediaTitle: "Heat", FireAt: schedulerNow.Add(time.Hour)}); err == nil {
		t.Fatalf("expected closed scheduler to refuse new reminders")
	}
}
