package ledger

import "time"

// Scheduler arms one-shot deferred actions.
type Scheduler interface {
	Arm(delay time.Duration, fire func()) Task
}

// Task is the handle of an armed action.
type Task interface {
	// Cancel prevents a pending action from firing. It reports whether the
	// call stopped the action; false means it already fired or was cancelled.
	Cancel() bool
}

// TimerScheduler runs actions on the runtime timer. Each action fires at
// most once, on its own goroutine.
type TimerScheduler struct{}

func (TimerScheduler) Arm(delay time.Duration, fire func()) Task {
	return timerTask{time.AfterFunc(delay, fire)}
}

type timerTask struct{ t *time.Timer }

func (t timerTask) Cancel() bool { return t.t.Stop() }
