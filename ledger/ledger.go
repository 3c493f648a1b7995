// Package ledger records quiz lifecycle and submission events for one timed
// session. The ledger starts once, accepts signed submissions until its
// freeze timer fires, and keeps every event in append order.
package ledger

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/collapsinghierarchy/quizledger/metrics"
	"github.com/collapsinghierarchy/quizledger/model"
	"github.com/collapsinghierarchy/quizledger/pkc/sign"
)

// DefaultFreezeAfter is the submission window measured from Start.
const DefaultFreezeAfter = 3 * time.Minute

var (
	ErrAlreadyStarted = errors.New("ledger already started")
	ErrNotStarted     = errors.New("ledger not started")
	ErrFrozen         = errors.New("ledger is frozen")
	ErrMissingField   = errors.New("missing required field")
	ErrInvalidField   = errors.New("field is not valid UTF-8")
)

// MissingFieldError lists the required fields that were absent or empty.
// It matches ErrMissingField under errors.Is.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return "missing required field(s): " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrMissingField }

// InvalidFieldError lists fields that are not valid UTF-8 and so cannot be
// signed without altering them. It matches ErrInvalidField under errors.Is.
type InvalidFieldError struct {
	Fields []string
}

func (e *InvalidFieldError) Error() string {
	return "invalid UTF-8 in field(s): " + strings.Join(e.Fields, ", ")
}

func (e *InvalidFieldError) Is(target error) bool { return target == ErrInvalidField }

// Signer produces detached signatures over canonical payloads.
type Signer interface {
	Sign(payload []byte) []byte
}

type Ledger struct {
	signer      Signer
	freezeAfter time.Duration
	sched       Scheduler
	now         func() time.Time
	log         *zap.Logger
	metrics     *metrics.Metrics

	mu        sync.RWMutex
	events    []model.Event
	startedAt time.Time
	frozen    bool
	freeze    Task
}

type Option func(*Ledger)

// WithScheduler replaces the runtime timer used to arm the freeze.
func WithScheduler(s Scheduler) Option { return func(l *Ledger) { l.sched = s } }

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func WithLogger(log *zap.Logger) Option { return func(l *Ledger) { l.log = log } }

func WithMetrics(m *metrics.Metrics) Option { return func(l *Ledger) { l.metrics = m } }

// New returns an empty ledger whose submissions are signed by signer and
// which freezes freezeAfter after Start.
func New(signer Signer, freezeAfter time.Duration, opts ...Option) *Ledger {
	l := &Ledger{
		signer:      signer,
		freezeAfter: freezeAfter,
		sched:       TimerScheduler{},
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Start records the started event and arms the freeze timer. It succeeds
// exactly once per ledger.
func (l *Ledger) Start() (model.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.startedAt.IsZero() {
		return model.Event{}, ErrAlreadyStarted
	}
	l.startedAt = l.stamp()
	ev := model.Event{Kind: model.KindStarted, Timestamp: l.startedAt}
	l.events = append(l.events, ev)
	l.freeze = l.sched.Arm(l.freezeAfter, l.Freeze)

	l.observe(ev)
	l.log.Info("ledger started",
		zap.Time("startedAt", l.startedAt),
		zap.Duration("freezeAfter", l.freezeAfter))
	return ev, nil
}

// Append signs and records one submission. Fields are required to be
// non-empty valid UTF-8; any other value, including "0", is accepted.
func (l *Ledger) Append(studentID, questionID, response string) (model.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen {
		return model.Event{}, ErrFrozen
	}
	fields := []string{"studentId", studentID, "questionId", questionID, "response", response}
	if err := requireFields(fields...); err != nil {
		return model.Event{}, err
	}
	if err := requireUTF8(fields...); err != nil {
		return model.Event{}, err
	}
	if l.startedAt.IsZero() {
		return model.Event{}, ErrNotStarted
	}

	ts := l.stamp()
	payload := sign.Canonical(studentID, questionID, response, ts.UnixMilli())
	ev := model.Event{
		Kind:       model.KindSubmission,
		StudentID:  studentID,
		QuestionID: questionID,
		Response:   response,
		Timestamp:  ts,
		Signature:  l.signer.Sign(payload),
	}
	l.events = append(l.events, ev)

	l.observe(ev)
	l.log.Debug("submission recorded",
		zap.String("studentId", studentID),
		zap.String("questionId", questionID),
		zap.Int("events", len(l.events)))
	return ev, nil
}

// Snapshot returns a copy of every event in append order.
func (l *Ledger) Snapshot() []model.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Freeze closes the ledger to further submissions. The armed timer calls
// it; calling it again is a no-op.
func (l *Ledger) Freeze() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.frozen {
		return
	}
	l.frozen = true
	if l.metrics != nil {
		l.metrics.LedgerFrozen.Set(1)
	}
	l.log.Info("ledger frozen", zap.Int("events", len(l.events)))
}

func (l *Ledger) Frozen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frozen
}

// StartedAt reports when Start succeeded; ok is false before that.
func (l *Ledger) StartedAt() (t time.Time, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.startedAt, !l.startedAt.IsZero()
}

// Close cancels a pending freeze timer. The ledger stays usable; it just
// never freezes on its own afterwards.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.freeze != nil {
		l.freeze.Cancel()
		l.freeze = nil
	}
}

// stamp truncates to milliseconds so stored timestamps equal signed ones.
func (l *Ledger) stamp() time.Time {
	return time.UnixMilli(l.now().UnixMilli())
}

func (l *Ledger) observe(ev model.Event) {
	if l.metrics != nil {
		l.metrics.LedgerEvents.WithLabelValues(string(ev.Kind)).Inc()
	}
}

func requireFields(kv ...string) error {
	var missing []string
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			missing = append(missing, kv[i])
		}
	}
	if len(missing) > 0 {
		return &MissingFieldError{Fields: missing}
	}
	return nil
}

func requireUTF8(kv ...string) error {
	var invalid []string
	for i := 0; i+1 < len(kv); i += 2 {
		if !utf8.ValidString(kv[i+1]) {
			invalid = append(invalid, kv[i])
		}
	}
	if len(invalid) > 0 {
		return &InvalidFieldError{Fields: invalid}
	}
	return nil
}
