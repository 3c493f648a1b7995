package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/collapsinghierarchy/quizledger/model"
	"github.com/collapsinghierarchy/quizledger/pkc/seal"
	"github.com/collapsinghierarchy/quizledger/store"
)

// DefaultMaxQuestions is how many questions one admin may author.
const DefaultMaxQuestions = 5

var (
	ErrMissingCredentials = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUnknownAdmin       = errors.New("unknown admin")
	ErrIncompleteQuestion = errors.New("question, option1-option4 and correctOption are required")
	ErrQuestionLimit      = errors.New("question limit reached")
	ErrNotReleased        = errors.New("questions not released yet")
	ErrNoQuestions        = errors.New("no questions found")
)

// Service implements the quiz collaborators around the ledger: identities
// for admins and students, and sealed question authoring and release.
type Service struct {
	Identities store.IdentityStore
	Questions  store.QuestionStore

	sealer       *seal.Sealer
	maxQuestions int
	releaseAt    time.Time
	bcryptCost   int
	now          func() time.Time
}

type Option func(*Service)

func WithMaxQuestions(n int) Option { return func(s *Service) { s.maxQuestions = n } }

// WithReleaseAt withholds decrypted questions until t. The zero time
// releases them immediately.
func WithReleaseAt(t time.Time) Option { return func(s *Service) { s.releaseAt = t } }

func WithBcryptCost(cost int) Option { return func(s *Service) { s.bcryptCost = cost } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(ids store.IdentityStore, qs store.QuestionStore, sealer *seal.Sealer, opts ...Option) *Service {
	s := &Service{
		Identities:   ids,
		Questions:    qs,
		sealer:       sealer,
		maxQuestions: DefaultMaxQuestions,
		bcryptCost:   bcrypt.DefaultCost,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// -------- identities ------------------------------------------------------

func (s *Service) CreateAdmin(ctx context.Context, username, password string) (*model.Admin, error) {
	hash, err := s.hashCredentials(username, password)
	if err != nil {
		return nil, err
	}
	a := &model.Admin{ID: uuid.New(), Username: username, PasswordHash: hash, CreatedAt: s.now().UTC()}
	if err := s.Identities.CreateAdmin(ctx, a); err != nil {
		return nil, mapConflict(err)
	}
	return a, nil
}

// AdminLogin returns the admin id when the password matches.
func (s *Service) AdminLogin(ctx context.Context, username, password string) (uuid.UUID, error) {
	a, err := s.Identities.AdminByUsername(ctx, username)
	if err != nil {
		return uuid.Nil, mapLookup(err)
	}
	if bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)) != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	return a.ID, nil
}

func (s *Service) CreateStudent(ctx context.Context, username, password string) (*model.Student, error) {
	hash, err := s.hashCredentials(username, password)
	if err != nil {
		return nil, err
	}
	st := &model.Student{ID: uuid.New(), Username: username, PasswordHash: hash, CreatedAt: s.now().UTC()}
	if err := s.Identities.CreateStudent(ctx, st); err != nil {
		return nil, mapConflict(err)
	}
	return st, nil
}

func (s *Service) StudentLogin(ctx context.Context, username, password string) (uuid.UUID, error) {
	st, err := s.Identities.StudentByUsername(ctx, username)
	if err != nil {
		return uuid.Nil, mapLookup(err)
	}
	if bcrypt.CompareHashAndPassword(st.PasswordHash, []byte(password)) != nil {
		return uuid.Nil, ErrInvalidCredentials
	}
	return st.ID, nil
}

func (s *Service) hashCredentials(username, password string) ([]byte, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// -------- questions -------------------------------------------------------

// NewQuestion is the plaintext form submitted by an admin.
type NewQuestion struct {
	AdminID       uuid.UUID
	Question      string
	Options       [4]string
	CorrectOption string
}

// PlainQuestion is a released question with the answer withheld.
type PlainQuestion struct {
	ID       uuid.UUID
	Question string
	Options  [4]string
}

// CreateQuestion seals every field and stores the question with its answer.
// The per-admin limit is enforced by the store inside the insert.
func (s *Service) CreateQuestion(ctx context.Context, nq NewQuestion) (*model.Question, *model.Answer, error) {
	if nq.AdminID == uuid.Nil {
		return nil, nil, ErrUnknownAdmin
	}
	if nq.Question == "" || nq.CorrectOption == "" {
		return nil, nil, ErrIncompleteQuestion
	}
	for _, o := range nq.Options {
		if o == "" {
			return nil, nil, ErrIncompleteQuestion
		}
	}

	var err error
	q := &model.Question{ID: uuid.New(), AdminID: nq.AdminID, CreatedAt: s.now().UTC()}
	if q.Question, err = s.sealer.Seal(nq.Question); err != nil {
		return nil, nil, err
	}
	for i, o := range nq.Options {
		if q.Options[i], err = s.sealer.Seal(o); err != nil {
			return nil, nil, err
		}
	}
	a := &model.Answer{ID: uuid.New(), QuestionID: q.ID}
	if a.Answer, err = s.sealer.Seal(nq.CorrectOption); err != nil {
		return nil, nil, err
	}

	if err := s.Questions.CreateQuestion(ctx, q, a, s.maxQuestions); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, nil, ErrUnknownAdmin
		case errors.Is(err, store.ErrLimit):
			return nil, nil, ErrQuestionLimit
		}
		return nil, nil, err
	}
	return q, a, nil
}

// ReleasedQuestions opens every stored question once the release time has
// passed.
func (s *Service) ReleasedQuestions(ctx context.Context) ([]PlainQuestion, error) {
	if !s.releaseAt.IsZero() && s.now().Before(s.releaseAt) {
		return nil, ErrNotReleased
	}
	var out []PlainQuestion
	err := s.Questions.StreamQuestions(ctx, func(q *model.Question) error {
		pq := PlainQuestion{ID: q.ID}
		var err error
		if pq.Question, err = s.sealer.Open(q.Question); err != nil {
			return fmt.Errorf("question %s: %w", q.ID, err)
		}
		for i, o := range q.Options {
			if pq.Options[i], err = s.sealer.Open(o); err != nil {
				return fmt.Errorf("question %s option %d: %w", q.ID, i+1, err)
			}
		}
		out = append(out, pq)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNoQuestions
	}
	return out, nil
}

func (s *Service) MaxQuestions() int { return s.maxQuestions }

// ReleaseAt reports the configured release time; zero means immediate.
func (s *Service) ReleaseAt() time.Time { return s.releaseAt }

func mapConflict(err error) error {
	if errors.Is(err, store.ErrConflict) {
		return ErrUsernameTaken
	}
	return err
}

func mapLookup(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredentials
	}
	return err
}
