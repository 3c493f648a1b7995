package store

import (
	"context"
	"errors"

	"github.com/collapsinghierarchy/quizledger/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	ErrLimit    = errors.New("limit reached")
)

// IdentityStore persists admin and student credentials. Lookups by
// username return ErrNotFound when no record matches; creating a taken
// username returns ErrConflict.
type IdentityStore interface {
	CreateAdmin(ctx context.Context, a *model.Admin) error
	AdminByUsername(ctx context.Context, username string) (*model.Admin, error)
	CreateStudent(ctx context.Context, s *model.Student) error
	StudentByUsername(ctx context.Context, username string) (*model.Student, error)
}

// QuestionStore persists sealed questions together with their sealed answer.
// CreateQuestion returns ErrLimit when the admin already owns limit
// questions and ErrNotFound when the admin does not exist. The count and the
// insert are atomic per admin.
type QuestionStore interface {
	CreateQuestion(ctx context.Context, q *model.Question, a *model.Answer, limit int) error
	StreamQuestions(ctx context.Context, fn func(*model.Question) error) error
}
