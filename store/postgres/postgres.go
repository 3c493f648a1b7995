package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/collapsinghierarchy/quizledger/model"
	"github.com/collapsinghierarchy/quizledger/store"
)

// SQLSTATE codes mapped onto store sentinels.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Store struct{ db *pgxpool.Pool }

// NewStore returns a Postgres-backed store. Store satisfies both
// store.IdentityStore and store.QuestionStore.
func NewStore(db *pgxpool.Pool) *Store { return &Store{db: db} }

var (
	_ store.IdentityStore = (*Store)(nil)
	_ store.QuestionStore = (*Store)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS admins (
    id            UUID PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash BYTEA NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS students (
    id            UUID PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash BYTEA NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
    id         UUID PRIMARY KEY,
    admin_id   UUID NOT NULL REFERENCES admins(id),
    question   BYTEA NOT NULL,
    option1    BYTEA NOT NULL,
    option2    BYTEA NOT NULL,
    option3    BYTEA NOT NULL,
    option4    BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_questions_admin_id ON questions(admin_id);

CREATE TABLE IF NOT EXISTS answers (
    id          UUID PRIMARY KEY,
    question_id UUID NOT NULL UNIQUE REFERENCES questions(id) ON DELETE CASCADE,
    answer      BYTEA NOT NULL
);
`

// Migrate creates the tables if they do not exist yet.
func (p *Store) Migrate(ctx context.Context) error {
	_, err := p.db.Exec(ctx, schema)
	return err
}

// -------- identities ------------------------------------------------------

func (p *Store) CreateAdmin(ctx context.Context, a *model.Admin) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO admins (id, username, password_hash, created_at)
         VALUES ($1,$2,$3,$4)`,
		a.ID, a.Username, a.PasswordHash, a.CreatedAt)
	return mapErr(err)
}

func (p *Store) AdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	var a model.Admin
	err := p.db.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at
         FROM admins WHERE username=$1`, username).
		Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &a, nil
}

func (p *Store) CreateStudent(ctx context.Context, s *model.Student) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO students (id, username, password_hash, created_at)
         VALUES ($1,$2,$3,$4)`,
		s.ID, s.Username, s.PasswordHash, s.CreatedAt)
	return mapErr(err)
}

func (p *Store) StudentByUsername(ctx context.Context, username string) (*model.Student, error) {
	var s model.Student
	err := p.db.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at
         FROM students WHERE username=$1`, username).
		Scan(&s.ID, &s.Username, &s.PasswordHash, &s.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

// -------- questions -------------------------------------------------------

// CreateQuestion inserts the question and its answer in one transaction.
// The admin row is locked first so concurrent posts by one admin see each
// other's inserts when counting against limit.
func (p *Store) CreateQuestion(ctx context.Context, q *model.Question, a *model.Answer, limit int) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after Commit

	var locked uuid.UUID
	if err := tx.QueryRow(ctx,
		`SELECT id FROM admins WHERE id=$1 FOR UPDATE`, q.AdminID).Scan(&locked); err != nil {
		return fmt.Errorf("lock admin: %w", mapErr(err))
	}
	n, err := countQuestions(ctx, tx, q.AdminID)
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if n >= limit {
		return store.ErrLimit
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO questions (id, admin_id, question, option1, option2, option3, option4, created_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		q.ID, q.AdminID, q.Question, q.Options[0], q.Options[1], q.Options[2], q.Options[3], q.CreatedAt); err != nil {
		return fmt.Errorf("insert question: %w", mapErr(err))
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO answers (id, question_id, answer) VALUES ($1,$2,$3)`,
		a.ID, a.QuestionID, a.Answer); err != nil {
		return fmt.Errorf("insert answer: %w", mapErr(err))
	}
	return tx.Commit(ctx)
}

// CountQuestions reports how many questions adminID has authored.
func (p *Store) CountQuestions(ctx context.Context, adminID uuid.UUID) (int, error) {
	return countQuestions(ctx, p.db, adminID)
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func countQuestions(ctx context.Context, q rowQuerier, adminID uuid.UUID) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE admin_id=$1`, adminID).Scan(&n)
	return n, err
}

func (p *Store) StreamQuestions(ctx context.Context, fn func(*model.Question) error) error {
	rows, err := p.db.Query(ctx,
		`SELECT id, admin_id, question, option1, option2, option3, option4, created_at
         FROM questions
         ORDER BY created_at ASC`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.AdminID, &q.Question,
			&q.Options[0], &q.Options[1], &q.Options[2], &q.Options[3], &q.CreatedAt); err != nil {
			return err
		}
		if err := fn(&q); err != nil {
			return err
		}
	}
	return rows.Err()
}

// mapErr translates driver errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return store.ErrConflict
		case foreignKeyViolation:
			return store.ErrNotFound
		}
	}
	return err
}
