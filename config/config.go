package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/collapsinghierarchy/quizledger/ledger"
	"github.com/collapsinghierarchy/quizledger/pkc/seal"
	"github.com/collapsinghierarchy/quizledger/service"
)

// Config is resolved flags first, then environment, then defaults.
type Config struct {
	Addr           string
	DatabaseURL    string
	FreezeAfter    time.Duration
	QuestionSecret string
	ReleaseAt      string // RFC3339; empty releases questions immediately
	MaxQuestions   int
	DevLog         bool
}

func Default() Config {
	return Config{
		Addr:         ":3000",
		FreezeAfter:  ledger.DefaultFreezeAfter,
		MaxQuestions: service.DefaultMaxQuestions,
	}
}

// FromEnv overlays environment variables on the defaults. getenv is
// usually os.Getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()
	if v := getenv("ADDR"); v != "" {
		c.Addr = v
	}
	c.DatabaseURL = getenv("DATABASE_URL")
	c.QuestionSecret = getenv("QUESTION_SECRET")
	c.ReleaseAt = getenv("RELEASE_AT")
	if v := getenv("FREEZE_AFTER"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("FREEZE_AFTER must be a duration: %w", err)
		}
		c.FreezeAfter = d
	}
	if v := getenv("MAX_QUESTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("MAX_QUESTIONS must be int: %w", err)
		}
		c.MaxQuestions = n
	}
	return c, nil
}

// BindFlags registers one flag per field, using the current values as
// defaults so that flags override the environment.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "HTTP listen address (env ADDR)")
	fs.StringVar(&c.DatabaseURL, "database-url", c.DatabaseURL, "Postgres DSN (env DATABASE_URL)")
	fs.DurationVar(&c.FreezeAfter, "freeze-after", c.FreezeAfter, "submission window after /start (env FREEZE_AFTER)")
	fs.StringVar(&c.QuestionSecret, "question-secret", c.QuestionSecret, "secret sealing question text at rest (env QUESTION_SECRET)")
	fs.StringVar(&c.ReleaseAt, "release-at", c.ReleaseAt, "RFC3339 instant before which questions stay sealed (env RELEASE_AT)")
	fs.IntVar(&c.MaxQuestions, "max-questions", c.MaxQuestions, "questions one admin may post (env MAX_QUESTIONS)")
	fs.BoolVar(&c.DevLog, "dev-log", c.DevLog, "human-readable development logging")
}

// ReleaseTime parses ReleaseAt; the zero time means no embargo.
func (c Config) ReleaseTime() (time.Time, error) {
	if c.ReleaseAt == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.ReleaseAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("release-at must be RFC3339: %w", err)
	}
	return t, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database URL required (use --database-url or DATABASE_URL env)"))
	}
	if len(c.QuestionSecret) < seal.MinSecretLen {
		errs = append(errs, fmt.Errorf("question secret must be at least %d bytes (QUESTION_SECRET)", seal.MinSecretLen))
	}
	if c.FreezeAfter <= 0 {
		errs = append(errs, errors.New("freeze-after must be positive"))
	}
	if c.MaxQuestions <= 0 {
		errs = append(errs, errors.New("max-questions must be positive"))
	}
	if _, err := c.ReleaseTime(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
