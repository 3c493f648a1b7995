package config_test

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collapsinghierarchy/quizledger/config"
)

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

func TestDefaults(t *testing.T) {
	c, err := config.FromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, ":3000", c.Addr)
	assert.Equal(t, 3*time.Minute, c.FreezeAfter)
	assert.Equal(t, 5, c.MaxQuestions)
	assert.Error(t, c.Validate(), "DSN and secret are required")
}

func TestFromEnv(t *testing.T) {
	c, err := config.FromEnv(env(map[string]string{
		"ADDR":            ":8080",
		"DATABASE_URL":    "postgres://localhost/quiz",
		"FREEZE_AFTER":    "1m",
		"QUESTION_SECRET": "0123456789abcdef",
		"RELEASE_AT":      "2024-07-16T17:18:00Z",
		"MAX_QUESTIONS":   "7",
	}))
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, time.Minute, c.FreezeAfter)
	assert.Equal(t, 7, c.MaxQuestions)

	rt, err := c.ReleaseTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 16, 17, 18, 0, 0, time.UTC), rt)
}

func TestFromEnv_BadValues(t *testing.T) {
	_, err := config.FromEnv(env(map[string]string{"FREEZE_AFTER": "soon"}))
	assert.Error(t, err)
	_, err = config.FromEnv(env(map[string]string{"MAX_QUESTIONS": "many"}))
	assert.Error(t, err)
}

func TestFlagsOverrideEnv(t *testing.T) {
	c, err := config.FromEnv(env(map[string]string{
		"DATABASE_URL":    "postgres://env/quiz",
		"QUESTION_SECRET": "0123456789abcdef",
	}))
	require.NoError(t, err)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--database-url", "postgres://flag/quiz", "--freeze-after", "90s", "--dev-log"}))

	assert.Equal(t, "postgres://flag/quiz", c.DatabaseURL)
	assert.Equal(t, 90*time.Second, c.FreezeAfter)
	assert.True(t, c.DevLog)
	assert.Equal(t, "0123456789abcdef", c.QuestionSecret, "unset flag keeps env value")
}

func TestValidate(t *testing.T) {
	base := config.Default()
	base.DatabaseURL = "postgres://x"
	base.QuestionSecret = "0123456789abcdef"
	require.NoError(t, base.Validate())

	cases := map[string]func(*config.Config){
		"short secret": func(c *config.Config) { c.QuestionSecret = "short" },
		"zero freeze":  func(c *config.Config) { c.FreezeAfter = 0 },
		"no questions": func(c *config.Config) { c.MaxQuestions = 0 },
		"bad release":  func(c *config.Config) { c.ReleaseAt = "tomorrow" },
		"missing db":   func(c *config.Config) { c.DatabaseURL = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
