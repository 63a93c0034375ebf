package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truckore/truckore/internal/models"
)

func fixedTime(value string) func() time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func TestSerialNext(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.serials.nowFn = fixedTime("2025-06-15T10:00:00Z")

	first, err := env.serials.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "WB-2025-001", first)

	second, err := env.serials.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "WB-2025-002", second)

	// The incremented counter was persisted, so a fresh service instance
	// continues the sequence instead of repeating it.
	fresh := NewSerialService(env.configs)
	fresh.nowFn = env.serials.nowFn
	third, err := fresh.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "WB-2025-003", third)
}

func TestSerialYearlyReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	cfg := models.DefaultSerialNumberConfig()
	cfg.ResetFrequency = "yearly"
	cfg.CurrentCounter = 48
	cfg.LastResetDate = "2025-12-31T23:00:00Z"
	require.NoError(t, env.serials.SetConfig(ctx, cfg))

	t.Run("Same year continues the sequence", func(t *testing.T) {
		env.serials.nowFn = fixedTime("2025-12-31T23:30:00Z")
		got, err := env.serials.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, "WB-2025-048", got)
	})

	t.Run("New year restarts from counter start", func(t *testing.T) {
		env.serials.nowFn = fixedTime("2026-01-01T00:05:00Z")
		got, err := env.serials.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, "WB-2026-001", got)

		got, err = env.serials.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, "WB-2026-002", got)
	})
}

func TestSerialMonthlyReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	cfg := models.DefaultSerialNumberConfig()
	cfg.IncludeMonth = true
	cfg.ResetFrequency = "monthly"
	cfg.CurrentCounter = 47
	cfg.LastResetDate = "2026-02-15T08:00:00Z"
	require.NoError(t, env.serials.SetConfig(ctx, cfg))

	env.serials.nowFn = fixedTime("2026-03-01T08:00:00Z")
	got, err := env.serials.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "WB-2026-03-001", got)
}

// A periodic frequency configured without a last reset date anchors its
// epoch on the first issuance, so the next boundary still triggers a reset.
func TestSerialPeriodicWithoutResetDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	cfg := models.DefaultSerialNumberConfig()
	cfg.IncludeMonth = true
	cfg.ResetFrequency = "monthly"
	cfg.CurrentCounter = 5
	cfg.LastResetDate = ""
	require.NoError(t, env.serials.SetConfig(ctx, cfg))

	env.serials.nowFn = fixedTime("2026-03-10T09:00:00Z")
	got, err := env.serials.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "WB-2026-03-005", got)

	stored, err := env.serials.GetConfig(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.LastResetDate)

	env.serials.nowFn = fixedTime("2026-04-01T09:00:00Z")
	got, err = env.serials.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "WB-2026-04-001", got)
}

func TestSerialFormatVariants(t *testing.T) {
	env := newTestEnv(t)
	env.serials.nowFn = fixedTime("2026-09-01T12:00:00Z")

	t.Run("Two digit year", func(t *testing.T) {
		cfg := models.DefaultSerialNumberConfig()
		cfg.YearFormat = "YY"
		cfg.CurrentCounter = 7
		assert.Equal(t, "WB-26-007", env.serials.Preview(cfg))
	})

	t.Run("No year", func(t *testing.T) {
		cfg := models.DefaultSerialNumberConfig()
		cfg.IncludeYear = false
		cfg.CurrentCounter = 12
		assert.Equal(t, "WB-012", env.serials.Preview(cfg))
	})

	t.Run("Custom prefix and padding", func(t *testing.T) {
		cfg := models.DefaultSerialNumberConfig()
		cfg.Prefix = "TKT"
		cfg.Separator = "/"
		cfg.CounterPadding = 5
		cfg.CurrentCounter = 42
		assert.Equal(t, "TKT/2026/00042", env.serials.Preview(cfg))
	})
}

func TestSerialPreviewDoesNotMutate(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.serials.nowFn = fixedTime("2026-05-01T12:00:00Z")

	cfg := models.DefaultSerialNumberConfig()
	cfg.CurrentCounter = 9
	require.NoError(t, env.serials.SetConfig(ctx, cfg))

	_ = env.serials.Preview(cfg)
	_ = env.serials.Preview(cfg)

	stored, err := env.serials.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), stored.CurrentCounter)
}

func TestSerialResetCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.serials.nowFn = fixedTime("2026-05-01T12:00:00Z")

	cfg := models.DefaultSerialNumberConfig()
	cfg.CurrentCounter = 99
	require.NoError(t, env.serials.SetConfig(ctx, cfg))

	require.NoError(t, env.serials.ResetCounter(ctx))

	got, err := env.serials.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "WB-2026-001", got)
}

func TestSerialConfigValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	cfg := models.DefaultSerialNumberConfig()
	cfg.YearFormat = "YYY"
	assert.Error(t, env.serials.SetConfig(ctx, cfg))

	cfg = models.DefaultSerialNumberConfig()
	cfg.ResetFrequency = "weekly"
	assert.Error(t, env.serials.SetConfig(ctx, cfg))

	cfg = models.DefaultSerialNumberConfig()
	cfg.CounterPadding = 0
	assert.Error(t, env.serials.SetConfig(ctx, cfg))
}

func TestSerialConcurrentNext(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.serials.nowFn = fixedTime("2026-05-01T12:00:00Z")

	const n = 20
	results := make(chan string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := env.serials.Next(ctx)
			assert.NoError(t, err)
			results <- got
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool, n)
	for got := range results {
		assert.False(t, seen[got], "duplicate serial number %s", got)
		seen[got] = true
	}
	assert.Len(t, seen, n)
}
