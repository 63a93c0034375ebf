package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/truckore/truckore/internal/models"
)

// SerialService issues formatted, monotonically increasing document numbers.
// A single mutex guards the read-modify-write of the counter so two ticket
// screens requesting numbers at once can never be handed the same value.
type SerialService struct {
	configs *ConfigService
	mu      sync.Mutex

	// nowFn is replaceable in tests.
	nowFn func() time.Time
}

// NewSerialService creates a new serial number service
func NewSerialService(configs *ConfigService) *SerialService {
	return &SerialService{
		configs: configs,
		nowFn:   time.Now,
	}
}

// GetConfig loads the serial number configuration, falling back to the
// default when none has been stored yet.
func (s *SerialService) GetConfig(ctx context.Context) (models.SerialNumberConfig, error) {
	value, ok, err := s.configs.Get(ctx, models.ConfigKeySerialNumberConfig)
	if err != nil {
		return models.SerialNumberConfig{}, err
	}
	if !ok {
		return models.DefaultSerialNumberConfig(), nil
	}

	var cfg models.SerialNumberConfig
	if err := json.Unmarshal([]byte(value), &cfg); err != nil {
		return models.SerialNumberConfig{}, fmt.Errorf("failed to decode serial number config: %w", err)
	}
	return cfg, nil
}

// SetConfig stores the serial number configuration.
func (s *SerialService) SetConfig(ctx context.Context, cfg models.SerialNumberConfig) error {
	if err := validateSerialConfig(cfg); err != nil {
		return err
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode serial number config: %w", err)
	}
	return s.configs.Set(ctx, models.ConfigKeySerialNumberConfig, string(data))
}

// Next issues the next serial number. The incremented counter is persisted
// before the formatted string is returned, so the value handed out and the
// stored state always correspond.
func (s *SerialService) Next(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return "", err
	}

	now := s.nowFn()
	if periodic(cfg.ResetFrequency) && cfg.LastResetDate == "" {
		// First issuance under a periodic frequency: anchor the epoch now so
		// later boundary checks have a baseline.
		cfg.LastResetDate = now.UTC().Format(time.RFC3339)
	}
	if crossedResetBoundary(cfg, now) {
		cfg.CurrentCounter = cfg.CounterStart
		cfg.LastResetDate = now.UTC().Format(time.RFC3339)
	}

	formatted := formatSerial(cfg, cfg.CurrentCounter, now)

	cfg.CurrentCounter++
	if err := s.persist(ctx, cfg); err != nil {
		return "", err
	}

	return formatted, nil
}

// ResetCounter resets the counter to its configured start on explicit
// administrator request.
func (s *SerialService) ResetCounter(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return err
	}

	cfg.CurrentCounter = cfg.CounterStart
	cfg.LastResetDate = s.nowFn().UTC().Format(time.RFC3339)
	return s.persist(ctx, cfg)
}

// Preview formats a sample serial number from the given configuration
// without reading or mutating persisted state.
func (s *SerialService) Preview(cfg models.SerialNumberConfig) string {
	return formatSerial(cfg, cfg.CurrentCounter, s.nowFn())
}

func (s *SerialService) persist(ctx context.Context, cfg models.SerialNumberConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode serial number config: %w", err)
	}
	return s.configs.Set(ctx, models.ConfigKeySerialNumberConfig, string(data))
}

func periodic(frequency string) bool {
	return frequency == "yearly" || frequency == "monthly"
}

// crossedResetBoundary reports whether a reset epoch boundary lies between
// the last reset and now: a strictly greater calendar year for yearly, a
// strictly greater year or month for monthly.
func crossedResetBoundary(cfg models.SerialNumberConfig, now time.Time) bool {
	if !periodic(cfg.ResetFrequency) || cfg.LastResetDate == "" {
		return false
	}

	last, err := time.Parse(time.RFC3339, cfg.LastResetDate)
	if err != nil {
		return false
	}

	switch cfg.ResetFrequency {
	case "yearly":
		return now.Year() > last.Year()
	case "monthly":
		return now.Year() > last.Year() ||
			(now.Year() == last.Year() && now.Month() > last.Month())
	}
	return false
}

func formatSerial(cfg models.SerialNumberConfig, counter int64, now time.Time) string {
	var sb strings.Builder
	sb.WriteString(cfg.Prefix)

	if cfg.IncludeYear {
		sb.WriteString(cfg.Separator)
		if cfg.YearFormat == "YY" {
			fmt.Fprintf(&sb, "%02d", now.Year()%100)
		} else {
			fmt.Fprintf(&sb, "%04d", now.Year())
		}
	}
	if cfg.IncludeMonth {
		sb.WriteString(cfg.Separator)
		fmt.Fprintf(&sb, "%02d", int(now.Month()))
	}

	sb.WriteString(cfg.Separator)
	fmt.Fprintf(&sb, "%0*d", cfg.CounterPadding, counter)
	return sb.String()
}

func validateSerialConfig(cfg models.SerialNumberConfig) error {
	if cfg.YearFormat != "YY" && cfg.YearFormat != "YYYY" {
		return fmt.Errorf("invalid year format: %s (must be YY or YYYY)", cfg.YearFormat)
	}
	switch cfg.ResetFrequency {
	case "yearly", "monthly", "never":
	default:
		return fmt.Errorf("invalid reset frequency: %s (must be yearly, monthly or never)", cfg.ResetFrequency)
	}
	if cfg.CounterStart < 0 {
		return fmt.Errorf("counter start must be non-negative")
	}
	if cfg.CounterPadding < 1 {
		return fmt.Errorf("counter padding must be at least 1")
	}
	return nil
}
