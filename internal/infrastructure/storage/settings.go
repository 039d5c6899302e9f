package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsDesk/internal/domain"
	"NewsDesk/internal/ports"
)

// Setting names forming the guard configuration key set.
const (
	SettingEnabled           = "ai.enabled"
	SettingEnabledRegions    = "ai.enabled_regions"
	SettingDailyCallLimit    = "ai.daily_call_limit"
	SettingMonthlyTokenLimit = "ai.monthly_token_limit"
	SettingMaxInputLength    = "ai.max_input_length"
)

var guardSettingNames = []string{
	SettingEnabled,
	SettingEnabledRegions,
	SettingDailyCallLimit,
	SettingMonthlyTokenLimit,
	SettingMaxInputLength,
}

var _ ports.GuardConfigStore = (*Store)(nil)

// LoadGuardConfig reads the guard key set. Missing keys keep their zero value, so an empty
// table yields a disabled guard.
func (s *Store) LoadGuardConfig(ctx context.Context) (domain.GuardConfig, error) {
	query, args, err := s.sb.Select("name", "value").
		From("settings").
		Where(sq.Eq{"name": guardSettingNames}).
		ToSql()
	if err != nil {
		return domain.GuardConfig{}, fmt.Errorf("build settings select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.GuardConfig{}, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	var cfg domain.GuardConfig
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return domain.GuardConfig{}, fmt.Errorf("scan setting: %w", err)
		}
		if err := applySetting(&cfg, name, value); err != nil {
			return domain.GuardConfig{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return domain.GuardConfig{}, fmt.Errorf("rows iteration: %w", err)
	}
	return cfg, nil
}

// SaveGuardConfig upserts every key of cfg. Admin collaborators call it, then invalidate the guard cache.
func (s *Store) SaveGuardConfig(ctx context.Context, cfg domain.GuardConfig) error {
	values := map[string]string{
		SettingEnabled:           strconv.FormatBool(cfg.Enabled),
		SettingEnabledRegions:    strings.Join(cfg.EnabledRegions, ","),
		SettingDailyCallLimit:    strconv.Itoa(cfg.DailyCallLimit),
		SettingMonthlyTokenLimit: strconv.Itoa(cfg.MonthlyTokenLimit),
		SettingMaxInputLength:    strconv.Itoa(cfg.MaxInputLength),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w", err)
	}
	now := s.now()
	for _, name := range guardSettingNames {
		query, args, err := s.sb.Insert("settings").
			Columns("name", "value", "updated_at").
			Values(name, values[name], now).
			Suffix("ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
			ToSql()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("build settings upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert setting %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

func applySetting(cfg *domain.GuardConfig, name, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch name {
	case SettingEnabled:
		cfg.Enabled, err = strconv.ParseBool(value)
	case SettingEnabledRegions:
		cfg.EnabledRegions = splitRegions(value)
	case SettingDailyCallLimit:
		cfg.DailyCallLimit, err = atoiOrZero(value)
	case SettingMonthlyTokenLimit:
		cfg.MonthlyTokenLimit, err = atoiOrZero(value)
	case SettingMaxInputLength:
		cfg.MaxInputLength, err = atoiOrZero(value)
	}
	if err != nil {
		return fmt.Errorf("setting %s=%q: %w", name, value, err)
	}
	return nil
}

func splitRegions(value string) []string {
	var regions []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			regions = append(regions, part)
		}
	}
	return regions
}

func atoiOrZero(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}
