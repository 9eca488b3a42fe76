package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Well-known setting keys.
const (
	SettingAPIKey          = "api_key"
	SettingPreferredModel  = "preferred_model"
	SettingRateLimitPerMin = "rate_limit_per_min"
	SettingTheme           = "theme"
)

const (
	defaultPreferredModel  = "gemini-1.5-flash"
	defaultRateLimitPerMin = 10
)

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("set setting: key required")
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key,
		value,
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Setting returns the value stored under key and whether it exists.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	ctx = ensureContext(ctx)
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, strings.TrimSpace(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// DeleteSetting removes key. Missing keys are not an error.
func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.execWithRetry(ctx, `DELETE FROM settings WHERE key = ?`, strings.TrimSpace(key)); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// Settings returns every stored key/value pair.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}

// SaveAPIKey stores the Gemini API key.
func (s *Store) SaveAPIKey(ctx context.Context, key string) error {
	return s.SetSetting(ctx, SettingAPIKey, strings.TrimSpace(key))
}

// LoadAPIKey returns the stored Gemini API key or an empty string.
func (s *Store) LoadAPIKey(ctx context.Context) (string, error) {
	value, _, err := s.Setting(ctx, SettingAPIKey)
	return value, err
}

// LoadAppSettings reads the typed settings, applying defaults for missing or
// malformed values.
func (s *Store) LoadAppSettings(ctx context.Context) (AppSettings, error) {
	settings := AppSettings{
		PreferredModel:  defaultPreferredModel,
		RateLimitPerMin: defaultRateLimitPerMin,
	}
	all, err := s.Settings(ctx)
	if err != nil {
		return settings, err
	}
	if model := strings.TrimSpace(all[SettingPreferredModel]); model != "" {
		settings.PreferredModel = model
	}
	if raw := strings.TrimSpace(all[SettingRateLimitPerMin]); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			settings.RateLimitPerMin = n
		}
	}
	settings.Theme = strings.TrimSpace(all[SettingTheme])
	return settings, nil
}

// SaveAppSettings writes the typed settings.
func (s *Store) SaveAppSettings(ctx context.Context, settings AppSettings) error {
	if settings.RateLimitPerMin <= 0 {
		return fmt.Errorf("save settings: rate limit must be positive, got %d", settings.RateLimitPerMin)
	}
	pairs := [][2]string{
		{SettingPreferredModel, strings.TrimSpace(settings.PreferredModel)},
		{SettingRateLimitPerMin, strconv.Itoa(settings.RateLimitPerMin)},
		{SettingTheme, strings.TrimSpace(settings.Theme)},
	}
	for _, pair := range pairs {
		if pair[1] == "" {
			if err := s.DeleteSetting(ctx, pair[0]); err != nil {
				return err
			}
			continue
		}
		if err := s.SetSetting(ctx, pair[0], pair[1]); err != nil {
			return err
		}
	}
	return nil
}
