// Package settings implements the typed settings service of spec §3/§6:
// validated key/value configuration with a TTL cache in front of
// internal/store's gorm-backed SettingsRepository, falling back to
// environment-sourced config and then to Schema defaults.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/polyforge/polyforge/internal/config"
	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// defaultCacheTTL matches the original service's class-level 60s cache.
const defaultCacheTTL = 60 * time.Second

// ValidationError is returned by Set when value fails the key's Schema
// constraints.
type ValidationError struct {
	Key     string
	Message string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("setting %q: %s", e.Key, e.Message) }

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// Service is the typed settings store: cache -> database -> env -> schema
// default, in that order (spec §6's "typed configuration with
// validation, TTL cache, env fallback").
type Service struct {
	repo interfaces.SettingsRepository
	ttl  time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry

	env map[string]any
}

// NewService builds a Service. cfg supplies the subset of settings keys
// that also have an environment-variable-backed config field; keys
// outside that subset fall straight through to their Schema default.
func NewService(repo interfaces.SettingsRepository, cfg *config.Config) *Service {
	env := map[string]any{}
	if cfg != nil {
		env["sync_poll_interval"] = int(cfg.SyncPollInterval / time.Second)
		env["ai_rate_limit_rpm"] = cfg.AIRateLimitRPM
		env["ai_max_tags_per_design"] = cfg.AIMaxTagsPerDesign
		env["ai_select_best_preview"] = cfg.AISelectBestPreview
	}
	return &Service{
		repo:  repo,
		ttl:   defaultCacheTTL,
		cache: map[string]cacheEntry{},
		env:   env,
	}
}

// Get resolves key through cache, database, environment, and Schema
// default, in that order. Returns nil if key is recognised nowhere.
func (s *Service) Get(ctx context.Context, key string) (any, error) {
	if v, ok := s.fromCache(key); ok {
		return v, nil
	}

	row, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if row != nil {
		var v any
		if err := json.Unmarshal([]byte(row.Value), &v); err != nil {
			return nil, fmt.Errorf("settings: decode %q: %w", key, err)
		}
		s.toCache(key, v)
		return v, nil
	}

	if v, ok := s.env[key]; ok {
		return v, nil
	}
	if entry, ok := Schema[key]; ok {
		return entry.Default, nil
	}
	return nil, nil
}

// GetInt, GetBool, GetFloat, GetString are typed convenience wrappers
// over Get for call sites that know a key's declared type.
func (s *Service) GetInt(ctx context.Context, key string) (int, error) {
	v, err := s.Get(ctx, key)
	if err != nil || v == nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("settings: %q is not numeric", key)
	}
}

func (s *Service) GetFloat(ctx context.Context, key string) (float64, error) {
	v, err := s.Get(ctx, key)
	if err != nil || v == nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("settings: %q is not numeric", key)
	}
}

func (s *Service) GetBool(ctx context.Context, key string) (bool, error) {
	v, err := s.Get(ctx, key)
	if err != nil || v == nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("settings: %q is not a boolean", key)
	}
	return b, nil
}

func (s *Service) GetString(ctx context.Context, key string) (string, error) {
	v, err := s.Get(ctx, key)
	if err != nil || v == nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("settings: %q is not a string", key)
	}
	return str, nil
}

// Set validates value against key's Schema entry (if any), persists it
// with the entry's metadata attached, and refreshes the cache.
func (s *Service) Set(ctx context.Context, key string, value any) error {
	if err := validate(key, value); err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("settings: encode %q: %w", key, err)
	}

	row := &types.Setting{Key: key, Value: string(raw), Type: types.SettingTypeString}
	if entry, ok := Schema[key]; ok {
		row.Type = entry.Type
		row.Min = entry.Min
		row.Max = entry.Max
		row.RestartRequired = entry.RestartRequired
		if defRaw, err := json.Marshal(entry.Default); err == nil {
			row.Default = string(defRaw)
		}
	}

	if err := s.repo.Set(ctx, row); err != nil {
		return err
	}
	s.toCache(key, value)
	logger.Info(ctx, "setting_updated", "key", key)
	return nil
}

// GetAll returns every Schema default merged with whatever is currently
// persisted, persisted values winning (spec §6 get_all semantics).
func (s *Service) GetAll(ctx context.Context) (map[string]any, error) {
	all := Defaults()
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		var v any
		if err := json.Unmarshal([]byte(row.Value), &v); err != nil {
			logger.Warn(ctx, "invalid_setting_json", "key", row.Key)
			continue
		}
		if f, ok := v.(float64); ok {
			if entry, known := Schema[row.Key]; known && entry.Type == types.SettingTypeInt {
				v = int(f)
			}
		}
		all[row.Key] = v
	}
	return all, nil
}

// ResetToDefaults deletes every persisted setting and clears the cache,
// returning the Schema defaults every Get will now resolve to.
func (s *Service) ResetToDefaults(ctx context.Context) (map[string]any, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := s.repo.Delete(ctx, row.Key); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	s.cache = map[string]cacheEntry{}
	s.mu.Unlock()
	logger.Info(ctx, "settings_reset_to_defaults")
	return Defaults(), nil
}

// Delete reverts key to its Schema default by removing the persisted
// override. Returns false if no override existed.
func (s *Service) Delete(ctx context.Context, key string) (bool, error) {
	existing, err := s.repo.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		return false, err
	}
	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
	logger.Info(ctx, "setting_deleted", "key", key)
	return true, nil
}

func (s *Service) fromCache(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.cache, key)
		return nil, false
	}
	return entry.value, true
}

func (s *Service) toCache(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cacheEntry{value: value, expiresAt: time.Now().Add(s.ttl)}
}

func validate(key string, value any) error {
	if key == "library_template_global" {
		str, ok := value.(string)
		if !ok {
			return &ValidationError{Key: key, Message: "must be a string"}
		}
		if !strings.Contains(str, requiredTemplateVar) {
			return &ValidationError{Key: key, Message: fmt.Sprintf("must contain %s", requiredTemplateVar)}
		}
		return nil
	}

	entry, ok := Schema[key]
	if !ok {
		return nil
	}

	switch entry.Type {
	case types.SettingTypeInt:
		n, ok := asFloat(value)
		if !ok {
			return &ValidationError{Key: key, Message: "must be an integer"}
		}
		return checkRange(key, n, entry)
	case types.SettingTypeFloat:
		n, ok := asFloat(value)
		if !ok {
			return &ValidationError{Key: key, Message: "must be a number"}
		}
		return checkRange(key, n, entry)
	case types.SettingTypeBool:
		if _, ok := value.(bool); !ok {
			return &ValidationError{Key: key, Message: "must be a boolean"}
		}
	case types.SettingTypeString:
		if _, ok := value.(string); !ok {
			return &ValidationError{Key: key, Message: "must be a string"}
		}
	}
	return nil
}

func checkRange(key string, n float64, entry Entry) error {
	if entry.Min != nil && n < *entry.Min {
		return &ValidationError{Key: key, Message: fmt.Sprintf("must be >= %g", *entry.Min)}
	}
	if entry.Max != nil && n > *entry.Max {
		return &ValidationError{Key: key, Message: fmt.Sprintf("must be <= %g", *entry.Max)}
	}
	return nil
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
