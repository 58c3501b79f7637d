package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SyncConfig tunes the extraction and transformation pipeline. It lives in
// sync.yml so operators can adjust rate limiting without redeploying.
type SyncConfig struct {
	// PageSize is the upstream page size, capped at 100 by the API.
	PageSize int `mapstructure:"pageSize"`
	// RequestDelay separates successful page requests. The upstream rate
	// limit is ~3 req/s, so this must not go below ~0.35s.
	RequestDelay time.Duration `mapstructure:"requestDelay"`
	MaxPages     int           `mapstructure:"maxPages"`
	// MaxAttempts bounds retries for a single page before the whole
	// extraction aborts.
	MaxAttempts int `mapstructure:"maxAttempts"`

	DetailAttempts  int           `mapstructure:"detailAttempts"`
	DetailDelay     time.Duration `mapstructure:"detailDelay"`
	DetailBatchSize int           `mapstructure:"detailBatchSize"`

	ReferenceDelay time.Duration `mapstructure:"referenceDelay"`

	// SyncInterval drives the periodic full pipeline run.
	SyncInterval time.Duration `mapstructure:"syncInterval"`
	// FullRefresh resets every raw record to pending before transforming.
	FullRefresh bool `mapstructure:"fullRefresh"`
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		PageSize:        100,
		RequestDelay:    350 * time.Millisecond,
		MaxPages:        1000,
		MaxAttempts:     3,
		DetailAttempts:  3,
		DetailDelay:     500 * time.Millisecond,
		DetailBatchSize: 100,
		ReferenceDelay:  400 * time.Millisecond,
		SyncInterval:    2 * time.Hour,
		FullRefresh:     false,
	}
}

// SyncConfigHolder keeps the current SyncConfig and hot-reloads it when
// sync.yml changes on disk.
type SyncConfigHolder struct {
	current atomic.Value // holds SyncConfig
}

func NewSyncConfigHolder() (*SyncConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("sync")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/blingsync")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BLINGSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSyncConfig()
	v.SetDefault("sync.pageSize", defaults.PageSize)
	v.SetDefault("sync.requestDelay", defaults.RequestDelay)
	v.SetDefault("sync.maxPages", defaults.MaxPages)
	v.SetDefault("sync.maxAttempts", defaults.MaxAttempts)
	v.SetDefault("sync.detailAttempts", defaults.DetailAttempts)
	v.SetDefault("sync.detailDelay", defaults.DetailDelay)
	v.SetDefault("sync.detailBatchSize", defaults.DetailBatchSize)
	v.SetDefault("sync.referenceDelay", defaults.ReferenceDelay)
	v.SetDefault("sync.syncInterval", defaults.SyncInterval)
	v.SetDefault("sync.fullRefresh", defaults.FullRefresh)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg SyncConfig
	if err := v.UnmarshalKey("sync", &cfg); err != nil {
		return nil, err
	}
	if err := validateSyncConfig(cfg); err != nil {
		return nil, err
	}

	holder := &SyncConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SyncConfig
		if err := v.UnmarshalKey("sync", &updated); err != nil {
			log.Printf("[sync-config] reload failed: %v", err)
			return
		}
		if err := validateSyncConfig(updated); err != nil {
			log.Printf("[sync-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[sync-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticSyncConfigHolder wraps a fixed config with no file watching.
func NewStaticSyncConfigHolder(cfg SyncConfig) *SyncConfigHolder {
	h := &SyncConfigHolder{}
	h.current.Store(cfg)
	return h
}

func (h *SyncConfigHolder) Get() SyncConfig {
	return h.current.Load().(SyncConfig)
}

func validateSyncConfig(cfg SyncConfig) error {
	if cfg.PageSize < 1 || cfg.PageSize > 100 {
		return errors.New("sync.pageSize must be between 1 and 100")
	}
	if cfg.RequestDelay < 0 {
		return errors.New("sync.requestDelay must not be negative")
	}
	if cfg.MaxPages < 1 {
		return errors.New("sync.maxPages must be at least 1")
	}
	if cfg.MaxAttempts < 1 {
		return errors.New("sync.maxAttempts must be at least 1")
	}
	if cfg.SyncInterval < time.Minute {
		return errors.New("sync.syncInterval must be at least one minute")
	}
	return nil
}
