package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSyncConfigIsValid(t *testing.T) {
	require.NoError(t, validateSyncConfig(DefaultSyncConfig()))
}

func TestValidateSyncConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*SyncConfig)
	}{
		{"page size zero", func(c *SyncConfig) { c.PageSize = 0 }},
		{"page size above api cap", func(c *SyncConfig) { c.PageSize = 101 }},
		{"negative request delay", func(c *SyncConfig) { c.RequestDelay = -time.Second }},
		{"max pages zero", func(c *SyncConfig) { c.MaxPages = 0 }},
		{"max attempts zero", func(c *SyncConfig) { c.MaxAttempts = 0 }},
		{"sync interval below a minute", func(c *SyncConfig) { c.SyncInterval = 30 * time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultSyncConfig()
			tc.mutate(&cfg)
			assert.Error(t, validateSyncConfig(cfg))
		})
	}
}

func TestStaticSyncConfigHolder(t *testing.T) {
	cfg := DefaultSyncConfig()
	cfg.PageSize = 7
	holder := NewStaticSyncConfigHolder(cfg)
	assert.Equal(t, 7, holder.Get().PageSize)
}
