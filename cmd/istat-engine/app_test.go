// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/istat-engine/internal/docstore"
	"github.com/pdiddy/istat-engine/internal/secrets"
	"github.com/pdiddy/istat-engine/pkg/types"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     types.LogConfig
		wantErr bool
	}{
		{"text", types.LogConfig{Level: "info", Format: "text"}, false},
		{"json debug", types.LogConfig{Level: "debug", Format: "json"}, false},
		{"format case", types.LogConfig{Level: "warn", Format: "JSON"}, false},
		{"bad level", types.LogConfig{Level: "loud"}, true},
		{"bad format", types.LogConfig{Level: "info", Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNewStore(t *testing.T) {
	store, err := newStore(types.StoreConfig{Backend: types.StoreFilesystem, Root: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, docstore.StageMappings, "mapping_1.json", map[string]string{"a": "b"}))
	var got map[string]string
	require.NoError(t, store.Get(ctx, docstore.StageMappings, "mapping_1.json", &got))
	assert.Equal(t, "b", got["a"])

	_, err = newStore(types.StoreConfig{Backend: types.StoreMinio})
	assert.Error(t, err, "minio without endpoint")

	_, err = newStore(types.StoreConfig{Backend: "s3"})
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Cleanup(func() { loadedSecrets = nil })
	loadedSecrets = map[string]string{
		secrets.MinioAccessKey: "from-secrets",
		secrets.MinioSecretKey: "secret-from-secrets",
	}
	viper.Set("sdmx.timeout", "5s")
	viper.Set("store.minio.access_key", "from-config")
	t.Cleanup(func() {
		viper.Set("sdmx.timeout", nil)
		viper.Set("store.minio.access_key", nil)
	})

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.SDMX.Timeout)
	assert.Equal(t, "IT1", cfg.SDMX.DataflowAgency)
	assert.Equal(t, types.StoreFilesystem, cfg.Store.Backend)
	assert.Equal(t, 20, cfg.Catalog.MaxResults)
	assert.Equal(t, "from-config", cfg.Store.Minio.AccessKey, "configured credentials win")
	assert.Equal(t, "secret-from-secrets", cfg.Store.Minio.SecretKey)
}

func TestForEachDatasetContinuesAfterFailure(t *testing.T) {
	logger, err := newLogger(types.LogConfig{Level: "error"})
	require.NoError(t, err)
	a := &app{logger: logger}

	var seen []string
	err = forEachDataset(context.Background(), a, []string{"1", "2", "3"}, func(_ context.Context, id string) error {
		seen = append(seen, id)
		if id == "2" {
			return errors.New("boom")
		}
		return nil
	})
	assert.EqualError(t, err, "1 dataset(s) failed")
	assert.Equal(t, []string{"1", "2", "3"}, seen)
}
