package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/levelapp/funnel/internal/config"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		env     string
		wantErr bool
	}{
		{"development", "debug", "development", false},
		{"production", "info", "production", false},
		{"invalid level", "verbose", "production", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Server: config.ServerConfig{Environment: tt.env},
				Log:    config.LogConfig{Level: tt.level, Format: "json"},
			}

			logger, err := initLogger(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.level, logger.GetLevel())
			assert.Equal(t, tt.env, logger.Environment())
		})
	}
}

func TestOpenStores_None(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: config.StorageDriverNone}}

	st, err := openStores(context.Background(), cfg, nil, zap.NewNop())

	require.NoError(t, err)
	// Untyped nils, so the services and the compiler see "not configured".
	assert.Nil(t, st.knowledge)
	assert.Nil(t, st.leads)
	assert.Nil(t, st.quotes)
	assert.Nil(t, st.users)
	assert.Nil(t, st.sessions)
	assert.Nil(t, st.tx)
	assert.Nil(t, st.health)
	st.close()
}

func TestOpenStores_Supabase(t *testing.T) {
	cfg := &config.Config{
		Storage:  config.StorageConfig{Driver: config.StorageDriverSupabase},
		Supabase: config.SupabaseConfig{URL: "https://levelapp.supabase.co", APIKey: "service-role-key"},
	}

	st, err := openStores(context.Background(), cfg, nil, zap.NewNop())

	require.NoError(t, err)
	assert.NotNil(t, st.knowledge)
	assert.NotNil(t, st.leads)
	assert.NotNil(t, st.quotes)
	assert.NotNil(t, st.users)
	assert.NotNil(t, st.sessions)
	assert.NotNil(t, st.tx)
	assert.NotNil(t, st.health)
	st.close()
}

func TestOpenStores_Rejected(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"unknown driver", &config.Config{Storage: config.StorageConfig{Driver: "mongo"}}},
		{"supabase without key", &config.Config{
			Storage:  config.StorageConfig{Driver: config.StorageDriverSupabase},
			Supabase: config.SupabaseConfig{URL: "https://levelapp.supabase.co"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := openStores(context.Background(), tt.cfg, nil, zap.NewNop())
			assert.Error(t, err)
			assert.Nil(t, st)
		})
	}
}

func TestStartWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var running atomic.Int32
	worker := func(ctx context.Context) {
		running.Add(1)
		<-ctx.Done()
		running.Add(-1)
	}

	done := startWorkers(ctx, []func(context.Context){worker, worker, worker})

	select {
	case <-done:
		t.Fatal("workers finished before cancellation")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
	assert.Equal(t, int32(0), running.Load())
}

func TestStartWorkers_Empty(t *testing.T) {
	done := startWorkers(context.Background(), nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected done to close with no workers")
	}
}
