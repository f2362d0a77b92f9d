package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GRADER_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "Gema Grader", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, "disk", cfg.StorageDriver)
	require.Equal(t, "documents", cfg.StorageDir)
	require.Equal(t, "error_logs.txt", cfg.ErrorLogPath)
	require.Equal(t, 12*time.Hour, cfg.SessionTTL)
	require.Equal(t, 4, cfg.GradingWorkers)
	require.Equal(t, 64, cfg.GradingQueueSize)
	require.True(t, cfg.AIStructured)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GRADER_JWT_SECRET", "secret")
	t.Setenv("GRADER_DATABASE_DRIVER", "SQLite")
	t.Setenv("GRADER_APP_PORT", ":9000")
	t.Setenv("GRADER_GRADING_WORKERS", "2")
	t.Setenv("GRADER_SESSION_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, ":9000", cfg.HTTPAddress())
	require.Equal(t, 2, cfg.GradingWorkers)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("GRADER_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("GRADER_JWT_SECRET", "secret")
	t.Setenv("GRADER_STORAGE_DRIVER", "ftp")

	_, err := Load()
	require.Error(t, err)
}
