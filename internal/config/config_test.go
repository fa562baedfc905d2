package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CME_JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "CME Compliance API", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 30, cfg.EndingSoonDays)
	require.InEpsilon(t, 0.5, cfg.PaceFloor, 1e-9)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("CME_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadClampsPolicyKnobs(t *testing.T) {
	t.Setenv("CME_JWT_SECRET", "test-secret")
	t.Setenv("CME_CYCLE_PACE_FLOOR", "1.5")
	t.Setenv("CME_CYCLE_ENDING_SOON_DAYS", "-7")

	cfg, err := Load()
	require.NoError(t, err)
	require.InEpsilon(t, 0.5, cfg.PaceFloor, 1e-9)
	require.Equal(t, 30, cfg.EndingSoonDays)
}

func TestClassificationConvertsPaceFloor(t *testing.T) {
	cfg := Config{EndingSoonDays: 45, PaceFloor: 0.4}

	classification := cfg.Classification()
	require.Equal(t, 45, classification.EndingSoonDays)
	require.True(t, decimal.NewFromFloat(0.4).Equal(classification.PaceFloor))
}
