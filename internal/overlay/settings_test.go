package overlay

import (
	"testing"

	"github.com/foothold/extension/internal/config"
	"github.com/foothold/extension/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings(config.OverlayConfig{
		ActivationKey:     "G",
		Mode:              "fade_away",
		StandableColor:    "Green",
		NonStandableColor: "magenta",
		ScanMode:          "immediate",
		Debug:             true,
		PoolSize:          2000,
		ScenePrefixes:     []string{"Map_"},
	})
	require.NoError(t, err)
	assert.Equal(t, Settings{
		ActivationKey:     "G",
		Mode:              core.FadeAway,
		StandableColor:    core.Green,
		NonStandableColor: core.Magenta,
		ScanMode:          core.Immediate,
		PoolSize:          2000,
		ScenePrefixes:     []string{"Map_"},
		Debug:             true,
	}, s)
}

func TestParseSettings_InvalidFieldsFallBack(t *testing.T) {
	s, err := ParseSettings(config.OverlayConfig{
		ActivationKey:     " ",
		Mode:              "hover",
		StandableColor:    "red",
		NonStandableColor: "red",
		ScanMode:          "parallel",
		PoolSize:          -1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.ErrorIs(t, err, core.ErrUnknownMode)
	assert.ErrorIs(t, err, core.ErrUnknownColor)
	assert.ErrorIs(t, err, core.ErrUnknownScanMode)

	def := DefaultSettings()
	assert.Equal(t, def.ActivationKey, s.ActivationKey)
	assert.Equal(t, def.Mode, s.Mode)
	assert.Equal(t, core.White, s.StandableColor)
	assert.Equal(t, core.Red, s.NonStandableColor)
	assert.Equal(t, def.PoolSize, s.PoolSize)
	assert.Equal(t, def.ScenePrefixes, s.ScenePrefixes)
}

func TestSettings_ApplyRejectsOversizedPool(t *testing.T) {
	cfg := config.OverlayConfig{
		ActivationKey:     "F",
		Mode:              "toggle",
		StandableColor:    "white",
		NonStandableColor: "red",
		ScanMode:          "immediate",
	}
	for _, n := range []int{config.MaxPoolSize + 1, 1 << 50} {
		cfg.PoolSize = n
		s, err := DefaultSettings().Apply(cfg)
		assert.ErrorIs(t, err, config.ErrInvalid, "pool size %d", n)
		assert.Equal(t, 3000, s.PoolSize)
	}

	cfg.PoolSize = config.MaxPoolSize
	s, err := DefaultSettings().Apply(cfg)
	require.NoError(t, err)
	assert.Equal(t, config.MaxPoolSize, s.PoolSize)
}

func TestSettings_ApplyKeepsLastGoodValues(t *testing.T) {
	base := DefaultSettings()
	base.Mode = core.Trigger
	base.PoolSize = 64

	s, err := base.Apply(config.OverlayConfig{
		ActivationKey:     "H",
		Mode:              "hover",
		StandableColor:    "green",
		NonStandableColor: "red",
		ScanMode:          "immediate",
		PoolSize:          0,
	})
	require.Error(t, err)
	assert.Equal(t, core.Trigger, s.Mode)
	assert.Equal(t, 64, s.PoolSize)
	assert.Equal(t, "H", s.ActivationKey)
	assert.Equal(t, core.Green, s.StandableColor)
	assert.Equal(t, core.Immediate, s.ScanMode)
	assert.Equal(t, base.ScenePrefixes, s.ScenePrefixes)
}

func TestSettings_SceneActive(t *testing.T) {
	s := DefaultSettings()
	assert.True(t, s.SceneActive("Level_3"))
	assert.True(t, s.SceneActive("Airport"))
	assert.False(t, s.SceneActive("Title"))
	assert.False(t, s.SceneActive("level_3"), "prefixes are case sensitive")

	s.ScenePrefixes = []string{""}
	assert.False(t, s.SceneActive("anything"), "an empty prefix never matches")
}

func TestSettings_Color(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, core.White, s.Color(core.Standable))
	assert.Equal(t, core.Red, s.Color(core.NonStandable))
}
