package overlay

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/foothold/extension/internal/config"
	"github.com/foothold/extension/pkg/core"
)

// Settings is the configuration snapshot the controller works from.
type Settings struct {
	ActivationKey     string
	Mode              core.Mode
	StandableColor    core.Color
	NonStandableColor core.Color
	ScanMode          core.ScanMode
	PoolSize          int
	ScenePrefixes     []string
	Debug             bool
}

// DefaultSettings mirrors the config defaults.
func DefaultSettings() Settings {
	return Settings{
		ActivationKey:     "F",
		Mode:              core.Toggle,
		StandableColor:    core.White,
		NonStandableColor: core.Red,
		ScanMode:          core.TimeSliced,
		PoolSize:          3000,
		ScenePrefixes:     []string{"Level_", "Airport"},
	}
}

// ParseSettings converts raw config values. Every invalid field is reported;
// the returned Settings then holds defaults for those fields.
func ParseSettings(cfg config.OverlayConfig) (Settings, error) {
	return DefaultSettings().Apply(cfg)
}

// Apply returns s updated from cfg. Invalid fields are reported and keep
// their value from s.
func (s Settings) Apply(cfg config.OverlayConfig) (Settings, error) {
	s.ScenePrefixes = slices.Clone(s.ScenePrefixes)
	var errs []error

	if key := strings.TrimSpace(cfg.ActivationKey); key != "" {
		s.ActivationKey = key
	} else {
		errs = append(errs, fmt.Errorf("%w: empty activation key", config.ErrInvalid))
	}

	if m, err := core.ParseMode(cfg.Mode); err != nil {
		errs = append(errs, err)
	} else {
		s.Mode = m
	}

	if sm, err := core.ParseScanMode(cfg.ScanMode); err != nil {
		errs = append(errs, err)
	} else {
		s.ScanMode = sm
	}

	if c, err := core.ParseCategoryColor(core.Standable, cfg.StandableColor); err != nil {
		errs = append(errs, err)
	} else {
		s.StandableColor = c
	}

	if c, err := core.ParseCategoryColor(core.NonStandable, cfg.NonStandableColor); err != nil {
		errs = append(errs, err)
	} else {
		s.NonStandableColor = c
	}

	if err := checkPoolSize(cfg.PoolSize); err != nil {
		errs = append(errs, err)
	} else {
		s.PoolSize = cfg.PoolSize
	}

	if cfg.ScenePrefixes != nil {
		s.ScenePrefixes = slices.Clone(cfg.ScenePrefixes)
	}
	s.Debug = cfg.Debug

	return s, errors.Join(errs...)
}

func checkPoolSize(n int) error {
	if n <= 0 || n > config.MaxPoolSize {
		return fmt.Errorf("%w: pool size %d not in [1, %d]", config.ErrInvalid, n, config.MaxPoolSize)
	}
	return nil
}

// Color returns the configured color of cat.
func (s Settings) Color(cat core.Category) core.Color {
	if cat == core.NonStandable {
		return s.NonStandableColor
	}
	return s.StandableColor
}

// SceneActive reports whether the overlay runs in the named scene.
func (s Settings) SceneActive(scene string) bool {
	return slices.ContainsFunc(s.ScenePrefixes, func(p string) bool {
		return p != "" && strings.HasPrefix(scene, p)
	})
}
