// Package handlers binds host commands to an overlay controller.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foothold/extension/internal/config"
	"github.com/foothold/extension/internal/dispatcher"
	"github.com/foothold/extension/internal/logging"
	"github.com/foothold/extension/internal/monitor"
	"github.com/foothold/extension/internal/overlay"
	"github.com/foothold/extension/internal/queue"
	"github.com/foothold/extension/internal/util"
	"github.com/foothold/extension/pkg/core"
)

// Host commands served by the Service.
const (
	CmdVersion     = ":VERSION:"
	CmdSceneLoaded = ":SCENE:LOADED:"
	CmdTick        = ":TICK:"
	CmdActivate    = ":ACTIVATE:"
	CmdDeactivate  = ":DEACTIVATE:"
	CmdCancel      = ":CANCEL:"
	CmdConfigSet   = ":CONFIG:SET:"
	CmdStatus      = ":STATUS:"
	CmdFlush       = ":FLUSH:"
)

// pendingLimit bounds config snapshots waiting for the next tick. Only the
// newest one is applied.
const pendingLimit = 8

// flushTimeout bounds a :FLUSH: request.
const flushTimeout = 5 * time.Second

// ErrMissingArg is returned when a command is called without a required argument.
var ErrMissingArg = errors.New("missing argument")

// Flusher is anything holding buffered output, such as the scan journal,
// the telemetry writer or the OTel providers.
type Flusher interface {
	Flush(ctx context.Context) error
}

// FlushFunc adapts a function to Flusher.
type FlushFunc func(ctx context.Context) error

// Flush calls f.
func (f FlushFunc) Flush(ctx context.Context) error { return f(ctx) }

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Controller       *overlay.Controller
	LogManager       *logging.SlogManager
	Flushers         []Flusher
	ExtensionName    string
	ExtensionVersion string
	BuildDate        string
}

// StatusReply is the :STATUS: payload. Debug is only filled while the debug
// overlay is enabled.
type StatusReply struct {
	core.Status
	Debug []string `json:"debug,omitempty"`
}

// Service translates host commands into controller calls. Apart from
// QueueConfig and Flush, its methods must run on the host tick goroutine.
type Service struct {
	deps         Dependencies
	pending      *queue.Queue[config.OverlayConfig]
	lastTick     float64
	writeLogFunc func(functionName, data, level string)
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	s := &Service{
		deps:    deps,
		pending: queue.NewBounded[config.OverlayConfig](pendingLimit),
	}
	s.writeLogFunc = func(functionName, data, level string) {
		if deps.LogManager != nil {
			deps.LogManager.WriteLog(functionName, data, level)
		}
	}
	return s
}

func (s *Service) writeLog(functionName, data, level string) {
	s.writeLogFunc(functionName, data, level)
}

// Register registers every host command with d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdVersion, func(e dispatcher.Event) (any, error) {
		return []string{s.deps.ExtensionVersion, s.deps.BuildDate}, nil
	})

	// Ticks arrive every frame and are not logged.
	d.Register(CmdTick, func(e dispatcher.Event) (any, error) {
		return nil, s.Tick(e.Args)
	})

	d.Register(CmdSceneLoaded, func(e dispatcher.Event) (any, error) {
		return nil, s.SceneLoaded(e.Args)
	}, dispatcher.Logged())

	d.Register(CmdActivate, func(e dispatcher.Event) (any, error) {
		return s.Activate(e.Args)
	}, dispatcher.Logged())

	d.Register(CmdDeactivate, func(e dispatcher.Event) (any, error) {
		s.deps.Controller.Deactivate()
		return nil, nil
	}, dispatcher.Logged())

	d.Register(CmdCancel, func(e dispatcher.Event) (any, error) {
		return s.deps.Controller.CancelScan(), nil
	}, dispatcher.Logged())

	d.Register(CmdConfigSet, func(e dispatcher.Event) (any, error) {
		return nil, s.SetConfig(e.Args)
	}, dispatcher.Logged())

	d.Register(CmdStatus, func(e dispatcher.Event) (any, error) {
		return s.Status(), nil
	})

	d.Register(CmdFlush, func(e dispatcher.Event) (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		return nil, s.Flush(ctx)
	}, dispatcher.Buffered(1), dispatcher.Logged())
}

// QueueConfig schedules an overlay config snapshot for the next tick. Safe
// for concurrent use; it is the sink of config.Watch.
func (s *Service) QueueConfig(oc config.OverlayConfig) {
	s.pending.Push(oc)
}

// Pending returns the number of config snapshots waiting for a tick.
func (s *Service) Pending() int {
	return s.pending.Len()
}

// applyPending applies the newest queued config snapshot. Invalid fields keep
// their current value.
func (s *Service) applyPending() bool {
	batch := s.pending.Drain()
	if len(batch) == 0 {
		return false
	}
	ctl := s.deps.Controller
	settings, err := ctl.Settings().Apply(batch[len(batch)-1])
	if err != nil {
		s.writeLog("applyPending", fmt.Sprintf("Ignoring invalid config values: %v", err), "WARN")
	}
	ctl.ApplySettings(settings)
	return true
}

// Tick handles :TICK: time [keys...]. Keys may be separate arguments or one
// stringified array.
func (s *Service) Tick(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s: %w: time", CmdTick, ErrMissingArg)
	}
	now, err := util.ParseSeconds(args[0])
	if err != nil {
		return fmt.Errorf("%s: invalid time %q: %w", CmdTick, args[0], err)
	}

	var keys []string
	for _, a := range args[1:] {
		keys = append(keys, util.ParseStringArray(a)...)
	}

	s.applyPending()
	s.lastTick = now
	s.deps.Controller.Tick(overlay.Frame{Time: now, KeysDown: keys})
	return nil
}

// SceneLoaded handles :SCENE:LOADED: name.
func (s *Service) SceneLoaded(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s: %w: scene name", CmdSceneLoaded, ErrMissingArg)
	}
	name := util.CleanArg(args[0])
	s.deps.Controller.OnSceneLoaded(name)
	s.writeLog(CmdSceneLoaded, fmt.Sprintf("Scene %q loaded, overlay active: %t", name, s.deps.Controller.Status().SceneActive), "INFO")
	return nil
}

// Activate handles :ACTIVATE: [time]. Without a time the last tick time is
// used. It reports whether the press was acted on.
func (s *Service) Activate(args []string) (bool, error) {
	now := s.lastTick
	if len(args) > 0 {
		t, err := util.ParseSeconds(args[0])
		if err != nil {
			return false, fmt.Errorf("%s: invalid time %q: %w", CmdActivate, args[0], err)
		}
		now = t
	}
	return s.deps.Controller.Activate(now), nil
}

// SetConfig handles :CONFIG:SET: key value. The change is validated against
// the current settings before it is stored, so a rejected value leaves both
// the stored config and the controller untouched.
func (s *Service) SetConfig(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%s: %w: key and value", CmdConfigSet, ErrMissingArg)
	}
	key, value := util.CleanArg(args[0]), util.CleanArg(args[1])

	current := config.GetOverlayConfig()
	next, err := current.With(key, value)
	if err != nil {
		return err
	}
	ctl := s.deps.Controller
	settings, err := ctl.Settings().Apply(next)
	if err != nil {
		// Values that were already invalid in the file do not block an
		// unrelated key.
		if _, curErr := ctl.Settings().Apply(current); curErr == nil {
			return err
		}
	}
	if err := config.Set(key, value); err != nil {
		return err
	}
	ctl.ApplySettings(settings)
	s.writeLog(CmdConfigSet, fmt.Sprintf("%s=%s", key, value), "INFO")
	return nil
}

// Status builds the :STATUS: reply.
func (s *Service) Status() StatusReply {
	st := s.deps.Controller.Status()
	reply := StatusReply{Status: st}
	if s.deps.Controller.Settings().Debug {
		reply.Debug = monitor.DebugLines(st)
	}
	return reply
}

// Flush flushes every registered flusher and joins their errors.
func (s *Service) Flush(ctx context.Context) error {
	var errs []error
	for _, f := range s.deps.Flushers {
		if err := f.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.writeLog(CmdFlush, fmt.Sprintf("Flush failed: %v", err), "ERROR")
		return err
	}
	return nil
}
