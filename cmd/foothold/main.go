// Command foothold runs the overlay core against the simulated host and
// replays a scripted play session through the host gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/foothold/extension/internal/config"
	"github.com/foothold/extension/internal/dispatcher"
	"github.com/foothold/extension/internal/handlers"
	"github.com/foothold/extension/internal/influx"
	"github.com/foothold/extension/internal/journal"
	"github.com/foothold/extension/internal/logging"
	"github.com/foothold/extension/internal/monitor"
	intOtel "github.com/foothold/extension/internal/otel"
	"github.com/foothold/extension/internal/overlay"
	"github.com/foothold/extension/internal/simhost"
	"github.com/foothold/extension/pkg/hostapi"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.1.0"
	BuildDate               string = "unknown"

	ExtensionName string = "foothold"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	configDir string
	scene     string
	terrain   string
	seconds   float64
	fps       float64
	watch     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configDir, "config", ".", "Directory containing "+config.FileName)
	flag.StringVar(&opts.scene, "scene", "Level_1", "Scene name reported to the overlay")
	flag.StringVar(&opts.terrain, "terrain", "hills", "Simulated terrain: hills, slope or flat")
	flag.Float64Var(&opts.seconds, "seconds", 10, "Length of the scripted session in host seconds")
	flag.Float64Var(&opts.fps, "fps", 30, "Host frame rate")
	flag.BoolVar(&opts.watch, "watch", false, "Reload overlay settings when the config file changes")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (%s)\n", ExtensionName, CurrentExtensionVersion, BuildDate)
		return
	}

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ExtensionName, err)
		os.Exit(1)
	}
}

// app holds every service of one run, in start order.
type app struct {
	sessionID string
	started   time.Time

	logFile   *os.File
	otelFiles []*os.File
	logs      *logging.SlogManager
	logger    *slog.Logger
	zlog      zerolog.Logger
	provider  *intOtel.Provider

	engine     *simhost.Engine
	controller *overlay.Controller
	journal    *journal.Recorder
	influx     *influx.Manager
	recorders  []overlay.Recorder
	monitor    *monitor.Service
	dispatcher *dispatcher.Dispatcher
	service    *handlers.Service
	gateway    *hostapi.Gateway

	// live is read by the log context from any goroutine
	live atomic.Pointer[overlay.Controller]
}

func run(opts options, out io.Writer) error {
	a := &app{sessionID: uuid.NewString(), started: time.Now()}
	defer a.shutdown()

	configErr := loadConfig(opts.configDir)
	if err := a.initLogging(); err != nil {
		return err
	}
	if configErr != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		a.logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	if err := a.initRecorders(); err != nil {
		return err
	}
	if err := a.initOverlay(opts.terrain); err != nil {
		return err
	}
	if err := a.initGateway(); err != nil {
		return err
	}
	if opts.watch {
		config.Watch(func(oc config.OverlayConfig) {
			a.service.QueueConfig(oc)
			a.logs.SetLevel(config.GetString("logLevel"))
		})
	}
	a.initMonitor()

	a.logger.Info("Foothold ready",
		"version", CurrentExtensionVersion,
		"session", a.sessionID,
		"scene", opts.scene,
	)

	script := defaultScript(opts.scene, a.controller.Settings().ActivationKey, opts.seconds, opts.fps)
	if err := script.Run(a.gateway, out); err != nil {
		return err
	}
	fmt.Fprintln(out, a.gateway.Call(handlers.CmdStatus))
	fmt.Fprintln(out, a.gateway.Call(handlers.CmdFlush))
	return nil
}

// loadConfig reads the config file. A missing file leaves the defaults in place.
func loadConfig(dir string) error {
	err := config.Load(dir)
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Errorf("no %s in %s", config.FileName, dir)
	}
	return err
}

func (a *app) initLogging() error {
	logsDir := viper.GetString("logsDir")
	f, err := logging.OpenSessionLog(logsDir, ExtensionName, a.started)
	if err != nil {
		return err
	}
	a.logFile = f
	a.zlog = zerolog.New(f).With().Timestamp().Str("session", a.sessionID).Logger()

	otelCfg := config.GetOTelConfig()
	pc := intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		BatchTimeout:   otelCfg.BatchTimeout,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
		MetricInterval: otelCfg.MetricInterval,
	}
	if otelCfg.Enabled {
		if pc.LogWriter, err = a.createOtelFile(logsDir, "otel.log"); err != nil {
			return err
		}
		if pc.MetricWriter, err = a.createOtelFile(logsDir, "metrics.log"); err != nil {
			return err
		}
	}
	if a.provider, err = intOtel.New(pc); err != nil {
		return fmt.Errorf("failed to initialize OTel: %w", err)
	}

	a.logs = logging.NewSlogManager()
	a.logs.Context = func() []slog.Attr {
		ctl := a.live.Load()
		if ctl == nil {
			return nil
		}
		st := ctl.Status()
		return []slog.Attr{slog.String("scene", st.Scene), slog.String("state", st.State.String())}
	}

	gl := config.GetGraylogConfig()
	if gl.Enabled {
		h, err := logging.NewGelfHandler(gl.Address, gl.Facility, viper.GetString("logLevel"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "graylog disabled: %v\n", err)
		} else {
			a.logs.AddSink(h)
		}
	}

	a.logs.Setup(f, viper.GetString("logLevel"), a.provider.LoggerProvider())
	a.logger = a.logs.Logger()
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) createOtelFile(dir, suffix string) (*os.File, error) {
	path := filepath.Join(dir, fmt.Sprintf("%s.%s.%s", ExtensionName, a.started.Format("20060102_150405"), suffix))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	a.otelFiles = append(a.otelFiles, f)
	return f, nil
}

func (a *app) initOverlay(terrainName string) error {
	terrain, err := newTerrain(terrainName)
	if err != nil {
		return err
	}
	a.engine = simhost.NewEngine(terrain, simhost.WithCameraDelay(3))

	settings, err := overlay.ParseSettings(config.GetOverlayConfig())
	if err != nil {
		a.logger.Warn("Invalid overlay settings, using defaults for those fields", "error", err)
	}

	a.controller, err = overlay.New(a.engine, settings,
		overlay.WithLogger(a.logger),
		overlay.WithMeter(a.provider.Meter("foothold/overlay")),
		overlay.WithRecorders(a.recorders...),
	)
	if err != nil {
		return fmt.Errorf("failed to create overlay controller: %w", err)
	}
	a.live.Store(a.controller)
	return nil
}

// newTerrain builds one of the simulated landscapes.
func newTerrain(name string) (*simhost.Terrain, error) {
	switch name {
	case "hills", "":
		return simhost.Hills(40), nil
	case "slope":
		return simhost.Slope(40, 30), nil
	case "flat":
		return simhost.Flat(40, 0), nil
	}
	return nil, fmt.Errorf("unknown terrain %q", name)
}

func (a *app) initRecorders() error {
	jc := config.GetJournalConfig()
	backend, err := journal.NewBackend(jc, a.zlog)
	if err != nil {
		return fmt.Errorf("failed to open scan journal: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize scan journal: %w", err)
	}
	a.journal = journal.NewRecorder(backend, a.sessionID, jc.QueueLimit, a.logger)
	a.journal.Start()
	a.recorders = []overlay.Recorder{a.journal}

	ic := config.GetInfluxConfig()
	if ic.Enabled {
		a.influx = influx.NewManager(ic, a.zlog, a.sessionID)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err := a.influx.Connect(ctx)
		cancel()
		if err != nil {
			a.logger.Warn("InfluxDB unavailable, scan telemetry disabled", "error", err)
			a.influx = nil
		} else {
			a.recorders = append(a.recorders, a.influx)
		}
	}
	return nil
}

func (a *app) initGateway() error {
	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zlog),
		dispatcher.WithMeter(a.provider.Meter("foothold/dispatcher")))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	flushers := []handlers.Flusher{a.journal, a.provider, a.logs}
	if a.influx != nil {
		flushers = append(flushers, a.influx)
	}
	a.service = handlers.NewService(handlers.Dependencies{
		Controller:       a.controller,
		LogManager:       a.logs,
		Flushers:         flushers,
		ExtensionName:    ExtensionName,
		ExtensionVersion: CurrentExtensionVersion,
		BuildDate:        BuildDate,
	})
	a.service.Register(d)

	a.dispatcher = d
	a.gateway = hostapi.NewGateway(CurrentExtensionVersion)
	a.gateway.SetDispatcher(d)
	a.logger.Info("Registered host commands", "commands", d.Commands())
	return nil
}

func (a *app) initMonitor() {
	mc := config.GetMonitorConfig()
	if !mc.Enabled {
		return
	}
	a.monitor = monitor.NewService(monitor.Dependencies{
		Status:     a.controller.Status,
		LogManager: a.logs,
		Path:       mc.File,
		Interval:   mc.Interval,
	})
	if err := a.monitor.Start(); err != nil {
		a.logger.Warn("Status monitor not started", "error", err)
		a.monitor = nil
	}
}

// shutdown stops the services in reverse start order. It tolerates a
// partially initialized app.
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.monitor != nil {
		a.monitor.Stop()
	}
	// buffered commands (:FLUSH:) finish before the recorders close
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(); err != nil && a.logger != nil {
			a.logger.Error("Failed to close dispatcher", "error", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil && a.logger != nil {
			a.logger.Error("Failed to close scan journal", "error", err)
		}
	}
	if a.influx != nil {
		if err := a.influx.Close(); err != nil && a.logger != nil {
			a.logger.Error("Failed to close InfluxDB client", "error", err)
		}
	}
	if a.controller != nil {
		_ = a.controller.Close()
	}
	if a.logger != nil {
		a.logger.Info("Foothold stopped", "uptime", time.Since(a.started).Round(time.Millisecond))
	}
	if a.provider != nil {
		_ = a.provider.Shutdown(ctx)
	}
	for _, f := range a.otelFiles {
		_ = f.Close()
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
