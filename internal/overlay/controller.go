// Package overlay drives the standability overlay: it owns the marker banks,
// runs scans on the activation key and fades or clears their results.
//
// A Controller is not safe for concurrent use. Every method except Status
// must be called from the host tick goroutine; Status reads an atomically
// published snapshot and may be called from anywhere.
package overlay

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/foothold/extension/internal/classify"
	"github.com/foothold/extension/internal/marker"
	"github.com/foothold/extension/internal/scan"
	"github.com/foothold/extension/pkg/core"
	"github.com/foothold/extension/pkg/hostapi"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Frame is one host tick.
type Frame struct {
	// Time is the host clock in seconds.
	Time float64
	// KeysDown lists the keys that went down during this frame.
	KeysDown []string
}

// Recorder receives a report for every finished or cancelled scan. Record is
// called on the tick goroutine and must not block.
type Recorder interface {
	Record(core.ScanReport)
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

func WithMeter(m metric.Meter) Option {
	return func(c *Controller) { c.meter = m }
}

func WithRecorders(r ...Recorder) Option {
	return func(c *Controller) { c.recorders = append(c.recorders, r...) }
}

// WithGrid replaces the default sampling grid.
func WithGrid(g scan.Grid) Option {
	return func(c *Controller) { c.grid = g }
}

// WithClock replaces the wall clock used to time scan steps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.clock = now }
}

// Controller owns all overlay state for one host session.
type Controller struct {
	engine     hostapi.Engine
	settings   Settings
	grid       scan.Grid
	planner    *scan.Planner
	task       *scan.Task
	classifier *classify.Classifier
	builder    *marker.Builder
	banks      [len(core.Categories)]*marker.Bank

	scene       string
	sceneActive bool
	camera      hostapi.Camera

	mode            modeStrategy
	state           core.State
	now             float64
	lastScanTime    float64
	lastAlphaChange float64

	report   *core.ScanReport
	visitFn  func(r3.Vector)
	scansRun int

	status    atomic.Pointer[core.Status]
	log       *slog.Logger
	meter     metric.Meter
	metrics   *metrics
	recorders []Recorder
	clock     func() time.Time
}

// New creates a controller with no scene loaded.
func New(engine hostapi.Engine, settings Settings, opts ...Option) (*Controller, error) {
	if err := checkPoolSize(settings.PoolSize); err != nil {
		return nil, err
	}
	c := &Controller{
		engine:     engine,
		settings:   settings,
		grid:       scan.DefaultGrid,
		classifier: classify.New(engine),
		builder:    marker.NewBuilder(engine),
		mode:       newModeStrategy(settings.Mode),
		log:        slog.Default(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.meter == nil {
		c.meter = otel.Meter(instrumentationName)
	}

	c.planner = scan.NewPlanner(c.grid)
	c.task = scan.NewTask(c.planner)
	c.visitFn = c.visit
	c.newBanks()

	m, err := newMetrics(c.meter, c.Status)
	if err != nil {
		return nil, err
	}
	c.metrics = m
	c.publish()
	return c, nil
}

// Close releases the metric registration.
func (c *Controller) Close() error {
	return c.metrics.close()
}

func (c *Controller) newBanks() {
	for _, cat := range core.Categories {
		c.banks[cat] = marker.NewBank(cat, c.settings.PoolSize)
	}
}

// Tick advances the controller by one host frame: scene gate, camera lookup,
// activation key, scan step, fade update.
func (c *Controller) Tick(f Frame) {
	c.now = f.Time
	defer c.publish()

	if !c.sceneActive {
		return
	}
	if c.camera == nil {
		// the camera spawns some time after the scene; the tick that finds it does nothing else
		if cam, ok := c.engine.MainCamera(); ok {
			c.camera = cam
			c.log.Info("Main camera found", "scene", c.scene)
		}
		return
	}

	wasScanning := c.state == core.ScanInProgress
	if c.keyPressed(f.KeysDown) {
		c.press(f.Time)
	}
	if wasScanning && c.state == core.ScanInProgress {
		c.stepScan()
	}
	c.mode.update(c, f.Time)
}

func (c *Controller) keyPressed(keys []string) bool {
	return slices.ContainsFunc(keys, func(k string) bool {
		return strings.EqualFold(k, c.settings.ActivationKey)
	})
}

// Activate acts as if the activation key was pressed at host time now.
// It reports whether the press was acted on.
func (c *Controller) Activate(now float64) bool {
	c.now = now
	defer c.publish()
	return c.press(now)
}

func (c *Controller) press(now float64) bool {
	switch {
	case !c.sceneActive || c.camera == nil:
		c.log.Debug("Activation ignored, overlay not ready", "scene", c.scene, "cameraReady", c.camera != nil)
		return false
	case c.state == core.ScanInProgress:
		c.log.Debug("Activation ignored, scan in progress")
		return false
	}
	c.mode.activate(c, now)
	return true
}

// Deactivate cancels any scan and returns every marker to its pool.
func (c *Controller) Deactivate() {
	defer c.publish()
	c.clear()
}

// CancelScan stops an in-flight scan and releases the markers it placed.
// It reports whether a scan was running.
func (c *Controller) CancelScan() bool {
	defer c.publish()
	return c.cancelScan()
}

func (c *Controller) cancelScan() bool {
	if c.state != core.ScanInProgress {
		return false
	}
	c.task.Cancel()
	c.finishScan(true)
	c.returnAll()
	c.state = core.Idle
	return true
}

// clear is the common path of mode, color and scene changes.
func (c *Controller) clear() {
	c.cancelScan()
	c.mode.leave(c)
	c.returnAll()
	c.state = core.Idle
}

func (c *Controller) startScan(now float64) {
	c.returnAll()
	c.setAlpha(1)
	c.lastScanTime = now
	c.state = core.ScanInProgress

	focal := c.camera.Position()
	c.report = &core.ScanReport{
		ID:        uuid.New(),
		Scene:     c.scene,
		Mode:      c.mode.mode(),
		ScanMode:  c.settings.ScanMode,
		Focal:     focal,
		StartedAt: now,
	}
	c.log.Debug("Scan started", "focal", focal.String(), "scanMode", c.settings.ScanMode.String())

	if c.settings.ScanMode == core.Immediate {
		start := c.clock()
		c.planner.Each(focal, c.visitFn)
		c.report.Wall = c.clock().Sub(start)
		c.report.Steps = 1
		c.finishScan(false)
		return
	}

	c.task.Start(focal, c.camera, c.visitFn)
	c.stepScan()
}

func (c *Controller) stepScan() {
	start := c.clock()
	done := c.task.Step()
	c.report.Wall += c.clock().Sub(start)
	if done {
		c.report.Steps = c.task.Steps()
		c.report.Visible = c.task.Visible()
		c.report.Hidden = c.task.Hidden()
		c.finishScan(false)
	}
}

// visit classifies one sample and places a marker for a foothold hit.
func (c *Controller) visit(p r3.Vector) {
	r := c.report
	r.Samples++
	res := c.classifier.Classify(p)
	cat, ok := res.Class.Category()
	if !ok {
		r.NoHit++
		return
	}
	if c.banks[cat].Place(res.Point) {
		r.Placed.Add(cat, 1)
	} else {
		r.Dropped.Add(cat, 1)
	}
}

func (c *Controller) finishScan(cancelled bool) {
	r := c.report
	if r == nil {
		return
	}
	c.report = nil
	r.FinishedAt = c.now
	r.Cancelled = cancelled
	if cancelled {
		r.Steps = c.task.Steps()
	} else {
		c.state = core.Displaying
		c.scansRun++
	}

	c.log.Info("Scan finished",
		"id", r.ID.String(),
		"cancelled", cancelled,
		"steps", r.Steps,
		"samples", r.Samples,
		"standable", r.Placed.Standable,
		"nonStandable", r.Placed.NonStandable,
		"dropped", r.Dropped.Total(),
		"wall", r.Wall,
	)
	c.metrics.recordScan(context.Background(), *r)
	for _, rec := range c.recorders {
		rec.Record(*r)
	}
}

func (c *Controller) returnAll() int {
	n := 0
	for _, b := range c.banks {
		n += b.ReturnAll()
	}
	return n
}

func (c *Controller) setAlpha(a float64) {
	for _, b := range c.banks {
		b.SetAlpha(a)
	}
}

// SetMode switches the activation mode, clearing the display.
func (c *Controller) SetMode(m core.Mode) {
	if m == c.mode.mode() {
		return
	}
	defer c.publish()
	c.clear()
	c.mode = newModeStrategy(m)
	c.settings.Mode = m
	c.log.Info("Activation mode changed", "mode", m.String())
}

// SetColors changes the marker colors. While a scene is active the display is
// cleared and only banks whose color changed are rebuilt; otherwise the
// colors apply at the next scene load.
func (c *Controller) SetColors(standable, nonStandable core.Color) {
	c.settings.StandableColor = standable
	c.settings.NonStandableColor = nonStandable
	if !c.sceneActive {
		return
	}
	defer c.publish()
	c.clear()
	for _, b := range c.banks {
		color := c.settings.Color(b.Category())
		if b.Constructed() > 0 && b.Color().SameHue(color) {
			continue
		}
		n := b.Rebuild(color, c.settings.PoolSize, c.builder)
		c.log.Info("Marker pool rebuilt", "category", b.Category().String(), "color", color.String(), "markers", n)
	}
}

// ApplySettings applies a new configuration snapshot.
func (c *Controller) ApplySettings(s Settings) {
	old := c.settings
	c.settings.ActivationKey = s.ActivationKey
	c.settings.ScanMode = s.ScanMode
	c.settings.Debug = s.Debug
	c.settings.ScenePrefixes = slices.Clone(s.ScenePrefixes)

	c.SetMode(s.Mode)

	if err := checkPoolSize(s.PoolSize); err != nil {
		c.log.Warn("Keeping marker pool size", "current", old.PoolSize, "error", err)
		s.PoolSize = old.PoolSize
	}
	if s.PoolSize != old.PoolSize {
		c.settings.PoolSize = s.PoolSize
		c.settings.StandableColor = s.StandableColor
		c.settings.NonStandableColor = s.NonStandableColor
		c.resizePools()
		return
	}
	if s.StandableColor != old.StandableColor || s.NonStandableColor != old.NonStandableColor {
		c.SetColors(s.StandableColor, s.NonStandableColor)
	}
	c.publish()
}

func (c *Controller) resizePools() {
	defer c.publish()
	if !c.sceneActive {
		c.newBanks()
		return
	}
	c.clear()
	c.newBanks()
	c.buildPools()
}

func (c *Controller) buildPools() {
	for _, b := range c.banks {
		b.Rebuild(c.settings.Color(b.Category()), c.settings.PoolSize, c.builder)
	}
	c.log.Info("Marker pools built", "scene", c.scene, "perCategory", c.settings.PoolSize)
}

// OnSceneLoaded handles a scene change: any scan is cancelled, all markers are
// forgotten and the camera is looked up again. Pools are rebuilt when the
// scene is one the overlay runs in.
func (c *Controller) OnSceneLoaded(name string) {
	defer c.publish()
	c.clear()
	for _, b := range c.banks {
		b.Discard()
	}
	c.camera = nil
	c.scene = name
	c.sceneActive = c.settings.SceneActive(name)
	c.log.Info("Scene loaded", "scene", name, "overlay", c.sceneActive)
	if c.sceneActive {
		c.buildPools()
	}
}

// Settings returns the current configuration snapshot.
func (c *Controller) Settings() Settings { return c.settings }

// Mode returns the active activation mode.
func (c *Controller) Mode() core.Mode { return c.mode.mode() }

// State returns the current lifecycle state.
func (c *Controller) State() core.State { return c.state }

// Bank returns the marker bank of cat.
func (c *Controller) Bank(cat core.Category) *marker.Bank { return c.banks[cat] }

// Status returns the last published snapshot. Safe for concurrent use.
func (c *Controller) Status() core.Status {
	if s := c.status.Load(); s != nil {
		return *s
	}
	return core.Status{}
}

func (c *Controller) publish() {
	st := core.Status{
		Scene:        c.scene,
		SceneActive:  c.sceneActive,
		CameraReady:  c.camera != nil,
		Mode:         c.mode.mode(),
		State:        c.state,
		Scanning:     c.state == core.ScanInProgress,
		Alpha:        c.banks[core.Standable].Alpha(),
		Standable:    c.banks[core.Standable].Status(),
		NonStandable: c.banks[core.NonStandable].Status(),
		ScansRun:     c.scansRun,
	}
	if prev := c.status.Load(); prev != nil && *prev == st {
		return
	}
	c.status.Store(&st)
}
