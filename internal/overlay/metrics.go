package overlay

import (
	"context"
	"fmt"

	"github.com/foothold/extension/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/foothold/extension/internal/overlay"

var categoryAttrs = [...]attribute.Set{
	core.Standable:    attribute.NewSet(attribute.String("category", core.Standable.String())),
	core.NonStandable: attribute.NewSet(attribute.String("category", core.NonStandable.String())),
}

type metrics struct {
	scans   metric.Int64Counter
	dropped metric.Int64Counter
	steps   metric.Int64Histogram
	reg     metric.Registration
}

// newMetrics creates the controller instruments. The gauges are observed from
// the published status snapshot, so collection never touches live pools.
func newMetrics(m metric.Meter, snapshot func() core.Status) (*metrics, error) {
	var (
		out metrics
		err error
	)

	out.scans, err = m.Int64Counter("overlay.scans.completed",
		metric.WithDescription("Scans that ran to completion"))
	if err != nil {
		return nil, fmt.Errorf("creating scans counter: %w", err)
	}

	out.dropped, err = m.Int64Counter("overlay.markers.dropped",
		metric.WithDescription("Classified samples not shown because the pool was empty"))
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	out.steps, err = m.Int64Histogram("overlay.scan.steps",
		metric.WithDescription("Ticks a scan needed to complete"))
	if err != nil {
		return nil, fmt.Errorf("creating steps histogram: %w", err)
	}

	poolSize, err := m.Int64ObservableGauge("overlay.pool.size",
		metric.WithDescription("Idle markers per category"))
	if err != nil {
		return nil, fmt.Errorf("creating pool gauge: %w", err)
	}
	activeSize, err := m.Int64ObservableGauge("overlay.active.size",
		metric.WithDescription("Displayed markers per category"))
	if err != nil {
		return nil, fmt.Errorf("creating active gauge: %w", err)
	}

	out.reg, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		st := snapshot()
		for _, cat := range core.Categories {
			ps := st.Pool(cat)
			o.ObserveInt64(poolSize, int64(ps.Pool), metric.WithAttributeSet(categoryAttrs[cat]))
			o.ObserveInt64(activeSize, int64(ps.Active), metric.WithAttributeSet(categoryAttrs[cat]))
		}
		return nil
	}, poolSize, activeSize)
	if err != nil {
		return nil, fmt.Errorf("registering gauge callback: %w", err)
	}

	return &out, nil
}

func (m *metrics) recordScan(ctx context.Context, r core.ScanReport) {
	if r.Cancelled {
		return
	}
	m.scans.Add(ctx, 1)
	m.steps.Record(ctx, int64(r.Steps))
	for _, cat := range core.Categories {
		if n := r.Dropped.Get(cat); n > 0 {
			m.dropped.Add(ctx, int64(n), metric.WithAttributeSet(categoryAttrs[cat]))
		}
	}
}

func (m *metrics) close() error {
	if m.reg == nil {
		return nil
	}
	return m.reg.Unregister()
}
