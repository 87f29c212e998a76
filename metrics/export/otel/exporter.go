package otel

import (
	"context"
	"errors"
	"fmt"

	portfolioAuth "github.com/MrEthical07/portfolioAuth"
	"github.com/MrEthical07/portfolioAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source supplies metric snapshots. *portfolioAuth.Engine implements it.
type Source interface {
	MetricsSnapshot() portfolioAuth.MetricsSnapshot
	AuditDropped() uint64
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithAttributes adds constant attributes, such as a deployment or instance
// name, to every observation.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(e *Exporter) {
		e.common = append(e.common, attrs...)
	}
}

// latency is one engine histogram exposed as a bucket gauge keyed by the
// "le" attribute plus a sample count gauge.
type latency struct {
	id      portfolioAuth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	bounds  [internaldefs.BucketCount]metric.MeasurementOption
}

// Exporter keeps the callback registration alive until Close.
type Exporter struct {
	source       Source
	common       []attribute.KeyValue
	base         metric.MeasurementOption
	counters     map[portfolioAuth.MetricID]metric.Int64ObservableCounter
	latencies    []latency
	auditDropped metric.Int64ObservableCounter
	registration metric.Registration
}

// New creates the instruments on meter and observes source on every
// collection.
func New(meter metric.Meter, source Source, opts ...Option) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[portfolioAuth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.base = metric.WithAttributeSet(attribute.NewSet(e.common...))

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		observables = append(observables, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		l, err := e.newLatency(meter, def)
		if err != nil {
			return nil, err
		}
		e.latencies = append(e.latencies, l)
		observables = append(observables, l.buckets, l.count)
	}

	dropped, err := meter.Int64ObservableCounter(
		"portfolioauth_audit_dropped_total",
		metric.WithDescription("Audit events that never reached the sink."),
	)
	if err != nil {
		return nil, fmt.Errorf("counter portfolioauth_audit_dropped_total: %w", err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) newLatency(meter metric.Meter, def internaldefs.HistogramDef) (latency, error) {
	l := latency{id: def.ID}

	var err error
	l.buckets, err = meter.Int64ObservableGauge(def.Name+"_bucket",
		metric.WithDescription(def.Help+" Cumulative count per upper bound."),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return l, fmt.Errorf("gauge %s_bucket: %w", def.Name, err)
	}
	l.count, err = meter.Int64ObservableGauge(def.Name+"_count",
		metric.WithDescription(def.Help+" Total samples."),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return l, fmt.Errorf("gauge %s_count: %w", def.Name, err)
	}

	for i, le := range internaldefs.HistogramBounds {
		attrs := append([]attribute.KeyValue{attribute.String("le", le)}, e.common...)
		l.bounds[i] = metric.WithAttributeSet(attribute.NewSet(attrs...))
	}
	return l, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for id, c := range e.counters {
		o.ObserveInt64(c, int64(snapshot.Counters[id]), e.base)
	}
	for _, l := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[l.id]))
		for i, v := range cumulative {
			o.ObserveInt64(l.buckets, int64(v), l.bounds[i])
		}
		o.ObserveInt64(l.count, int64(cumulative[internaldefs.BucketCount-1]), e.base)
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()), e.base)
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
