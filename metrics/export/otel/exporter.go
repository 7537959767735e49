package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/rolegate"
	"github.com/MrEthical07/rolegate/metrics/export/internaldefs"
	"github.com/MrEthical07/rolegate/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNilMeter and ErrNilSource are returned by the constructors.
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is what the exporter reads on each collection.
type MetricsSource interface {
	MetricsSnapshot() rolegate.MetricsSnapshot
	AuditDropped() uint64
}

// member is one engine counter inside a family, told apart by the value of
// the family's attribute.
type member struct {
	id    rolegate.MetricID
	value string
}

// family is one observable counter. Engine counters that describe outcomes
// of the same operation share an instrument and differ by attribute.
type family struct {
	name    string
	help    string
	attr    string
	members []member
}

var families = []family{
	{
		name: "rolegate.sign_in", help: "Sign-in attempts by outcome.", attr: "outcome",
		members: []member{
			{rolegate.MetricSignInSuccess, "success"},
			{rolegate.MetricSignInFailure, "failure"},
			{rolegate.MetricSignInRateLimited, "rate_limited"},
		},
	},
	{
		name: "rolegate.session.revalidations", help: "Session revalidations by resulting status.", attr: "status",
		members: []member{
			{rolegate.MetricRevalidateValid, string(session.StatusOK)},
			{rolegate.MetricRevalidateRequiresLogout, string(session.StatusRequiresLogout)},
			{rolegate.MetricRevalidateInvalid, string(session.StatusUnauthenticated)},
		},
	},
	{
		name: "rolegate.session.tokens", help: "Session token lifecycle events.", attr: "event",
		members: []member{
			{rolegate.MetricMint, "minted"},
			{rolegate.MetricTokenRejected, "rejected"},
			{rolegate.MetricTokenReissued, "reissued"},
		},
	},
	{
		name: "rolegate.admin.operations", help: "Role and identity administration.", attr: "operation",
		members: []member{
			{rolegate.MetricRoleCreated, "role_created"},
			{rolegate.MetricPermissionsReplaced, "permissions_replaced"},
			{rolegate.MetricRoleDeleted, "role_deleted"},
			{rolegate.MetricRoleDeleteRejected, "role_delete_rejected"},
			{rolegate.MetricRoleAssigned, "role_assigned"},
			{rolegate.MetricIdentityCreated, "identity_created"},
			{rolegate.MetricIdentityDisabled, "identity_disabled"},
			{rolegate.MetricIdentityDeleted, "identity_deleted"},
		},
	},
	{
		name: "rolegate.authorization.denials", help: "Permission checks that denied.",
		members: []member{{id: rolegate.MetricAuthorizationDenied}},
	},
	{
		name: "rolegate.password.rehashes", help: "Password hashes upgraded on sign-in.",
		members: []member{{id: rolegate.MetricPasswordRehashed}},
	},
}

type observation struct {
	id   rolegate.MetricID
	opts []metric.ObserveOption
}

type observedFamily struct {
	instrument metric.Int64ObservableCounter
	series     []observation
}

type observedLatency struct {
	id      rolegate.MetricID
	buckets metric.Int64ObservableGauge
	le      [internaldefs.BucketCount][]metric.ObserveOption
	count   metric.Int64ObservableGauge
	sum     metric.Float64ObservableGauge
}

// Exporter holds the instrument registration. Close unregisters it.
type Exporter struct {
	source       MetricsSource
	registration metric.Registration
	families     []observedFamily
	latency      []observedLatency
	auditDropped metric.Int64ObservableCounter
}

// NewExporter registers instruments reading from engine.
func NewExporter(meter metric.Meter, engine *rolegate.Engine) (*Exporter, error) {
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource registers instruments reading from source.
func NewExporterFromSource(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var observables []metric.Observable

	for _, f := range families {
		ins, err := meter.Int64ObservableCounter(f.name, metric.WithDescription(f.help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", f.name, err)
		}
		of := observedFamily{instrument: ins}
		for _, m := range f.members {
			obs := observation{id: m.id}
			if f.attr != "" {
				obs.opts = []metric.ObserveOption{metric.WithAttributes(attribute.String(f.attr, m.value))}
			}
			of.series = append(of.series, obs)
		}
		e.families = append(e.families, of)
		observables = append(observables, ins)
	}

	labels := internaldefs.BoundLabels()
	for _, def := range internaldefs.HistogramDefs {
		l, err := newObservedLatency(meter, def, labels)
		if err != nil {
			return nil, err
		}
		e.latency = append(e.latency, l)
		observables = append(observables, l.buckets, l.count, l.sum)
	}

	auditDropped, err := meter.Int64ObservableCounter("rolegate.audit.dropped",
		metric.WithDescription("Audit events dropped under dispatcher backpressure."))
	if err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	e.auditDropped = auditDropped
	observables = append(observables, auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func newObservedLatency(meter metric.Meter, def internaldefs.HistogramDef, labels []string) (observedLatency, error) {
	const base = "rolegate.session.revalidate.latency"
	l := observedLatency{id: def.ID}

	var err error
	if l.buckets, err = meter.Int64ObservableGauge(base+".bucket",
		metric.WithDescription("Cumulative "+def.Help+" bucket counts by upper bound.")); err != nil {
		return l, fmt.Errorf("create latency buckets: %w", err)
	}
	if l.count, err = meter.Int64ObservableGauge(base+".count",
		metric.WithDescription(def.Help+" sample count.")); err != nil {
		return l, fmt.Errorf("create latency count: %w", err)
	}
	if l.sum, err = meter.Float64ObservableGauge(base+".sum",
		metric.WithDescription(def.Help+" sample sum."), metric.WithUnit("s")); err != nil {
		return l, fmt.Errorf("create latency sum: %w", err)
	}
	for i, le := range labels {
		l.le[i] = []metric.ObserveOption{metric.WithAttributes(attribute.String("le", le))}
	}
	return l, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, f := range e.families {
		for _, s := range f.series {
			o.ObserveInt64(f.instrument, int64(snapshot.Counters[s.id]), s.opts...)
		}
	}
	for _, l := range e.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[l.id]))
		for i, v := range cumulative {
			o.ObserveInt64(l.buckets, int64(v), l.le[i]...)
		}
		o.ObserveInt64(l.count, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(l.sum, snapshot.Sums[l.id].Seconds())
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
