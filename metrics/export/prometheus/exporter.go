package prometheus

import (
	"bytes"
	"net/http"
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/MrEthical07/storeauth"
	"github.com/MrEthical07/storeauth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() storeauth.MetricsSnapshot
	AuditDropped() uint64
}

const auditDroppedName = "storeauth_audit_dropped_total"

type counterDesc struct {
	id   storeauth.MetricID
	desc *prom.Desc
}

type histogramDesc struct {
	id   storeauth.MetricID
	desc *prom.Desc
}

// Exporter is a [prom.Collector] over a store's metrics snapshot. It owns a
// private registry; it can also be registered into a caller's registry.
type Exporter struct {
	source       metricsSource
	registry     *prom.Registry
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped *prom.Desc
	bounds       []float64
}

// NewExporter reads metrics from store.
func NewExporter(store *storeauth.Store) *Exporter {
	return NewExporterFromSource(store)
}

// NewExporterFromSource reads metrics from any snapshot source.
func NewExporterFromSource(source metricsSource) *Exporter {
	e := &Exporter{
		source:       source,
		registry:     prom.NewRegistry(),
		auditDropped: prom.NewDesc(auditDroppedName, "Audit events dropped by a full dispatcher buffer.", nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters = append(e.counters, counterDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histograms = append(e.histograms, histogramDesc{id: def.ID, desc: prom.NewDesc(def.Name, def.Help, nil, nil)})
	}
	// The last bound is +Inf, which client_golang adds itself.
	for _, le := range internaldefs.HistogramBounds[:len(internaldefs.HistogramBounds)-1] {
		v, err := strconv.ParseFloat(le, 64)
		if err != nil {
			panic("prometheus: bad histogram bound " + le)
		}
		e.bounds = append(e.bounds, v)
	}
	e.registry.MustRegister(e)
	return e
}

// Describe implements [prom.Collector].
func (e *Exporter) Describe(ch chan<- *prom.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
	for _, h := range e.histograms {
		ch <- h.desc
	}
	ch <- e.auditDropped
}

// Collect implements [prom.Collector]. Nothing is collected while the
// store's metrics are disabled and no audit event was dropped.
func (e *Exporter) Collect(ch chan<- prom.Metric) {
	if e.source == nil {
		return
	}
	snap := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, c := range e.counters {
		ch <- prom.MustNewConstMetric(c.desc, prom.CounterValue, float64(snap.Counters[c.id]))
	}
	for _, h := range e.histograms {
		raw, ok := snap.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(e.bounds))
		for i, le := range e.bounds {
			buckets[le] = cumulative[i]
		}
		// Only bucket counts are kept, so the sum is reported as 0.
		ch <- prom.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}
	ch <- prom.MustNewConstMetric(e.auditDropped, prom.CounterValue, float64(dropped))
}

// Handler serves the exporter's registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Render returns the current text exposition, or "" when nothing is
// collected.
func (e *Exporter) Render() string {
	if e == nil {
		return ""
	}
	families, err := e.registry.Gather()
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return ""
		}
	}
	return buf.String()
}
