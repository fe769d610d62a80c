package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Packet outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeStale    = "stale"
	OutcomeGap      = "gap"
	OutcomeBuffered = "buffered"
	OutcomeDropped  = "dropped"
)

// Resync reasons.
const (
	ReasonStartup       = "startup"
	ReasonGap           = "gap"
	ReasonSnapshotError = "snapshot_error"
	ReasonSnapshotStale = "snapshot_behind"
)

// Feed holds the collectors for book synchronisation. A nil *Feed records
// nothing.
type Feed struct {
	packets   *prometheus.CounterVec
	resyncs   *prometheus.CounterVec
	levels    *prometheus.GaugeVec
	watermark *prometheus.GaugeVec
}

// NewFeed creates the feed collectors and registers them on reg.
func NewFeed(reg prometheus.Registerer) *Feed {
	f := &Feed{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depthbook",
			Name:      "packets_total",
			Help:      "Depth update packets by symbol and outcome.",
		}, []string{"symbol", "outcome"}),
		resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depthbook",
			Name:      "resyncs_total",
			Help:      "Snapshot resynchronisations by symbol and reason.",
		}, []string{"symbol", "reason"}),
		levels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "depthbook",
			Name:      "levels",
			Help:      "Price levels currently held by side.",
		}, []string{"symbol", "side"}),
		watermark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "depthbook",
			Name:      "watermark",
			Help:      "Last update id applied to the book.",
		}, []string{"symbol"}),
	}
	reg.MustRegister(f.packets, f.resyncs, f.levels, f.watermark)
	return f
}

func (f *Feed) Packet(symbol, outcome string) {
	if f == nil {
		return
	}
	f.packets.WithLabelValues(symbol, outcome).Inc()
}

func (f *Feed) Resync(symbol, reason string) {
	if f == nil {
		return
	}
	f.resyncs.WithLabelValues(symbol, reason).Inc()
}

// Book records the shape of a freshly published book.
func (f *Feed) Book(symbol string, bids, asks int, watermark uint64) {
	if f == nil {
		return
	}
	f.levels.WithLabelValues(symbol, "bid").Set(float64(bids))
	f.levels.WithLabelValues(symbol, "ask").Set(float64(asks))
	f.watermark.WithLabelValues(symbol).Set(float64(watermark))
}

// PacketCounter exposes one packets_total series, for tests and dashboards
// that read counters in-process.
func (f *Feed) PacketCounter(symbol, outcome string) prometheus.Counter {
	return f.packets.WithLabelValues(symbol, outcome)
}

func (f *Feed) ResyncCounter(symbol, reason string) prometheus.Counter {
	return f.resyncs.WithLabelValues(symbol, reason)
}

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	log.Debug().Msg("prometheus registry initialised")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
