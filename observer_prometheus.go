package flight

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type prometheusObserver struct {
	opsTotal   *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
}

// NewPrometheusObserver registers flight_ops_total and
// flight_op_duration_seconds with reg and returns an observer feeding them.
// @group Observability
func NewPrometheusObserver(reg prometheus.Registerer) Observer {
	o := &prometheusObserver{
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flight_ops_total",
			Help: "Total number of flight operations",
		}, []string{"op", "hit", "success"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flight_op_duration_seconds",
			Help:    "Flight operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(o.opsTotal, o.opDuration)
	return o
}

func (o *prometheusObserver) OnFlightOp(_ context.Context, op string, _ string, hit bool, err error, dur time.Duration) {
	o.opsTotal.WithLabelValues(op, strconv.FormatBool(hit), strconv.FormatBool(err == nil)).Inc()
	o.opDuration.WithLabelValues(op).Observe(dur.Seconds())
}
