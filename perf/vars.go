package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency   = metric.NewHistogram("1m1s")
	UpdatesSent       = metric.NewCounter("10s1s")
	UpdatesReceived   = metric.NewCounter("10s1s")
	InfeasibleUpdates = metric.NewCounter("10s1s")
	RouteChanges      = metric.NewCounter("10s1s")
	SeqnoRequestsSent = metric.NewCounter("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("weft:Updates/s sent", UpdatesSent)
	expvar.Publish("weft:Updates/s received", UpdatesReceived)
	expvar.Publish("weft:InfeasibleUpdates/s", InfeasibleUpdates)
	expvar.Publish("weft:RouteChanges/s", RouteChanges)
	expvar.Publish("weft:SeqnoRequests/s sent", SeqnoRequestsSent)
	expvar.Publish("weft:DispatchLatency (µs)", DispatchLatency)
}
