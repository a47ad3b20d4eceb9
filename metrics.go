package packetio

import "github.com/docker/go-metrics"

var (
	chunksBorrowed    metrics.Counter
	chunksAllocated   metrics.Counter
	chunksRecycled    metrics.Counter
	chunksDiscarded   metrics.Counter
	chunksOutstanding metrics.Gauge
)

func init() {
	ns := metrics.NewNamespace("packetio", "pool", nil)
	chunksBorrowed = ns.NewCounter("chunks_borrowed", "The number of chunks handed out by pools")
	chunksAllocated = ns.NewCounter("chunks_allocated", "The number of chunks allocated because no idle chunk was available")
	chunksRecycled = ns.NewCounter("chunks_recycled", "The number of chunks returned to an idle list")
	chunksDiscarded = ns.NewCounter("chunks_discarded", "The number of chunks dropped because the idle list was full")
	chunksOutstanding = ns.NewGauge("chunks_outstanding", "The number of chunks currently borrowed", metrics.Unit("chunks"))
	metrics.Register(ns)
}
