package state

import "time"

var (
	HopCost = Metric(1) // keep zero-cost links from forming loops

	RouteUpdateDelay = time.Second * 5
	RouteExpiryTime  = 5 * RouteUpdateDelay

	// RetractionHoldTime is how long a retracted route lingers in the
	// table so the retraction itself reaches our neighbours before the
	// entry is dropped.
	RetractionHoldTime = time.Second * 10

	// SourceRetentionTime is how long a feasibility distance outlives
	// the last route that referenced it.
	SourceRetentionTime = time.Second * 60

	GcDelay         = time.Second * 1
	HelloDelay      = time.Second * 2
	StarvationDelay = time.Millisecond * 100

	SeqnoDedupTTL        = time.Second * 3
	SeqnoRequestHopCount = uint8(64)
)

var (
	DBG_log_router        = false
	DBG_log_route_table   = false
	DBG_log_route_changes = false
)
