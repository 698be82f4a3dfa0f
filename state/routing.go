package state

import (
	"fmt"
	"net/netip"
)

// RouterId identifies the router that originated a route, independent
// of which neighbour relayed it.
type RouterId string

// SeqNo is a 16-bit route sequence number. Comparison is done modulo
// 2^16, so 65535 is considered older than 0.
type SeqNo uint16

// Lt reports whether s is strictly older than o. A gap of exactly
// 32768 is ambiguous and compares as not-older in both directions.
func (s SeqNo) Lt(o SeqNo) bool {
	x := uint16(o) - uint16(s)
	return 0 < x && x < 32768
}

func (s SeqNo) Le(o SeqNo) bool {
	return s == o || s.Lt(o)
}

func (s SeqNo) Gt(o SeqNo) bool {
	return !s.Le(o)
}

func (s SeqNo) Ge(o SeqNo) bool {
	return !s.Lt(o)
}

// Metric is the cost of a route. Infinite marks a retracted route,
// which is kept in the table for a short hold window so the
// retraction itself propagates.
type Metric uint16

const (
	Infinite Metric = 1<<16 - 1
	// MaxMetric is the largest metric that is not a retraction.
	MaxMetric Metric = Infinite - 1
)

func (m Metric) IsInfinite() bool {
	return m == Infinite
}

// Add saturates at MaxMetric. Infinite is absorbing.
func (m Metric) Add(o Metric) Metric {
	if m.IsInfinite() || o.IsInfinite() {
		return Infinite
	}
	return Metric(min(uint32(MaxMetric), uint32(m)+uint32(o)))
}

// SourceKey identifies the origin of a route. Multiple neighbours may
// advertise routes sharing the same source.
type SourceKey struct {
	Subnet netip.Prefix
	Router RouterId
}

func (s SourceKey) String() string {
	return fmt.Sprintf("%s@%s", s.Subnet, s.Router)
}

// FD is a feasibility distance, the yardstick against which new
// advertisements for a source are checked.
type FD struct {
	Seqno  SeqNo
	Metric Metric
}

// ComparePrefix orders prefixes by address bits, then by prefix
// length, giving the route table its canonical scan order.
func ComparePrefix(a, b netip.Prefix) int {
	if c := a.Addr().Compare(b.Addr()); c != 0 {
		return c
	}
	switch {
	case a.Bits() < b.Bits():
		return -1
	case a.Bits() > b.Bits():
		return 1
	}
	return 0
}
