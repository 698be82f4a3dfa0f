package core

import (
	"time"

	"github.com/weftnet/weft/state"
)

// SourceTable maps a route's origin to the best feasibility distance
// ever recorded for it. Entries are created lazily on the first
// advertisement for a source and only ever improve, which is what
// keeps the feasibility condition loop-free.
type SourceTable struct {
	sources map[state.SourceKey]*sourceEntry
}

type sourceEntry struct {
	fd        state.FD
	refreshed time.Time
}

func NewSourceTable() *SourceTable {
	return &SourceTable{
		sources: make(map[state.SourceKey]*sourceEntry),
	}
}

// FD returns the current feasibility distance for src, if one was
// ever recorded.
func (st *SourceTable) FD(src state.SourceKey) (state.FD, bool) {
	e, ok := st.sources[src]
	if !ok {
		return state.FD{}, false
	}
	return e.fd, true
}

// Feasible implements the feasibility condition: an advertisement is
// feasible when it is strictly newer than the recorded distance, or
// equally recent with a strictly smaller metric. A source never heard
// of is always feasible.
func (st *SourceTable) Feasible(src state.SourceKey, seqno state.SeqNo, metric state.Metric) bool {
	e, ok := st.sources[src]
	if !ok {
		return true
	}
	if e.fd.Seqno.Lt(seqno) {
		return true
	}
	return e.fd.Seqno == seqno && metric < e.fd.Metric
}

// Update records fd for src if it is an improvement and reports
// whether the record changed. A retraction never lowers the
// feasibility distance.
func (st *SourceTable) Update(src state.SourceKey, fd state.FD, now time.Time) bool {
	if fd.Metric.IsInfinite() {
		return false
	}
	e, ok := st.sources[src]
	if !ok {
		st.sources[src] = &sourceEntry{fd: fd, refreshed: now}
		return true
	}
	e.refreshed = now
	if e.fd.Seqno.Lt(fd.Seqno) {
		e.fd = fd
		return true
	}
	if e.fd.Seqno == fd.Seqno && fd.Metric < e.fd.Metric {
		e.fd.Metric = fd.Metric
		return true
	}
	return false
}

// Refresh marks src as still referenced by a live route.
func (st *SourceTable) Refresh(src state.SourceKey, now time.Time) {
	if e, ok := st.sources[src]; ok {
		e.refreshed = now
	}
}

// Prune garbage-collects sources that are no longer referenced by any
// live route entry and whose retention window has elapsed.
func (st *SourceTable) Prune(referenced func(state.SourceKey) bool, now time.Time) {
	for src, e := range st.sources {
		if referenced(src) {
			e.refreshed = now
			continue
		}
		if now.Sub(e.refreshed) > state.SourceRetentionTime {
			delete(st.sources, src)
		}
	}
}

func (st *SourceTable) Len() int {
	return len(st.sources)
}
