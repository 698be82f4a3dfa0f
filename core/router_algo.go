package core

import (
	"net/netip"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/weftnet/weft/perf"
	"github.com/weftnet/weft/protocol"
	"github.com/weftnet/weft/state"
)

// This file follows the route acquisition, selection and starvation
// rules of RFC 8966 (Babel), adapted to a per-(subnet, neighbour)
// route table.

type selRoute struct {
	key   RouteKey
	entry RouteEntry
}

func (r *Router) selectedSnapshot(subnet netip.Prefix) (selRoute, bool) {
	key, entry, ok := r.Table.Selected(subnet)
	if !ok {
		return selRoute{}, false
	}
	return selRoute{key: key, entry: entry}, true
}

func (r *Router) feasibleEntry(e RouteEntry) bool {
	return r.Sources.Feasible(e.Source, e.Seqno, e.Advertised)
}

// handleUpdate ingests one route advertisement from a neighbour.
func (r *Router) handleUpdate(from Peer, upd *protocol.Update) {
	perf.UpdatesReceived.Add(1)
	if _, own := r.announced[upd.Subnet]; own {
		// we originate this prefix and reach it locally; a
		// neighbour's claim about it must never be selected
		return
	}
	now := time.Now()
	key := RouteKey{Subnet: upd.Subnet, Neighbour: from.OverlayIp()}
	src := state.SourceKey{Subnet: upd.Subnet, Router: upd.Router}
	before, had := r.selectedSnapshot(upd.Subnet)

	if upd.Metric.IsInfinite() {
		// a retraction of a route we do not know about is ignored
		if _, ok := r.Table.Get(key); !ok {
			return
		}
		r.Table.Update(key, func(e *RouteEntry) {
			e.Source = src
			e.Seqno = upd.Seqno
			e.Metric = state.Infinite
			e.Advertised = state.Infinite
			e.RetractedAt = now
		})
		r.reselectAndAdvertise(upd.Subnet, before, had)
		return
	}

	// Feasibility is checked against the metric as advertised, while
	// the source table records the full cost through this neighbour.
	// The positive hop cost keeps a route feasible against the
	// distance it established itself.
	metric := upd.Metric.Add(from.LinkCost()).Add(state.HopCost)
	feasible := r.Sources.Feasible(src, upd.Seqno, upd.Metric)

	// the claim is recorded either way; infeasible advertisements are
	// visible in the table but excluded from selection
	r.Table.Insert(key, RouteEntry{
		Source:     src,
		Neighbour:  key.Neighbour,
		Metric:     metric,
		Advertised: upd.Metric,
		Seqno:      upd.Seqno,
		ExpiresAt:  now.Add(state.RouteExpiryTime),
	})
	r.Sources.Refresh(src, now)

	if feasible {
		r.Sources.Update(src, state.FD{Seqno: upd.Seqno, Metric: metric}, now)
	} else {
		perf.InfeasibleUpdates.Add(1)
		if state.DBG_log_router {
			r.Log.Debug("infeasible update", "src", src, "from", key.Neighbour, "seqno", upd.Seqno, "metric", metric)
		}
		if had && before.key == key {
			// unfeasible update for the route we currently forward
			// through: ask the origin for a newer seqno before the
			// route spuriously expires
			fd, ok := r.Sources.FD(src)
			if ok {
				r.sendSeqnoRequest(from, src, fd.Seqno+1, state.SeqnoRequestHopCount)
			}
		}
	}

	r.reselectAndAdvertise(upd.Subnet, before, had)
}

// reselectAndAdvertise re-runs selection for subnet and, if the
// selected route changed, sends a triggered update so neighbours
// converge without waiting for the periodic push.
func (r *Router) reselectAndAdvertise(subnet netip.Prefix, before selRoute, had bool) {
	key, entry, has := r.Table.Reselect(subnet, r.feasibleEntry)

	changed := had != has ||
		(had && has && (before.key.Neighbour != key.Neighbour ||
			before.entry.Metric != entry.Metric ||
			before.entry.Source.Router != entry.Source.Router))
	if !changed {
		return
	}
	perf.RouteChanges.Add(1)
	dbgPrintRouteChange(r.State, subnet, before, had, key, entry, has)

	if has {
		r.broadcastUpdate(protocol.Update{
			Subnet: subnet,
			Router: entry.Source.Router,
			Seqno:  entry.Seqno,
			Metric: entry.Metric,
		}, key.Neighbour)
	} else {
		// newly unreachable: poison the route at our neighbours
		r.Log.Info("no feasible route", "subnet", subnet)
		r.broadcastUpdate(protocol.Update{
			Subnet: subnet,
			Router: before.entry.Source.Router,
			Seqno:  before.entry.Seqno,
			Metric: state.Infinite,
		}, netip.Addr{})
	}
}

// handleSeqnoRequest serves or forwards a request for a newer
// sequence number.
func (r *Router) handleSeqnoRequest(from Peer, req *protocol.SeqnoReq) {
	if _, ok := r.announced[req.Subnet]; ok && req.Router == r.Cfg.Id {
		// we are the origin: bump our seqno so stale feasibility
		// distances downstream become passable again
		if r.selfSeqno.Lt(req.Seqno) {
			r.selfSeqno = req.Seqno
		}
		r.broadcastUpdate(protocol.Update{
			Subnet: req.Subnet,
			Router: r.Cfg.Id,
			Seqno:  r.selfSeqno,
			Metric: 0,
		}, netip.Addr{})
		return
	}

	sel, ok := r.selectedSnapshot(req.Subnet)
	if !ok {
		return
	}
	entry := sel.entry
	if entry.Source.Router != req.Router || entry.Seqno.Ge(req.Seqno) {
		// our selected route already satisfies the request
		if !entry.Metric.IsInfinite() {
			from.Send(protocol.NewUpdate(protocol.Update{
				Subnet: req.Subnet,
				Router: entry.Source.Router,
				Seqno:  entry.Seqno,
				Metric: entry.Metric,
			}))
			perf.UpdatesSent.Add(1)
		}
		return
	}
	if req.HopCount < 2 {
		return
	}
	// forward towards the next hop of the selected route
	nh, ok := r.peers[sel.key.Neighbour]
	if !ok || sel.key.Neighbour == from.OverlayIp() {
		return
	}
	r.sendSeqnoRequest(nh, state.SourceKey{Subnet: req.Subnet, Router: req.Router}, req.Seqno, req.HopCount-1)
}

func (r *Router) sendSeqnoRequest(to Peer, src state.SourceKey, seqno state.SeqNo, hopCount uint8) {
	if !r.markSeqnoRequest(src, seqno) {
		return
	}
	r.pushSeqnoRequest(to, src, seqno, hopCount)
}

// markSeqnoRequest records that a request for (src, seqno) is being
// sent and reports whether it should go out at all, suppressing
// repeats of an equivalent request within the dedup window.
func (r *Router) markSeqnoRequest(src state.SourceKey, seqno state.SeqNo) bool {
	if prev := r.seqnoDedup.Get(src); prev != nil && prev.Value().Ge(seqno) {
		return false
	}
	r.seqnoDedup.Set(src, seqno, ttlcache.DefaultTTL)
	return true
}

func (r *Router) pushSeqnoRequest(to Peer, src state.SourceKey, seqno state.SeqNo, hopCount uint8) {
	to.Send(protocol.NewSeqnoReq(protocol.SeqnoReq{
		Subnet:   src.Subnet,
		Router:   src.Router,
		Seqno:    seqno,
		HopCount: hopCount,
	}))
	perf.SeqnoRequestsSent.Add(1)
}

// checkStarvation broadcasts seqno requests for destinations that
// still appear in the table but have lost all feasible routes.
func checkStarvation(s *state.State) error {
	r := Get[*Router](s)
	if time.Since(r.lastStarvation) < state.StarvationDelay {
		return nil
	}
	starved := false
	for _, subnet := range r.Table.Subnets() {
		if _, own := r.announced[subnet]; own {
			continue
		}
		if _, _, ok := r.Table.Selected(subnet); ok {
			continue
		}
		starved = true
		for _, key := range r.Table.Keys() {
			if key.Subnet != subnet {
				continue
			}
			entry, ok := r.Table.Get(key)
			if !ok {
				continue
			}
			fd, ok := r.Sources.FD(entry.Source)
			if !ok {
				continue
			}
			if !r.markSeqnoRequest(entry.Source, fd.Seqno+1) {
				continue
			}
			for _, p := range r.peers {
				r.pushSeqnoRequest(p, entry.Source, fd.Seqno+1, state.SeqnoRequestHopCount)
			}
		}
	}
	if starved {
		r.lastStarvation = time.Now()
	}
	return nil
}

// gcSweep applies the timer-driven state transitions: dead peers are
// torn down, silent routes become implicit retractions, retracted
// routes past their hold window are removed, and orphaned sources are
// pruned.
func gcSweep(s *state.State) error {
	r := Get[*Router](s)
	now := time.Now()

	for addr, p := range r.peers {
		if !p.Alive() {
			r.RemovePeer(addr)
		}
	}

	// silent neighbours: unrefreshed advertisements turn into
	// retractions so a stale route cannot stay selected indefinitely
	for _, key := range r.Table.Keys() {
		entry, ok := r.Table.Get(key)
		if !ok || entry.Retracted() || now.Before(entry.ExpiresAt) {
			continue
		}
		before, had := r.selectedSnapshot(key.Subnet)
		r.Table.Update(key, func(e *RouteEntry) {
			e.Metric = state.Infinite
			e.Advertised = state.Infinite
			e.RetractedAt = now
		})
		r.Log.Debug("route expired", "subnet", key.Subnet, "neighbour", key.Neighbour)
		r.reselectAndAdvertise(key.Subnet, before, had)
	}

	// drop retractions that have been held long enough to propagate
	r.Table.Retain(func(k RouteKey, e *RouteEntry) bool {
		return !e.Retracted() || now.Sub(e.RetractedAt) <= state.RetractionHoldTime
	})

	referenced := make(map[state.SourceKey]struct{})
	for _, key := range r.Table.Keys() {
		if entry, ok := r.Table.Get(key); ok {
			referenced[entry.Source] = struct{}{}
		}
	}
	r.Sources.Prune(func(src state.SourceKey) bool {
		_, ok := referenced[src]
		return ok
	}, now)

	r.seqnoDedup.DeleteExpired()
	return nil
}
