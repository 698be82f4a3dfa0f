package core

import (
	"net/netip"

	"github.com/weftnet/weft/perf"
	"github.com/weftnet/weft/protocol"
	"github.com/weftnet/weft/state"
)

// broadcastUpdate sends one route update to every directly connected
// peer except the one the route was learned from (split horizon).
func (r *Router) broadcastUpdate(upd protocol.Update, learnedFrom netip.Addr) {
	pkt := protocol.NewUpdate(upd)
	for addr, p := range r.peers {
		if learnedFrom.IsValid() && addr == learnedFrom {
			continue
		}
		p.Send(pkt)
		perf.UpdatesSent.Add(1)
	}
}

// pushFullTable unicasts our complete view to one peer: every
// announced prefix plus every selected route not learned from that
// peer.
func (r *Router) pushFullTable(p Peer) {
	for _, upd := range r.selfUpdates() {
		p.Send(protocol.NewUpdate(upd))
		perf.UpdatesSent.Add(1)
	}
	for _, subnet := range r.Table.Subnets() {
		key, entry, ok := r.Table.Selected(subnet)
		if !ok || key.Neighbour == p.OverlayIp() {
			continue
		}
		p.Send(protocol.NewUpdate(protocol.Update{
			Subnet: subnet,
			Router: entry.Source.Router,
			Seqno:  entry.Seqno,
			Metric: entry.Metric,
		}))
		perf.UpdatesSent.Add(1)
	}
}

func (r *Router) selfUpdates() []protocol.Update {
	updates := make([]protocol.Update, 0, len(r.announced))
	for prefix := range r.announced {
		updates = append(updates, protocol.Update{
			Subnet: prefix,
			Router: r.Cfg.Id,
			Seqno:  r.selfSeqno,
			Metric: 0,
		})
	}
	return updates
}

// fullRouteUpdate is the periodic fallback for any missed triggered
// update: push the whole selected table to every peer.
func fullRouteUpdate(s *state.State) error {
	r := Get[*Router](s)
	dbgPrintRouteTable(s)

	for _, upd := range r.selfUpdates() {
		r.broadcastUpdate(upd, netip.Addr{})
	}
	for _, subnet := range r.Table.Subnets() {
		key, entry, ok := r.Table.Selected(subnet)
		if !ok {
			continue
		}
		r.broadcastUpdate(protocol.Update{
			Subnet: subnet,
			Router: entry.Source.Router,
			Seqno:  entry.Seqno,
			Metric: entry.Metric,
		}, key.Neighbour)
	}
	return nil
}
