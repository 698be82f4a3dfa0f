package core

import (
	"net/netip"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/weftnet/weft/protocol"
	"github.com/weftnet/weft/state"
)

// Router owns the routing table, the source table and the set of
// directly connected peers. All mutation happens on the dispatch
// goroutine; the forwarding plane reads through Table.Lookup.
type Router struct {
	*state.State

	Table   *RoutingTable
	Sources *SourceTable

	peers map[netip.Addr]Peer

	selfSeqno state.SeqNo
	announced map[netip.Prefix]struct{}

	seqnoDedup     *ttlcache.Cache[state.SourceKey, state.SeqNo]
	lastStarvation time.Time
}

func (r *Router) Init(s *state.State) error {
	s.Log.Debug("init router")
	r.State = s
	r.Table = NewRoutingTable()
	r.Sources = NewSourceTable()
	r.peers = make(map[netip.Addr]Peer)
	r.announced = make(map[netip.Prefix]struct{})
	for _, prefix := range s.Cfg.Announce {
		r.announced[prefix] = struct{}{}
	}
	r.seqnoDedup = ttlcache.New[state.SourceKey, state.SeqNo](
		ttlcache.WithTTL[state.SourceKey, state.SeqNo](state.SeqnoDedupTTL),
		ttlcache.WithDisableTouchOnHit[state.SourceKey, state.SeqNo](),
	)
	go r.seqnoDedup.Start()

	s.Env.RepeatTask(fullRouteUpdate, state.RouteUpdateDelay)
	s.Env.RepeatTask(sendHellos, state.HelloDelay)
	s.Env.RepeatTask(gcSweep, state.GcDelay)
	s.Env.RepeatTask(checkStarvation, state.StarvationDelay)
	return nil
}

func (r *Router) Cleanup(s *state.State) error {
	r.seqnoDedup.Stop()
	return nil
}

// AddDirectlyConnectedPeer registers a peer as an immediate
// neighbour. No route state is created until its first advertisement;
// we do push our current table at it so it converges quickly. Must be
// called on the dispatch goroutine.
func (r *Router) AddDirectlyConnectedPeer(p Peer) {
	addr := p.OverlayIp()
	r.peers[addr] = p
	r.Log.Info("peer added", "peer", addr)
	r.pushFullTable(p)
}

// RemovePeer drops the handle for addr and retracts every route
// learned from it. The entries are poisoned rather than deleted so
// the retractions propagate before the expiry sweep removes them.
func (r *Router) RemovePeer(addr netip.Addr) {
	if _, ok := r.peers[addr]; !ok {
		return
	}
	delete(r.peers, addr)
	r.Log.Info("peer removed", "peer", addr)

	now := time.Now()
	for _, key := range r.Table.Keys() {
		if key.Neighbour != addr {
			continue
		}
		entry, ok := r.Table.Get(key)
		if !ok || entry.Retracted() {
			continue
		}
		before, had := r.selectedSnapshot(key.Subnet)
		r.Table.Update(key, func(e *RouteEntry) {
			e.Metric = state.Infinite
			e.Advertised = state.Infinite
			e.RetractedAt = now
		})
		r.reselectAndAdvertise(key.Subnet, before, had)
	}
}

// Peers returns the current directly connected peers.
func (r *Router) Peers() []Peer {
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// SendHello sends a zero-body Hello to every directly connected peer.
// Liveness only; no table state is touched.
func (r *Router) SendHello() {
	for _, p := range r.peers {
		p.Send(protocol.NewHello())
	}
}

// Announce starts originating a route for prefix from this router.
func (r *Router) Announce(prefix netip.Prefix) {
	if _, ok := r.announced[prefix]; ok {
		return
	}
	r.announced[prefix] = struct{}{}
	r.broadcastUpdate(protocol.Update{
		Subnet: prefix,
		Router: r.Cfg.Id,
		Seqno:  r.selfSeqno,
		Metric: 0,
	}, netip.Addr{})
}

// HandlePacket dispatches one inbound, already-deframed control
// packet from a known peer. Must be called on the dispatch goroutine.
func (r *Router) HandlePacket(from netip.Addr, pkt protocol.ControlPacket) {
	p, ok := r.peers[from]
	if !ok {
		r.Log.Warn("received packet from unknown neighbour", "from", from)
		return
	}
	switch pkt.Type {
	case protocol.Hello:
		// liveness is tracked by the session collaborator; nothing to
		// do with the table
		if state.DBG_log_router {
			r.Log.Debug("hello", "from", from)
		}
	case protocol.RouteUpdate:
		if pkt.Update != nil {
			r.handleUpdate(p, pkt.Update)
		}
	case protocol.SeqnoRequest:
		if pkt.Seqno != nil {
			r.handleSeqnoRequest(p, pkt.Seqno)
		}
	default:
		r.Log.Warn("received packet of unknown type", "from", from, "type", pkt.Type)
	}
}

func sendHellos(s *state.State) error {
	Get[*Router](s).SendHello()
	return nil
}
