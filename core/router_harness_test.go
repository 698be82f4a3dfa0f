package core

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"reflect"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jellydator/ttlcache/v3"
	"github.com/weftnet/weft/protocol"
	"github.com/weftnet/weft/state"
)

func configureTestConstants() {
	state.RouteExpiryTime = 10 * time.Hour
}

type mockPeer struct {
	addr  netip.Addr
	cost  state.Metric
	alive bool
	sent  []protocol.ControlPacket
}

func newMockPeer(addr string, cost state.Metric) *mockPeer {
	return &mockPeer{
		addr:  netip.MustParseAddr(addr),
		cost:  cost,
		alive: true,
	}
}

func (p *mockPeer) OverlayIp() netip.Addr             { return p.addr }
func (p *mockPeer) LinkCost() state.Metric            { return p.cost }
func (p *mockPeer) Send(pkt protocol.ControlPacket)   { p.sent = append(p.sent, pkt) }
func (p *mockPeer) Alive() bool                       { return p.alive }

func (p *mockPeer) updates() []protocol.Update {
	out := make([]protocol.Update, 0)
	for _, pkt := range p.sent {
		if pkt.Type == protocol.RouteUpdate {
			out = append(out, *pkt.Update)
		}
	}
	return out
}

func (p *mockPeer) seqnoReqs() []protocol.SeqnoReq {
	out := make([]protocol.SeqnoReq, 0)
	for _, pkt := range p.sent {
		if pkt.Type == protocol.SeqnoRequest {
			out = append(out, *pkt.Seqno)
		}
	}
	return out
}

func (p *mockPeer) hasUpdate(t *testing.T, want protocol.Update) {
	t.Helper()
	for _, u := range p.updates() {
		if cmp.Equal(u, want, cmpopts.EquateComparable(netip.Prefix{})) {
			return
		}
	}
	t.Fatalf("expected %s to have received update %+v, got %+v", p.addr, want, p.updates())
}

func (p *mockPeer) clearSent() {
	p.sent = nil
}

func newTestRouter(t *testing.T) *Router {
	configureTestConstants()
	ctx, cancel := context.WithCancelCause(context.Background())
	t.Cleanup(func() { cancel(context.Canceled) })

	dispatch := make(chan func(*state.State) error, 128)
	s := &state.State{
		Modules: make(map[string]state.WeftModule),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			Cfg:             state.LocalCfg{Id: "self"},
			Log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		},
	}
	r := &Router{
		State:     s,
		Table:     NewRoutingTable(),
		Sources:   NewSourceTable(),
		peers:     make(map[netip.Addr]Peer),
		announced: make(map[netip.Prefix]struct{}),
		seqnoDedup: ttlcache.New[state.SourceKey, state.SeqNo](
			ttlcache.WithTTL[state.SourceKey, state.SeqNo](state.SeqnoDedupTTL),
			ttlcache.WithDisableTouchOnHit[state.SourceKey, state.SeqNo](),
		),
	}
	go r.seqnoDedup.Start()
	t.Cleanup(r.seqnoDedup.Stop)
	s.Modules[reflect.TypeOf(r).String()] = r
	return r
}

// addPeers registers the peers and drops the initial full-table push
// so tests only observe the traffic they cause.
func (r *Router) addPeers(peers ...*mockPeer) {
	for _, p := range peers {
		r.AddDirectlyConnectedPeer(p)
	}
	for _, p := range peers {
		p.clearSent()
	}
}

func (r *Router) advertise(p *mockPeer, subnet string, origin state.RouterId, seqno state.SeqNo, metric state.Metric) {
	r.HandlePacket(p.addr, protocol.NewUpdate(protocol.Update{
		Subnet: netip.MustParsePrefix(subnet),
		Router: origin,
		Seqno:  seqno,
		Metric: metric,
	}))
}

func (r *Router) retract(p *mockPeer, subnet string, origin state.RouterId, seqno state.SeqNo) {
	r.advertise(p, subnet, origin, seqno, state.Infinite)
}

func selectedCount(t *RoutingTable, subnet netip.Prefix) int {
	n := 0
	for _, k := range t.Keys() {
		if k.Subnet != subnet {
			continue
		}
		if e, ok := t.Get(k); ok && e.Selected {
			n++
		}
	}
	return n
}
