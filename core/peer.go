package core

import (
	"net/netip"

	"github.com/weftnet/weft/protocol"
	"github.com/weftnet/weft/state"
)

// Peer is the routing core's handle to a directly connected neighbour
// session. The transport layer owns the session's I/O lifecycle; the
// router only queries identity and link cost, and enqueues outbound
// control packets. Send must never block the caller; backpressure from
// a slow peer is the transport's problem.
type Peer interface {
	// OverlayIp is the neighbour's stable overlay address, used as its
	// identity and ordering key in the route table.
	OverlayIp() netip.Addr

	// LinkCost is the current cost of the direct link to this
	// neighbour, as computed by the link-quality collaborator.
	LinkCost() state.Metric

	// Send enqueues one control packet towards the neighbour.
	Send(pkt protocol.ControlPacket)

	// Alive reports whether the underlying session is still up. Once
	// false, the router retracts everything learned from this peer and
	// drops its handle.
	Alive() bool
}
