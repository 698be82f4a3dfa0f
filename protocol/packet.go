// Package protocol defines the in-memory model of weft control
// traffic. The on-wire framing of these packets is owned by the
// transport layer; the routing core only constructs and consumes the
// values defined here.
package protocol

import (
	"net/netip"

	"github.com/weftnet/weft/state"
)

type ControlPacketType uint8

const (
	Hello ControlPacketType = iota
	RouteUpdate
	SeqnoRequest
)

func (t ControlPacketType) String() string {
	switch t {
	case Hello:
		return "hello"
	case RouteUpdate:
		return "update"
	case SeqnoRequest:
		return "seqno-request"
	}
	return "unknown"
}

// ControlPacket is a single control message exchanged with a directly
// connected peer. Exactly the body matching Type is set; Hello has no
// body.
type ControlPacket struct {
	Type   ControlPacketType
	Update *Update
	Seqno  *SeqnoReq
}

// Update advertises (or, with an infinite metric, retracts) one route.
type Update struct {
	Subnet netip.Prefix
	Router state.RouterId
	Seqno  state.SeqNo
	Metric state.Metric
}

// SeqnoReq asks the origin of a route to bump its sequence number so
// stale feasibility distances can be invalidated network-wide.
type SeqnoReq struct {
	Subnet   netip.Prefix
	Router   state.RouterId
	Seqno    state.SeqNo
	HopCount uint8
}

func NewHello() ControlPacket {
	return ControlPacket{Type: Hello}
}

func NewUpdate(u Update) ControlPacket {
	return ControlPacket{Type: RouteUpdate, Update: &u}
}

func NewSeqnoReq(r SeqnoReq) ControlPacket {
	return ControlPacket{Type: SeqnoRequest, Seqno: &r}
}
