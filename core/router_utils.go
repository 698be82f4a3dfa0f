package core

import (
	"fmt"
	"net/netip"

	"github.com/weftnet/weft/state"
)

func dbgPrintRouteTable(s *state.State) {
	if !state.DBG_log_route_table {
		return
	}
	r := Get[*Router](s)
	keys := r.Table.Keys()
	if len(keys) != 0 {
		s.Log.Debug("--- route table ---")
	}
	for _, k := range keys {
		e, ok := r.Table.Get(k)
		if !ok {
			continue
		}
		s.Log.Debug(fmt.Sprintf("%s -> %s", k.Subnet, k.Neighbour), "src", e.Source, "met", e.Metric, "seqno", e.Seqno, "sel", e.Selected)
	}
}

func dbgPrintRouteChange(s *state.State, subnet netip.Prefix, before selRoute, had bool, key RouteKey, entry RouteEntry, has bool) {
	if !state.DBG_log_route_changes {
		return
	}
	switch {
	case !had && has:
		s.Log.Debug(fmt.Sprintf("[rc] %s new [%d]%s", subnet, entry.Metric, key.Neighbour))
	case had && !has:
		s.Log.Debug(fmt.Sprintf("[rc] %s lost (was [%d]%s)", subnet, before.entry.Metric, before.key.Neighbour))
	default:
		s.Log.Debug(fmt.Sprintf("[rc] %s via [%d]%s / [%d]%s", subnet, entry.Metric, key.Neighbour, before.entry.Metric, before.key.Neighbour))
	}
}
