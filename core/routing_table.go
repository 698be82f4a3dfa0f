package core

import (
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/gaissmai/bart"
	"github.com/weftnet/weft/state"
)

// RouteKey uniquely identifies one advertisement: this neighbour's
// claim about this subnet.
type RouteKey struct {
	Subnet    netip.Prefix
	Neighbour netip.Addr
}

// Compare orders keys by subnet, then by neighbour overlay address.
func (k RouteKey) Compare(o RouteKey) int {
	if c := state.ComparePrefix(k.Subnet, o.Subnet); c != 0 {
		return c
	}
	return k.Neighbour.Compare(o.Neighbour)
}

// RouteEntry is a single advertisement as stored in the route table.
// Metric is the cost of reaching the subnet through Neighbour,
// including the cost of the direct link to that neighbour.
type RouteEntry struct {
	Source    state.SourceKey
	Neighbour netip.Addr
	Metric    state.Metric
	// Advertised is the metric exactly as carried by the neighbour's
	// update, before our own link cost is added. Feasibility is
	// checked against this value while the source table records the
	// full cost, so a selected route can never turn infeasible against
	// the distance it established itself.
	Advertised state.Metric
	Seqno      state.SeqNo
	Selected   bool

	// ExpiresAt is reset on every refresh of this advertisement; an
	// unrefreshed entry is treated as an implicit retraction.
	ExpiresAt time.Time
	// RetractedAt is set when the metric becomes infinite; the entry
	// is held for a short window so the retraction propagates, then
	// removed.
	RetractedAt time.Time
}

// Retracted reports whether this entry has been withdrawn.
func (e *RouteEntry) Retracted() bool {
	return e.Metric.IsInfinite()
}

// RoutingTable stores all known routes, one entry per
// (subnet, neighbour) pair. Mutation happens on the dispatch
// goroutine; Lookup is safe to call concurrently from the forwarding
// path.
type RoutingTable struct {
	mu      sync.RWMutex
	entries map[RouteKey]*RouteEntry
	// forward indexes selected entries only, so a longest-prefix
	// lookup can never resolve to an unselected advertisement.
	forward bart.Table[RouteKey]
}

func NewRoutingTable() *RoutingTable {
	return &RoutingTable{
		entries: make(map[RouteKey]*RouteEntry),
	}
}

// Get returns a copy of the entry for key, if present.
func (t *RoutingTable) Get(key RouteKey) (RouteEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[key]
	if !ok {
		return RouteEntry{}, false
	}
	return *e, true
}

// Insert upserts the entry for key, replacing any prior advertisement
// from the same neighbour for the same subnet. Selection state is
// carried over from the replaced entry; insertion alone never
// re-evaluates which route is selected.
func (t *RoutingTable) Insert(key RouteKey, entry RouteEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.entries[key]; ok {
		entry.Selected = old.Selected
	} else {
		entry.Selected = false
	}
	e := entry
	t.entries[key] = &e
}

// Update applies fn to the entry for key under the table lock and
// reports whether the entry existed.
func (t *RoutingTable) Update(key RouteKey, fn func(*RouteEntry)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return false
	}
	fn(e)
	return true
}

// Remove deletes one advertisement and returns it. If the removed
// entry was selected, the caller must re-run selection for its subnet.
func (t *RoutingTable) Remove(key RouteKey) (RouteEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return RouteEntry{}, false
	}
	delete(t.entries, key)
	if e.Selected {
		t.forward.Delete(key.Subnet)
	}
	return *e, true
}

// Retain keeps only the entries for which the predicate returns true.
// Used for neighbour-session teardown and the periodic expiry sweep.
func (t *RoutingTable) Retain(pred func(RouteKey, *RouteEntry) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, e := range t.entries {
		if pred(k, e) {
			continue
		}
		delete(t.entries, k)
		if e.Selected {
			t.forward.Delete(k.Subnet)
		}
	}
}

// Lookup resolves ip to the selected route whose subnet contains it,
// preferring the longest matching prefix.
func (t *RoutingTable) Lookup(ip netip.Addr) (RouteEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	key, ok := t.forward.Lookup(ip)
	if !ok {
		return RouteEntry{}, false
	}
	e, ok := t.entries[key]
	if !ok {
		return RouteEntry{}, false
	}
	return *e, true
}

// Selected returns the selected entry for subnet, if any.
func (t *RoutingTable) Selected(subnet netip.Prefix) (RouteKey, RouteEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	key, ok := t.forward.Get(subnet)
	if !ok {
		return RouteKey{}, RouteEntry{}, false
	}
	e, ok := t.entries[key]
	if !ok {
		return RouteKey{}, RouteEntry{}, false
	}
	return key, *e, true
}

// Keys returns all route keys in canonical scan order.
func (t *RoutingTable) Keys() []RouteKey {
	t.mu.RLock()
	defer t.mu.RUnlock()
	keys := make([]RouteKey, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, RouteKey.Compare)
	return keys
}

// Subnets returns the distinct subnets present in the table, in
// canonical order.
func (t *RoutingTable) Subnets() []netip.Prefix {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[netip.Prefix]struct{})
	subnets := make([]netip.Prefix, 0)
	for k := range t.entries {
		if _, ok := seen[k.Subnet]; ok {
			continue
		}
		seen[k.Subnet] = struct{}{}
		subnets = append(subnets, k.Subnet)
	}
	slices.SortFunc(subnets, state.ComparePrefix)
	return subnets
}

func (t *RoutingTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Reselect re-runs route selection for one subnet: among the entries
// that are feasible and not retracted, the one with the lowest metric
// wins; ties prefer the currently selected entry to dampen route
// flaps, then the lowest neighbour address for determinism. Exactly
// the winner ends up selected; the critical section is bounded to one
// subnet's entries. Returns the new selected entry, if any.
func (t *RoutingTable) Reselect(subnet netip.Prefix, feasible func(RouteEntry) bool) (RouteKey, RouteEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var bestKey RouteKey
	var best *RouteEntry
	for k, e := range t.entries {
		if k.Subnet != subnet || e.Retracted() || !feasible(*e) {
			continue
		}
		if best == nil || betterCandidate(k, e, bestKey, best) {
			bestKey, best = k, e
		}
	}

	for k, e := range t.entries {
		if k.Subnet == subnet {
			e.Selected = e == best
		}
	}
	if best == nil {
		t.forward.Delete(subnet)
		return RouteKey{}, RouteEntry{}, false
	}
	t.forward.Insert(subnet, bestKey)
	return bestKey, *best, true
}

func betterCandidate(k RouteKey, e *RouteEntry, bestKey RouteKey, best *RouteEntry) bool {
	if e.Metric != best.Metric {
		return e.Metric < best.Metric
	}
	if e.Selected != best.Selected {
		return e.Selected
	}
	return k.Neighbour.Compare(bestKey.Neighbour) < 0
}
