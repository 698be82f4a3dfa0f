package core

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weftnet/weft/state"
)

func srcKey(subnet string, router state.RouterId) state.SourceKey {
	return state.SourceKey{Subnet: netip.MustParsePrefix(subnet), Router: router}
}

func TestSourceUnknownIsFeasible(t *testing.T) {
	st := NewSourceTable()
	src := srcKey("10.1.0.0/16", "o")

	assert.True(t, st.Feasible(src, 0, state.MaxMetric))
	_, ok := st.FD(src)
	assert.False(t, ok)
}

func TestSourceFeasibilityCondition(t *testing.T) {
	st := NewSourceTable()
	src := srcKey("10.1.0.0/16", "o")
	now := time.Now()

	require.True(t, st.Update(src, state.FD{Seqno: 10, Metric: 6}, now))

	// strictly newer seqno: feasible at any metric
	assert.True(t, st.Feasible(src, 11, state.MaxMetric))
	// same seqno: only a strictly smaller metric passes
	assert.True(t, st.Feasible(src, 10, 5))
	assert.False(t, st.Feasible(src, 10, 6))
	assert.False(t, st.Feasible(src, 10, 7))
	// older seqno: never feasible
	assert.False(t, st.Feasible(src, 9, 0))
}

func TestSourceUpdateOnlyImproves(t *testing.T) {
	st := NewSourceTable()
	src := srcKey("10.1.0.0/16", "o")
	now := time.Now()

	require.True(t, st.Update(src, state.FD{Seqno: 10, Metric: 6}, now))

	// worse metric at the same seqno is not recorded
	assert.False(t, st.Update(src, state.FD{Seqno: 10, Metric: 8}, now))
	fd, ok := st.FD(src)
	require.True(t, ok)
	assert.Equal(t, state.FD{Seqno: 10, Metric: 6}, fd)

	// better metric at the same seqno is
	assert.True(t, st.Update(src, state.FD{Seqno: 10, Metric: 4}, now))
	fd, _ = st.FD(src)
	assert.Equal(t, state.FD{Seqno: 10, Metric: 4}, fd)

	// a newer seqno resets the metric, even to a worse one
	assert.True(t, st.Update(src, state.FD{Seqno: 11, Metric: 9}, now))
	fd, _ = st.FD(src)
	assert.Equal(t, state.FD{Seqno: 11, Metric: 9}, fd)

	// an older seqno is ignored entirely
	assert.False(t, st.Update(src, state.FD{Seqno: 10, Metric: 0}, now))
	fd, _ = st.FD(src)
	assert.Equal(t, state.FD{Seqno: 11, Metric: 9}, fd)
}

func TestSourceRetractionNeverRecorded(t *testing.T) {
	st := NewSourceTable()
	src := srcKey("10.1.0.0/16", "o")
	now := time.Now()

	assert.False(t, st.Update(src, state.FD{Seqno: 10, Metric: state.Infinite}, now))
	_, ok := st.FD(src)
	assert.False(t, ok)

	require.True(t, st.Update(src, state.FD{Seqno: 10, Metric: 6}, now))
	assert.False(t, st.Update(src, state.FD{Seqno: 12, Metric: state.Infinite}, now))
	fd, _ := st.FD(src)
	assert.Equal(t, state.FD{Seqno: 10, Metric: 6}, fd)
}

func TestSourcePruneRetention(t *testing.T) {
	st := NewSourceTable()
	live := srcKey("10.1.0.0/16", "o1")
	dead := srcKey("10.2.0.0/16", "o2")
	start := time.Now()

	st.Update(live, state.FD{Seqno: 1, Metric: 1}, start)
	st.Update(dead, state.FD{Seqno: 1, Metric: 1}, start)
	require.Equal(t, 2, st.Len())

	isLive := func(src state.SourceKey) bool { return src == live }

	// within the retention window an orphan survives
	st.Prune(isLive, start.Add(state.SourceRetentionTime/2))
	assert.Equal(t, 2, st.Len())

	// past it, only referenced sources remain
	st.Prune(isLive, start.Add(2*state.SourceRetentionTime))
	assert.Equal(t, 1, st.Len())
	_, ok := st.FD(live)
	assert.True(t, ok)
	_, ok = st.FD(dead)
	assert.False(t, ok)
}
