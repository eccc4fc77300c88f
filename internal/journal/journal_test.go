package journal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJournal_RevertOnError(t *testing.T) {
	t.Parallel()

	j := New()
	balances := map[string]int{"alice": 10}
	total := 10

	err := func() (err error) {
		snap := j.Begin()
		defer func() { j.End(snap, err) }()
		SetEntry(j, balances, "alice", 4)
		SetEntry(j, balances, "bob", 6)
		Set(j, &total, 12)
		return errors.New("boom")
	}()
	require.Error(t, err)
	require.Equal(t, map[string]int{"alice": 10}, balances)
	require.Equal(t, 10, total)
	require.Zero(t, j.Len())
	require.Zero(t, j.Depth())
}

func TestJournal_NestedSections(t *testing.T) {
	t.Parallel()

	j := New()
	v := 1

	outer := j.Begin()
	Set(j, &v, 2)

	inner := j.Begin()
	Set(j, &v, 3)
	j.End(inner, errors.New("inner failed"))
	require.Equal(t, 2, v)
	require.Equal(t, 1, j.Len(), "outer entry must survive an inner revert")

	j.End(outer, nil)
	require.Equal(t, 2, v)
	require.Zero(t, j.Len())
}

func TestJournal_OuterRevertUndoesCommittedInner(t *testing.T) {
	t.Parallel()

	j := New()
	v := 1

	outer := j.Begin()
	inner := j.Begin()
	Set(j, &v, 5)
	j.End(inner, nil)
	j.End(outer, errors.New("outer failed"))
	require.Equal(t, 1, v)
}

func TestGuard(t *testing.T) {
	t.Parallel()

	var g Guard
	release, err := g.Enter()
	require.NoError(t, err)
	require.True(t, g.Entered())

	_, err = g.Enter()
	require.ErrorIs(t, err, ErrReentrantCall)

	release()
	require.False(t, g.Entered())
}
