package chatlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messagebox/pkg/models"
	"messagebox/pkg/store"
)

type fakeHistory struct {
	top     map[int64]models.Message
	byIndex map[models.MessageIndex]models.Message
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		top:     make(map[int64]models.Message),
		byIndex: make(map[models.MessageIndex]models.Message),
	}
}

func (f *fakeHistory) TopMessage(peerId int64) (models.Message, bool) {
	m, ok := f.top[peerId]
	return m, ok
}

func (f *fakeHistory) GetMessage(index models.MessageIndex) (models.Message, bool) {
	m, ok := f.byIndex[index]
	return m, ok
}

// setTop makes a message at the given timestamp the peer's top message.
func (f *fakeHistory) setTop(peerId int64, ts int32) models.Message {
	m := models.Message{
		Index: models.MessageIndex{
			Id:        models.MessageId{PeerId: peerId, Namespace: 0, Id: ts},
			Timestamp: ts,
		},
		Data: []byte{byte(ts)},
	}
	f.top[peerId] = m
	f.byIndex[m.Index] = m
	return m
}

type fakeIndexTable struct {
	m map[int64]models.MessageIndex
}

func newFakeIndexTable() *fakeIndexTable {
	return &fakeIndexTable{m: make(map[int64]models.MessageIndex)}
}

func (f *fakeIndexTable) Get(peerId int64) (models.MessageIndex, bool) {
	idx, ok := f.m[peerId]
	return idx, ok
}

func (f *fakeIndexTable) Set(peerId int64, index models.MessageIndex) { f.m[peerId] = index }
func (f *fakeIndexTable) Remove(peerId int64)                         { delete(f.m, peerId) }

type fakeStates struct {
	m map[int64]models.InterfaceState
}

func (f *fakeStates) Get(peerId int64) (models.InterfaceState, bool) {
	st, ok := f.m[peerId]
	return st, ok
}

type fakeReadStates struct {
	m map[int64]models.CombinedReadState
}

func (f *fakeReadStates) Get(peerId int64) (models.CombinedReadState, bool) {
	rs, ok := f.m[peerId]
	return rs, ok
}

type fakeSeed struct {
	initialized bool
	holes       []models.Hole
}

func (f *fakeSeed) IsInitializedChatList() bool { return f.initialized }
func (f *fakeSeed) SetInitializedChatList()     { f.initialized = true }
func (f *fakeSeed) InitialHoles() []models.Hole { return f.holes }

type env struct {
	kv         *store.Store
	table      *Table
	history    *fakeHistory
	indexTable *fakeIndexTable
	states     *fakeStates
	readStates *fakeReadStates
	seed       *fakeSeed
}

func newEnv(t *testing.T) *env {
	t.Helper()
	kv, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	e := &env{
		kv:         kv,
		history:    newFakeHistory(),
		indexTable: newFakeIndexTable(),
		states:     &fakeStates{m: make(map[int64]models.InterfaceState)},
		readStates: &fakeReadStates{m: make(map[int64]models.CombinedReadState)},
		seed:       &fakeSeed{},
	}
	e.table = NewTable(kv, e.indexTable, e.history, e.states, e.readStates, e.seed)
	return e
}

func peers(ids ...int64) map[int64]struct{} {
	out := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// holeIndex builds a distinct index per timestamp for hole-based tests.
func holeIndex(ts int32) models.MessageIndex {
	return models.MessageIndex{
		Id:        models.MessageId{PeerId: int64(ts), Namespace: 0, Id: ts},
		Timestamp: ts,
	}
}

func entryTimestamps(entries []Entry) []int32 {
	out := make([]int32, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Index.Timestamp)
	}
	return out
}

func TestSeedsInitialHolesOnce(t *testing.T) {
	e := newEnv(t)
	e.seed.holes = []models.Hole{{Index: holeIndex(10)}, {Index: holeIndex(20)}}

	entries, err := e.table.DebugList()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EntryHole, entries[0].Kind)
	assert.Equal(t, EntryHole, entries[1].Kind)
	assert.True(t, e.seed.initialized)

	// A fresh table over the same database must not re-seed.
	other := NewTable(e.kv, e.indexTable, e.history, e.states, e.readStates, e.seed)
	entries, err = other.DebugList()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReplayInsertsNewTopMessage(t *testing.T) {
	e := newEnv(t)
	top := e.history.setTop(1, 30)
	e.readStates.m[1] = models.CombinedReadState{MaxReadId: 30, UnreadCount: 2}

	ops, err := e.table.Replay(peers(1), nil)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpInsertMessage, ops[0].Kind)
	assert.Equal(t, top.Index, ops[0].Index)
	assert.Equal(t, top, ops[0].Message)
	require.NotNil(t, ops[0].ReadState)
	assert.Equal(t, int32(2), ops[0].ReadState.UnreadCount)
	assert.Nil(t, ops[0].EmbeddedState)

	entries, err := e.table.LaterEntries(nil, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EntryMessage, entries[0].Kind)
	assert.Equal(t, top, entries[0].Message)

	stored, ok := e.indexTable.Get(1)
	require.True(t, ok)
	assert.Equal(t, top.Index, stored)
}

func TestReplayEmbeddedStateOutranksTopMessage(t *testing.T) {
	e := newEnv(t)
	e.history.setTop(1, 30)
	_, err := e.table.Replay(peers(1), nil)
	require.NoError(t, err)
	oldIndex, _ := e.indexTable.Get(1)

	// The conversation's top message becomes an older one (timestamp 5),
	// but a draft edit stamps the peer's embedded state with timestamp 50.
	top := e.history.setTop(1, 5)
	e.states.m[1] = models.InterfaceState{
		ChatListEmbeddedState: &models.ChatListEmbeddedState{Timestamp: 50},
	}

	ops, err := e.table.Replay(peers(1), peers(1))
	require.NoError(t, err)
	require.Len(t, ops, 2)

	assert.Equal(t, OpRemoveMessage, ops[0].Kind)
	assert.Equal(t, []models.MessageIndex{oldIndex}, ops[0].Indices)

	assert.Equal(t, OpInsertMessage, ops[1].Kind)
	wantIndex := models.MessageIndex{Id: top.Index.Id, Timestamp: 50}
	assert.Equal(t, wantIndex, ops[1].Index)
	assert.Equal(t, top, ops[1].Message)
	require.NotNil(t, ops[1].EmbeddedState)
	assert.Equal(t, int32(50), ops[1].EmbeddedState.Timestamp)

	// The row sorts at timestamp 50 but resolves to the real message.
	entries, err := e.table.LaterEntries(nil, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, wantIndex, entries[0].Index)
	assert.Equal(t, EntryMessage, entries[0].Kind)
	assert.Equal(t, top, entries[0].Message)
}

func TestReplayEmptyConversationTombstones(t *testing.T) {
	e := newEnv(t)
	e.history.setTop(1, 30)
	_, err := e.table.Replay(peers(1), nil)
	require.NoError(t, err)
	oldIndex, _ := e.indexTable.Get(1)

	delete(e.history.top, 1)
	ops, err := e.table.Replay(peers(1), nil)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, OpRemoveMessage, ops[0].Kind)
	assert.Equal(t, []models.MessageIndex{oldIndex}, ops[0].Indices)
	assert.Equal(t, OpInsertNothing, ops[1].Kind)
	assert.Equal(t, oldIndex, ops[1].Index)

	entries, err := e.table.LaterEntries(nil, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, ok := e.indexTable.Get(1)
	assert.False(t, ok)
}

func TestReplayWithNoTouchedPeersEmitsNothing(t *testing.T) {
	e := newEnv(t)
	e.history.setTop(1, 30)
	_, err := e.table.Replay(peers(1), nil)
	require.NoError(t, err)

	ops, err := e.table.Replay(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestAddHole(t *testing.T) {
	e := newEnv(t)
	hole := models.Hole{Index: holeIndex(10)}

	ops, err := e.table.AddHole(hole)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpInsertHole, ops[0].Kind)
	assert.Equal(t, hole, ops[0].Hole)

	// Inserting the same hole again changes nothing.
	ops, err = e.table.AddHole(hole)
	require.NoError(t, err)
	assert.Empty(t, ops)

	entries, err := e.table.DebugList()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EntryHole, entries[0].Kind)
	assert.Equal(t, hole.Index, entries[0].Hole.Index)
}

func TestReplaceHoleMove(t *testing.T) {
	e := newEnv(t)
	_, err := e.table.AddHole(models.Hole{Index: holeIndex(10)})
	require.NoError(t, err)

	newHole := models.Hole{Index: holeIndex(20)}
	ops, err := e.table.ReplaceHole(holeIndex(10), &newHole)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, OpRemoveHoles, ops[0].Kind)
	assert.Equal(t, []models.MessageIndex{holeIndex(10)}, ops[0].Indices)
	assert.Equal(t, OpInsertHole, ops[1].Kind)
	assert.Equal(t, newHole, ops[1].Hole)

	entries, err := e.table.DebugList()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, holeIndex(20), entries[0].Index)
}

func TestReplaceHoleDelete(t *testing.T) {
	e := newEnv(t)
	_, err := e.table.AddHole(models.Hole{Index: holeIndex(10)})
	require.NoError(t, err)

	ops, err := e.table.ReplaceHole(holeIndex(10), nil)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, OpRemoveHoles, ops[0].Kind)

	entries, err := e.table.DebugList()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReplaceHoleSameIndexIsNoop(t *testing.T) {
	e := newEnv(t)
	_, err := e.table.AddHole(models.Hole{Index: holeIndex(10)})
	require.NoError(t, err)

	same := models.Hole{Index: holeIndex(10)}
	ops, err := e.table.ReplaceHole(holeIndex(10), &same)
	require.NoError(t, err)
	assert.Empty(t, ops)

	entries, err := e.table.DebugList()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReplaceHoleAbsentIsNoop(t *testing.T) {
	e := newEnv(t)
	moved := models.Hole{Index: holeIndex(20)}
	ops, err := e.table.ReplaceHole(holeIndex(10), &moved)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestOrderingAcrossKinds(t *testing.T) {
	e := newEnv(t)
	// Holes at 10 and 30, message rows at 20 and 40, inserted out of order.
	e.history.setTop(40, 40)
	e.history.setTop(20, 20)
	_, err := e.table.Replay(peers(40, 20), nil)
	require.NoError(t, err)
	_, err = e.table.AddHole(models.Hole{Index: holeIndex(30)})
	require.NoError(t, err)
	_, err = e.table.AddHole(models.Hole{Index: holeIndex(10)})
	require.NoError(t, err)

	later, err := e.table.LaterEntries(nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 20, 30, 40}, entryTimestamps(later))
	assert.Equal(t, EntryHole, later[0].Kind)
	assert.Equal(t, EntryMessage, later[1].Kind)
	assert.Equal(t, EntryHole, later[2].Kind)
	assert.Equal(t, EntryMessage, later[3].Kind)

	earlier, err := e.table.EarlierEntries(nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []int32{40, 30, 20, 10}, entryTimestamps(earlier))
}

func TestEarlierAndLaterEntriesExcludeAnchor(t *testing.T) {
	e := newEnv(t)
	for _, ts := range []int32{10, 20, 30} {
		_, err := e.table.AddHole(models.Hole{Index: holeIndex(ts)})
		require.NoError(t, err)
	}
	anchor := holeIndex(20)

	earlier, err := e.table.EarlierEntries(&anchor, 10)
	require.NoError(t, err)
	assert.Equal(t, []int32{10}, entryTimestamps(earlier))

	later, err := e.table.LaterEntries(&anchor, 10)
	require.NoError(t, err)
	assert.Equal(t, []int32{30}, entryTimestamps(later))
}

// nineHoles seeds holes at timestamps 10..90.
func nineHoles(t *testing.T, e *env) {
	t.Helper()
	for ts := int32(10); ts <= 90; ts += 10 {
		_, err := e.table.AddHole(models.Hole{Index: holeIndex(ts)})
		require.NoError(t, err)
	}
}

func TestEntriesAroundMiddle(t *testing.T) {
	e := newEnv(t)
	nineHoles(t, e)

	entries, lower, upper, err := e.table.EntriesAround(holeIndex(50), 4)
	require.NoError(t, err)
	assert.Equal(t, []int32{30, 40, 50, 60}, entryTimestamps(entries))
	require.NotNil(t, lower)
	assert.Equal(t, int32(20), lower.Index.Timestamp)
	require.NotNil(t, upper)
	assert.Equal(t, int32(70), upper.Index.Timestamp)
}

func TestEntriesAroundBackfillsFromLowerSide(t *testing.T) {
	e := newEnv(t)
	nineHoles(t, e)

	// Anchored near the end: the ascending side runs out and the window
	// is completed with additional earlier entries.
	entries, lower, upper, err := e.table.EntriesAround(holeIndex(80), 6)
	require.NoError(t, err)
	assert.Equal(t, []int32{40, 50, 60, 70, 80, 90}, entryTimestamps(entries))
	require.NotNil(t, lower)
	assert.Equal(t, int32(30), lower.Index.Timestamp)
	assert.Nil(t, upper)
}

func TestEntriesAroundAtStart(t *testing.T) {
	e := newEnv(t)
	nineHoles(t, e)

	entries, lower, upper, err := e.table.EntriesAround(holeIndex(10), 4)
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 20, 30, 40}, entryTimestamps(entries))
	assert.Nil(t, lower)
	require.NotNil(t, upper)
	assert.Equal(t, int32(50), upper.Index.Timestamp)
}

func TestEntriesAroundWholeTableFits(t *testing.T) {
	e := newEnv(t)
	for _, ts := range []int32{10, 20, 30} {
		_, err := e.table.AddHole(models.Hole{Index: holeIndex(ts)})
		require.NoError(t, err)
	}
	entries, lower, upper, err := e.table.EntriesAround(holeIndex(20), 10)
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 20, 30}, entryTimestamps(entries))
	assert.Nil(t, lower)
	assert.Nil(t, upper)
}

func TestPaginationTilesWithoutGapsOrOverlap(t *testing.T) {
	e := newEnv(t)
	nineHoles(t, e)

	entries, lower, upper, err := e.table.EntriesAround(holeIndex(50), 4)
	require.NoError(t, err)
	require.NotNil(t, lower)
	require.NotNil(t, upper)

	// The sentinels are exactly the first entries beyond the window.
	first := entries[0].Index
	last := entries[len(entries)-1].Index
	earlier, err := e.table.EarlierEntries(&first, 1)
	require.NoError(t, err)
	require.Len(t, earlier, 1)
	assert.Equal(t, lower.Index, earlier[0].Index)

	later, err := e.table.LaterEntries(&last, 1)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, upper.Index, later[0].Index)

	// Window plus both directions reconstructs the full sequence.
	var full []int32
	prev, err := e.table.EarlierEntries(&first, 100)
	require.NoError(t, err)
	for i := len(prev) - 1; i >= 0; i-- {
		full = append(full, prev[i].Index.Timestamp)
	}
	full = append(full, entryTimestamps(entries)...)
	next, err := e.table.LaterEntries(&last, 100)
	require.NoError(t, err)
	full = append(full, entryTimestamps(next)...)
	assert.Equal(t, []int32{10, 20, 30, 40, 50, 60, 70, 80, 90}, full)
}

func TestMissingMessageDegradesToNothing(t *testing.T) {
	e := newEnv(t)
	top := e.history.setTop(1, 30)
	_, err := e.table.Replay(peers(1), nil)
	require.NoError(t, err)

	// History loses the message out of band; the row remains but resolves
	// to a placeholder instead of failing.
	delete(e.history.byIndex, top.Index)
	entries, err := e.table.LaterEntries(nil, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EntryNothing, entries[0].Kind)
	assert.Equal(t, top.Index, entries[0].Index)
}
