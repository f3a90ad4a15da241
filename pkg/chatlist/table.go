// Package chatlist implements the chat list index table: a denormalized,
// byte-ordered view of "most recent activity per conversation" where live
// message pointers and unsynced-gap markers (holes) share one key space,
// so a single range scan returns them interleaved in global order.
package chatlist

import (
	"sort"

	"go.uber.org/zap"

	"messagebox/pkg/keys"
	"messagebox/pkg/logger"
	"messagebox/pkg/models"
	"messagebox/pkg/store"
	"messagebox/pkg/telemetry"
)

// MessageStore is the slice of history storage the chat list needs.
type MessageStore interface {
	TopMessage(peerId int64) (models.Message, bool)
	GetMessage(index models.MessageIndex) (models.Message, bool)
}

// InterfaceStateStore exposes per-peer interface state, whose embedded
// chat-list timestamp can outrank the top message's timestamp.
type InterfaceStateStore interface {
	Get(peerId int64) (models.InterfaceState, bool)
}

// ReadStateProvider exposes per-peer combined read state, carried on
// insert operations for observers.
type ReadStateProvider interface {
	Get(peerId int64) (models.CombinedReadState, bool)
}

// IndexTable is the external side table mapping each peer to its single
// currently-stored chat-list index.
type IndexTable interface {
	Get(peerId int64) (models.MessageIndex, bool)
	Set(peerId int64, index models.MessageIndex)
	Remove(peerId int64)
}

// Seed is the metadata/bootstrap source: an initialization flag plus the
// configured holes to insert the first time a fresh database is touched.
type Seed interface {
	IsInitializedChatList() bool
	SetInitializedChatList()
	InitialHoles() []models.Hole
}

// Table is the chat list index table. Mutating operations assume the
// caller serializes access, per the value box's discipline.
type Table struct {
	kv          store.KV
	indexTable  IndexTable
	messages    MessageStore
	states      InterfaceStateStore
	readStates  ReadStateProvider
	seed        Seed
	initialized bool
}

// NewTable constructs a chat list table over the given value box and
// collaborators.
func NewTable(kv store.KV, indexTable IndexTable, messages MessageStore, states InterfaceStateStore, readStates ReadStateProvider, seed Seed) *Table {
	return &Table{
		kv:         kv,
		indexTable: indexTable,
		messages:   messages,
		states:     states,
		readStates: readStates,
		seed:       seed,
	}
}

// ensureInitialized seeds the configured initial holes exactly once per
// database. Seeding writes rows directly; no operations are emitted since
// no observer can exist before first use.
func (t *Table) ensureInitialized() error {
	if t.initialized {
		return nil
	}
	t.initialized = true
	if t.seed.IsInitializedChatList() {
		return nil
	}
	for _, hole := range t.seed.InitialHoles() {
		key := keys.ChatListKey(hole.Index, keys.ChatListKindHole)
		if _, found, err := t.kv.Get(store.TableChatListIndex, key); err != nil {
			return err
		} else if found {
			continue
		}
		if err := t.kv.Set(store.TableChatListIndex, key, keys.EncodeChatListRow(hole.Index, keys.ChatListKindHole)); err != nil {
			return err
		}
	}
	t.seed.SetInitializedChatList()
	logger.Log.Info("chatlist_initialized", zap.Int("seed_holes", len(t.seed.InitialHoles())))
	return nil
}

func (t *Table) emit(ops []Operation, op Operation) []Operation {
	telemetry.ChatListOps.WithLabelValues(op.Kind.String()).Inc()
	return append(ops, op)
}

// Replay incrementally re-evaluates the chat-list entry of every peer
// touched by a history change or an interface-state change, and returns
// the ordered operation log describing what changed. Only touched peers
// are visited; the table is never rebuilt wholesale.
func (t *Table) Replay(historyPeers, statePeers map[int64]struct{}) ([]Operation, error) {
	if err := t.ensureInitialized(); err != nil {
		return nil, err
	}
	peerSet := make(map[int64]struct{}, len(historyPeers)+len(statePeers))
	for peerId := range historyPeers {
		peerSet[peerId] = struct{}{}
	}
	for peerId := range statePeers {
		peerSet[peerId] = struct{}{}
	}
	peers := make([]int64, 0, len(peerSet))
	for peerId := range peerSet {
		peers = append(peers, peerId)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })

	var ops []Operation
	for _, peerId := range peers {
		current, hasCurrent := t.indexTable.Get(peerId)
		top, hasTop := t.messages.TopMessage(peerId)
		if !hasTop {
			// Conversation became empty: tombstone the list entry.
			if hasCurrent {
				if err := t.kv.Remove(store.TableChatListIndex, keys.ChatListKey(current, keys.ChatListKindMessage)); err != nil {
					return nil, err
				}
				t.indexTable.Remove(peerId)
				ops = t.emit(ops, Operation{Kind: OpRemoveMessage, Indices: []models.MessageIndex{current}})
				ops = t.emit(ops, Operation{Kind: OpInsertNothing, Index: current})
			}
			continue
		}

		// The list position is the max of the top message's timestamp and
		// the embedded interface state's timestamp, keyed by the top
		// message's id.
		timestamp := top.Index.Timestamp
		var embeddedState *models.ChatListEmbeddedState
		if st, ok := t.states.Get(peerId); ok && st.ChatListEmbeddedState != nil {
			embeddedState = st.ChatListEmbeddedState
			if embeddedState.Timestamp > timestamp {
				timestamp = embeddedState.Timestamp
			}
		}
		newIndex := models.MessageIndex{Id: top.Index.Id, Timestamp: timestamp}

		if hasCurrent && current != newIndex {
			if err := t.kv.Remove(store.TableChatListIndex, keys.ChatListKey(current, keys.ChatListKindMessage)); err != nil {
				return nil, err
			}
		}
		if hasCurrent {
			ops = t.emit(ops, Operation{Kind: OpRemoveMessage, Indices: []models.MessageIndex{current}})
		}
		if err := t.kv.Set(store.TableChatListIndex, keys.ChatListKey(newIndex, keys.ChatListKindMessage), keys.EncodeChatListRow(top.Index, keys.ChatListKindMessage)); err != nil {
			return nil, err
		}
		t.indexTable.Set(peerId, newIndex)

		var readState *models.CombinedReadState
		if rs, ok := t.readStates.Get(peerId); ok {
			readState = &rs
		}
		ops = t.emit(ops, Operation{
			Kind:          OpInsertMessage,
			Index:         newIndex,
			Message:       top,
			ReadState:     readState,
			EmbeddedState: embeddedState,
		})
	}
	return ops, nil
}

// AddHole inserts a hole row at hole.Index if absent.
func (t *Table) AddHole(hole models.Hole) ([]Operation, error) {
	if err := t.ensureInitialized(); err != nil {
		return nil, err
	}
	key := keys.ChatListKey(hole.Index, keys.ChatListKindHole)
	if _, found, err := t.kv.Get(store.TableChatListIndex, key); err != nil {
		return nil, err
	} else if found {
		return nil, nil
	}
	if err := t.kv.Set(store.TableChatListIndex, key, keys.EncodeChatListRow(hole.Index, keys.ChatListKindHole)); err != nil {
		return nil, err
	}
	return t.emit(nil, Operation{Kind: OpInsertHole, Hole: hole}), nil
}

// ReplaceHole moves or removes the hole row at index: with a newHole at a
// different index the row is moved; with no newHole it is deleted; with a
// newHole at the same index nothing changed. Absent rows are a no-op.
func (t *Table) ReplaceHole(index models.MessageIndex, newHole *models.Hole) ([]Operation, error) {
	if err := t.ensureInitialized(); err != nil {
		return nil, err
	}
	key := keys.ChatListKey(index, keys.ChatListKindHole)
	if _, found, err := t.kv.Get(store.TableChatListIndex, key); err != nil || !found {
		return nil, err
	}
	if newHole != nil && newHole.Index == index {
		return nil, nil
	}
	if err := t.kv.Remove(store.TableChatListIndex, key); err != nil {
		return nil, err
	}
	ops := t.emit(nil, Operation{Kind: OpRemoveHoles, Indices: []models.MessageIndex{index}})
	if newHole != nil {
		newKey := keys.ChatListKey(newHole.Index, keys.ChatListKindHole)
		if err := t.kv.Set(store.TableChatListIndex, newKey, keys.EncodeChatListRow(newHole.Index, keys.ChatListKindHole)); err != nil {
			return nil, err
		}
		ops = t.emit(ops, Operation{Kind: OpInsertHole, Hole: *newHole})
	}
	return ops, nil
}

// resolve turns a raw row into an Entry. The key carries the sort index;
// the value carries the target message index a message row points at.
// Messages missing from history storage degrade to Nothing placeholders
// rather than failing the scan.
func (t *Table) resolve(k, v []byte) (Entry, bool) {
	index, _, ok := keys.DecodeChatListKey(k)
	if !ok {
		return Entry{}, false
	}
	target, kind, ok := keys.DecodeChatListRow(v)
	if !ok {
		return Entry{Kind: EntryNothing, Index: index}, true
	}
	if kind == keys.ChatListKindHole {
		return Entry{Kind: EntryHole, Index: index, Hole: models.Hole{Index: index}}, true
	}
	msg, found := t.messages.GetMessage(target)
	if !found {
		return Entry{Kind: EntryNothing, Index: index}, true
	}
	return Entry{Kind: EntryMessage, Index: index, Message: msg}, true
}

func (t *Table) scan(start, end []byte, limit int) ([]Entry, error) {
	var out []Entry
	err := t.kv.Range(store.TableChatListIndex, start, end, func(k, v []byte) bool {
		if e, ok := t.resolve(k, v); ok {
			out = append(out, e)
		}
		return true
	}, limit)
	return out, err
}

func reverseEntries(entries []Entry) []Entry {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

// EntriesAround returns up to count entries windowed around index, split
// roughly evenly before and after it, in ascending order. Each side that
// has more data beyond the window also yields a sentinel: the first entry
// just outside it, letting callers detect "more exists" without another
// scan. When the ascending side runs out before the window fills, the
// descending side is extended to backfill the deficit.
func (t *Table) EntriesAround(index models.MessageIndex, count int) (entries []Entry, lower, upper *Entry, err error) {
	if err := t.ensureInitialized(); err != nil {
		return nil, nil, nil, err
	}
	anchor := keys.ChatListBound(index)

	lowerTarget := count/2 + 1
	lowerEntries, err := t.scan(anchor, keys.ChatListAbsLowerBound(), lowerTarget)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(lowerEntries) >= lowerTarget {
		sentinel := lowerEntries[len(lowerEntries)-1]
		lower = &sentinel
		lowerEntries = lowerEntries[:len(lowerEntries)-1]
	}

	upperTarget := count - len(lowerEntries) + 1
	upperEntries, err := t.scan(anchor, keys.ChatListAbsUpperBound(), upperTarget)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(upperEntries) >= upperTarget {
		sentinel := upperEntries[len(upperEntries)-1]
		upper = &sentinel
		upperEntries = upperEntries[:len(upperEntries)-1]
	}

	if len(upperEntries) < count-len(lowerEntries) {
		// The ascending side hit the end of the table; take more entries
		// below the current lower window instead.
		from := index
		if len(lowerEntries) > 0 {
			from = lowerEntries[len(lowerEntries)-1].Index
		}
		deficit := count - len(lowerEntries) - len(upperEntries)
		additional, err := t.scan(keys.ChatListBound(from), keys.ChatListAbsLowerBound(), deficit+1)
		if err != nil {
			return nil, nil, nil, err
		}
		lower = nil
		if len(additional) >= deficit+1 {
			sentinel := additional[len(additional)-1]
			lower = &sentinel
			additional = additional[:len(additional)-1]
		}
		lowerEntries = append(lowerEntries, additional...)
	}

	entries = append(reverseEntries(lowerEntries), upperEntries...)
	return entries, lower, upper, nil
}

// EarlierEntries returns up to count entries strictly earlier than index,
// in descending order. A nil index starts from the end of the table.
func (t *Table) EarlierEntries(index *models.MessageIndex, count int) ([]Entry, error) {
	if err := t.ensureInitialized(); err != nil {
		return nil, err
	}
	start := keys.ChatListAbsUpperBound()
	if index != nil {
		start = keys.ChatListBound(*index)
	}
	return t.scan(start, keys.ChatListAbsLowerBound(), count)
}

// LaterEntries returns up to count entries strictly later than index, in
// ascending order. A nil index starts from the beginning of the table.
func (t *Table) LaterEntries(index *models.MessageIndex, count int) ([]Entry, error) {
	if err := t.ensureInitialized(); err != nil {
		return nil, err
	}
	start := keys.ChatListAbsLowerBound()
	if index != nil {
		start = keys.ChatListBoundUpper(*index)
	}
	return t.scan(start, keys.ChatListAbsUpperBound(), count)
}

const debugListCap = 1000

// DebugList dumps up to debugListCap resolved entries in ascending order.
func (t *Table) DebugList() ([]Entry, error) {
	if err := t.ensureInitialized(); err != nil {
		return nil, err
	}
	return t.scan(keys.ChatListAbsLowerBound(), keys.ChatListAbsUpperBound(), debugListCap)
}
