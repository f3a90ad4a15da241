package chatlist

import "messagebox/pkg/models"

// EntryKind discriminates resolved chat-list entries.
type EntryKind int

const (
	// EntryMessage is a live top-of-chat message.
	EntryMessage EntryKind = iota
	// EntryNothing is a placeholder for an index whose message could not
	// be resolved from history storage.
	EntryNothing
	// EntryHole marks a not-yet-synced region.
	EntryHole
)

// Entry is one resolved row of the chat list. Message is populated for
// EntryMessage, Hole for EntryHole; Index is always set.
type Entry struct {
	Kind    EntryKind
	Index   models.MessageIndex
	Message models.Message
	Hole    models.Hole
}

// OperationKind discriminates chat-list operations.
type OperationKind int

const (
	// OpInsertMessage inserts or replaces a peer's top-of-chat entry.
	OpInsertMessage OperationKind = iota
	// OpRemoveMessage removes previously inserted message entries.
	OpRemoveMessage
	// OpInsertNothing marks a peer as removed from the list, as opposed
	// to never having been inserted.
	OpInsertNothing
	// OpInsertHole inserts a hole marker.
	OpInsertHole
	// OpRemoveHoles removes hole markers.
	OpRemoveHoles
)

func (k OperationKind) String() string {
	switch k {
	case OpInsertMessage:
		return "insert_message"
	case OpRemoveMessage:
		return "remove_message"
	case OpInsertNothing:
		return "insert_nothing"
	case OpInsertHole:
		return "insert_hole"
	case OpRemoveHoles:
		return "remove_holes"
	}
	return "unknown"
}

// Operation is one element of the ordered operation log observers apply
// as a diff sequence. Field population depends on Kind: Index and Message
// (plus optional ReadState and EmbeddedState) for OpInsertMessage, Index
// for OpInsertNothing, Indices for OpRemoveMessage and OpRemoveHoles,
// Hole for OpInsertHole.
type Operation struct {
	Kind          OperationKind
	Index         models.MessageIndex
	Message       models.Message
	ReadState     *models.CombinedReadState
	EmbeddedState *models.ChatListEmbeddedState
	Indices       []models.MessageIndex
	Hole          models.Hole
}
