package models

// Media is an attachment payload addressed by its own MediaId. The payload
// bytes are opaque to the index layer; (de)serialization of the concrete
// media object is the caller's concern.
type Media struct {
	Id   MediaId `json:"id"`
	Data []byte  `json:"data,omitempty"`
}

// Message is the view of a stored message that the index layer needs: its
// sort index plus whatever opaque body the history storage keeps for it.
type Message struct {
	Index MessageIndex `json:"index"`
	Data  []byte       `json:"data,omitempty"`
}

// Hole marks a chat-list region that has not been synced from the remote
// source yet. Readers hitting a hole must trigger a backfill before
// treating the surrounding ordering as authoritative.
type Hole struct {
	Index MessageIndex `json:"index"`
}

// ChatListEmbeddedState is ephemeral per-peer state (for example a draft)
// whose timestamp can outrank the top message's timestamp for chat-list
// ordering purposes.
type ChatListEmbeddedState struct {
	Timestamp int32 `json:"timestamp"`
}

// InterfaceState is the per-peer interface-state record kept by an
// external table.
type InterfaceState struct {
	ChatListEmbeddedState *ChatListEmbeddedState `json:"chat_list_embedded_state,omitempty"`
}

// CombinedReadState summarizes a peer's read position; it is carried
// opaquely on chat-list insert operations for observers.
type CombinedReadState struct {
	MaxReadId   int32 `json:"max_read_id"`
	UnreadCount int32 `json:"unread_count"`
}
