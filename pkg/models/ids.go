package models

// MediaId identifies a media attachment independent of which message(s)
// reference it.
type MediaId struct {
	Namespace int32 `json:"namespace"`
	Id        int64 `json:"id"`
}

// MessageId identifies a message within a conversation.
type MessageId struct {
	PeerId    int64 `json:"peer_id"`
	Namespace int32 `json:"namespace"`
	Id        int32 `json:"id"`
}

// MessageIndex is the universal sort key for messages and chat-list
// entries: primary order by timestamp, tie-broken by namespace, then
// message id, then peer id. The physical key encoding in pkg/keys packs
// the fields in this order so byte order equals this order.
type MessageIndex struct {
	Id        MessageId `json:"id"`
	Timestamp int32     `json:"timestamp"`
}

// Less reports whether m sorts strictly before other under the
// (timestamp, namespace, id, peerId) order.
func (m MessageIndex) Less(other MessageIndex) bool {
	if m.Timestamp != other.Timestamp {
		return m.Timestamp < other.Timestamp
	}
	if m.Id.Namespace != other.Id.Namespace {
		return m.Id.Namespace < other.Id.Namespace
	}
	if m.Id.Id != other.Id.Id {
		return m.Id.Id < other.Id.Id
	}
	return m.Id.PeerId < other.Id.PeerId
}
