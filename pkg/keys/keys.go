// Package keys owns every physical key and row layout used by the index
// tables. All integer fields are packed fixed-width big-endian so that
// lexicographic byte order over a key equals the intended field order;
// business logic never touches raw offsets directly.
package keys

import (
	"bytes"
	"encoding/binary"

	"messagebox/pkg/models"
)

// Chat-list row kind tags. The tag is the final key byte so that rows for
// the same MessageIndex stay adjacent, with kind as the last tie-break.
const (
	ChatListKindMessage = byte(0x00)
	ChatListKindHole    = byte(0x01)
)

const (
	// MediaKeyLen is namespace(4) + id(8).
	MediaKeyLen = 12
	// ChatListKeyLen is timestamp(4) + namespace(4) + id(4) + peer(8) + kind(1).
	ChatListKeyLen = 21
	// ChatListBoundLen is a chat-list key without the kind tag.
	ChatListBoundLen = 20
)

func putInt32(b []byte, v int32) {
	binary.BigEndian.PutUint32(b, uint32(v))
}

func putInt64(b []byte, v int64) {
	binary.BigEndian.PutUint64(b, uint64(v))
}

func getInt32(b []byte) int32 {
	return int32(binary.BigEndian.Uint32(b))
}

func getInt64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// MediaKey encodes a MediaId as namespace ‖ id.
func MediaKey(id models.MediaId) []byte {
	k := make([]byte, MediaKeyLen)
	putInt32(k[0:], id.Namespace)
	putInt64(k[4:], id.Id)
	return k
}

// DecodeMediaKey is the inverse of MediaKey.
func DecodeMediaKey(k []byte) (models.MediaId, bool) {
	if len(k) != MediaKeyLen {
		return models.MediaId{}, false
	}
	return models.MediaId{
		Namespace: getInt32(k[0:]),
		Id:        getInt64(k[4:]),
	}, true
}

// ChatListBound encodes a MessageIndex without a kind tag. The result
// sorts strictly before every chat-list row at that index, which makes it
// the natural scan boundary for pagination anchored at the index.
func ChatListBound(index models.MessageIndex) []byte {
	k := make([]byte, ChatListBoundLen)
	putInt32(k[0:], index.Timestamp)
	putInt32(k[4:], index.Id.Namespace)
	putInt32(k[8:], index.Id.Id)
	putInt64(k[12:], index.Id.PeerId)
	return k
}

// ChatListBoundUpper encodes a boundary sorting strictly after every
// chat-list row at the given index (the kind tag byte is at most 0x01).
func ChatListBoundUpper(index models.MessageIndex) []byte {
	return append(ChatListBound(index), 0xff)
}

// ChatListKey encodes a full chat-list row key:
// timestamp ‖ namespace ‖ messageId ‖ peerId ‖ kind.
func ChatListKey(index models.MessageIndex, kind byte) []byte {
	return append(ChatListBound(index), kind)
}

// DecodeChatListKey is the inverse of ChatListKey.
func DecodeChatListKey(k []byte) (index models.MessageIndex, kind byte, ok bool) {
	if len(k) != ChatListKeyLen {
		return models.MessageIndex{}, 0, false
	}
	index = models.MessageIndex{
		Timestamp: getInt32(k[0:]),
		Id: models.MessageId{
			Namespace: getInt32(k[4:]),
			Id:        getInt32(k[8:]),
			PeerId:    getInt64(k[12:]),
		},
	}
	return index, k[20], true
}

// MediaAbsLowerBound sorts before every valid media key.
func MediaAbsLowerBound() []byte {
	return []byte{}
}

// MediaAbsUpperBound sorts after every valid media key.
func MediaAbsUpperBound() []byte {
	return bytes.Repeat([]byte{0xff}, MediaKeyLen+1)
}

// ChatListAbsLowerBound sorts before every valid chat-list key.
func ChatListAbsLowerBound() []byte {
	return []byte{}
}

// ChatListAbsUpperBound sorts after every valid chat-list key.
func ChatListAbsUpperBound() []byte {
	return bytes.Repeat([]byte{0xff}, ChatListKeyLen+1)
}
