package keys

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"messagebox/pkg/models"
)

// Media row kind tags.
const (
	mediaTagDirect    = byte(0x00)
	mediaTagReference = byte(0x01)
)

// MediaRowKind discriminates the two media row variants.
type MediaRowKind int

const (
	// MediaRowDirect holds the literal payload plus a reference count.
	MediaRowDirect MediaRowKind = iota
	// MediaRowReference points at the message currently holding the payload.
	MediaRowReference
)

// MediaRow is a decoded media table row.
type MediaRow struct {
	Kind      MediaRowKind
	Media     models.Media
	RefCount  int32
	Reference models.MessageIndex
}

func putIndex(b []byte, index models.MessageIndex) {
	putInt64(b[0:], index.Id.PeerId)
	putInt32(b[8:], index.Id.Namespace)
	putInt32(b[12:], index.Id.Id)
	putInt32(b[16:], index.Timestamp)
}

func getIndex(b []byte) models.MessageIndex {
	return models.MessageIndex{
		Id: models.MessageId{
			PeerId:    getInt64(b[0:]),
			Namespace: getInt32(b[8:]),
			Id:        getInt32(b[12:]),
		},
		Timestamp: getInt32(b[16:]),
	}
}

// EncodeMediaDirect encodes a Direct row:
// [0x00][payload len uint32][payload][refcount int32].
func EncodeMediaDirect(media models.Media, refCount int32) []byte {
	v := make([]byte, 0, 1+4+len(media.Data)+4)
	v = append(v, mediaTagDirect)
	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(len(media.Data)))
	v = append(v, scratch[:]...)
	v = append(v, media.Data...)
	binary.BigEndian.PutUint32(scratch[:], uint32(refCount))
	v = append(v, scratch[:]...)
	return v
}

// EncodeMediaReference encodes a Reference row:
// [0x01][peer int64][namespace int32][id int32][timestamp int32].
func EncodeMediaReference(index models.MessageIndex) []byte {
	v := make([]byte, 1+20)
	v[0] = mediaTagReference
	putIndex(v[1:], index)
	return v
}

// DecodeMediaRow decodes a media table row for the given id. A malformed
// row yields ok == false (treated as absent by callers); an unknown tag is
// store corruption and panics.
func DecodeMediaRow(id models.MediaId, v []byte) (MediaRow, bool) {
	if len(v) < 1 {
		return MediaRow{}, false
	}
	switch v[0] {
	case mediaTagDirect:
		if len(v) < 1+4 {
			return MediaRow{}, false
		}
		n := int(binary.BigEndian.Uint32(v[1:]))
		if len(v) != 1+4+n+4 {
			return MediaRow{}, false
		}
		payload := append([]byte(nil), v[5:5+n]...)
		return MediaRow{
			Kind:     MediaRowDirect,
			Media:    models.Media{Id: id, Data: payload},
			RefCount: int32(binary.BigEndian.Uint32(v[5+n:])),
		}, true
	case mediaTagReference:
		if len(v) != 1+20 {
			return MediaRow{}, false
		}
		return MediaRow{
			Kind:      MediaRowReference,
			Reference: getIndex(v[1:]),
		}, true
	default:
		panic(errors.AssertionFailedf("media row for %v has unknown tag 0x%02x", id, v[0]))
	}
}

// EncodeChatListRow encodes a chat-list row value: the kind tag followed
// by the target index by value. For a message row the target is the real
// message index, which can differ from the key's sort index when an
// embedded interface state outranks the message timestamp; for a hole row
// it repeats the hole's own index.
func EncodeChatListRow(index models.MessageIndex, kind byte) []byte {
	v := make([]byte, 1+20)
	v[0] = kind
	putIndex(v[1:], index)
	return v
}

// DecodeChatListRow decodes a chat-list row value. A malformed row yields
// ok == false; an unknown tag panics as store corruption.
func DecodeChatListRow(v []byte) (index models.MessageIndex, kind byte, ok bool) {
	if len(v) < 1 {
		return models.MessageIndex{}, 0, false
	}
	switch v[0] {
	case ChatListKindMessage, ChatListKindHole:
		if len(v) != 1+20 {
			return models.MessageIndex{}, 0, false
		}
		return getIndex(v[1:]), v[0], true
	default:
		panic(errors.AssertionFailedf("chat list row has unknown tag 0x%02x", v[0]))
	}
}
