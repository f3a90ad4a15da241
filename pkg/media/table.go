// Package media implements the media deduplication table: a payload
// referenced by many messages is physically stored once, with reference
// counting and an indirection row deciding which message currently holds
// the literal bytes.
package media

import (
	"go.uber.org/zap"

	"messagebox/pkg/keys"
	"messagebox/pkg/logger"
	"messagebox/pkg/models"
	"messagebox/pkg/store"
	"messagebox/pkg/telemetry"
)

// MessageStore is the narrow slice of message history storage the dedup
// table needs: relinquishing an embedded payload from its current holder,
// and updating an embedded payload in place.
type MessageStore interface {
	UnembedMedia(index models.MessageIndex, id models.MediaId) (models.Media, bool)
	UpdateEmbeddedMedia(index models.MessageIndex, id models.MediaId, media models.Media)
}

// EmbeddedResolver resolves the payload currently embedded in the message
// at index for the given media id. Supplied per Get call so reads stay
// decoupled from any one history table.
type EmbeddedResolver func(index models.MessageIndex, id models.MediaId) (models.Media, bool)

// InsertResultKind discriminates Set outcomes.
type InsertResultKind int

const (
	// InsertReference tells the caller to store only a back-pointer.
	InsertReference InsertResultKind = iota
	// InsertEmbed tells the caller its message must embed the payload.
	InsertEmbed
)

// InsertResult is the outcome of Set. Media is populated for InsertEmbed.
type InsertResult struct {
	Kind  InsertResultKind
	Media models.Media
}

// RemoveResultKind discriminates RemoveReference outcomes.
type RemoveResultKind int

const (
	// RemoveResultReference means the caller held no payload copy.
	RemoveResultReference RemoveResultKind = iota
	// RemoveResultEmbedded means the payload lives at Index and the
	// caller must clean it up there if the media is being deleted.
	RemoveResultEmbedded
)

// RemoveResult is the outcome of RemoveReference. Index is populated for
// RemoveResultEmbedded.
type RemoveResult struct {
	Kind  RemoveResultKind
	Index models.MessageIndex
}

// Table is the media dedup table. It assumes the caller serializes
// mutating operations, matching the value box's own discipline.
type Table struct {
	kv       store.KV
	messages MessageStore
}

// NewTable constructs a media dedup table over the given value box.
func NewTable(kv store.KV, messages MessageStore) *Table {
	return &Table{kv: kv, messages: messages}
}

func (t *Table) row(id models.MediaId) (keys.MediaRow, bool, error) {
	v, found, err := t.kv.Get(store.TableMedia, keys.MediaKey(id))
	if err != nil || !found {
		return keys.MediaRow{}, false, err
	}
	row, ok := keys.DecodeMediaRow(id, v)
	return row, ok, nil
}

// Get returns the media stored under id. A Direct row yields the inline
// payload; a Reference row is resolved through the supplied resolver and
// may legitimately come back absent if the canonical message is gone.
func (t *Table) Get(id models.MediaId, resolver EmbeddedResolver) (models.Media, bool, error) {
	row, ok, err := t.row(id)
	if err != nil || !ok {
		return models.Media{}, false, err
	}
	switch row.Kind {
	case keys.MediaRowDirect:
		return row.Media, true, nil
	default:
		m, found := resolver(row.Reference, id)
		return m, found, nil
	}
}

// Set attaches media to the message at atIndex and returns how the caller
// must store it: InsertEmbed means the message embeds the payload itself,
// InsertReference means it stores a back-pointer only.
func (t *Table) Set(media models.Media, atIndex models.MessageIndex) (InsertResult, error) {
	key := keys.MediaKey(media.Id)
	row, ok, err := t.row(media.Id)
	if err != nil {
		return InsertResult{}, err
	}
	if !ok {
		// First attachment: this message becomes the canonical holder.
		if err := t.kv.Set(store.TableMedia, key, keys.EncodeMediaReference(atIndex)); err != nil {
			return InsertResult{}, err
		}
		telemetry.MediaSets.WithLabelValues("embed").Inc()
		return InsertResult{Kind: InsertEmbed, Media: media}, nil
	}
	switch row.Kind {
	case keys.MediaRowDirect:
		if err := t.kv.Set(store.TableMedia, key, keys.EncodeMediaDirect(row.Media, row.RefCount+1)); err != nil {
			return InsertResult{}, err
		}
		telemetry.MediaSets.WithLabelValues("reference").Inc()
		return InsertResult{Kind: InsertReference}, nil
	default:
		if row.Reference == atIndex {
			telemetry.MediaSets.WithLabelValues("embed").Inc()
			return InsertResult{Kind: InsertEmbed, Media: media}, nil
		}
		payload, relinquished := t.messages.UnembedMedia(row.Reference, media.Id)
		if !relinquished {
			// The old canonical message no longer has the payload. Repoint
			// the row at the new message and make it canonical, so the
			// payload obligation is not dropped.
			logger.Log.Warn("media_canonical_missing",
				zap.Int32("namespace", media.Id.Namespace),
				zap.Int64("id", media.Id.Id),
				zap.Int64("old_peer", row.Reference.Id.PeerId))
			if err := t.kv.Set(store.TableMedia, key, keys.EncodeMediaReference(atIndex)); err != nil {
				return InsertResult{}, err
			}
			telemetry.MediaSets.WithLabelValues("embed").Inc()
			return InsertResult{Kind: InsertEmbed, Media: media}, nil
		}
		// Two holders now exist: the old message (which just gave up its
		// embedded copy) and the new one. The row itself carries the
		// payload from here on.
		if err := t.kv.Set(store.TableMedia, key, keys.EncodeMediaDirect(payload, 2)); err != nil {
			return InsertResult{}, err
		}
		telemetry.MediaPromotions.Inc()
		telemetry.MediaSets.WithLabelValues("reference").Inc()
		logger.Log.Debug("media_promoted_to_direct",
			zap.Int32("namespace", media.Id.Namespace),
			zap.Int64("id", media.Id.Id))
		return InsertResult{Kind: InsertReference}, nil
	}
}

// RemoveReference detaches one reference from id. When the row was a
// Reference, the returned result names the message still holding the
// payload so the caller can clean it up there.
func (t *Table) RemoveReference(id models.MediaId) (RemoveResult, error) {
	key := keys.MediaKey(id)
	row, ok, err := t.row(id)
	if err != nil {
		return RemoveResult{}, err
	}
	if !ok {
		return RemoveResult{Kind: RemoveResultReference}, nil
	}
	telemetry.MediaRemovals.Inc()
	switch row.Kind {
	case keys.MediaRowDirect:
		if row.RefCount-1 <= 0 {
			if err := t.kv.Remove(store.TableMedia, key); err != nil {
				return RemoveResult{}, err
			}
			logger.Log.Debug("media_row_collected",
				zap.Int32("namespace", id.Namespace), zap.Int64("id", id.Id))
		} else {
			if err := t.kv.Set(store.TableMedia, key, keys.EncodeMediaDirect(row.Media, row.RefCount-1)); err != nil {
				return RemoveResult{}, err
			}
		}
		return RemoveResult{Kind: RemoveResultReference}, nil
	default:
		if err := t.kv.Remove(store.TableMedia, key); err != nil {
			return RemoveResult{}, err
		}
		return RemoveResult{Kind: RemoveResultEmbedded, Index: row.Reference}, nil
	}
}

// RemoveEmbeddedMedia drops the row for media unconditionally. Used when
// message storage independently deletes its embedded copy; this is a
// bookkeeping reset, not a reference-counted detach.
func (t *Table) RemoveEmbeddedMedia(media models.Media) error {
	return t.kv.Remove(store.TableMedia, keys.MediaKey(media.Id))
}

// Update replaces the content stored for id with media, preserving the
// reference count. A Direct row is re-encoded in place (moving to a new
// key when the media id itself changed); a Reference row owns no payload,
// so the update is delegated to the canonical message.
func (t *Table) Update(id models.MediaId, media models.Media, atIndex models.MessageIndex) error {
	row, ok, err := t.row(id)
	if err != nil || !ok {
		return err
	}
	switch row.Kind {
	case keys.MediaRowDirect:
		if media.Id != id {
			if err := t.kv.Remove(store.TableMedia, keys.MediaKey(id)); err != nil {
				return err
			}
		}
		return t.kv.Set(store.TableMedia, keys.MediaKey(media.Id), keys.EncodeMediaDirect(media, row.RefCount))
	default:
		t.messages.UpdateEmbeddedMedia(row.Reference, id, media)
		return nil
	}
}

// DebugEntry is one row of DebugList output.
type DebugEntry struct {
	Id  models.MediaId
	Row keys.MediaRow
}

const debugListCap = 100

// DebugList dumps up to debugListCap rows in ascending key order.
func (t *Table) DebugList() ([]DebugEntry, error) {
	var out []DebugEntry
	err := t.kv.Range(store.TableMedia, keys.MediaAbsLowerBound(), keys.MediaAbsUpperBound(), func(k, v []byte) bool {
		id, ok := keys.DecodeMediaKey(k)
		if !ok {
			return true
		}
		row, ok := keys.DecodeMediaRow(id, v)
		if !ok {
			return true
		}
		out = append(out, DebugEntry{Id: id, Row: row})
		return true
	}, debugListCap)
	return out, err
}
