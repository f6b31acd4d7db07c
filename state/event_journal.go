package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"lendledger/core/types"
	"lendledger/storage"
)

var (
	journalSeqKey      = []byte("lending/events/seq")
	journalEntryPrefix = []byte("lending/events/entry/")
)

// EventJournal durably records emitted ledger notifications so external
// observers can replay them. Appends are fire-and-forget from the engine's
// point of view; the journal never feeds back into transition logic.
type EventJournal struct {
	db storage.Database
}

// NewEventJournal wraps the database in an event journal.
func NewEventJournal(db storage.Database) *EventJournal {
	return &EventJournal{db: db}
}

type storedAttribute struct {
	Key   string
	Value string
}

// storedEvent flattens the attribute map into a sorted pair list so the RLP
// encoding is deterministic.
type storedEvent struct {
	Type       string
	Attributes []storedAttribute
}

// Append records the event under the next sequence number.
func (j *EventJournal) Append(evt *types.Event) error {
	if evt == nil {
		return fmt.Errorf("event journal: nil event")
	}
	seq, err := j.Len()
	if err != nil {
		return err
	}
	stored := &storedEvent{Type: evt.Type}
	for key, value := range evt.Attributes {
		stored.Attributes = append(stored.Attributes, storedAttribute{Key: key, Value: value})
	}
	sort.Slice(stored.Attributes, func(i, k int) bool {
		return stored.Attributes[i].Key < stored.Attributes[k].Key
	})
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("event journal: encode event: %w", err)
	}
	if err := j.db.Put(entryKey(seq), encoded); err != nil {
		return fmt.Errorf("event journal: persist event: %w", err)
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, seq+1)
	return j.db.Put(journalSeqKey, next)
}

// Len returns the number of recorded events.
func (j *EventJournal) Len() (uint64, error) {
	data, err := j.db.Get(journalSeqKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("event journal: load sequence: %w", err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("event journal: corrupt sequence entry")
	}
	return binary.BigEndian.Uint64(data), nil
}

// Event returns the event recorded at the given zero-based index.
func (j *EventJournal) Event(index uint64) (*types.Event, error) {
	data, err := j.db.Get(entryKey(index))
	if err != nil {
		return nil, fmt.Errorf("event journal: load event %d: %w", index, err)
	}
	stored := new(storedEvent)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, fmt.Errorf("event journal: decode event %d: %w", index, err)
	}
	evt := &types.Event{Type: stored.Type, Attributes: make(map[string]string, len(stored.Attributes))}
	for _, attr := range stored.Attributes {
		evt.Attributes[attr.Key] = attr.Value
	}
	return evt, nil
}

func entryKey(index uint64) []byte {
	key := append([]byte(nil), journalEntryPrefix...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	return append(key, buf[:]...)
}
