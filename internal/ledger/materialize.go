package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"go.uber.org/zap"
)

// Mode selects the entry shape produced by Materialize.
type Mode int

const (
	// Current produces {Key, Record} entries from a state query.
	Current Mode = iota
	// History produces {TxId, Timestamp, IsDelete, Value} entries from a key history.
	History
)

func (m Mode) String() string {
	switch m {
	case Current:
		return "current"
	case History:
		return "history"
	default:
		return "unknown"
	}
}

// Item is one raw iterator element.
type Item struct {
	Key       string
	TxID      string
	Timestamp time.Time
	IsDelete  bool
	Value     []byte
}

// Iterator is a single pass sequence of items. Close must be called once.
type Iterator interface {
	HasNext() bool
	Next() (Item, error)
	Close() error
}

// Entry is a materialized result. Current entries set Key and Record,
// history entries set TxID, Timestamp, IsDelete and Value.
type Entry struct {
	Key       string          `json:"Key,omitempty"`
	Record    json.RawMessage `json:"Record,omitempty"`
	TxID      string          `json:"TxId,omitempty"`
	Timestamp string          `json:"Timestamp,omitempty"`
	IsDelete  string          `json:"IsDelete,omitempty"`
	Value     json.RawMessage `json:"Value,omitempty"`
}

// Materialize drains it into entries. Items with an empty value are skipped.
// A value that is not JSON is kept as a JSON string and logged. The iterator
// is closed on every return path.
func Materialize(it Iterator, mode Mode, log *zap.Logger) (entries []Entry, err error) {
	defer func() {
		if cerr := it.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s iterator: %w", mode, cerr)
		}
	}()

	entries = []Entry{}
	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read next %s result: %w", mode, err)
		}
		if len(item.Value) == 0 {
			continue
		}
		doc := document(item.Value, log)
		switch mode {
		case History:
			entries = append(entries, Entry{
				TxID:      item.TxID,
				Timestamp: item.Timestamp.UTC().Format(time.RFC3339Nano),
				IsDelete:  strconv.FormatBool(item.IsDelete),
				Value:     doc,
			})
		default:
			entries = append(entries, Entry{Key: item.Key, Record: doc})
		}
	}
	log.Debug("end of data", zap.Stringer("mode", mode), zap.Int("count", len(entries)))
	return entries, nil
}

// MaterializeJSON materializes it and encodes the entries as a JSON array.
func MaterializeJSON(it Iterator, mode Mode, log *zap.Logger) ([]byte, error) {
	entries, err := Materialize(it, mode, log)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entries)
}

func document(value []byte, log *zap.Logger) json.RawMessage {
	if json.Valid(value) {
		return json.RawMessage(value)
	}
	log.Error("stored value is not valid JSON, returning raw text", zap.ByteString("value", value))
	raw, _ := json.Marshal(string(value))
	return raw
}

type stateIterator struct {
	shim.StateQueryIteratorInterface
}

func (s stateIterator) Next() (Item, error) {
	kv, err := s.StateQueryIteratorInterface.Next()
	if err != nil {
		return Item{}, err
	}
	return Item{Key: kv.GetKey(), Value: kv.GetValue()}, nil
}

// StateIterator adapts a rich query iterator.
func StateIterator(it shim.StateQueryIteratorInterface) Iterator {
	return stateIterator{it}
}

type historyIterator struct {
	shim.HistoryQueryIteratorInterface
}

func (h historyIterator) Next() (Item, error) {
	km, err := h.HistoryQueryIteratorInterface.Next()
	if err != nil {
		return Item{}, err
	}
	item := Item{TxID: km.GetTxId(), IsDelete: km.GetIsDelete(), Value: km.GetValue()}
	if ts := km.GetTimestamp(); ts != nil {
		item.Timestamp = ts.AsTime()
	}
	return item, nil
}

// HistoryIterator adapts a key history iterator.
func HistoryIterator(it shim.HistoryQueryIteratorInterface) Iterator {
	return historyIterator{it}
}
