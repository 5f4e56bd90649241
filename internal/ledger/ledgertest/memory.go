// Package ledgertest provides an in-memory world state for tests.
package ledgertest

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Epoch is the timestamp of the first recorded transaction.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Ledger is a versioned key-value store implementing the parts of
// shim.ChaincodeStubInterface that product transactions use. Calling any
// other stub method panics.
type Ledger struct {
	shim.ChaincodeStubInterface

	mu       sync.Mutex
	state    map[string][]byte
	history  map[string][]*queryresult.KeyModification
	txID     string
	seq      int
	fn       string
	args     []string
	failPut  map[string]error
	failDel  map[string]error
	failNext error

	// Closed counts iterator Close calls.
	Closed int
	// Opened counts iterators handed out.
	Opened int
}

// New returns an empty ledger positioned at transaction "tx0".
func New() *Ledger {
	return &Ledger{
		state:   make(map[string][]byte),
		history: make(map[string][]*queryresult.KeyModification),
		txID:    "tx0",
		failPut: make(map[string]error),
		failDel: make(map[string]error),
	}
}

// Begin starts a new transaction id used for subsequent history records.
func (l *Ledger) Begin(txID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txID = txID
	l.seq++
}

// SetFunction sets the value returned by GetFunctionAndParameters.
func (l *Ledger) SetFunction(fn string, args ...string) {
	l.fn = fn
	l.args = args
}

// FailPut makes PutState for key return err.
func (l *Ledger) FailPut(key string, err error) { l.failPut[key] = err }

// FailDel makes DelState for key return err.
func (l *Ledger) FailDel(key string, err error) { l.failDel[key] = err }

// FailNext makes every iterator Next call return err.
func (l *Ledger) FailNext(err error) { l.failNext = err }

// Seed stores value under key without the failure hooks.
func (l *Ledger) Seed(key string, value []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(key, value, false)
}

// SeedJSON stores the JSON encoding of v under key.
func (l *Ledger) SeedJSON(key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	l.Seed(key, b)
}

// Value returns the committed value of key.
func (l *Ledger) Value(key string) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state[key]
}

func (l *Ledger) GetTxID() string {
	return l.txID
}

func (l *Ledger) GetFunctionAndParameters() (string, []string) {
	return l.fn, l.args
}

func (l *Ledger) GetState(key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state[key], nil
}

func (l *Ledger) PutState(key string, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failPut[key]; err != nil {
		return err
	}
	if key == "" {
		return errors.New("empty key not allowed")
	}
	l.set(key, value, false)
	return nil
}

func (l *Ledger) DelState(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failDel[key]; err != nil {
		return err
	}
	l.set(key, nil, true)
	return nil
}

func (l *Ledger) set(key string, value []byte, deleted bool) {
	if deleted {
		delete(l.state, key)
	} else {
		l.state[key] = append([]byte(nil), value...)
	}
	l.history[key] = append(l.history[key], &queryresult.KeyModification{
		TxId:      l.txID,
		Value:     append([]byte(nil), value...),
		Timestamp: timestamppb.New(Epoch.Add(time.Duration(l.seq) * time.Second)),
		IsDelete:  deleted,
	})
}

// GetQueryResult evaluates a selector of top level field equalities over
// every JSON document in key order.
func (l *Ledger) GetQueryResult(query string) (shim.StateQueryIteratorInterface, error) {
	var q struct {
		Selector map[string]any `json:"selector"`
	}
	if err := json.Unmarshal([]byte(query), &q); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, len(l.state))
	for k := range l.state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []*queryresult.KV
	for _, k := range keys {
		var doc map[string]any
		if err := json.Unmarshal(l.state[k], &doc); err != nil {
			continue
		}
		if matches(doc, q.Selector) {
			out = append(out, &queryresult.KV{Key: k, Value: l.state[k]})
		}
	}
	l.Opened++
	return &StateIterator{items: out, ledger: l, failNext: l.failNext}, nil
}

func matches(doc, selector map[string]any) bool {
	for field, want := range selector {
		got, ok := doc[field]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// GetHistoryForKey returns every recorded modification of key, oldest first.
func (l *Ledger) GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	mods := append([]*queryresult.KeyModification(nil), l.history[key]...)
	l.Opened++
	return &HistoryIterator{items: mods, ledger: l, failNext: l.failNext}, nil
}

func (l *Ledger) closed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Closed++
}

// StateIterator is a slice backed shim.StateQueryIteratorInterface.
type StateIterator struct {
	items    []*queryresult.KV
	pos      int
	ledger   *Ledger
	failNext error
	// CloseCalls counts Close invocations on this iterator.
	CloseCalls int
}

// NewStateIterator returns an iterator over kvs that is not tied to a Ledger.
func NewStateIterator(kvs ...*queryresult.KV) *StateIterator {
	return &StateIterator{items: kvs}
}

func (s *StateIterator) HasNext() bool { return s.pos < len(s.items) }

func (s *StateIterator) Next() (*queryresult.KV, error) {
	if s.failNext != nil {
		return nil, s.failNext
	}
	if !s.HasNext() {
		return nil, errors.New("iterator exhausted")
	}
	kv := s.items[s.pos]
	s.pos++
	return kv, nil
}

// FailNext makes Next return err.
func (s *StateIterator) FailNext(err error) { s.failNext = err }

func (s *StateIterator) Close() error {
	s.CloseCalls++
	if s.ledger != nil {
		s.ledger.closed()
	}
	return nil
}

// HistoryIterator is a slice backed shim.HistoryQueryIteratorInterface.
type HistoryIterator struct {
	items    []*queryresult.KeyModification
	pos      int
	ledger   *Ledger
	failNext error
	// CloseCalls counts Close invocations on this iterator.
	CloseCalls int
}

// NewHistoryIterator returns an iterator over mods that is not tied to a Ledger.
func NewHistoryIterator(mods ...*queryresult.KeyModification) *HistoryIterator {
	return &HistoryIterator{items: mods}
}

func (h *HistoryIterator) HasNext() bool { return h.pos < len(h.items) }

func (h *HistoryIterator) Next() (*queryresult.KeyModification, error) {
	if h.failNext != nil {
		return nil, h.failNext
	}
	if !h.HasNext() {
		return nil, errors.New("iterator exhausted")
	}
	m := h.items[h.pos]
	h.pos++
	return m, nil
}

func (h *HistoryIterator) Close() error {
	h.CloseCalls++
	if h.ledger != nil {
		h.ledger.closed()
	}
	return nil
}
