// Package ledger wraps world state access for product transactions: key
// layout, a staged transaction scope, selector construction and iterator
// materialization.
package ledger

import (
	"errors"
	"fmt"

	"github.com/hyperledger/fabric-chaincode-go/shim"
)

// Accessor is the world state surface used by the lifecycle manager.
// shim.ChaincodeStubInterface satisfies it.
type Accessor interface {
	GetState(key string) ([]byte, error)
	PutState(key string, value []byte) error
	DelState(key string) error
	GetQueryResult(query string) (shim.StateQueryIteratorInterface, error)
	GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error)
}

// Key prefixes shared with the other chaincodes on the channel.
const (
	ProductPrefix         = "product_"
	ContractPrefix        = "contract_"
	BusinessPartnerPrefix = "bp_"
)

func ProductKey(id string) string         { return ProductPrefix + id }
func ContractKey(id string) string        { return ContractPrefix + id }
func BusinessPartnerKey(id string) string { return BusinessPartnerPrefix + id }

type write struct {
	key    string
	value  []byte
	delete bool
}

type prior struct {
	value []byte
}

// Txn stages writes against an Accessor until Commit. Reads through the Txn
// observe staged writes. Nothing reaches the accessor before Commit, and a
// failing Commit restores every key it had already written.
type Txn struct {
	acc    Accessor
	writes []write
	staged map[string]write
	before map[string]prior
}

// Begin opens a transaction scope over acc.
func Begin(acc Accessor) *Txn {
	return &Txn{
		acc:    acc,
		staged: make(map[string]write),
		before: make(map[string]prior),
	}
}

// Get returns the staged value for key, or the committed one.
func (t *Txn) Get(key string) ([]byte, error) {
	if w, ok := t.staged[key]; ok {
		if w.delete {
			return nil, nil
		}
		return w.value, nil
	}
	value, err := t.acc.GetState(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from world state: %w", key, err)
	}
	return value, nil
}

// Exists reports whether key holds a non-empty value.
func (t *Txn) Exists(key string) (bool, error) {
	value, err := t.Get(key)
	if err != nil {
		return false, err
	}
	return len(value) > 0, nil
}

// Put stages a write of value under key.
func (t *Txn) Put(key string, value []byte) error {
	return t.stage(write{key: key, value: value})
}

// Delete stages removal of key.
func (t *Txn) Delete(key string) error {
	return t.stage(write{key: key, delete: true})
}

func (t *Txn) stage(w write) error {
	if _, seen := t.before[w.key]; !seen {
		prev, err := t.acc.GetState(w.key)
		if err != nil {
			return fmt.Errorf("failed to read %s from world state: %w", w.key, err)
		}
		t.before[w.key] = prior{value: prev}
	}
	t.staged[w.key] = w
	t.writes = append(t.writes, w)
	return nil
}

// Commit applies the staged writes in order. If a write fails, keys already
// written are restored to their value at staging time.
func (t *Txn) Commit() error {
	var applied []string
	for _, w := range t.writes {
		var err error
		if w.delete {
			err = t.acc.DelState(w.key)
		} else {
			err = t.acc.PutState(w.key, w.value)
		}
		if err != nil {
			err = fmt.Errorf("failed to write %s to world state: %w", w.key, err)
			return errors.Join(err, t.rollback(applied))
		}
		applied = append(applied, w.key)
	}
	t.writes = nil
	t.staged = make(map[string]write)
	t.before = make(map[string]prior)
	return nil
}

func (t *Txn) rollback(keys []string) error {
	var errList []error
	restored := make(map[string]bool, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		if restored[key] {
			continue
		}
		restored[key] = true
		prev := t.before[key].value
		var err error
		if len(prev) == 0 {
			err = t.acc.DelState(key)
		} else {
			err = t.acc.PutState(key, prev)
		}
		if err != nil {
			errList = append(errList, fmt.Errorf("failed to restore %s: %w", key, err))
		}
	}
	return errors.Join(errList...)
}
