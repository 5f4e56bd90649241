package product

import (
	"github.com/SilvStei/ProductLedger/internal/errs"
	"github.com/SilvStei/ProductLedger/internal/identity"
	"github.com/SilvStei/ProductLedger/internal/ledger"
)

type operation func(m *Manager, acc ledger.Accessor, caller identity.Caller, args []string) ([]byte, error)

// operations are addressed by the function names clients send in the
// proposal, with positional string arguments.
var operations = map[string]operation{
	"createProduct": func(m *Manager, acc ledger.Accessor, caller identity.Caller, args []string) ([]byte, error) {
		req, err := createRequestFromArgs(args)
		if err != nil {
			return nil, err
		}
		return nil, m.Create(acc, caller, req)
	},
	"queryProduct": func(m *Manager, acc ledger.Accessor, caller identity.Caller, args []string) ([]byte, error) {
		if err := checkArity(args, 1); err != nil {
			return nil, err
		}
		return m.Read(acc, caller, args[0])
	},
	"updateProduct": func(m *Manager, acc ledger.Accessor, caller identity.Caller, args []string) ([]byte, error) {
		req, err := updateRequestFromArgs(args)
		if err != nil {
			return nil, err
		}
		return nil, m.Update(acc, caller, req)
	},
	"deleteProduct": func(m *Manager, acc ledger.Accessor, caller identity.Caller, args []string) ([]byte, error) {
		req, err := deleteRequestFromArgs(args)
		if err != nil {
			return nil, err
		}
		return nil, m.Delete(acc, caller, req)
	},
	"queryAllProducts": func(m *Manager, acc ledger.Accessor, caller identity.Caller, args []string) ([]byte, error) {
		if err := checkArity(args, 0); err != nil {
			return nil, err
		}
		return m.ListAll(acc, caller)
	},
	"queryProductsByOwner": func(m *Manager, acc ledger.Accessor, caller identity.Caller, args []string) ([]byte, error) {
		if err := checkArity(args, 1); err != nil {
			return nil, err
		}
		return m.QueryByOwner(acc, caller, args[0])
	},
	"queryProductsBySelector": func(m *Manager, acc ledger.Accessor, caller identity.Caller, args []string) ([]byte, error) {
		if err := checkArity(args, 1); err != nil {
			return nil, err
		}
		return m.QueryBySelector(acc, caller, args[0])
	},
	"getProductHistory": func(m *Manager, acc ledger.Accessor, caller identity.Caller, args []string) ([]byte, error) {
		if err := checkArity(args, 1); err != nil {
			return nil, err
		}
		return m.History(acc, caller, args[0])
	},
}

// Invoke runs the transaction named fn with positional arguments. Writes
// return a nil payload. Unknown names fail with UnknownFunction.
func (m *Manager) Invoke(acc ledger.Accessor, caller identity.Caller, fn string, args []string) ([]byte, error) {
	op, ok := operations[fn]
	if !ok {
		return nil, errs.New(errs.ErrUnknownFunction, "Received unknown function %s invocation", fn)
	}
	return op(m, acc, caller, args)
}
