// Package product implements the product record lifecycle: create, read,
// update and delete of product documents, with the contract membership
// bookkeeping that deletion requires, and the admin query paths.
package product

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/SilvStei/ProductLedger/internal/errs"
	"github.com/SilvStei/ProductLedger/internal/identity"
	"github.com/SilvStei/ProductLedger/internal/ledger"
)

// Manager runs product transactions. It holds no ledger state between calls.
type Manager struct {
	log *zap.Logger
}

// NewManager returns a Manager logging to log.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{log: log.Named("product")}
}

// Create stores a new product. processedProductQuantity is required on input
// but always stored empty.
func (m *Manager) Create(acc ledger.Accessor, caller identity.Caller, req CreateRequest) error {
	if err := RequireFields(Field{"productId", req.ProductID}); err != nil {
		return err
	}
	txn := ledger.Begin(acc)

	key := ledger.ProductKey(req.ProductID)
	exists, err := txn.Exists(key)
	if err != nil {
		return err
	}
	if exists {
		e := errs.New(errs.ErrAlreadyExists, "This product already exists: %s", req.ProductID)
		e.Key = req.ProductID
		return e
	}
	m.log.Info("start createProduct", zap.String("productId", req.ProductID), zap.String("user", caller.UserID))

	if err := req.Validate(); err != nil {
		return err
	}

	bp, err := txn.Exists(ledger.BusinessPartnerKey(req.OwnerBp))
	if err != nil {
		return err
	}
	if !bp {
		e := errs.New(errs.ErrUnknownReference, "Business partner does not exist: %s", req.OwnerBp)
		e.Key = req.OwnerBp
		return e
	}

	p := Product{
		DocType:                  DocType,
		ProductID:                req.ProductID,
		ProductName:              req.ProductName,
		Description:              req.Description,
		ProductQuantity:          req.ProductQuantity,
		Unit:                     req.Unit,
		ProcessedProductQuantity: "",
		Amount:                   req.Amount,
		Currency:                 req.Currency,
		OwnerBp:                  req.OwnerBp,
	}
	if err := putJSON(txn, key, p); err != nil {
		return err
	}
	return txn.Commit()
}

// Read returns the stored product document unchanged. Admin only.
func (m *Manager) Read(acc ledger.Accessor, caller identity.Caller, productID string) ([]byte, error) {
	if err := caller.Require(identity.RoleAdmin); err != nil {
		return nil, err
	}
	if err := RequireFields(Field{"productId", productID}); err != nil {
		return nil, err
	}
	data, err := ledger.Begin(acc).Get(ledger.ProductKey(productID))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errs.NotFound("Product", productID)
	}
	m.log.Debug("queryProduct", zap.String("productId", productID), zap.ByteString("record", data))
	return data, nil
}

// Update replaces the whole product document.
func (m *Manager) Update(acc ledger.Accessor, caller identity.Caller, req UpdateRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	m.log.Info("start updating product", zap.String("productId", req.ProductID), zap.String("user", caller.UserID))

	txn := ledger.Begin(acc)
	key := ledger.ProductKey(req.ProductID)
	existing, err := txn.Get(key)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		return errs.NotFound("Product", req.ProductID)
	}
	var prev any
	if err := json.Unmarshal(existing, &prev); err != nil {
		return errs.Decode(req.ProductID, err)
	}
	m.log.Debug("existing product", zap.Any("product", prev))

	if err := putJSON(txn, key, req.record()); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	m.log.Info("end update product (success)", zap.String("productId", req.ProductID))
	return nil
}

// Delete removes a product and drops it from the contract's product list in
// one unit. Admin only.
func (m *Manager) Delete(acc ledger.Accessor, caller identity.Caller, req DeleteRequest) error {
	if err := caller.Require(identity.RoleAdmin); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	txn := ledger.Begin(acc)
	productKey := ledger.ProductKey(req.ProductID)
	exists, err := txn.Exists(productKey)
	if err != nil {
		return err
	}
	if !exists {
		return errs.NotFound("Product", req.ProductID)
	}

	contractKey := ledger.ContractKey(req.ContractID)
	data, err := txn.Get(contractKey)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errs.NotFound("Contract", req.ContractID)
	}
	contract, err := DecodeContract(req.ContractID, data)
	if err != nil {
		return err
	}

	if contract.Completed() {
		e := errs.New(errs.ErrConflict, "Contract is in complete state : #%s#", req.ContractID)
		e.Code = errs.CodeContractCompleted
		e.Key = req.ContractID
		return e
	}
	if !contract.RemoveProduct(req.ProductID) {
		e := errs.New(errs.ErrNotPartOfContract, "The product %s is not part of the contract %s", req.ProductID, req.ContractID)
		e.Key = req.ProductID
		return e
	}

	encoded, err := contract.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode contract %s: %w", req.ContractID, err)
	}
	if err := txn.Delete(productKey); err != nil {
		return err
	}
	if err := txn.Put(contractKey, encoded); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	m.log.Info("deleted product", zap.String("productId", req.ProductID), zap.String("contractId", req.ContractID))
	return nil
}

// ListAll returns every product document as a JSON array of {Key, Record}.
// Admin only.
func (m *Manager) ListAll(acc ledger.Accessor, caller identity.Caller) ([]byte, error) {
	if err := caller.Require(identity.RoleAdmin); err != nil {
		return nil, err
	}
	return m.querySelector(acc, ledger.Selector(map[string]any{"docType": DocType}))
}

// QueryByOwner returns the products owned by a business partner. Admin only.
func (m *Manager) QueryByOwner(acc ledger.Accessor, caller identity.Caller, ownerBp string) ([]byte, error) {
	if err := caller.Require(identity.RoleAdmin); err != nil {
		return nil, err
	}
	if err := RequireFields(Field{"ownerBp", ownerBp}); err != nil {
		return nil, err
	}
	return m.querySelector(acc, ledger.Selector(map[string]any{"docType": DocType, "ownerBp": ownerBp}))
}

// QueryBySelector runs an ad-hoc rich query. Admin only.
func (m *Manager) QueryBySelector(acc ledger.Accessor, caller identity.Caller, query string) ([]byte, error) {
	if err := caller.Require(identity.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := ledger.ParseQuery(query); err != nil {
		return nil, err
	}
	return m.query(acc, query)
}

// History returns every recorded version of a product. Admin only.
func (m *Manager) History(acc ledger.Accessor, caller identity.Caller, productID string) ([]byte, error) {
	if err := caller.Require(identity.RoleAdmin); err != nil {
		return nil, err
	}
	if err := RequireFields(Field{"productId", productID}); err != nil {
		return nil, err
	}
	it, err := acc.GetHistoryForKey(ledger.ProductKey(productID))
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", productID, err)
	}
	return ledger.MaterializeJSON(ledger.HistoryIterator(it), ledger.History, m.log)
}

func (m *Manager) querySelector(acc ledger.Accessor, q ledger.Query) ([]byte, error) {
	query, err := q.JSON()
	if err != nil {
		return nil, err
	}
	return m.query(acc, query)
}

func (m *Manager) query(acc ledger.Accessor, query string) ([]byte, error) {
	m.log.Debug("getQueryResultForQueryString", zap.String("query", query))
	it, err := acc.GetQueryResult(query)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	return ledger.MaterializeJSON(ledger.StateIterator(it), ledger.Current, m.log)
}

func putJSON(txn *ledger.Txn, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return txn.Put(key, b)
}
