package product_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SilvStei/ProductLedger/internal/errs"
	"github.com/SilvStei/ProductLedger/internal/identity"
	"github.com/SilvStei/ProductLedger/internal/ledger/ledgertest"
	"github.com/SilvStei/ProductLedger/internal/product"
)

var (
	admin = identity.Caller{UserID: "admin", Role: identity.RoleAdmin}
	buyer = identity.Caller{UserID: "alice", Role: "buyer"}
)

func validCreate(id string) product.CreateRequest {
	return product.CreateRequest{
		ProductID:                id,
		ProductName:              "Steel",
		Description:              "Cold rolled steel",
		ProductQuantity:          "100",
		Unit:                     "kg",
		ProcessedProductQuantity: "40",
		Amount:                   "2500",
		Currency:                 "EUR",
		OwnerBp:                  "bp1",
	}
}

func newLedger(t *testing.T) *ledgertest.Ledger {
	t.Helper()
	mem := ledgertest.New()
	mem.SeedJSON("bp_bp1", map[string]string{"bpId": "bp1", "name": "ACME"})
	return mem
}

func readProduct(t *testing.T, mem *ledgertest.Ledger, id string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(mem.Value("product_"+id), &doc))
	return doc
}

func TestCreate(t *testing.T) {
	mem := newLedger(t)
	m := product.NewManager(zap.NewNop())

	require.NoError(t, m.Create(mem, buyer, validCreate("p1")))

	raw, err := m.Read(mem, admin, "p1")
	require.NoError(t, err)
	var got product.Product
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, product.Product{
		DocType:         "product",
		ProductID:       "p1",
		ProductName:     "Steel",
		Description:     "Cold rolled steel",
		ProductQuantity: "100",
		Unit:            "kg",
		Amount:          "2500",
		Currency:        "EUR",
		OwnerBp:         "bp1",
	}, got)
	assert.Empty(t, got.ProcessedProductQuantity)
}

func TestCreateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*product.CreateRequest)
		kind   error
		field  string
	}{
		{"empty id", func(r *product.CreateRequest) { r.ProductID = "" }, errs.ErrMissingField, "productId"},
		{"already exists", func(r *product.CreateRequest) { r.ProductID = "taken" }, errs.ErrAlreadyExists, ""},
		{"missing name", func(r *product.CreateRequest) { r.ProductName = "" }, errs.ErrMissingField, "productName"},
		{"missing description", func(r *product.CreateRequest) { r.Description = "" }, errs.ErrMissingField, "description"},
		{"missing processed quantity", func(r *product.CreateRequest) { r.ProcessedProductQuantity = "" }, errs.ErrMissingField, "processedProductQuantity"},
		{"first violation wins", func(r *product.CreateRequest) { r.Unit = ""; r.Currency = "" }, errs.ErrMissingField, "unit"},
		{"missing owner", func(r *product.CreateRequest) { r.OwnerBp = "" }, errs.ErrMissingField, "ownerBp"},
		{"unknown owner", func(r *product.CreateRequest) { r.OwnerBp = "ghost" }, errs.ErrUnknownReference, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newLedger(t)
			mem.SeedJSON("product_taken", map[string]string{"productId": "taken"})
			m := product.NewManager(nil)

			req := validCreate("p1")
			tt.mutate(&req)
			err := m.Create(mem, buyer, req)
			require.ErrorIs(t, err, tt.kind)
			if tt.field != "" {
				var e *errs.Error
				require.True(t, errors.As(err, &e))
				assert.Equal(t, tt.field, e.Field)
			}
			if req.ProductID != "taken" && req.ProductID != "" {
				assert.Nil(t, mem.Value("product_"+req.ProductID))
			}
		})
	}
}

func TestCreateTwice(t *testing.T) {
	mem := newLedger(t)
	m := product.NewManager(nil)
	require.NoError(t, m.Create(mem, buyer, validCreate("p1")))
	require.ErrorIs(t, m.Create(mem, buyer, validCreate("p1")), errs.ErrAlreadyExists)
}

func TestReadFailures(t *testing.T) {
	mem := newLedger(t)
	m := product.NewManager(nil)

	_, err := m.Read(mem, buyer, "p1")
	require.ErrorIs(t, err, errs.ErrPermissionDenied)

	_, err = m.Read(mem, admin, "")
	require.ErrorIs(t, err, errs.ErrMissingField)

	_, err = m.Read(mem, admin, "nope")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestReadReturnsBytesUnchanged(t *testing.T) {
	mem := newLedger(t)
	stored := []byte(`{ "productId" : "p9",  "extra": [1,2] }`)
	mem.Seed("product_p9", stored)

	got, err := product.NewManager(nil).Read(mem, admin, "p9")
	require.NoError(t, err)
	assert.Equal(t, stored, got)
}

func TestUpdateReplacesWholeRecord(t *testing.T) {
	mem := newLedger(t)
	mem.Seed("product_p1", []byte(`{"productId":"p1","productName":"Old","legacyField":"x","processedProductQuantity":"7"}`))
	m := product.NewManager(nil)

	_, err := m.Invoke(mem, buyer, "updateProduct", []string{"p1", "New", "Desc", "5", "t", "", "10", "USD", "bp2", "true", "2024-05-01"})
	require.NoError(t, err)

	doc := readProduct(t, mem, "p1")
	assert.Equal(t, map[string]any{
		"docType":                  "product",
		"productId":                "p1",
		"productName":              "New",
		"description":              "Desc",
		"productQuantity":          "5",
		"unit":                     "t",
		"processedProductQuantity": "",
		"amount":                   "10",
		"currency":                 "USD",
		"ownerBp":                  "bp2",
		"productDeliveryFlag":      "true",
		"productDeliveryUpdate":    "2024-05-01",
	}, doc)
}

func TestUpdateFailures(t *testing.T) {
	mem := newLedger(t)
	mem.Seed("product_bad", []byte(`{not json`))
	m := product.NewManager(nil)

	err := m.Update(mem, buyer, product.UpdateRequest{ProductID: "missing"})
	require.ErrorIs(t, err, errs.ErrNotFound)

	err = m.Update(mem, buyer, product.UpdateRequest{ProductID: "bad", ProductName: "x"})
	require.ErrorIs(t, err, errs.ErrDecode)
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "bad", e.Key)
	assert.Equal(t, []byte(`{not json`), mem.Value("product_bad"))

	err = m.Update(mem, buyer, product.UpdateRequest{})
	require.ErrorIs(t, err, errs.ErrMissingField)
}

func TestUpdateAcceptsUntypedStoredJSON(t *testing.T) {
	mem := newLedger(t)
	mem.Seed("product_p1", []byte(`{"productId":"p1","productQuantity":10,"tags":["a"]}`))
	m := product.NewManager(nil)

	require.NoError(t, m.Update(mem, buyer, product.UpdateRequest{ProductID: "p1", ProductQuantity: "12"}))

	doc := readProduct(t, mem, "p1")
	assert.Equal(t, "12", doc["productQuantity"])
	assert.NotContains(t, doc, "tags")
}

func seedContract(mem *ledgertest.Ledger, id, status string, products ...string) {
	mem.SeedJSON("contract_"+id, map[string]any{
		"contractId":     id,
		"contractStatus": status,
		"products":       products,
		"buyerBp":        "bp9",
	})
}

func contractDoc(t *testing.T, mem *ledgertest.Ledger, id string) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(mem.Value("contract_"+id), &doc))
	return doc
}

func TestDelete(t *testing.T) {
	mem := newLedger(t)
	m := product.NewManager(nil)
	require.NoError(t, m.Create(mem, buyer, validCreate("p1")))
	require.NoError(t, m.Create(mem, buyer, validCreate("p2")))
	seedContract(mem, "c1", "open", "p2", "p1")

	require.NoError(t, m.Delete(mem, admin, product.DeleteRequest{ProductID: "p1", ContractID: "c1"}))

	assert.Nil(t, mem.Value("product_p1"))
	doc := contractDoc(t, mem, "c1")
	assert.Equal(t, []any{"p2"}, doc["products"])
	assert.Equal(t, "bp9", doc["buyerBp"])
	assert.Equal(t, "open", doc["contractStatus"])

	_, err := m.Read(mem, admin, "p1")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestDeleteKeepsNonStringContractEntries(t *testing.T) {
	mem := newLedger(t)
	m := product.NewManager(nil)
	require.NoError(t, m.Create(mem, buyer, validCreate("p1")))
	mem.Seed("contract_c1", []byte(`{"contractStatus":"open","products":["p1",42]}`))

	require.NoError(t, m.Delete(mem, admin, product.DeleteRequest{ProductID: "p1", ContractID: "c1"}))
	assert.Nil(t, mem.Value("product_p1"))
	assert.Equal(t, []any{float64(42)}, contractDoc(t, mem, "c1")["products"])
}

func TestDeleteLastProductLeavesEmptyList(t *testing.T) {
	mem := newLedger(t)
	m := product.NewManager(nil)
	require.NoError(t, m.Create(mem, buyer, validCreate("p1")))
	seedContract(mem, "c1", "open", "p1")

	require.NoError(t, m.Delete(mem, admin, product.DeleteRequest{ProductID: "p1", ContractID: "c1"}))
	assert.Equal(t, []any{}, contractDoc(t, mem, "c1")["products"])
}

func TestDeleteFailures(t *testing.T) {
	tests := []struct {
		name   string
		caller identity.Caller
		req    product.DeleteRequest
		kind   error
		code   string
	}{
		{"not admin", buyer, product.DeleteRequest{ProductID: "p1", ContractID: "c1"}, errs.ErrPermissionDenied, ""},
		{"missing product id", admin, product.DeleteRequest{ContractID: "c1"}, errs.ErrMissingField, ""},
		{"missing contract id", admin, product.DeleteRequest{ProductID: "p1"}, errs.ErrMissingField, ""},
		{"unknown product", admin, product.DeleteRequest{ProductID: "nope", ContractID: "c1"}, errs.ErrNotFound, ""},
		{"unknown contract", admin, product.DeleteRequest{ProductID: "p1", ContractID: "nope"}, errs.ErrNotFound, ""},
		{"completed contract", admin, product.DeleteRequest{ProductID: "p1", ContractID: "done"}, errs.ErrConflict, errs.CodeContractCompleted},
		{"not listed", admin, product.DeleteRequest{ProductID: "p1", ContractID: "other"}, errs.ErrNotPartOfContract, ""},
		{"malformed contract", admin, product.DeleteRequest{ProductID: "p1", ContractID: "broken"}, errs.ErrDecode, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newLedger(t)
			m := product.NewManager(nil)
			require.NoError(t, m.Create(mem, buyer, validCreate("p1")))
			seedContract(mem, "c1", "open", "p1")
			seedContract(mem, "done", "completed", "p1")
			seedContract(mem, "other", "open", "p7")
			mem.Seed("contract_broken", []byte(`{"products":`))
			before := map[string][]byte{}
			for _, k := range []string{"product_p1", "contract_c1", "contract_done", "contract_other"} {
				before[k] = mem.Value(k)
			}

			err := m.Delete(mem, tt.caller, tt.req)
			require.ErrorIs(t, err, tt.kind)
			if tt.code != "" {
				var e *errs.Error
				require.True(t, errors.As(err, &e))
				assert.Equal(t, tt.code, e.Code)
			}
			for k, v := range before {
				assert.Equal(t, v, mem.Value(k), "key %s changed", k)
			}
		})
	}
}

func TestDeleteRollsBackWhenContractWriteFails(t *testing.T) {
	mem := newLedger(t)
	m := product.NewManager(nil)
	require.NoError(t, m.Create(mem, buyer, validCreate("p1")))
	seedContract(mem, "c1", "open", "p1")
	mem.FailPut("contract_c1", errors.New("endorsement failure"))

	err := m.Delete(mem, admin, product.DeleteRequest{ProductID: "p1", ContractID: "c1"})
	require.Error(t, err)

	assert.NotNil(t, mem.Value("product_p1"))
	assert.Equal(t, []any{"p1"}, contractDoc(t, mem, "c1")["products"])
}

func TestListAll(t *testing.T) {
	mem := newLedger(t)
	m := product.NewManager(nil)
	require.NoError(t, m.Create(mem, buyer, validCreate("p1")))
	require.NoError(t, m.Create(mem, buyer, validCreate("p2")))
	seedContract(mem, "c1", "open", "p1")

	_, err := m.ListAll(mem, buyer)
	require.ErrorIs(t, err, errs.ErrPermissionDenied)

	out, err := m.ListAll(mem, admin)
	require.NoError(t, err)
	var entries []struct {
		Key    string
		Record product.Product
	}
	require.NoError(t, json.Unmarshal(out, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "product_p1", entries[0].Key)
	assert.Equal(t, "p1", entries[0].Record.ProductID)
	assert.Equal(t, "product_p2", entries[1].Key)
	assert.Equal(t, 1, mem.Opened)
	assert.Equal(t, 1, mem.Closed)
}

func TestListAllEmpty(t *testing.T) {
	out, err := product.NewManager(nil).ListAll(newLedger(t), admin)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestListAllIteratorFailureStillCloses(t *testing.T) {
	mem := newLedger(t)
	m := product.NewManager(nil)
	require.NoError(t, m.Create(mem, buyer, validCreate("p1")))
	mem.FailNext(errors.New("couchdb timeout"))

	_, err := m.ListAll(mem, admin)
	require.Error(t, err)
	assert.Equal(t, 1, mem.Closed)
}

func TestUpdatedProductStaysQueryable(t *testing.T) {
	mem := newLedger(t)
	m := product.NewManager(nil)
	require.NoError(t, m.Create(mem, buyer, validCreate("p1")))
	require.NoError(t, m.Update(mem, buyer, product.UpdateRequest{ProductID: "p1", OwnerBp: "bp1"}))

	out, err := m.ListAll(mem, admin)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"product_p1"`)
}

func TestQueryByOwner(t *testing.T) {
	mem := newLedger(t)
	mem.SeedJSON("bp_bp2", map[string]string{"bpId": "bp2"})
	m := product.NewManager(nil)
	require.NoError(t, m.Create(mem, buyer, validCreate("p1")))
	other := validCreate("p2")
	other.OwnerBp = "bp2"
	require.NoError(t, m.Create(mem, buyer, other))

	out, err := m.QueryByOwner(mem, admin, "bp2")
	require.NoError(t, err)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(out, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "product_p2", entries[0]["Key"])

	_, err = m.QueryByOwner(mem, admin, "")
	require.ErrorIs(t, err, errs.ErrMissingField)
	_, err = m.QueryByOwner(mem, buyer, "bp2")
	require.ErrorIs(t, err, errs.ErrPermissionDenied)
}

func TestQueryBySelector(t *testing.T) {
	mem := newLedger(t)
	m := product.NewManager(nil)
	require.NoError(t, m.Create(mem, buyer, validCreate("p1")))

	out, err := m.QueryBySelector(mem, admin, `{"selector":{"currency":"EUR"}}`)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"product_p1"`)

	_, err = m.QueryBySelector(mem, admin, `{"limit":1}`)
	require.ErrorIs(t, err, errs.ErrMissingField)
	_, err = m.QueryBySelector(mem, admin, `oops`)
	require.ErrorIs(t, err, errs.ErrDecode)
	_, err = m.QueryBySelector(mem, buyer, `{"selector":{}}`)
	require.ErrorIs(t, err, errs.ErrPermissionDenied)
}

func TestHistory(t *testing.T) {
	mem := newLedger(t)
	m := product.NewManager(nil)

	mem.Begin("tx-create")
	require.NoError(t, m.Create(mem, buyer, validCreate("p1")))
	mem.Begin("tx-update")
	require.NoError(t, m.Update(mem, buyer, product.UpdateRequest{ProductID: "p1", ProductName: "Renamed"}))
	seedContract(mem, "c1", "open", "p1")
	mem.Begin("tx-delete")
	require.NoError(t, m.Delete(mem, admin, product.DeleteRequest{ProductID: "p1", ContractID: "c1"}))

	out, err := m.History(mem, admin, "p1")
	require.NoError(t, err)
	var entries []struct {
		TxId      string
		Timestamp string
		IsDelete  string
		Value     product.Product
	}
	require.NoError(t, json.Unmarshal(out, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "tx-create", entries[0].TxId)
	assert.Equal(t, "false", entries[0].IsDelete)
	assert.Equal(t, "Steel", entries[0].Value.ProductName)
	assert.Equal(t, "tx-update", entries[1].TxId)
	assert.Equal(t, "Renamed", entries[1].Value.ProductName)
	assert.Equal(t, "2024-01-01T00:00:02Z", entries[1].Timestamp)

	_, err = m.History(mem, buyer, "p1")
	require.ErrorIs(t, err, errs.ErrPermissionDenied)
	_, err = m.History(mem, admin, "")
	require.ErrorIs(t, err, errs.ErrMissingField)
}

func TestEndToEnd(t *testing.T) {
	mem := ledgertest.New()
	mem.SeedJSON("bp_bp1", map[string]string{"bpId": "bp1"})
	m := product.NewManager(nil)

	_, err := m.Invoke(mem, buyer, "createProduct", []string{"p1", "Steel", "Coil", "10", "t", "10", "900", "EUR", "bp1"})
	require.NoError(t, err)

	raw, err := m.Read(mem, admin, "p1")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"processedProductQuantity":""`)

	seedContract(mem, "c1", "open", "p1")
	require.NoError(t, m.Delete(mem, admin, product.DeleteRequest{ProductID: "p1", ContractID: "c1"}))

	_, err = m.Read(mem, admin, "p1")
	require.ErrorIs(t, err, errs.ErrNotFound)
}
