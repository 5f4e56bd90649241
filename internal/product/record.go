package product

import (
	"encoding/json"
	"slices"

	"github.com/SilvStei/ProductLedger/internal/errs"
)

// DocType tags product documents for selector queries.
const DocType = "product"

// ContractCompleted is the contract status that freezes its product list.
const ContractCompleted = "completed"

// Product is the world state document stored under product_<productId>.
type Product struct {
	DocType                  string `json:"docType"`
	ProductID                string `json:"productId"`
	ProductName              string `json:"productName"`
	Description              string `json:"description"`
	ProductQuantity          string `json:"productQuantity"`
	Unit                     string `json:"unit"`
	ProcessedProductQuantity string `json:"processedProductQuantity"`
	Amount                   string `json:"amount"`
	Currency                 string `json:"currency"`
	OwnerBp                  string `json:"ownerBp"`
	ProductDeliveryFlag      string `json:"productDeliveryFlag"`
	ProductDeliveryUpdate    string `json:"productDeliveryUpdate"`
}

// Contract is the part of a contract document this chaincode reads and
// rewrites. Fields it does not know about are carried through unchanged, as
// are product list entries that are not strings.
type Contract struct {
	ContractStatus string

	products []json.RawMessage
	fields   map[string]json.RawMessage
}

// DecodeContract parses the document stored under key.
func DecodeContract(key string, data []byte) (*Contract, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errs.Decode(key, err)
	}
	if fields == nil {
		return nil, errs.New(errs.ErrDecode, "Failed to decode JSON of: %s (not an object)", key)
	}
	c := &Contract{fields: fields}
	if raw, ok := fields["contractStatus"]; ok {
		// a non-string status never equals "completed"
		_ = json.Unmarshal(raw, &c.ContractStatus)
	}
	if raw, ok := fields["products"]; ok {
		if err := json.Unmarshal(raw, &c.products); err != nil {
			return nil, errs.Decode(key, err)
		}
	}
	return c, nil
}

// Completed reports whether the contract is finalized.
func (c *Contract) Completed() bool {
	return c.ContractStatus == ContractCompleted
}

// IndexOf returns the position of productID in the product list, or -1.
func (c *Contract) IndexOf(productID string) int {
	return slices.IndexFunc(c.products, func(raw json.RawMessage) bool {
		var id string
		return json.Unmarshal(raw, &id) == nil && id == productID
	})
}

// RemoveProduct drops productID from the product list.
func (c *Contract) RemoveProduct(productID string) bool {
	i := c.IndexOf(productID)
	if i < 0 {
		return false
	}
	c.products = slices.Delete(c.products, i, i+1)
	return true
}

// Encode renders the contract with its updated product list.
func (c *Contract) Encode() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.fields)+1)
	for k, v := range c.fields {
		out[k] = v
	}
	products := c.products
	if products == nil {
		products = []json.RawMessage{}
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return nil, err
	}
	out["products"] = raw
	return json.Marshal(out)
}
