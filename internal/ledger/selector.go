package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/SilvStei/ProductLedger/internal/errs"
)

// Query is a rich query document understood by the state database.
type Query struct {
	Selector map[string]any `json:"selector"`
}

// Selector builds a query matching documents whose fields equal the given
// values. Map keys are encoded in sorted order so the query text is stable.
func Selector(fields map[string]any) Query {
	sel := make(map[string]any, len(fields))
	for k, v := range fields {
		sel[k] = v
	}
	return Query{Selector: sel}
}

// JSON encodes the query.
func (q Query) JSON() (string, error) {
	b, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("failed to encode selector: %w", err)
	}
	return string(b), nil
}

// ParseQuery checks that query is a JSON object with a selector member.
func ParseQuery(query string) (map[string]json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(query), &doc); err != nil {
		return nil, errs.Decode("query", err)
	}
	sel, ok := doc["selector"]
	if !ok {
		return nil, errs.Missing("selector")
	}
	var obj map[string]any
	if err := json.Unmarshal(sel, &obj); err != nil || obj == nil {
		return nil, errs.New(errs.ErrDecode, "selector must be a JSON object")
	}
	return doc, nil
}
