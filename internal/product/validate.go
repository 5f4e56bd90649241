package product

import "github.com/SilvStei/ProductLedger/internal/errs"

// Field is a named argument value.
type Field struct {
	Name  string
	Value string
}

// checkArity fails with ArityMismatch unless len(args) == want.
func checkArity(args []string, want int) error {
	if len(args) != want {
		return errs.Arity(want, len(args))
	}
	return nil
}

// RequireFields returns MissingField for the first empty field.
func RequireFields(fields ...Field) error {
	for _, f := range fields {
		if f.Value == "" {
			return errs.Missing(f.Name)
		}
	}
	return nil
}

// CreateRequest holds the arguments of createProduct.
type CreateRequest struct {
	ProductID                string
	ProductName              string
	Description              string
	ProductQuantity          string
	Unit                     string
	ProcessedProductQuantity string
	Amount                   string
	Currency                 string
	OwnerBp                  string
}

// createArity is the positional argument count of createProduct.
const createArity = 9

// createRequestFromArgs maps productId, productName, description,
// productQuantity, unit, processedProductQuantity, amount, currency, ownerBp.
func createRequestFromArgs(args []string) (CreateRequest, error) {
	if err := checkArity(args, createArity); err != nil {
		return CreateRequest{}, err
	}
	return CreateRequest{
		ProductID:                args[0],
		ProductName:              args[1],
		Description:              args[2],
		ProductQuantity:          args[3],
		Unit:                     args[4],
		ProcessedProductQuantity: args[5],
		Amount:                   args[6],
		Currency:                 args[7],
		OwnerBp:                  args[8],
	}, nil
}

// Validate checks the descriptive fields. The product id is checked
// separately, before the existence lookup.
func (r CreateRequest) Validate() error {
	return RequireFields(
		Field{"productName", r.ProductName},
		Field{"description", r.Description},
		Field{"productQuantity", r.ProductQuantity},
		Field{"unit", r.Unit},
		Field{"processedProductQuantity", r.ProcessedProductQuantity},
		Field{"amount", r.Amount},
		Field{"currency", r.Currency},
		Field{"ownerBp", r.OwnerBp},
	)
}

// UpdateRequest holds the arguments of updateProduct.
type UpdateRequest struct {
	ProductID                string
	ProductName              string
	Description              string
	ProductQuantity          string
	Unit                     string
	ProcessedProductQuantity string
	Amount                   string
	Currency                 string
	OwnerBp                  string
	ProductDeliveryFlag      string
	ProductDeliveryUpdate    string
}

// updateArity is the positional argument count of updateProduct.
const updateArity = 11

// updateRequestFromArgs maps the key followed by the ten replacement values.
func updateRequestFromArgs(args []string) (UpdateRequest, error) {
	if err := checkArity(args, updateArity); err != nil {
		return UpdateRequest{}, err
	}
	return UpdateRequest{
		ProductID:                args[0],
		ProductName:              args[1],
		Description:              args[2],
		ProductQuantity:          args[3],
		Unit:                     args[4],
		ProcessedProductQuantity: args[5],
		Amount:                   args[6],
		Currency:                 args[7],
		OwnerBp:                  args[8],
		ProductDeliveryFlag:      args[9],
		ProductDeliveryUpdate:    args[10],
	}, nil
}

func (r UpdateRequest) Validate() error {
	return RequireFields(Field{"productId", r.ProductID})
}

func (r UpdateRequest) record() Product {
	return Product{
		DocType:                  DocType,
		ProductID:                r.ProductID,
		ProductName:              r.ProductName,
		Description:              r.Description,
		ProductQuantity:          r.ProductQuantity,
		Unit:                     r.Unit,
		ProcessedProductQuantity: r.ProcessedProductQuantity,
		Amount:                   r.Amount,
		Currency:                 r.Currency,
		OwnerBp:                  r.OwnerBp,
		ProductDeliveryFlag:      r.ProductDeliveryFlag,
		ProductDeliveryUpdate:    r.ProductDeliveryUpdate,
	}
}

// DeleteRequest holds the arguments of deleteProduct.
type DeleteRequest struct {
	ProductID  string
	ContractID string
}

// deleteArity is the positional argument count of deleteProduct.
const deleteArity = 2

// deleteRequestFromArgs maps productId, contractId.
func deleteRequestFromArgs(args []string) (DeleteRequest, error) {
	if err := checkArity(args, deleteArity); err != nil {
		return DeleteRequest{}, err
	}
	return DeleteRequest{ProductID: args[0], ContractID: args[1]}, nil
}

func (r DeleteRequest) Validate() error {
	return RequireFields(
		Field{"productId", r.ProductID},
		Field{"contractId", r.ContractID},
	)
}
