/*
 * product_contract.go – chaincode for product records shared with the
 * contract and business partner chaincodes on the same channel.
 *
 * Keys:
 *   product_<productId>   product document (docType "product")
 *   contract_<contractId> contract document, products[] lists its products
 *   bp_<bpId>             business partner, referenced by ownerBp
 *
 * Transactions:
 *   CreateProduct()            – new product, owner must exist
 *   UpdateProduct()            – full replace of an existing product
 *   DeleteProduct()            – remove product and its contract membership (admin)
 *   QueryProduct()             – single product (admin)
 *   QueryAllProducts()         – all products (admin)
 *   QueryProductsByOwner()     – products of one business partner (admin)
 *   QueryProductsBySelector()  – ad-hoc rich query (admin)
 *   GetProductHistory()        – every version of one product (admin)
 *
 * The same transactions are reachable by their lower camel case names
 * (createProduct, queryProduct, ...) with positional string arguments.
 *
 * Rich queries need CouchDB as state database.
 */

package main

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"go.uber.org/zap"

	"github.com/SilvStei/ProductLedger/internal/errs"
	"github.com/SilvStei/ProductLedger/internal/identity"
	"github.com/SilvStei/ProductLedger/internal/product"
)

// --------------------------- Contract --------------------------- //

type ProductContract struct {
	contractapi.Contract
	products *product.Manager
	log      *zap.Logger
}

func NewProductContract(log *zap.Logger) *ProductContract {
	c := &ProductContract{
		products: product.NewManager(log),
		log:      log,
	}
	c.Info.Title = "product"
	c.Info.Version = "1.0.0"
	c.BeforeTransaction = c.beforeTransaction
	c.UnknownTransaction = c.unknownTransaction
	return c
}

// --------------------------- Utils --------------------------- //

func (c *ProductContract) beforeTransaction(ctx contractapi.TransactionContextInterface) error {
	fn, params := ctx.GetStub().GetFunctionAndParameters()
	c.log.Info("transaction",
		zap.String("txId", ctx.GetStub().GetTxID()),
		zap.String("function", fn),
		zap.Strings("args", params),
	)
	return nil
}

// unknownTransaction serves clients that address transactions by their
// lower camel case names with positional arguments.
func (c *ProductContract) unknownTransaction(ctx contractapi.TransactionContextInterface) (string, error) {
	fn, args := ctx.GetStub().GetFunctionAndParameters()
	caller, err := c.caller(ctx)
	if err != nil {
		return "", c.fail(fn, err)
	}
	data, err := c.products.Invoke(ctx.GetStub(), caller, fn, args)
	if err != nil {
		return "", c.fail(fn, err)
	}
	return string(data), nil
}

func (c *ProductContract) caller(ctx contractapi.TransactionContextInterface) (identity.Caller, error) {
	return identity.Resolve(ctx.GetClientIdentity())
}

func (c *ProductContract) fail(fn string, err error) error {
	c.log.Error(fn+" failed", zap.NamedError("kind", errs.Kind(err)), zap.Error(err))
	return err
}

// --------------------------- Chaincode-APIs --------------------------- //

// CreateProduct stores a new product owned by an existing business partner.
func (c *ProductContract) CreateProduct(ctx contractapi.TransactionContextInterface, productID, productName, description, productQuantity, unit, processedProductQuantity, amount, currency, ownerBp string) error {
	caller, err := c.caller(ctx)
	if err != nil {
		return c.fail("createProduct", err)
	}
	req := product.CreateRequest{
		ProductID:                productID,
		ProductName:              productName,
		Description:              description,
		ProductQuantity:          productQuantity,
		Unit:                     unit,
		ProcessedProductQuantity: processedProductQuantity,
		Amount:                   amount,
		Currency:                 currency,
		OwnerBp:                  ownerBp,
	}
	if err := c.products.Create(ctx.GetStub(), caller, req); err != nil {
		return c.fail("createProduct", err)
	}
	return nil
}

// QueryProduct returns the stored product document.
func (c *ProductContract) QueryProduct(ctx contractapi.TransactionContextInterface, productID string) (string, error) {
	caller, err := c.caller(ctx)
	if err != nil {
		return "", c.fail("queryProduct", err)
	}
	data, err := c.products.Read(ctx.GetStub(), caller, productID)
	if err != nil {
		return "", c.fail("queryProduct", err)
	}
	return string(data), nil
}

// UpdateProduct replaces every field of an existing product.
func (c *ProductContract) UpdateProduct(ctx contractapi.TransactionContextInterface, productID, productName, description, productQuantity, unit, processedProductQuantity, amount, currency, ownerBp, productDeliveryFlag, productDeliveryUpdate string) error {
	caller, err := c.caller(ctx)
	if err != nil {
		return c.fail("updateProduct", err)
	}
	req := product.UpdateRequest{
		ProductID:                productID,
		ProductName:              productName,
		Description:              description,
		ProductQuantity:          productQuantity,
		Unit:                     unit,
		ProcessedProductQuantity: processedProductQuantity,
		Amount:                   amount,
		Currency:                 currency,
		OwnerBp:                  ownerBp,
		ProductDeliveryFlag:      productDeliveryFlag,
		ProductDeliveryUpdate:    productDeliveryUpdate,
	}
	if err := c.products.Update(ctx.GetStub(), caller, req); err != nil {
		return c.fail("updateProduct", err)
	}
	return nil
}

// DeleteProduct removes a product and drops it from the contract.
func (c *ProductContract) DeleteProduct(ctx contractapi.TransactionContextInterface, productID, contractID string) error {
	caller, err := c.caller(ctx)
	if err != nil {
		return c.fail("deleteProduct", err)
	}
	req := product.DeleteRequest{ProductID: productID, ContractID: contractID}
	if err := c.products.Delete(ctx.GetStub(), caller, req); err != nil {
		return c.fail("deleteProduct", err)
	}
	return nil
}

// QueryAllProducts returns all products as [{Key, Record}].
func (c *ProductContract) QueryAllProducts(ctx contractapi.TransactionContextInterface) (string, error) {
	caller, err := c.caller(ctx)
	if err != nil {
		return "", c.fail("queryAllProducts", err)
	}
	data, err := c.products.ListAll(ctx.GetStub(), caller)
	if err != nil {
		return "", c.fail("queryAllProducts", err)
	}
	return string(data), nil
}

func (c *ProductContract) QueryProductsByOwner(ctx contractapi.TransactionContextInterface, ownerBp string) (string, error) {
	caller, err := c.caller(ctx)
	if err != nil {
		return "", c.fail("queryProductsByOwner", err)
	}
	data, err := c.products.QueryByOwner(ctx.GetStub(), caller, ownerBp)
	if err != nil {
		return "", c.fail("queryProductsByOwner", err)
	}
	return string(data), nil
}

// QueryProductsBySelector runs a CouchDB query string such as
// {"selector":{"docType":"product","currency":"EUR"}}.
func (c *ProductContract) QueryProductsBySelector(ctx contractapi.TransactionContextInterface, queryString string) (string, error) {
	caller, err := c.caller(ctx)
	if err != nil {
		return "", c.fail("queryProductsBySelector", err)
	}
	data, err := c.products.QueryBySelector(ctx.GetStub(), caller, queryString)
	if err != nil {
		return "", c.fail("queryProductsBySelector", err)
	}
	return string(data), nil
}

// GetProductHistory returns [{TxId, Timestamp, IsDelete, Value}] for a product.
func (c *ProductContract) GetProductHistory(ctx contractapi.TransactionContextInterface, productID string) (string, error) {
	caller, err := c.caller(ctx)
	if err != nil {
		return "", c.fail("getProductHistory", err)
	}
	data, err := c.products.History(ctx.GetStub(), caller, productID)
	if err != nil {
		return "", c.fail("getProductHistory", err)
	}
	return string(data), nil
}
