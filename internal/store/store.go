package store

import (
	"context"
	"errors"
	"time"

	"pospro/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateBarcode  = errors.New("barcode already registered")
)

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
	ListLowStockProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	// DeductStock lowers stock for the sold quantities, flooring each
	// product at zero. It reports the ids whose recorded stock was lower
	// than the quantity sold.
	DeductStock(ctx context.Context, quantities map[string]int) (clamped []string, err error)

	CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]domain.Transaction, error)

	CreateCashOperation(ctx context.Context, op domain.CashDrawerOperation) (*domain.CashDrawerOperation, error)
	ListCashOperations(ctx context.Context) ([]domain.CashDrawerOperation, error)
	ListCashOperationsBetween(ctx context.Context, from, to time.Time) ([]domain.CashDrawerOperation, error)

	ListEmployees(ctx context.Context) ([]domain.Employee, error)
	GetEmployee(ctx context.Context, id string) (*domain.Employee, error)
	CreateEmployee(ctx context.Context, employee domain.Employee) (*domain.Employee, error)

	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)

	ResetToSeed(ctx context.Context) error
}
