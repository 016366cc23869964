package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"pospro/backend/internal/domain"
	"pospro/backend/internal/store"
)

var (
	ErrStockCeiling = errors.New("requested quantity exceeds available stock")
	ErrEmptyCart    = errors.New("cart is empty")
)

// Catalog is the slice of the repository the cart needs to resolve
// barcodes and searches.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
}

// Cart is the single open register cart. Lines keep a copy of the
// product as it looked when added; catalog edits are pushed in through
// ApplyProductUpdate so open carts see price changes before settlement.
type Cart struct {
	mu          sync.Mutex
	catalog     Catalog
	lines       []domain.CartLine
	lastScanned *domain.Product
}

func New(catalog Catalog) *Cart {
	return &Cart{catalog: catalog}
}

// AddByBarcode resolves an exact barcode and adds one unit, merging into
// an existing line for the same product. Adding past the recorded stock
// is rejected.
func (c *Cart) AddByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	product, err := c.catalog.GetProductByBarcode(ctx, strings.TrimSpace(barcode))
	if err != nil {
		return nil, err
	}
	if err := c.add(*product, 1); err != nil {
		return nil, err
	}
	return product, nil
}

// AddProduct adds one unit of a known product id.
func (c *Cart) AddProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := c.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := c.add(*product, 1); err != nil {
		return nil, err
	}
	return product, nil
}

func (c *Cart) add(product domain.Product, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, line := range c.lines {
		if line.Product.ID == product.ID {
			if line.Quantity+qty > product.Stock {
				return fmt.Errorf("%w: %s has %d in stock", ErrStockCeiling, product.Name, product.Stock)
			}
			c.lines[i].Quantity += qty
			c.lines[i].Product = product
			c.lastScanned = &product
			return nil
		}
	}
	if qty > product.Stock {
		return fmt.Errorf("%w: %s has %d in stock", ErrStockCeiling, product.Name, product.Stock)
	}
	c.lines = append(c.lines, domain.CartLine{Product: product, Quantity: qty})
	c.lastScanned = &product
	return nil
}

// UpdateQuantity sets the absolute quantity of a line. Zero or negative
// removes the line. Raising above the recorded stock is rejected and the
// line keeps its previous quantity.
func (c *Cart) UpdateQuantity(productID string, qty int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, line := range c.lines {
		if line.Product.ID != productID {
			continue
		}
		if qty <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return nil
		}
		if qty > line.Product.Stock {
			return fmt.Errorf("%w: %s has %d in stock", ErrStockCeiling, line.Product.Name, line.Product.Stock)
		}
		c.lines[i].Quantity = qty
		return nil
	}
	return store.ErrNotFound
}

// RemoveLine drops a product from the cart entirely.
func (c *Cart) RemoveLine(productID string) error {
	return c.UpdateQuantity(productID, 0)
}

// Search runs a free-text catalog search. Numeric input longer than five
// characters is treated as a scanner burst: an exact barcode match adds
// the product immediately and reports scanned=true with no candidate list.
func (c *Cart) Search(ctx context.Context, query string) (results []domain.Product, scanned *domain.Product, err error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return []domain.Product{}, nil, nil
	}

	if isNumeric(trimmed) && len(trimmed) > 5 {
		if product, err := c.catalog.GetProductByBarcode(ctx, trimmed); err == nil {
			if err := c.add(*product, 1); err != nil {
				return nil, nil, err
			}
			return nil, product, nil
		}
	}

	results, err = c.catalog.SearchProducts(ctx, trimmed)
	if err != nil {
		return nil, nil, err
	}
	return results, nil, nil
}

// SubmitSearch is the enter-key path: an exact barcode match among the
// candidates wins outright, a query that narrows to exactly one
// candidate adds that product, and anything else returns the candidates
// for the operator to pick from.
func (c *Cart) SubmitSearch(ctx context.Context, query string) (results []domain.Product, added *domain.Product, err error) {
	results, added, err = c.Search(ctx, query)
	if err != nil || added != nil {
		return results, added, err
	}
	trimmed := strings.TrimSpace(query)
	for _, candidate := range results {
		if candidate.Barcode != trimmed {
			continue
		}
		if err := c.add(candidate, 1); err != nil {
			return nil, nil, err
		}
		product := candidate
		return nil, &product, nil
	}
	if len(results) == 1 {
		if err := c.add(results[0], 1); err != nil {
			return nil, nil, err
		}
		product := results[0]
		return nil, &product, nil
	}
	return results, nil, nil
}

// ApplyProductUpdate refreshes the product copy held by an open cart
// line after a catalog edit. If the new stock is below the line
// quantity, the quantity is lowered to match. A deleted product is
// dropped from the cart.
func (c *Cart) ApplyProductUpdate(product *domain.Product, deleted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, line := range c.lines {
		if line.Product.ID != product.ID {
			continue
		}
		if deleted {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
		c.lines[i].Product = *product
		if c.lines[i].Quantity > product.Stock {
			c.lines[i].Quantity = product.Stock
		}
		if c.lines[i].Quantity == 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		}
		return
	}
}

// Subtotal sums effective price times quantity across all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subtotalLocked()
}

func (c *Cart) subtotalLocked() decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range c.lines {
		subtotal = subtotal.Add(line.LineTotal())
	}
	return subtotal
}

// Totals returns subtotal, tax and total in one pass. The tax is kept
// exact; rounding happens only at presentation.
func (c *Cart) Totals() (subtotal, tax, total decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subtotal = c.subtotalLocked()
	tax = subtotal.Mul(domain.TaxRate)
	total = subtotal.Add(tax)
	return subtotal, tax, total
}

// Lines returns a copy of the current cart lines.
func (c *Cart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]domain.CartLine, len(c.lines))
	copy(lines, c.lines)
	return lines
}

func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// Snapshot freezes the cart into transaction items priced at the
// effective price in force right now. Later catalog edits do not touch
// the returned items.
func (c *Cart) Snapshot() []domain.TransactionItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]domain.TransactionItem, 0, len(c.lines))
	for _, line := range c.lines {
		items = append(items, domain.TransactionItem{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			Price:       line.Product.EffectivePrice(),
		})
	}
	return items
}

// Reset empties the cart after settlement or an explicit clear.
func (c *Cart) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	c.lastScanned = nil
}

// View assembles the API representation of the cart.
func (c *Cart) View() domain.CartView {
	subtotal, tax, total := c.Totals()
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]domain.CartLine, len(c.lines))
	copy(lines, c.lines)
	view := domain.CartView{
		Items:    lines,
		Subtotal: subtotal,
		Tax:      tax,
		Total:    total,
	}
	if c.lastScanned != nil {
		scanned := *c.lastScanned
		view.LastScanned = &scanned
	}
	return view
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
