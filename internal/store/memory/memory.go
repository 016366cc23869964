package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"pospro/backend/internal/domain"
	"pospro/backend/internal/store"
	"pospro/backend/internal/xid"
)

type Store struct {
	mu             sync.RWMutex
	products       map[string]domain.Product
	transactions   []domain.Transaction
	cashOperations []domain.CashDrawerOperation
	employeesByID  map[string]domain.Employee
	suppliersByID  map[string]domain.Supplier
}

// seedEmployees builds the initial operator accounts for dev/demo mode.
// PINs are read from SEED_ADMIN_PIN and SEED_CASHIER_PIN; if unset,
// hardcoded dev defaults are used with a warning printed to stdout.
func seedEmployees() map[string]domain.Employee {
	adminPIN := envOr("SEED_ADMIN_PIN", "1234")
	cashierPIN := envOr("SEED_CASHIER_PIN", "5678")
	if os.Getenv("SEED_ADMIN_PIN") == "" || os.Getenv("SEED_CASHIER_PIN") == "" {
		log.Println("[memory-store] WARNING: using default dev PINs. Set SEED_ADMIN_PIN and SEED_CASHIER_PIN to override.")
	}

	employees := map[string]domain.Employee{}
	for _, e := range []struct {
		id   string
		name string
		role string
		pin  string
	}{
		{"emp-1", "Ana Souza", "admin", adminPIN},
		{"emp-2", "Carlos Lima", "cashier", cashierPIN},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(e.pin), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed PIN for %s: %v", e.name, err)
		}
		employees[e.id] = domain.Employee{
			ID:      e.id,
			Name:    e.name,
			Role:    e.role,
			PINHash: string(hash),
		}
	}
	return employees
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func seedProducts() map[string]domain.Product {
	price := decimal.RequireFromString
	products := []domain.Product{
		{ID: "prod-1", Name: "Arroz Branco 5kg", CostPrice: price("18.50"), SalePrice: price("24.90"), Barcode: "7891234560011", Stock: 40, LowStockThreshold: 10},
		{ID: "prod-2", Name: "Feijão Carioca 1kg", CostPrice: price("5.80"), SalePrice: price("8.49"), Barcode: "7891234560028", Stock: 55, LowStockThreshold: 15},
		{ID: "prod-3", Name: "Óleo de Soja 900ml", CostPrice: price("4.90"), SalePrice: price("7.29"), Barcode: "7891234560035", Stock: 60, LowStockThreshold: 12},
		{ID: "prod-4", Name: "Açúcar Refinado 1kg", CostPrice: price("3.20"), SalePrice: price("4.99"), Barcode: "7891234560042", Stock: 70, LowStockThreshold: 20},
		{ID: "prod-5", Name: "Café Torrado 500g", CostPrice: price("12.40"), SalePrice: price("18.90"), Barcode: "7891234560059", Stock: 35, LowStockThreshold: 8,
			Promotion: &domain.Promotion{Description: "Oferta da semana", DiscountedPrice: price("15.90")}},
		{ID: "prod-6", Name: "Leite Integral 1L", CostPrice: price("3.80"), SalePrice: price("5.49"), Barcode: "7891234560066", Stock: 80, LowStockThreshold: 24},
		{ID: "prod-7", Name: "Pão de Forma 450g", CostPrice: price("4.50"), SalePrice: price("7.90"), Barcode: "7891234560073", Stock: 25, LowStockThreshold: 10},
		{ID: "prod-8", Name: "Refrigerante Cola 2L", CostPrice: price("5.60"), SalePrice: price("9.49"), Barcode: "7891234560080", Stock: 48, LowStockThreshold: 12},
		{ID: "prod-9", Name: "Sabão em Pó 1kg", CostPrice: price("8.90"), SalePrice: price("13.90"), Barcode: "7891234560097", Stock: 30, LowStockThreshold: 8},
		{ID: "prod-10", Name: "Detergente 500ml", CostPrice: price("1.60"), SalePrice: price("2.79"), Barcode: "7891234560103", Stock: 90, LowStockThreshold: 25},
		{ID: "prod-11", Name: "Macarrão Espaguete 500g", CostPrice: price("2.70"), SalePrice: price("4.29"), Barcode: "7891234560110", Stock: 65, LowStockThreshold: 18},
		{ID: "prod-12", Name: "Chocolate ao Leite 90g", CostPrice: price("3.90"), SalePrice: price("6.49"), Barcode: "7891234560127", Stock: 8, LowStockThreshold: 10},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	return productMap
}

func seedSuppliers() map[string]domain.Supplier {
	suppliers := []domain.Supplier{
		{ID: "sup-1", Name: "Distribuidora Alimentos BR", CNPJ: "12.345.678/0001-90", ContactPerson: "Marcos Pereira", Phone: "(11) 4002-8922"},
		{ID: "sup-2", Name: "Bebidas do Vale Ltda", CNPJ: "98.765.432/0001-10", ContactPerson: "Juliana Castro", Phone: "(11) 3003-1515"},
	}
	supplierMap := make(map[string]domain.Supplier, len(suppliers))
	for _, s := range suppliers {
		supplierMap[s.ID] = s
	}
	return supplierMap
}

// seedTransactions builds a small recent sales history so the dashboard
// and reports have data before the first checkout. Ordered most recent
// first, matching the ledger layout.
func seedTransactions() []domain.Transaction {
	price := decimal.RequireFromString
	now := time.Now().UTC()
	return []domain.Transaction{
		{
			ID:   "tx-seed-3",
			Date: now.Add(-24 * time.Hour),
			Items: []domain.TransactionItem{
				{ProductID: "prod-7", ProductName: "Pão de Forma 450g", Quantity: 2, Price: price("7.90")},
			},
			Total:         price("16.59"),
			EmployeeID:    "emp-2",
			EmployeeName:  "Carlos Lima",
			CustomerName:  "Maria Oliveira",
			PaymentMethod: domain.PaymentBoleto,
			Status:        domain.StatusPendente,
			BoletoDueDate: now.AddDate(0, 1, 0).Format("2006-01-02"),
		},
		{
			ID:   "tx-seed-2",
			Date: now.Add(-48 * time.Hour),
			Items: []domain.TransactionItem{
				{ProductID: "prod-5", ProductName: "Café Torrado 500g", Quantity: 1, Price: price("15.90")},
				{ProductID: "prod-9", ProductName: "Sabão em Pó 1kg", Quantity: 1, Price: price("13.90")},
			},
			Total:         price("31.29"),
			EmployeeID:    "emp-2",
			EmployeeName:  "Carlos Lima",
			CustomerName:  "Consumidor Final",
			PaymentMethod: domain.PaymentCartao,
			Status:        domain.StatusPago,
			Installments:  &domain.InstallmentDetails{Count: 2, Value: price("15.65")},
		},
		{
			ID:   "tx-seed-1",
			Date: now.Add(-72 * time.Hour),
			Items: []domain.TransactionItem{
				{ProductID: "prod-1", ProductName: "Arroz Branco 5kg", Quantity: 2, Price: price("24.90")},
			},
			Total:         price("52.29"),
			EmployeeID:    "emp-1",
			EmployeeName:  "Ana Souza",
			CustomerName:  "Consumidor Final",
			PaymentMethod: domain.PaymentDinheiro,
			Status:        domain.StatusPago,
		},
	}
}

func NewSeeded() *Store {
	return &Store{
		products:       seedProducts(),
		transactions:   seedTransactions(),
		cashOperations: make([]domain.CashDrawerOperation, 0, 32),
		employeesByID:  seedEmployees(),
		suppliersByID:  seedSuppliers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, cloneProduct(p))
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	cloned := cloneProduct(product)
	return &cloned, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Barcode == barcode {
			cloned := cloneProduct(p)
			return &cloned, nil
		}
	}
	return nil, store.ErrNotFound
}

// SearchProducts matches the query case-insensitively against product
// names and as a substring of barcodes.
func (s *Store) SearchProducts(_ context.Context, query string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []domain.Product{}, nil
	}

	matches := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(p.Barcode, needle) {
			matches = append(matches, cloneProduct(p))
		}
	}
	slices.SortFunc(matches, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return matches, nil
}

func (s *Store) ListLowStockProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	low := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if p.Stock <= p.LowStockThreshold {
			low = append(low, cloneProduct(p))
		}
	}
	slices.SortFunc(low, func(a, b domain.Product) int {
		if a.Stock == b.Stock {
			return cmpString(a.Name, b.Name)
		}
		if a.Stock < b.Stock {
			return -1
		}
		return 1
	})
	return low, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Barcode == "" || product.SalePrice.Sign() <= 0 {
		return nil, store.ErrValidation
	}
	for _, existing := range s.products {
		if existing.Barcode == product.Barcode {
			return nil, store.ErrDuplicateBarcode
		}
	}

	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	s.products[product.ID] = cloneProduct(product)
	created := cloneProduct(product)
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Barcode == "" || product.SalePrice.Sign() <= 0 {
		return nil, store.ErrValidation
	}
	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}
	for id, existing := range s.products {
		if id != product.ID && existing.Barcode == product.Barcode {
			return nil, store.ErrDuplicateBarcode
		}
	}

	s.products[product.ID] = cloneProduct(product)
	updated := cloneProduct(product)
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *Store) DeductStock(_ context.Context, quantities map[string]int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clamped := make([]string, 0)
	for id, qty := range quantities {
		product, exists := s.products[id]
		if !exists {
			// Catalog edits during an open cart can remove a product;
			// the sale already snapshotted it, so skip silently.
			continue
		}
		if product.Stock < qty {
			product.Stock = 0
			clamped = append(clamped, id)
		} else {
			product.Stock -= qty
		}
		s.products[id] = product
	}
	slices.Sort(clamped)
	return clamped, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.Date.IsZero() {
		tx.Date = time.Now().UTC()
	}
	// Most recent first.
	s.transactions = append([]domain.Transaction{cloneTransaction(tx)}, s.transactions...)
	created := cloneTransaction(tx)
	return &created, nil
}

func (s *Store) ListTransactions(_ context.Context) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		result = append(result, cloneTransaction(tx))
	}
	return result, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.transactions {
		if tx.ID == id {
			cloned := cloneTransaction(tx)
			return &cloned, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListTransactionsBetween(_ context.Context, from, to time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		result = append(result, cloneTransaction(tx))
	}
	return result, nil
}

func (s *Store) CreateCashOperation(_ context.Context, op domain.CashDrawerOperation) (*domain.CashDrawerOperation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if op.ID == "" {
		op.ID = xid.New("op")
	}
	if op.Date.IsZero() {
		op.Date = time.Now().UTC()
	}
	// Most recent first.
	s.cashOperations = append([]domain.CashDrawerOperation{op}, s.cashOperations...)
	created := op
	return &created, nil
}

func (s *Store) ListCashOperations(_ context.Context) ([]domain.CashDrawerOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CashDrawerOperation, len(s.cashOperations))
	copy(result, s.cashOperations)
	return result, nil
}

func (s *Store) ListCashOperationsBetween(_ context.Context, from, to time.Time) ([]domain.CashDrawerOperation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CashDrawerOperation, 0, len(s.cashOperations))
	for _, op := range s.cashOperations {
		if op.Date.Before(from) || op.Date.After(to) {
			continue
		}
		result = append(result, op)
	}
	return result, nil
}

func (s *Store) ListEmployees(_ context.Context) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employees := make([]domain.Employee, 0, len(s.employeesByID))
	for _, e := range s.employeesByID {
		employees = append(employees, e)
	}
	slices.SortFunc(employees, func(a, b domain.Employee) int {
		return cmpString(a.Name, b.Name)
	})
	return employees, nil
}

func (s *Store) GetEmployee(_ context.Context, id string) (*domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employee, exists := s.employeesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyEmployee := employee
	return &copyEmployee, nil
}

func (s *Store) CreateEmployee(_ context.Context, employee domain.Employee) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if employee.Name == "" || employee.Role == "" || employee.PINHash == "" {
		return nil, store.ErrValidation
	}
	if employee.ID == "" {
		employee.ID = xid.New("emp")
	}
	s.employeesByID[employee.ID] = employee
	created := employee
	return &created, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		suppliers = append(suppliers, sup)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return cmpString(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.Name == "" || supplier.CNPJ == "" {
		return nil, store.ErrValidation
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

// ResetToSeed discards all mutable state and restores the demo dataset.
func (s *Store) ResetToSeed(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = seedProducts()
	s.transactions = seedTransactions()
	s.cashOperations = make([]domain.CashDrawerOperation, 0, 32)
	s.employeesByID = seedEmployees()
	s.suppliersByID = seedSuppliers()
	return nil
}

func cloneProduct(p domain.Product) domain.Product {
	cloned := p
	if p.Promotion != nil {
		promo := *p.Promotion
		cloned.Promotion = &promo
	}
	return cloned
}

func cloneTransaction(tx domain.Transaction) domain.Transaction {
	cloned := tx
	if len(tx.Items) > 0 {
		cloned.Items = make([]domain.TransactionItem, len(tx.Items))
		copy(cloned.Items, tx.Items)
	}
	if tx.Installments != nil {
		installments := *tx.Installments
		cloned.Installments = &installments
	}
	return cloned
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
