package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"pospro/backend/internal/cache"
	"pospro/backend/internal/cart"
	"pospro/backend/internal/domain"
	"pospro/backend/internal/report"
	"pospro/backend/internal/store"
	"pospro/backend/internal/xid"
)

var (
	ErrNoOperator     = errors.New("no operator signed in")
	ErrSessionActive  = errors.New("another operator is signed in")
	ErrCartNotEmpty   = errors.New("cart still has items")
	ErrBadCredentials = errors.New("invalid employee or PIN")
	ErrForbidden      = errors.New("admin role required")
)

// DefaultCustomerName labels immediate sales made without identifying
// the customer.
const DefaultCustomerName = "Consumidor Final"

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Suggester interface {
	Suggest(ctx context.Context, itemNames []string) []string
}

type Service struct {
	repo      store.Repository
	cart      *cart.Cart
	settings  cache.SettingsCache
	suggester Suggester
	logger    *zap.SugaredLogger
	loc       *time.Location
	now       func() time.Time

	sessionMu sync.Mutex
	operator  *domain.Employee
}

func New(repo store.Repository, settings cache.SettingsCache, suggester Suggester, logger *zap.SugaredLogger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:      repo,
		cart:      cart.New(repo),
		settings:  settings,
		suggester: suggester,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

// --- session -----------------------------------------------------------

// Login verifies the employee PIN and makes that employee the active
// register operator. Only one operator can be active at a time.
func (s *Service) Login(ctx context.Context, employeeID, pin string) (*domain.Employee, error) {
	employee, err := s.repo.GetEmployee(ctx, employeeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(employee.PINHash), []byte(pin)) != nil {
		return nil, ErrBadCredentials
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.operator != nil && s.operator.ID != employee.ID {
		return nil, ErrSessionActive
	}
	s.operator = employee
	s.logger.Infow("operator signed in", "employee_id", employee.ID, "name", employee.Name)
	return employee, nil
}

// Logout ends the active session. With items still in the cart it
// refuses unless force is set, in which case the cart is discarded.
func (s *Service) Logout(force bool) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if s.operator == nil {
		return ErrNoOperator
	}
	if !s.cart.IsEmpty() {
		if !force {
			return ErrCartNotEmpty
		}
		s.cart.Reset()
	}
	s.logger.Infow("operator signed out", "employee_id", s.operator.ID)
	s.operator = nil
	return nil
}

// ActiveOperator returns the signed-in employee, or nil.
func (s *Service) ActiveOperator() *domain.Employee {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.operator == nil {
		return nil
	}
	copyOperator := *s.operator
	return &copyOperator
}

func (s *Service) requireOperator() (*domain.Employee, error) {
	op := s.ActiveOperator()
	if op == nil {
		return nil, ErrNoOperator
	}
	return op, nil
}

// --- cart --------------------------------------------------------------

func (s *Service) CartView() domain.CartView {
	return s.cart.View()
}

func (s *Service) ScanBarcode(ctx context.Context, barcode string) (domain.CartView, error) {
	if _, err := s.requireOperator(); err != nil {
		return domain.CartView{}, err
	}
	if _, err := s.cart.AddByBarcode(ctx, barcode); err != nil {
		return domain.CartView{}, err
	}
	return s.cart.View(), nil
}

func (s *Service) AddCartProduct(ctx context.Context, productID string) (domain.CartView, error) {
	if _, err := s.requireOperator(); err != nil {
		return domain.CartView{}, err
	}
	if _, err := s.cart.AddProduct(ctx, productID); err != nil {
		return domain.CartView{}, err
	}
	return s.cart.View(), nil
}

func (s *Service) UpdateCartQuantity(productID string, qty int) (domain.CartView, error) {
	if _, err := s.requireOperator(); err != nil {
		return domain.CartView{}, err
	}
	if err := s.cart.UpdateQuantity(productID, qty); err != nil {
		return domain.CartView{}, err
	}
	return s.cart.View(), nil
}

func (s *Service) ClearCart() (domain.CartView, error) {
	if _, err := s.requireOperator(); err != nil {
		return domain.CartView{}, err
	}
	s.cart.Reset()
	return s.cart.View(), nil
}

// SearchCatalog is the register search box: it may add a product
// directly (scanner burst or single match on submit) or return
// candidates.
func (s *Service) SearchCatalog(ctx context.Context, query string, submit bool) (results []domain.Product, added *domain.Product, err error) {
	if submit {
		return s.cart.SubmitSearch(ctx, query)
	}
	return s.cart.Search(ctx, query)
}

// Suggestions asks the external service for complementary products for
// the current cart.
func (s *Service) Suggestions(ctx context.Context) []string {
	lines := s.cart.Lines()
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		names = append(names, line.Product.Name)
	}
	return s.suggester.Suggest(ctx, names)
}

// --- settlement --------------------------------------------------------

// Settle finalizes the open cart under the given payment variant. All
// preconditions are checked before any state changes: an empty cart, a
// missing operator or an invalid payment leaves cart, stock and ledger
// untouched.
func (s *Service) Settle(ctx context.Context, customerName string, payment domain.Payment) (*domain.Transaction, error) {
	if s.cart.IsEmpty() {
		return nil, cart.ErrEmptyCart
	}
	operator, err := s.requireOperator()
	if err != nil {
		return nil, err
	}
	if err := payment.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	_, _, total := s.cart.Totals()
	items := s.cart.Snapshot()

	tx := domain.Transaction{
		ID:            xid.New("tx"),
		Date:          s.now().In(s.loc),
		Total:         total,
		Items:         items,
		EmployeeID:    operator.ID,
		EmployeeName:  operator.Name,
		CustomerName:  strings.TrimSpace(customerName),
		PaymentMethod: payment.Method(),
		Status:        payment.SettledStatus(),
	}

	switch p := payment.(type) {
	case domain.CreditPayment:
		tx.CustomerName = strings.TrimSpace(p.CustomerName)
		tx.BoletoDueDate = p.DueDate
	case domain.InstallmentPayment:
		tx.CustomerName = strings.TrimSpace(p.CustomerName)
		tx.CPF = p.CPF
		tx.CardNumber = p.CardNumber
		tx.Bank = p.Bank
		tx.Installments = &domain.InstallmentDetails{
			Count: p.Count,
			Value: total.Div(decimal.NewFromInt(int64(p.Count))).Round(2),
		}
	}
	if tx.CustomerName == "" {
		tx.CustomerName = DefaultCustomerName
	}

	quantities := make(map[string]int, len(items))
	for _, item := range items {
		quantities[item.ProductID] += item.Quantity
	}
	clamped, err := s.repo.DeductStock(ctx, quantities)
	if err != nil {
		return nil, err
	}
	if len(clamped) > 0 {
		s.logger.Warnw("stock floored at zero during settlement", "product_ids", clamped, "transaction_id", tx.ID)
	}

	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	s.cart.Reset()

	s.logger.Infow("sale settled",
		"transaction_id", created.ID,
		"method", created.PaymentMethod,
		"status", created.Status,
		"total", created.Total.StringFixed(2),
		"employee_id", created.EmployeeID,
	)
	return created, nil
}

func (s *Service) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.ListTransactions(ctx)
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// --- cash drawer -------------------------------------------------------

// RecordCashMovement appends a Sangria or Suprimento entry to the
// drawer ledger, attributed to the active operator.
func (s *Service) RecordCashMovement(ctx context.Context, req domain.CashMovementRequest) (*domain.CashDrawerOperation, error) {
	operator, err := s.requireOperator()
	if err != nil {
		return nil, err
	}
	if req.Type != domain.Sangria && req.Type != domain.Suprimento {
		return nil, fmt.Errorf("%w: unknown operation type %q", store.ErrValidation, req.Type)
	}
	if req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", store.ErrValidation)
	}
	op := domain.CashDrawerOperation{
		ID:           xid.New("op"),
		Type:         req.Type,
		Amount:       req.Amount,
		Reason:       strings.TrimSpace(req.Reason),
		EmployeeID:   operator.ID,
		EmployeeName: operator.Name,
		Date:         s.now().In(s.loc),
	}
	created, err := s.repo.CreateCashOperation(ctx, op)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("cash drawer movement", "type", created.Type, "amount", created.Amount.StringFixed(2), "employee_id", created.EmployeeID)
	return created, nil
}

func (s *Service) ListCashOperations(ctx context.Context) ([]domain.CashDrawerOperation, error) {
	return s.repo.ListCashOperations(ctx)
}

// --- reporting ---------------------------------------------------------

// Dashboard assembles the live overview: revenue summary, top five
// products, payment breakdown, seven-day trend and low-stock alerts.
func (s *Service) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	transactions, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	lowStock, err := s.repo.ListLowStockProducts(ctx)
	if err != nil {
		return nil, err
	}

	return &domain.Dashboard{
		Summary:              report.Summarize(transactions),
		TopProducts:          report.TopProducts(transactions, 5),
		SalesByPaymentMethod: report.SalesByPaymentMethod(transactions),
		DailySales:           report.DailyTrend(transactions, s.now().In(s.loc)),
		LowStockProducts:     lowStock,
	}, nil
}

// GenerateReport builds the filtered report for a date window and an
// optional operator filter. An empty filter covers all operators.
func (s *Service) GenerateReport(ctx context.Context, req domain.ReportRequest) (*domain.FilteredReport, error) {
	window, err := report.NormalizeRange(req.StartDate, req.EndDate, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}

	transactions, err := s.repo.ListTransactionsBetween(ctx, window.From, window.To)
	if err != nil {
		return nil, err
	}
	operations, err := s.repo.ListCashOperationsBetween(ctx, window.From, window.To)
	if err != nil {
		return nil, err
	}

	transactions = report.FilterByEmployees(transactions, req.EmployeeIDs)
	operations = report.FilterOperationsByEmployees(operations, req.EmployeeIDs)
	generated := report.Generate(transactions, operations)
	return &generated, nil
}

// --- catalog -----------------------------------------------------------

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) ListLowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListLowStockProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	if req.Name == "" || req.Barcode == "" {
		return nil, fmt.Errorf("%w: name and barcode are required", store.ErrValidation)
	}
	if req.SalePrice.Sign() <= 0 || req.CostPrice.Sign() < 0 {
		return nil, fmt.Errorf("%w: prices must be positive", store.ErrValidation)
	}
	if req.Stock < 0 || req.LowStockThreshold < 0 {
		return nil, fmt.Errorf("%w: stock values must not be negative", store.ErrValidation)
	}

	product := domain.Product{
		ID:                xid.New("prod"),
		Name:              req.Name,
		CostPrice:         req.CostPrice,
		SalePrice:         req.SalePrice,
		Barcode:           req.Barcode,
		ImageURL:          req.ImageURL,
		Stock:             req.Stock,
		LowStockThreshold: req.LowStockThreshold,
		Promotion:         req.Promotion,
	}
	return s.repo.CreateProduct(ctx, product)
}

// UpdateProduct applies a partial catalog edit and pushes the result
// into the open cart so unsettled lines reprice immediately.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", store.ErrValidation)
		}
		updated.Name = name
	}
	if req.CostPrice != nil {
		if req.CostPrice.Sign() < 0 {
			return nil, fmt.Errorf("%w: cost price must not be negative", store.ErrValidation)
		}
		updated.CostPrice = *req.CostPrice
	}
	if req.SalePrice != nil {
		if req.SalePrice.Sign() <= 0 {
			return nil, fmt.Errorf("%w: sale price must be positive", store.ErrValidation)
		}
		updated.SalePrice = *req.SalePrice
	}
	if req.Barcode != nil {
		barcode := strings.TrimSpace(*req.Barcode)
		if barcode == "" {
			return nil, fmt.Errorf("%w: barcode must not be empty", store.ErrValidation)
		}
		updated.Barcode = barcode
	}
	if req.ImageURL != nil {
		updated.ImageURL = *req.ImageURL
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, fmt.Errorf("%w: stock must not be negative", store.ErrValidation)
		}
		updated.Stock = *req.Stock
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return nil, fmt.Errorf("%w: threshold must not be negative", store.ErrValidation)
		}
		updated.LowStockThreshold = *req.LowStockThreshold
	}
	if req.ClearPromotion {
		updated.Promotion = nil
	} else if req.Promotion != nil {
		updated.Promotion = req.Promotion
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.cart.ApplyProductUpdate(saved, false)
	return saved, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.cart.ApplyProductUpdate(&domain.Product{ID: id}, true)
	return nil
}

// --- people ------------------------------------------------------------

func (s *Service) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	return s.repo.ListEmployees(ctx)
}

func (s *Service) CreateEmployee(ctx context.Context, req domain.EmployeeCreateRequest) (*domain.Employee, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Role = strings.TrimSpace(req.Role)
	if req.Name == "" || req.Role == "" {
		return nil, fmt.Errorf("%w: name and role are required", store.ErrValidation)
	}
	if len(req.PIN) < 4 {
		return nil, fmt.Errorf("%w: PIN must have at least 4 digits", store.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash PIN: %w", err)
	}

	employee := domain.Employee{
		ID:      xid.New("emp"),
		Name:    req.Name,
		Role:    req.Role,
		Address: req.Address,
		Contact: req.Contact,
		CPF:     req.CPF,
		Email:   req.Email,
		PINHash: string(hash),
	}
	return s.repo.CreateEmployee(ctx, employee)
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (*domain.Supplier, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.CNPJ = strings.TrimSpace(req.CNPJ)
	if req.Name == "" || req.CNPJ == "" {
		return nil, fmt.Errorf("%w: name and CNPJ are required", store.ErrValidation)
	}

	supplier := domain.Supplier{
		ID:            xid.New("sup"),
		Name:          req.Name,
		CNPJ:          req.CNPJ,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
	}
	return s.repo.CreateSupplier(ctx, supplier)
}

// --- settings ----------------------------------------------------------

func (s *Service) StoreProfile(ctx context.Context) (*domain.StoreInfo, error) {
	var info domain.StoreInfo
	found, err := s.settings.Get(ctx, cache.KeyStoreProfile, &info)
	if err != nil {
		return nil, err
	}
	if !found {
		info = domain.StoreInfo{Name: "Supermercado ProPOS", Address: "", CNPJ: ""}
	}
	return &info, nil
}

func (s *Service) SaveStoreProfile(ctx context.Context, info domain.StoreInfo) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(info.Name) == "" {
		return fmt.Errorf("%w: store name is required", store.ErrValidation)
	}
	return s.settings.Set(ctx, cache.KeyStoreProfile, info)
}

func (s *Service) Theme(ctx context.Context) (string, error) {
	var theme string
	found, err := s.settings.Get(ctx, cache.KeyTheme, &theme)
	if err != nil {
		return "", err
	}
	if !found {
		return "light", nil
	}
	return theme, nil
}

func (s *Service) SaveTheme(ctx context.Context, theme string) error {
	if theme != "light" && theme != "dark" {
		return fmt.Errorf("%w: theme must be light or dark", store.ErrValidation)
	}
	return s.settings.Set(ctx, cache.KeyTheme, theme)
}

// --- admin -------------------------------------------------------------

// ResetData restores the seed dataset and clears the cart, session and
// cached settings.
func (s *Service) ResetData(ctx context.Context) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.ResetToSeed(ctx); err != nil {
		return err
	}
	s.cart.Reset()

	s.sessionMu.Lock()
	s.operator = nil
	s.sessionMu.Unlock()

	if err := s.settings.Delete(ctx, cache.KeyStoreProfile); err != nil {
		s.logger.Warnw("failed to clear store profile cache", "error", err)
	}
	if err := s.settings.Delete(ctx, cache.KeyTheme); err != nil {
		s.logger.Warnw("failed to clear theme cache", "error", err)
	}
	s.logger.Infow("data reset to seed")
	return nil
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return ErrForbidden
	}
	return nil
}
