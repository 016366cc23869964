package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TaxRate is the fixed 5% sales tax applied to every cart subtotal.
// It is a policy constant, not configurable per item.
var TaxRate = decimal.RequireFromString("0.05")

type PaymentMethod string

const (
	PaymentDinheiro PaymentMethod = "Dinheiro"
	PaymentPIX      PaymentMethod = "PIX"
	PaymentCartao   PaymentMethod = "Cartão"
	PaymentBoleto   PaymentMethod = "Boleto"
)

type TransactionStatus string

const (
	StatusPago     TransactionStatus = "Pago"
	StatusPendente TransactionStatus = "Pendente"
)

type Promotion struct {
	Description     string          `json:"description"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
}

type Product struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	SalePrice         decimal.Decimal `json:"sale_price"`
	Barcode           string          `json:"barcode"`
	ImageURL          string          `json:"image_url,omitempty"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	Promotion         *Promotion      `json:"promotion,omitempty"`
}

// EffectivePrice is the unit price charged at the register: the promotional
// price when a promotion is attached, the regular sale price otherwise.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.Promotion != nil {
		return p.Promotion.DiscountedPrice
	}
	return p.SalePrice
}

type ProductCreateRequest struct {
	Name              string          `json:"name"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	SalePrice         decimal.Decimal `json:"sale_price"`
	Barcode           string          `json:"barcode"`
	ImageURL          string          `json:"image_url,omitempty"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	Promotion         *Promotion      `json:"promotion,omitempty"`
}

type ProductUpdateRequest struct {
	Name              *string          `json:"name,omitempty"`
	CostPrice         *decimal.Decimal `json:"cost_price,omitempty"`
	SalePrice         *decimal.Decimal `json:"sale_price,omitempty"`
	Barcode           *string          `json:"barcode,omitempty"`
	ImageURL          *string          `json:"image_url,omitempty"`
	Stock             *int             `json:"stock,omitempty"`
	LowStockThreshold *int             `json:"low_stock_threshold,omitempty"`
	Promotion         *Promotion       `json:"promotion,omitempty"`
	ClearPromotion    bool             `json:"clear_promotion,omitempty"`
}

type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// LineTotal is the effective unit price times quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.Product.EffectivePrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// TransactionItem is a snapshot of a cart line at the moment of settlement,
// decoupled from any later edit to the underlying product.
type TransactionItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type InstallmentDetails struct {
	Count int             `json:"count"`
	Value decimal.Decimal `json:"value"`
}

// Transaction is immutable once created and lives in the most-recent-first
// sales ledger. The boleto and installment fields are only populated for
// their respective payment modes.
type Transaction struct {
	ID            string              `json:"id"`
	Date          time.Time           `json:"date"`
	Total         decimal.Decimal     `json:"total"`
	Items         []TransactionItem   `json:"items"`
	EmployeeID    string              `json:"employee_id"`
	EmployeeName  string              `json:"employee_name"`
	CustomerName  string              `json:"customer_name"`
	PaymentMethod PaymentMethod       `json:"payment_method"`
	Status        TransactionStatus   `json:"status"`
	BoletoDueDate string              `json:"boleto_due_date,omitempty"`
	Installments  *InstallmentDetails `json:"installments,omitempty"`
	CPF           string              `json:"cpf,omitempty"`
	CardNumber    string              `json:"card_number,omitempty"`
	Bank          string              `json:"bank,omitempty"`
}

// Payment is the settlement variant chosen at checkout. Each payment mode
// carries only the fields that mode needs and knows the method and status
// it settles under.
type Payment interface {
	Method() PaymentMethod
	SettledStatus() TransactionStatus
	Validate() error
}

// CashPayment settles immediately in cash.
type CashPayment struct{}

func (CashPayment) Method() PaymentMethod            { return PaymentDinheiro }
func (CashPayment) SettledStatus() TransactionStatus { return StatusPago }
func (CashPayment) Validate() error                  { return nil }

// PixPayment settles immediately via PIX transfer.
type PixPayment struct{}

func (PixPayment) Method() PaymentMethod            { return PaymentPIX }
func (PixPayment) SettledStatus() TransactionStatus { return StatusPago }
func (PixPayment) Validate() error                  { return nil }

// CreditPayment is a deferred "sell on account" sale recorded as a pending
// boleto with a due date.
type CreditPayment struct {
	CustomerName string
	DueDate      string
}

func (CreditPayment) Method() PaymentMethod            { return PaymentBoleto }
func (CreditPayment) SettledStatus() TransactionStatus { return StatusPendente }

func (p CreditPayment) Validate() error {
	if strings.TrimSpace(p.CustomerName) == "" {
		return fmt.Errorf("customer name is required for credit sales")
	}
	if strings.TrimSpace(p.DueDate) == "" {
		return fmt.Errorf("due date is required for credit sales")
	}
	if _, err := time.Parse("2006-01-02", p.DueDate); err != nil {
		return fmt.Errorf("due date must be YYYY-MM-DD: %v", err)
	}
	return nil
}

// InstallmentPayment is a card sale split into equal installments. Card
// authorization is treated as instantaneous, so it settles as paid.
type InstallmentPayment struct {
	CustomerName string
	Count        int
	CPF          string
	CardNumber   string
	Bank         string
}

func (InstallmentPayment) Method() PaymentMethod            { return PaymentCartao }
func (InstallmentPayment) SettledStatus() TransactionStatus { return StatusPago }

func (p InstallmentPayment) Validate() error {
	if strings.TrimSpace(p.CustomerName) == "" {
		return fmt.Errorf("customer name is required for installment sales")
	}
	if p.Count < 1 {
		return fmt.Errorf("installment count must be positive")
	}
	return nil
}

type CashOperationType string

const (
	// Sangria is a manual cash withdrawal from the drawer.
	Sangria CashOperationType = "Sangria"
	// Suprimento is a manual cash reinforcement into the drawer.
	Suprimento CashOperationType = "Suprimento"
)

type CashDrawerOperation struct {
	ID           string            `json:"id"`
	Type         CashOperationType `json:"type"`
	Amount       decimal.Decimal   `json:"amount"`
	Reason       string            `json:"reason"`
	EmployeeID   string            `json:"employee_id"`
	EmployeeName string            `json:"employee_name"`
	Date         time.Time         `json:"date"`
}

type Employee struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Address string `json:"address,omitempty"`
	Contact string `json:"contact,omitempty"`
	CPF     string `json:"cpf,omitempty"`
	Email   string `json:"email,omitempty"`
	PINHash string `json:"-"`
}

type EmployeeCreateRequest struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	Address string `json:"address,omitempty"`
	Contact string `json:"contact,omitempty"`
	CPF     string `json:"cpf,omitempty"`
	Email   string `json:"email,omitempty"`
	PIN     string `json:"pin"`
}

type Supplier struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CNPJ          string `json:"cnpj"`
	ContactPerson string `json:"contact_person,omitempty"`
	Phone         string `json:"phone,omitempty"`
}

type SupplierCreateRequest struct {
	Name          string `json:"name"`
	CNPJ          string `json:"cnpj"`
	ContactPerson string `json:"contact_person,omitempty"`
	Phone         string `json:"phone,omitempty"`
}

// StoreInfo is the single value persisted through the settings cache.
type StoreInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	CNPJ    string `json:"cnpj"`
	LogoURL string `json:"logo_url,omitempty"`
}

type CashMovementRequest struct {
	Type   CashOperationType `json:"type"`
	Amount decimal.Decimal   `json:"amount"`
	Reason string            `json:"reason"`
}

type ReportRequest struct {
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	EmployeeIDs []string `json:"employee_ids,omitempty"`
}

type RevenueSummary struct {
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	PaidRevenue      decimal.Decimal `json:"paid_revenue"`
	PendingRevenue   decimal.Decimal `json:"pending_revenue"`
	TransactionCount int             `json:"transaction_count"`
	AverageTicket    decimal.Decimal `json:"average_ticket"`
}

type TopProduct struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

type PaymentMethodTotal struct {
	Method PaymentMethod   `json:"method"`
	Total  decimal.Decimal `json:"total"`
}

type DailySale struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
}

type EmployeeSales struct {
	EmployeeID       string          `json:"employee_id"`
	EmployeeName     string          `json:"employee_name"`
	TransactionCount int             `json:"transaction_count"`
	TotalSold        decimal.Decimal `json:"total_sold"`
}

type Dashboard struct {
	Summary              RevenueSummary       `json:"summary"`
	TopProducts          []TopProduct         `json:"top_products"`
	SalesByPaymentMethod []PaymentMethodTotal `json:"sales_by_payment_method"`
	DailySales           []DailySale          `json:"daily_sales"`
	LowStockProducts     []Product            `json:"low_stock_products"`
}

type FilteredReport struct {
	Transactions         []Transaction         `json:"transactions"`
	CashOperations       []CashDrawerOperation `json:"cash_operations"`
	Summary              RevenueSummary        `json:"summary"`
	SalesByPaymentMethod []PaymentMethodTotal  `json:"sales_by_payment_method"`
	TopProducts          []TopProduct          `json:"top_products"`
	ByEmployee           []EmployeeSales       `json:"by_employee"`
}

type CartView struct {
	Items       []CartLine      `json:"items"`
	LastScanned *Product        `json:"last_scanned,omitempty"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

type LoginRequest struct {
	EmployeeID string `json:"employee_id"`
	PIN        string `json:"pin"`
}

type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	Employee    Employee `json:"employee"`
	ExpiresAt   string   `json:"expires_at"`
}

// Actor identifies the operator attached to an authenticated request.
type Actor struct {
	EmployeeID string
	Name       string
	Role       string
}
