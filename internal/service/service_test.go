package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pospro/backend/internal/cache"
	"pospro/backend/internal/cart"
	"pospro/backend/internal/domain"
	"pospro/backend/internal/store/memory"
)

type staticSuggester struct{}

func (staticSuggester) Suggest(_ context.Context, itemNames []string) []string {
	if len(itemNames) == 0 {
		return []string{}
	}
	return []string{"Milk", "Bread", "Eggs"}
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	svc := New(repo, cache.NewMemory(), staticSuggester{}, zap.NewNop().Sugar(), time.UTC)

	ctx := context.Background()
	for _, p := range []domain.Product{
		{ID: "p-ten", Name: "Produto Dez", SalePrice: price("10.00"), Barcode: "900000000015", Stock: 50, LowStockThreshold: 5},
		{ID: "p-twenty", Name: "Produto Vinte", SalePrice: price("20.00"), Barcode: "900000000022", Stock: 50, LowStockThreshold: 5},
		{ID: "p-nine", Name: "Produto Nove", SalePrice: price("9.00"), Barcode: "900000000039", Stock: 50, LowStockThreshold: 5},
	} {
		if _, err := repo.CreateProduct(ctx, p); err != nil {
			t.Fatalf("seed test product: %v", err)
		}
	}
	return svc, repo
}

func signIn(t *testing.T, svc *Service) *domain.Employee {
	t.Helper()
	employee, err := svc.Login(context.Background(), "emp-1", "1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return employee
}

func TestLoginRejectsWrongPIN(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Login(context.Background(), "emp-1", "9999"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("err = %v, want ErrBadCredentials", err)
	}
	if _, err := svc.Login(context.Background(), "ghost", "1234"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("unknown employee err = %v, want ErrBadCredentials", err)
	}
}

func TestSecondOperatorIsBlocked(t *testing.T) {
	svc, _ := newTestService(t)
	signIn(t, svc)

	if _, err := svc.Login(context.Background(), "emp-2", "5678"); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("err = %v, want ErrSessionActive", err)
	}

	// Re-login by the same operator refreshes the session instead.
	if _, err := svc.Login(context.Background(), "emp-1", "1234"); err != nil {
		t.Fatalf("same operator relogin: %v", err)
	}
}

func TestLogoutWithItemsNeedsForce(t *testing.T) {
	svc, _ := newTestService(t)
	signIn(t, svc)
	ctx := context.Background()

	if _, err := svc.ScanBarcode(ctx, "900000000015"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if err := svc.Logout(false); !errors.Is(err, ErrCartNotEmpty) {
		t.Fatalf("err = %v, want ErrCartNotEmpty", err)
	}
	if err := svc.Logout(true); err != nil {
		t.Fatalf("forced logout: %v", err)
	}
	if svc.ActiveOperator() != nil {
		t.Fatal("operator should be cleared")
	}
	if view := svc.CartView(); len(view.Items) != 0 {
		t.Fatal("forced logout should discard the cart")
	}
}

func TestSettleCashSale(t *testing.T) {
	svc, repo := newTestService(t)
	operator := signIn(t, svc)
	ctx := context.Background()

	before, _ := repo.ListTransactions(ctx)

	for _, barcode := range []string{"900000000015", "900000000015", "900000000022"} {
		if _, err := svc.ScanBarcode(ctx, barcode); err != nil {
			t.Fatalf("scan %s: %v", barcode, err)
		}
	}

	tx, err := svc.Settle(ctx, "", domain.CashPayment{})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	if !tx.Total.Equal(price("42.00")) {
		t.Fatalf("total = %s, want 42.00", tx.Total)
	}
	if tx.Status != domain.StatusPago || tx.PaymentMethod != domain.PaymentDinheiro {
		t.Fatalf("status/method = %s/%s", tx.Status, tx.PaymentMethod)
	}
	if tx.CustomerName != DefaultCustomerName {
		t.Fatalf("customer = %q, want %q", tx.CustomerName, DefaultCustomerName)
	}
	if tx.EmployeeID != operator.ID || tx.EmployeeName != operator.Name {
		t.Fatalf("attribution = %s/%s", tx.EmployeeID, tx.EmployeeName)
	}

	if view := svc.CartView(); len(view.Items) != 0 {
		t.Fatal("cart should reset after settlement")
	}

	ten, _ := repo.GetProduct(ctx, "p-ten")
	if ten.Stock != 48 {
		t.Fatalf("stock = %d, want 48 after selling 2", ten.Stock)
	}

	ledger, _ := repo.ListTransactions(ctx)
	if len(ledger) != len(before)+1 || ledger[0].ID != tx.ID {
		t.Fatalf("ledger len = %d, head = %s, want the new sale on top", len(ledger), ledger[0].ID)
	}
}

func TestSettleCreditRequiresCustomerBeforeMutation(t *testing.T) {
	svc, repo := newTestService(t)
	signIn(t, svc)
	ctx := context.Background()

	before, _ := repo.ListTransactions(ctx)

	if _, err := svc.ScanBarcode(ctx, "900000000015"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	_, err := svc.Settle(ctx, "", domain.CreditPayment{CustomerName: "", DueDate: "2026-10-01"})
	if err == nil {
		t.Fatal("credit sale without customer name must fail")
	}

	// Nothing may have changed: cart intact, stock intact, ledger intact.
	if view := svc.CartView(); len(view.Items) != 1 {
		t.Fatalf("cart items = %d, want 1", len(view.Items))
	}
	product, _ := repo.GetProduct(ctx, "p-ten")
	if product.Stock != 50 {
		t.Fatalf("stock = %d, want untouched 50", product.Stock)
	}
	ledger, _ := repo.ListTransactions(ctx)
	if len(ledger) != len(before) {
		t.Fatalf("ledger = %d entries, want unchanged %d", len(ledger), len(before))
	}
}

func TestSettleCreditRecordsPendingBoleto(t *testing.T) {
	svc, _ := newTestService(t)
	signIn(t, svc)
	ctx := context.Background()

	if _, err := svc.ScanBarcode(ctx, "900000000022"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	tx, err := svc.Settle(ctx, "", domain.CreditPayment{CustomerName: "Maria Silva", DueDate: "2026-10-01"})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if tx.Status != domain.StatusPendente {
		t.Fatalf("status = %s, want Pendente", tx.Status)
	}
	if tx.PaymentMethod != domain.PaymentBoleto {
		t.Fatalf("method = %s, want Boleto", tx.PaymentMethod)
	}
	if tx.CustomerName != "Maria Silva" || tx.BoletoDueDate != "2026-10-01" {
		t.Fatalf("customer/due = %s/%s", tx.CustomerName, tx.BoletoDueDate)
	}
}

func TestSettleInstallmentsSplitEqually(t *testing.T) {
	svc, _ := newTestService(t)
	signIn(t, svc)
	ctx := context.Background()

	// 9.00 + 5% tax = 9.45 total; 9.45 / 2 rounds to 4.73 per installment.
	// The division result is not redistributed, so 2 x 4.73 != 9.45.
	if _, err := svc.ScanBarcode(ctx, "900000000039"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	tx, err := svc.Settle(ctx, "", domain.InstallmentPayment{CustomerName: "João Santos", Count: 2, Bank: "Banco Azul"})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !tx.Total.Equal(price("9.45")) {
		t.Fatalf("total = %s, want 9.45", tx.Total)
	}
	if tx.Installments == nil || tx.Installments.Count != 2 {
		t.Fatalf("installments = %+v", tx.Installments)
	}
	if !tx.Installments.Value.Equal(price("4.73")) {
		t.Fatalf("installment value = %s, want 4.73", tx.Installments.Value)
	}
	if tx.Status != domain.StatusPago {
		t.Fatalf("status = %s, want Pago (card settles immediately)", tx.Status)
	}
}

func TestSettleRejectsZeroInstallments(t *testing.T) {
	svc, _ := newTestService(t)
	signIn(t, svc)
	ctx := context.Background()

	if _, err := svc.ScanBarcode(ctx, "900000000015"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := svc.Settle(ctx, "", domain.InstallmentPayment{CustomerName: "João", Count: 0}); err == nil {
		t.Fatal("zero installment count must be rejected")
	}
}

func TestSettlePreconditions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Empty cart is reported before the missing operator.
	if _, err := svc.Settle(ctx, "", domain.CashPayment{}); !errors.Is(err, cart.ErrEmptyCart) {
		t.Fatalf("err = %v, want ErrEmptyCart", err)
	}

	if _, err := svc.ScanBarcode(ctx, "900000000015"); !errors.Is(err, ErrNoOperator) {
		t.Fatalf("scan without operator err = %v, want ErrNoOperator", err)
	}
}

func TestRecordCashMovement(t *testing.T) {
	svc, _ := newTestService(t)
	operator := signIn(t, svc)
	ctx := context.Background()

	op, err := svc.RecordCashMovement(ctx, domain.CashMovementRequest{
		Type:   domain.Sangria,
		Amount: price("150.00"),
		Reason: "malote para o cofre",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if op.EmployeeID != operator.ID {
		t.Fatalf("attribution = %s, want %s", op.EmployeeID, operator.ID)
	}
	if op.Type != domain.Sangria {
		t.Fatalf("type = %s", op.Type)
	}

	// The reason is optional, matching the drawer form.
	if _, err := svc.RecordCashMovement(ctx, domain.CashMovementRequest{
		Type:   domain.Suprimento,
		Amount: price("80.00"),
	}); err != nil {
		t.Fatalf("movement without reason: %v", err)
	}

	cases := []domain.CashMovementRequest{
		{Type: "Outro", Amount: price("10.00"), Reason: "x"},
		{Type: domain.Suprimento, Amount: price("0"), Reason: "x"},
		{Type: domain.Suprimento, Amount: price("-5.00"), Reason: "x"},
	}
	for i, req := range cases {
		if _, err := svc.RecordCashMovement(ctx, req); err == nil {
			t.Fatalf("case %d: invalid movement accepted", i)
		}
	}
}

func TestCashMovementNeedsOperator(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.RecordCashMovement(context.Background(), domain.CashMovementRequest{
		Type: domain.Suprimento, Amount: price("10.00"), Reason: "troco",
	})
	if !errors.Is(err, ErrNoOperator) {
		t.Fatalf("err = %v, want ErrNoOperator", err)
	}
}

func TestUpdateProductRepricesOpenCart(t *testing.T) {
	svc, _ := newTestService(t)
	signIn(t, svc)
	ctx := context.Background()
	adminCtx := WithActor(ctx, domain.Actor{EmployeeID: "emp-1", Role: "admin"})

	if _, err := svc.ScanBarcode(ctx, "900000000015"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	newPrice := price("12.00")
	if _, err := svc.UpdateProduct(adminCtx, "p-ten", domain.ProductUpdateRequest{SalePrice: &newPrice}); err != nil {
		t.Fatalf("update: %v", err)
	}

	view := svc.CartView()
	if !view.Subtotal.Equal(price("12.00")) {
		t.Fatalf("subtotal = %s, want repriced 12.00", view.Subtotal)
	}
}

func TestSettlementSnapshotSurvivesCatalogEdit(t *testing.T) {
	svc, repo := newTestService(t)
	signIn(t, svc)
	ctx := context.Background()
	adminCtx := WithActor(ctx, domain.Actor{EmployeeID: "emp-1", Role: "admin"})

	if _, err := svc.ScanBarcode(ctx, "900000000015"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	tx, err := svc.Settle(ctx, "", domain.CashPayment{})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	newPrice := price("99.00")
	if _, err := svc.UpdateProduct(adminCtx, "p-ten", domain.ProductUpdateRequest{SalePrice: &newPrice}); err != nil {
		t.Fatalf("update: %v", err)
	}

	recorded, err := repo.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !recorded.Items[0].Price.Equal(price("10.00")) {
		t.Fatalf("snapshot price = %s, want original 10.00", recorded.Items[0].Price)
	}
}

func TestAdminGateOnMutations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	cashierCtx := WithActor(ctx, domain.Actor{EmployeeID: "emp-2", Role: "cashier"})

	if _, err := svc.CreateProduct(cashierCtx, domain.ProductCreateRequest{
		Name: "X", Barcode: "1", SalePrice: price("1.00"),
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("create product err = %v, want ErrForbidden", err)
	}
	if _, err := svc.CreateEmployee(cashierCtx, domain.EmployeeCreateRequest{Name: "N", Role: "cashier", PIN: "4321"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("create employee err = %v, want ErrForbidden", err)
	}
	if err := svc.ResetData(cashierCtx); !errors.Is(err, ErrForbidden) {
		t.Fatalf("reset err = %v, want ErrForbidden", err)
	}
}

func TestDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	signIn(t, svc)
	ctx := context.Background()

	before, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if before.Summary.TransactionCount == 0 {
		t.Fatal("seed history should populate the dashboard before any sale")
	}

	if _, err := svc.ScanBarcode(ctx, "900000000015"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := svc.Settle(ctx, "", domain.PixPayment{}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	dashboard, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dashboard.Summary.TransactionCount != before.Summary.TransactionCount+1 {
		t.Fatalf("count = %d, want %d", dashboard.Summary.TransactionCount, before.Summary.TransactionCount+1)
	}
	if len(dashboard.SalesByPaymentMethod) != 4 {
		t.Fatalf("payment buckets = %d, want 4", len(dashboard.SalesByPaymentMethod))
	}
	if len(dashboard.DailySales) != 7 {
		t.Fatalf("trend = %d days, want 7", len(dashboard.DailySales))
	}
	if len(dashboard.LowStockProducts) == 0 {
		t.Fatal("seed data includes a low-stock product")
	}
}

func TestGenerateReportFiltersByEmployee(t *testing.T) {
	svc, _ := newTestService(t)
	signIn(t, svc)
	ctx := context.Background()

	// A fixed far-past day keeps the relative-dated seed history out of
	// the report window.
	svc.now = func() time.Time { return time.Date(1990, 3, 10, 14, 0, 0, 0, time.UTC) }
	if _, err := svc.ScanBarcode(ctx, "900000000015"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := svc.Settle(ctx, "", domain.CashPayment{}); err != nil {
		t.Fatalf("settle: %v", err)
	}

	generated, err := svc.GenerateReport(ctx, domain.ReportRequest{
		StartDate: "1990-03-10",
		EndDate:   "1990-03-10",
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(generated.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(generated.Transactions))
	}

	filtered, err := svc.GenerateReport(ctx, domain.ReportRequest{
		StartDate:   "1990-03-10",
		EndDate:     "1990-03-10",
		EmployeeIDs: []string{"emp-2"},
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(filtered.Transactions) != 0 {
		t.Fatalf("filtered = %d, want 0 for other operator", len(filtered.Transactions))
	}

	if _, err := svc.GenerateReport(ctx, domain.ReportRequest{StartDate: "10/03/2026"}); err == nil {
		t.Fatal("bad date format must be rejected")
	}
}

func TestGenerateReportFiltersCashOperationsByEmployee(t *testing.T) {
	svc, _ := newTestService(t)
	signIn(t, svc)
	ctx := context.Background()

	svc.now = func() time.Time { return time.Date(1990, 3, 10, 14, 0, 0, 0, time.UTC) }
	if _, err := svc.RecordCashMovement(ctx, domain.CashMovementRequest{
		Type:   domain.Sangria,
		Amount: price("200.00"),
		Reason: "malote",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	unfiltered, err := svc.GenerateReport(ctx, domain.ReportRequest{
		StartDate: "1990-03-10",
		EndDate:   "1990-03-10",
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(unfiltered.CashOperations) != 1 {
		t.Fatalf("cash ops = %d, want 1", len(unfiltered.CashOperations))
	}

	// The Sangria belongs to emp-1, so an emp-2 filter must exclude it.
	filtered, err := svc.GenerateReport(ctx, domain.ReportRequest{
		StartDate:   "1990-03-10",
		EndDate:     "1990-03-10",
		EmployeeIDs: []string{"emp-2"},
	})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(filtered.CashOperations) != 0 {
		t.Fatalf("cash ops = %d, want 0 for other operator", len(filtered.CashOperations))
	}
}

func TestSuggestions(t *testing.T) {
	svc, _ := newTestService(t)
	signIn(t, svc)
	ctx := context.Background()

	if got := svc.Suggestions(ctx); len(got) != 0 {
		t.Fatalf("empty cart suggestions = %v, want none", got)
	}

	if _, err := svc.ScanBarcode(ctx, "900000000015"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := svc.Suggestions(ctx); len(got) != 3 {
		t.Fatalf("suggestions = %v, want 3", got)
	}
}

func TestThemeRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	theme, err := svc.Theme(ctx)
	if err != nil || theme != "light" {
		t.Fatalf("default theme = %q (%v), want light", theme, err)
	}
	if err := svc.SaveTheme(ctx, "dark"); err != nil {
		t.Fatalf("save: %v", err)
	}
	theme, _ = svc.Theme(ctx)
	if theme != "dark" {
		t.Fatalf("theme = %q, want dark", theme)
	}
	if err := svc.SaveTheme(ctx, "neon"); err == nil {
		t.Fatal("unknown theme must be rejected")
	}
}

func TestResetDataClearsEverything(t *testing.T) {
	svc, repo := newTestService(t)
	signIn(t, svc)
	ctx := context.Background()
	adminCtx := WithActor(ctx, domain.Actor{EmployeeID: "emp-1", Role: "admin"})

	if _, err := svc.ScanBarcode(ctx, "900000000015"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	tx, err := svc.Settle(ctx, "", domain.CashPayment{})
	if err != nil {
		t.Fatalf("settle: %v", err)
	}

	if err := svc.ResetData(adminCtx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if svc.ActiveOperator() != nil {
		t.Fatal("session should end on reset")
	}

	// The ledger is back to the seed history: our sale is gone, the
	// seeded transactions are not.
	transactions, _ := repo.ListTransactions(ctx)
	if len(transactions) == 0 {
		t.Fatal("seed history missing after reset")
	}
	for _, recorded := range transactions {
		if recorded.ID == tx.ID {
			t.Fatal("settled sale survived the reset")
		}
	}
}
