// Package report aggregates settled transactions and cash operations
// into the dashboard and filtered-report views. All functions are pure
// so they can be fed any slice of the ledger.
package report

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"pospro/backend/internal/domain"
)

// UnknownProductName labels top-product rows whose snapshot carried an
// empty name.
const UnknownProductName = "Produto Desconhecido"

// paymentBuckets is the fixed bucket order for payment breakdowns.
// Every bucket is always present, zero or not.
var paymentBuckets = []domain.PaymentMethod{
	domain.PaymentDinheiro,
	domain.PaymentPIX,
	domain.PaymentCartao,
	domain.PaymentBoleto,
}

func Summarize(transactions []domain.Transaction) domain.RevenueSummary {
	summary := domain.RevenueSummary{
		TotalRevenue:   decimal.Zero,
		PaidRevenue:    decimal.Zero,
		PendingRevenue: decimal.Zero,
		AverageTicket:  decimal.Zero,
	}
	for _, tx := range transactions {
		summary.TotalRevenue = summary.TotalRevenue.Add(tx.Total)
		if tx.Status == domain.StatusPago {
			summary.PaidRevenue = summary.PaidRevenue.Add(tx.Total)
		} else {
			summary.PendingRevenue = summary.PendingRevenue.Add(tx.Total)
		}
	}
	summary.TransactionCount = len(transactions)
	if summary.TransactionCount > 0 {
		summary.AverageTicket = summary.TotalRevenue.Div(decimal.NewFromInt(int64(summary.TransactionCount))).Round(2)
	}
	return summary
}

// TopProducts ranks products by total quantity sold, descending, capped
// at limit rows. Ties break alphabetically by name.
func TopProducts(transactions []domain.Transaction, limit int) []domain.TopProduct {
	quantities := make(map[string]*domain.TopProduct)
	for _, tx := range transactions {
		for _, item := range tx.Items {
			entry, ok := quantities[item.ProductID]
			if !ok {
				name := item.ProductName
				if name == "" {
					name = UnknownProductName
				}
				entry = &domain.TopProduct{ProductID: item.ProductID, Name: name}
				quantities[item.ProductID] = entry
			}
			entry.Quantity += item.Quantity
		}
	}

	ranked := make([]domain.TopProduct, 0, len(quantities))
	for _, entry := range quantities {
		ranked = append(ranked, *entry)
	}
	slices.SortFunc(ranked, func(a, b domain.TopProduct) int {
		if a.Quantity != b.Quantity {
			return b.Quantity - a.Quantity
		}
		return cmpString(a.Name, b.Name)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// SalesByPaymentMethod totals revenue per payment method. The four
// buckets appear in fixed order even when empty.
func SalesByPaymentMethod(transactions []domain.Transaction) []domain.PaymentMethodTotal {
	totals := make(map[domain.PaymentMethod]decimal.Decimal, len(paymentBuckets))
	for _, method := range paymentBuckets {
		totals[method] = decimal.Zero
	}
	for _, tx := range transactions {
		totals[tx.PaymentMethod] = totals[tx.PaymentMethod].Add(tx.Total)
	}

	result := make([]domain.PaymentMethodTotal, 0, len(paymentBuckets))
	for _, method := range paymentBuckets {
		result = append(result, domain.PaymentMethodTotal{Method: method, Total: totals[method]})
	}
	return result
}

// DailyTrend buckets revenue per calendar day for the last seven days
// ending at now, oldest first, labelled dd/MM. Days with no sales are
// present with a zero total.
func DailyTrend(transactions []domain.Transaction, now time.Time) []domain.DailySale {
	totalsByDay := make(map[string]decimal.Decimal)
	for _, tx := range transactions {
		key := tx.Date.Format("2006-01-02")
		totalsByDay[key] = totalsByDay[key].Add(tx.Total)
	}

	trend := make([]domain.DailySale, 0, 7)
	for offset := 6; offset >= 0; offset-- {
		day := now.AddDate(0, 0, -offset)
		total, ok := totalsByDay[day.Format("2006-01-02")]
		if !ok {
			total = decimal.Zero
		}
		trend = append(trend, domain.DailySale{
			Date:  day.Format("02/01"),
			Total: total,
		})
	}
	return trend
}

// ByEmployee breaks the period down per operator, sorted by total sold
// descending.
func ByEmployee(transactions []domain.Transaction) []domain.EmployeeSales {
	byID := make(map[string]*domain.EmployeeSales)
	for _, tx := range transactions {
		entry, ok := byID[tx.EmployeeID]
		if !ok {
			entry = &domain.EmployeeSales{
				EmployeeID:   tx.EmployeeID,
				EmployeeName: tx.EmployeeName,
				TotalSold:    decimal.Zero,
			}
			byID[tx.EmployeeID] = entry
		}
		entry.TransactionCount++
		entry.TotalSold = entry.TotalSold.Add(tx.Total)
	}

	result := make([]domain.EmployeeSales, 0, len(byID))
	for _, entry := range byID {
		result = append(result, *entry)
	}
	slices.SortFunc(result, func(a, b domain.EmployeeSales) int {
		if !a.TotalSold.Equal(b.TotalSold) {
			if a.TotalSold.GreaterThan(b.TotalSold) {
				return -1
			}
			return 1
		}
		return cmpString(a.EmployeeName, b.EmployeeName)
	})
	return result
}

// Range is a normalized report window: the start date widened to
// 00:00:00 and the end date to 23:59:59.999.
type Range struct {
	From time.Time
	To   time.Time
}

// NormalizeRange parses YYYY-MM-DD bounds into a full-day window. Empty
// bounds fall back to a wide-open range.
func NormalizeRange(startDate, endDate string, loc *time.Location) (Range, error) {
	r := Range{
		From: time.Date(1970, 1, 1, 0, 0, 0, 0, loc),
		To:   time.Date(9999, 12, 31, 23, 59, 59, 0, loc),
	}
	if startDate != "" {
		day, err := time.ParseInLocation("2006-01-02", startDate, loc)
		if err != nil {
			return Range{}, err
		}
		r.From = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	}
	if endDate != "" {
		day, err := time.ParseInLocation("2006-01-02", endDate, loc)
		if err != nil {
			return Range{}, err
		}
		r.To = time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 999_000_000, loc)
	}
	return r, nil
}

// FilterByEmployees keeps transactions belonging to the given operator
// ids. An empty filter means all operators.
func FilterByEmployees(transactions []domain.Transaction, employeeIDs []string) []domain.Transaction {
	if len(employeeIDs) == 0 {
		return transactions
	}
	allowed := make(map[string]struct{}, len(employeeIDs))
	for _, id := range employeeIDs {
		allowed[id] = struct{}{}
	}
	filtered := make([]domain.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if _, ok := allowed[tx.EmployeeID]; ok {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}

// FilterOperationsByEmployees keeps cash drawer operations belonging to
// the given operator ids. An empty filter means all operators.
func FilterOperationsByEmployees(operations []domain.CashDrawerOperation, employeeIDs []string) []domain.CashDrawerOperation {
	if len(employeeIDs) == 0 {
		return operations
	}
	allowed := make(map[string]struct{}, len(employeeIDs))
	for _, id := range employeeIDs {
		allowed[id] = struct{}{}
	}
	filtered := make([]domain.CashDrawerOperation, 0, len(operations))
	for _, op := range operations {
		if _, ok := allowed[op.EmployeeID]; ok {
			filtered = append(filtered, op)
		}
	}
	return filtered
}

// Generate assembles the full filtered report for a window of the
// ledgers.
func Generate(transactions []domain.Transaction, operations []domain.CashDrawerOperation) domain.FilteredReport {
	return domain.FilteredReport{
		Transactions:         transactions,
		CashOperations:       operations,
		Summary:              Summarize(transactions),
		SalesByPaymentMethod: SalesByPaymentMethod(transactions),
		TopProducts:          TopProducts(transactions, 5),
		ByEmployee:           ByEmployee(transactions),
	}
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
