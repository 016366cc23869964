package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"pospro/backend/internal/cart"
	"pospro/backend/internal/domain"
	"pospro/backend/internal/service"
	"pospro/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	logger        *zap.SugaredLogger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, logger *zap.SugaredLogger) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		logger:        logger,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)
	r.Use(a.cors)

	r.Get("/healthz", a.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Post("/session/logout", a.handleLogout)
			r.Get("/session/active", a.handleActiveSession)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", a.handleListProducts)
				r.Get("/low-stock", a.handleLowStock)
				r.Get("/search", a.handleSearch)
				r.Get("/{id}", a.handleGetProduct)
				r.With(a.requireRole("admin")).Post("/", a.handleCreateProduct)
				r.With(a.requireRole("admin")).Patch("/{id}", a.handleUpdateProduct)
				r.With(a.requireRole("admin")).Delete("/{id}", a.handleDeleteProduct)
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", a.handleCartView)
				r.Delete("/", a.handleClearCart)
				r.Post("/items", a.handleAddCartItem)
				r.Patch("/items/{productID}", a.handleUpdateCartItem)
				r.Delete("/items/{productID}", a.handleRemoveCartItem)
				r.Get("/suggestions", a.handleSuggestions)
			})

			r.Post("/checkout", a.handleCheckout)

			r.Route("/cash-drawer/operations", func(r chi.Router) {
				r.Get("/", a.handleListCashOperations)
				r.Post("/", a.handleRecordCashMovement)
			})

			r.Get("/transactions", a.handleListTransactions)
			r.Get("/transactions/{id}", a.handleGetTransaction)

			r.Get("/dashboard", a.handleDashboard)
			r.Post("/reports", a.handleGenerateReport)

			r.Get("/employees", a.handleListEmployees)
			r.With(a.requireRole("admin")).Post("/employees", a.handleCreateEmployee)
			r.Get("/suppliers", a.handleListSuppliers)
			r.With(a.requireRole("admin")).Post("/suppliers", a.handleCreateSupplier)

			r.Route("/settings", func(r chi.Router) {
				r.Get("/store-profile", a.handleGetStoreProfile)
				r.With(a.requireRole("admin")).Put("/store-profile", a.handleSaveStoreProfile)
				r.Get("/theme", a.handleGetTheme)
				r.Put("/theme", a.handleSaveTheme)
			})

			r.With(a.requireRole("admin")).Post("/admin/reset", a.handleReset)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(a.logger, w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(a.logger, w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	return r
}

// --- middleware --------------------------------------------------------

func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(a.logger, w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(a.logger, w, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	})
}

func (a *API) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := service.ActorFromContext(r.Context())
			if !ok {
				writeError(a.logger, w, http.StatusUnauthorized, errors.New("missing actor"))
				return
			}
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(a.logger, w, http.StatusForbidden, errors.New("forbidden role"))
		})
	}
}

// --- session -----------------------------------------------------------

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}

	employee, err := a.service.Login(r.Context(), req.EmployeeID, req.PIN)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}

	token, expiresAt, err := a.auth.Sign(*employee)
	if err != nil {
		writeError(a.logger, w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, domain.LoginResponse{
		AccessToken: token,
		Employee:    *employee,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	if err := a.service.Logout(force); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (a *API) handleActiveSession(w http.ResponseWriter, _ *http.Request) {
	operator := a.service.ActiveOperator()
	if operator == nil {
		writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": true, "employee": operator})
}

// --- catalog -----------------------------------------------------------

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListLowStockProducts(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// handleSearch drives the register search box. submit=true is the
// enter-key path, which may add a product straight to the cart.
func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	submit := r.URL.Query().Get("submit") == "true"

	results, added, err := a.service.SearchCatalog(r.Context(), query, submit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if added != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"added": added,
			"cart":  a.service.CartView(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- cart --------------------------------------------------------------

func (a *API) handleCartView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.service.CartView())
}

type addCartItemRequest struct {
	Barcode   string `json:"barcode,omitempty"`
	ProductID string `json:"product_id,omitempty"`
}

func (a *API) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}

	var (
		view domain.CartView
		err  error
	)
	switch {
	case req.Barcode != "":
		view, err = a.service.ScanBarcode(r.Context(), req.Barcode)
	case req.ProductID != "":
		view, err = a.service.AddCartProduct(r.Context(), req.ProductID)
	default:
		writeError(a.logger, w, http.StatusBadRequest, errors.New("barcode or product_id required"))
		return
	}
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (a *API) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}
	view, err := a.service.UpdateCartQuantity(chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	view, err := a.service.UpdateCartQuantity(chi.URLParam(r, "productID"), 0)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleClearCart(w http.ResponseWriter, _ *http.Request) {
	view, err := a.service.ClearCart()
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"suggestions": a.service.Suggestions(r.Context()),
	})
}

// --- checkout ----------------------------------------------------------

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method"`
	CustomerName  string `json:"customer_name,omitempty"`
	DueDate       string `json:"due_date,omitempty"`
	Installments  int    `json:"installments,omitempty"`
	CPF           string `json:"cpf,omitempty"`
	CardNumber    string `json:"card_number,omitempty"`
	Bank          string `json:"bank,omitempty"`
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}

	var payment domain.Payment
	switch domain.PaymentMethod(req.PaymentMethod) {
	case domain.PaymentDinheiro:
		payment = domain.CashPayment{}
	case domain.PaymentPIX:
		payment = domain.PixPayment{}
	case domain.PaymentBoleto:
		payment = domain.CreditPayment{CustomerName: req.CustomerName, DueDate: req.DueDate}
	case domain.PaymentCartao:
		payment = domain.InstallmentPayment{
			CustomerName: req.CustomerName,
			Count:        req.Installments,
			CPF:          req.CPF,
			CardNumber:   req.CardNumber,
			Bank:         req.Bank,
		}
	default:
		writeError(a.logger, w, http.StatusBadRequest, errors.New("unknown payment method"))
		return
	}

	tx, err := a.service.Settle(r.Context(), req.CustomerName, payment)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// --- cash drawer -------------------------------------------------------

func (a *API) handleListCashOperations(w http.ResponseWriter, r *http.Request) {
	operations, err := a.service.ListCashOperations(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operations)
}

func (a *API) handleRecordCashMovement(w http.ResponseWriter, r *http.Request) {
	var req domain.CashMovementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}
	op, err := a.service.RecordCashMovement(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, op)
}

// --- history and reporting ---------------------------------------------

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := a.service.ListTransactions(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if limit := parsePositiveLimit(r.URL.Query().Get("limit"), 0, 500); limit > 0 && len(transactions) > limit {
		transactions = transactions[:limit]
	}
	writeJSON(w, http.StatusOK, transactions)
}

func (a *API) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := a.service.GetTransaction(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := a.service.Dashboard(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (a *API) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req domain.ReportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}
	generated, err := a.service.GenerateReport(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generated)
}

// --- people ------------------------------------------------------------

func (a *API) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := a.service.ListEmployees(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, employees)
}

func (a *API) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req domain.EmployeeCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}
	employee, err := a.service.CreateEmployee(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, employee)
}

func (a *API) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := a.service.ListSuppliers(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suppliers)
}

func (a *API) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.SupplierCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}
	supplier, err := a.service.CreateSupplier(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, supplier)
}

// --- settings ----------------------------------------------------------

func (a *API) handleGetStoreProfile(w http.ResponseWriter, r *http.Request) {
	info, err := a.service.StoreProfile(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *API) handleSaveStoreProfile(w http.ResponseWriter, r *http.Request) {
	var info domain.StoreInfo
	if err := decodeJSON(r, &info); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.SaveStoreProfile(r.Context(), info); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *API) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := a.service.Theme(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": theme})
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (a *API) handleSaveTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(a.logger, w, http.StatusBadRequest, err)
		return
	}
	if err := a.service.SaveTheme(r.Context(), req.Theme); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"theme": req.Theme})
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ResetData(r.Context()); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// --- helpers -----------------------------------------------------------

// writeServiceError maps service and store sentinels to HTTP statuses.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(a.logger, w, http.StatusNotFound, err)
	case errors.Is(err, service.ErrBadCredentials):
		writeError(a.logger, w, http.StatusUnauthorized, err)
	case errors.Is(err, service.ErrNoOperator):
		writeError(a.logger, w, http.StatusUnauthorized, err)
	case errors.Is(err, service.ErrSessionActive), errors.Is(err, service.ErrCartNotEmpty):
		writeError(a.logger, w, http.StatusConflict, err)
	case errors.Is(err, cart.ErrStockCeiling), errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrDuplicateBarcode):
		writeError(a.logger, w, http.StatusConflict, err)
	case errors.Is(err, cart.ErrEmptyCart), errors.Is(err, store.ErrValidation):
		writeError(a.logger, w, http.StatusBadRequest, err)
	case errors.Is(err, service.ErrForbidden):
		writeError(a.logger, w, http.StatusForbidden, err)
	default:
		writeError(a.logger, w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// writeError returns the original message for 4xx responses. 5xx
// responses get a generic message so internal details never leak.
func writeError(logger *zap.SugaredLogger, w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		logger.Errorw("internal error", "status", status, "error", err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
