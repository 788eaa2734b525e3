package httpapi

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"vendarapida/backend/internal/currency"
	"vendarapida/backend/internal/domain"
	"vendarapida/backend/internal/metrics"
	"vendarapida/backend/internal/service"
	"vendarapida/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

// generateCSRFToken returns a token valid for the current hour bucket.
func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, domain.RoleOperator))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions, domain.RoleOperator))
	mux.HandleFunc("/api/v1/customers", a.requireAuth(a.handleCustomers, domain.RoleOperator))
	mux.HandleFunc("/api/v1/customers/", a.requireAuth(a.handleCustomerActions, domain.RoleOperator))
	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales, domain.RoleOperator))
	mux.HandleFunc("/api/v1/sales/export", a.requireAuth(a.handleSalesExport, domain.RoleOperator))
	mux.HandleFunc("/api/v1/sales/", a.requireAuth(a.handleSaleActions, domain.RoleOperator))
	mux.HandleFunc("/api/v1/dashboard", a.requireAuth(a.handleDashboard, domain.RoleOperator))
	mux.HandleFunc("/api/v1/reports", a.requireAuth(a.handleReports, domain.RoleOperator))
	mux.HandleFunc("/api/v1/reports/", a.requireAuth(a.handleReportActions, domain.RoleOperator))
	mux.HandleFunc("/api/v1/settings", a.requireAuth(a.handleSettings, domain.RoleOperator))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths that are exempt from CSRF validation.
// Login is excluded because it is called without a prior CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods.
// Returns false and writes an error response if validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/products/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodPut:
		var req domain.ProductUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.service.UpdateProduct(r.Context(), id, req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodDelete:
		if err := a.service.DeleteProduct(r.Context(), id); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		customers, err := a.service.ListCustomers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
	case http.MethodPost:
		var req domain.CustomerCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.CreateCustomer(r.Context(), req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCustomerActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/customers/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		customer, err := a.service.GetCustomer(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	case http.MethodPut:
		var req domain.CustomerUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		customer, err := a.service.UpdateCustomer(r.Context(), id, req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	case http.MethodDelete:
		if err := a.service.DeleteCustomer(r.Context(), id); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sales, err := a.service.ListSales(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
	case http.MethodPost:
		var req domain.SaleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.CreateSale(r.Context(), req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSalesExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	sales, err := a.service.ListSales(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="vendas.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(salesToCSV(sales)))
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sales/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}

	switch action {
	case "":
		a.handleSaleByID(w, r, id)
	case "settle":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		sale, err := a.service.SettleSale(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	case "receipt":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		receipt, err := a.service.BuildReceipt(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, receipt)
	case "receipt.html":
		a.handleSaleDocument(w, r, id, renderReceiptHTML)
	case "contract":
		a.handleSaleDocument(w, r, id, renderContractHTML)
	default:
		writeError(w, http.StatusNotFound, errors.New("not found"))
	}
}

func (a *API) handleSaleByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		sale, err := a.service.GetSale(r.Context(), id)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	case http.MethodPatch:
		var req domain.SaleUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.service.UpdateSale(r.Context(), id, req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	case http.MethodDelete:
		if err := a.service.DeleteSale(r.Context(), id); err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleDocument(w http.ResponseWriter, r *http.Request, id string, render func(domain.Sale, domain.CompanySettings) (string, error)) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	sale, err := a.service.GetSale(r.Context(), id)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	settings, err := a.service.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	html, err := render(sale, settings)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	basis := metrics.ByEntryDate
	if r.URL.Query().Get("basis") == string(metrics.ByBusinessDate) {
		basis = metrics.ByBusinessDate
	}

	dash, err := a.service.Dashboard(r.Context(), r.URL.Query().Get("month"), basis)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (a *API) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		reports, err := a.service.ListSavedReports(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
	case http.MethodPost:
		var req domain.SavedReportCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		report, err := a.service.CreateSavedReport(r.Context(), req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"report": report})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleReportActions(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}
	if err := a.service.DeleteSavedReport(r.Context(), id); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := a.service.GetSettings(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
	case http.MethodPut:
		var req domain.CompanySettings
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		settings, err := a.service.SaveSettings(r.Context(), req)
		if err != nil {
			writeError(w, statusForError(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Enforce CSRF protection for all state-changing requests.
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func salesToCSV(sales []domain.Sale) string {
	lines := []string{
		"id,created_at,sale_date,product,category,quantity,square_meters,total_cents,is_rental,payment_method,due_date,settled_at,customer",
	}
	for _, sale := range sales {
		dueDate := ""
		if sale.Payment.DueDate != nil {
			dueDate = sale.Payment.DueDate.Format("2006-01-02")
		}
		settledAt := ""
		if sale.SettledAt != nil {
			settledAt = sale.SettledAt.Format("2006-01-02")
		}
		lines = append(lines, fmt.Sprintf("%s,%s,%s,%s,%s,%d,%.2f,%d,%t,%s,%s,%s,%s",
			sale.ID,
			sale.CreatedAt.Format(time.RFC3339),
			sale.SaleDate.Format("2006-01-02"),
			csvEscape(sale.ProductName),
			sale.Category,
			sale.Quantity,
			sale.SquareMeters,
			sale.TotalCents,
			sale.IsRental,
			sale.Payment.Method,
			dueDate,
			settledAt,
			csvEscape(sale.CustomerName),
		))
	}
	return strings.Join(lines, "\n") + "\n"
}

func csvEscape(field string) string {
	if strings.ContainsAny(field, ",\"\n") {
		return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
	}
	return field
}

type saleDocumentView struct {
	CompanyName  string
	CompanyCNPJ  string
	CompanyPhone string
	SaleID       string
	ProductName  string
	Category     string
	Quantity     int
	WidthM       float64
	LengthM      float64
	SquareMeters float64
	CustomerName string
	IsRental     bool
	Total        string
	Payment      string
	Installments int
	Entry        string
	DueDate      string
	SettledAt    string
	SaleDate     string
}

func newSaleDocumentView(sale domain.Sale, settings domain.CompanySettings) saleDocumentView {
	view := saleDocumentView{
		CompanyName:  settings.CompanyName,
		CompanyCNPJ:  settings.CNPJ,
		CompanyPhone: settings.Phone,
		SaleID:       sale.ID,
		ProductName:  sale.ProductName,
		Category:     sale.Category,
		Quantity:     sale.Quantity,
		WidthM:       sale.WidthM,
		LengthM:      sale.LengthM,
		SquareMeters: sale.SquareMeters,
		CustomerName: sale.CustomerName,
		IsRental:     sale.IsRental,
		Total:        currency.Format(sale.TotalCents),
		Payment:      sale.Payment.Method,
		Installments: sale.Payment.Installments,
		SaleDate:     sale.SaleDate.Format("02/01/2006"),
	}
	if sale.Payment.EntryCents > 0 {
		view.Entry = currency.Format(sale.Payment.EntryCents)
	}
	if sale.Payment.DueDate != nil {
		view.DueDate = sale.Payment.DueDate.Format("02/01/2006")
	}
	if sale.SettledAt != nil {
		view.SettledAt = sale.SettledAt.Format("02/01/2006")
	}
	return view
}

// receiptHTMLTmpl renders a printable receipt. All user-controlled fields
// are auto-escaped by html/template to prevent XSS.
var receiptHTMLTmpl = template.Must(template.New("receipt").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Recibo {{.SaleID}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; max-width: 480px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    td { padding: 4px 0; font-size: 14px; }
    td.value { text-align: right; }
    h2 { margin-bottom: 2px; }
    .muted { color: #666; font-size: 12px; }
    .total { font-weight: bold; border-top: 1px solid #000; }
  </style>
</head>
<body>
  <h2>{{.CompanyName}}</h2>
  {{if .CompanyCNPJ}}<p class="muted">CNPJ {{.CompanyCNPJ}}</p>{{end}}
  {{if .CompanyPhone}}<p class="muted">{{.CompanyPhone}}</p>{{end}}
  <p>Recibo {{.SaleID}} &mdash; {{.SaleDate}}</p>
  <table>
    <tr><td>{{.ProductName}}{{if .IsRental}} (locacao){{end}}</td><td class="value">{{if .SquareMeters}}{{.WidthM}}m &times; {{.LengthM}}m{{else}}x{{.Quantity}}{{end}}</td></tr>
    {{if .CustomerName}}<tr><td>Cliente</td><td class="value">{{.CustomerName}}</td></tr>{{end}}
    <tr><td>Pagamento</td><td class="value">{{.Payment}}</td></tr>
    {{if .Entry}}<tr><td>Entrada</td><td class="value">{{.Entry}} em {{.Installments}}x</td></tr>{{end}}
    {{if .DueDate}}<tr><td>Vencimento</td><td class="value">{{.DueDate}}</td></tr>{{end}}
    {{if .SettledAt}}<tr><td>Quitado em</td><td class="value">{{.SettledAt}}</td></tr>{{end}}
    <tr class="total"><td>Total</td><td class="value">{{.Total}}</td></tr>
  </table>
</body>
</html>
`))

// contractHTMLTmpl renders a short rental/delivery contract for tenda sales.
var contractHTMLTmpl = template.Must(template.New("contract").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Contrato {{.SaleID}}</title>
  <style>
    body { font-family: serif; margin: 40px; line-height: 1.6; }
    h2 { text-align: center; }
    .signature { margin-top: 64px; display: flex; justify-content: space-between; }
    .signature div { border-top: 1px solid #000; width: 40%; text-align: center; padding-top: 4px; }
  </style>
</head>
<body>
  <h2>Contrato de {{if .IsRental}}Locacao{{else}}Venda{{end}} de Tendas</h2>
  <p><strong>{{.CompanyName}}</strong>{{if .CompanyCNPJ}}, CNPJ {{.CompanyCNPJ}}{{end}}, doravante FORNECEDORA,
  e <strong>{{.CustomerName}}</strong>, doravante CONTRATANTE, firmam o presente contrato.</p>
  <p>Objeto: {{if .IsRental}}locacao temporaria de {{end}}{{.ProductName}}{{if .Quantity}} (quantidade {{.Quantity}}){{end}}, no valor total de <strong>{{.Total}}</strong>,
  com pagamento via {{.Payment}}{{if .DueDate}} e vencimento em {{.DueDate}}{{end}}.</p>
  <p>Data da {{if .IsRental}}locacao{{else}}venda{{end}}: {{.SaleDate}}. Referencia: {{.SaleID}}.</p>
  <p>A FORNECEDORA responde pela qualidade do material entregue; a CONTRATANTE responde pela
  conservacao do bem a partir da entrega{{if .IsRental}} ate a devolucao{{end}}.</p>
  <div class="signature">
    <div>{{.CompanyName}}</div>
    <div>{{.CustomerName}}</div>
  </div>
</body>
</html>
`))

func renderReceiptHTML(sale domain.Sale, settings domain.CompanySettings) (string, error) {
	var buf bytes.Buffer
	if err := receiptHTMLTmpl.Execute(&buf, newSaleDocumentView(sale, settings)); err != nil {
		// Fallback: return a plain error page rather than leaking internal details.
		return "<!doctype html><html><body><p>Document rendering error.</p></body></html>", nil
	}
	return buf.String(), nil
}

func renderContractHTML(sale domain.Sale, settings domain.CompanySettings) (string, error) {
	if sale.Category != domain.CategoryTenda {
		return "", store.ErrInvalidRecord
	}
	if sale.CustomerName == "" {
		return "", store.ErrInvalidRecord
	}
	var buf bytes.Buffer
	if err := contractHTMLTmpl.Execute(&buf, newSaleDocumentView(sale, settings)); err != nil {
		return "<!doctype html><html><body><p>Document rendering error.</p></body></html>", nil
	}
	return buf.String(), nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case service.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrInvalidRecord):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
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
