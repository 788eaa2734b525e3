package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vendarapida/backend/internal/domain"
	"vendarapida/backend/internal/service"
	"vendarapida/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	svc := service.New(memory.NewSeeded(), nil, 0)
	auth := NewAuthManager("test-secret-key", time.Hour, "dona@tendaselonas.com", "segredo-forte-123")
	return New(svc, auth, "*")
}

func loginAsOperator(t *testing.T, api *API) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Email: "dona@tendaselonas.com", Password: "segredo-forte-123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("operator login failed, status %d", res.Code)
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.Token) == "" {
		t.Fatalf("expected token in login response")
	}
	return payload.Token
}

// do sends an authenticated JSON request through the full middleware stack.
func do(t *testing.T, api *API, token, csrf, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestListProductsReturnsSeededCatalog(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)

	res := do(t, api, token, "", http.MethodGet, "/api/v1/products", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var payload struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode products failed: %v", err)
	}
	if len(payload.Products) == 0 {
		t.Fatalf("expected seeded products")
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	api := newTestAPI(t)

	res := do(t, api, "", "", http.MethodGet, "/api/v1/products", nil)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}
}

func TestCreateSaleFlatPrice(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	res := do(t, api, token, csrf, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		ProductID: "prod-lona-4x4",
		Quantity:  1,
		Payment:   domain.CashPayment(),
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	var payload struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode sale failed: %v", err)
	}
	if payload.Sale.TotalCents != 28000 {
		t.Fatalf("expected total 28000, got %d", payload.Sale.TotalCents)
	}
	if payload.Sale.ID == "" {
		t.Fatalf("expected generated sale id")
	}
}

func TestCreateRentalSaleOverAPI(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	res := do(t, api, token, csrf, http.MethodPost, "/api/v1/sales", json.RawMessage(
		`{"product_id":"prod-tenda-3x3","quantity":1,"is_rental":true,"payment":{"method":"dinheiro"}}`,
	))
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	var payload struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode sale failed: %v", err)
	}
	if !payload.Sale.IsRental {
		t.Fatalf("rental flag lost over the wire: %+v", payload.Sale)
	}

	export := do(t, api, token, "", http.MethodGet, "/api/v1/sales/export", nil)
	if export.Code != http.StatusOK {
		t.Fatalf("export failed, status %d", export.Code)
	}
	body := export.Body.String()
	if !strings.Contains(body, "is_rental") {
		t.Fatalf("expected is_rental column in csv header, got %q", body)
	}
	if !strings.Contains(body, "true") {
		t.Fatalf("expected rental row in csv, got %q", body)
	}
}

func TestCreateSaleValidationErrorReturns422(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	res := do(t, api, token, csrf, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		ProductID: "prod-lona-4x4",
		Quantity:  1,
		Payment:   domain.PaymentInfo{Method: "cheque"},
	})
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}

	var payload map[string]string
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error response failed: %v", err)
	}
	if !strings.Contains(payload["error"], "forma de pagamento") {
		t.Fatalf("expected payment method message, got %q", payload["error"])
	}
}

func TestCreateSaleUnknownFieldReturns400(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(`{"product_id":"prod-lona-4x4","bogus":1}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", res.Code)
	}
}

func TestSaleNotFoundReturns404(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)

	res := do(t, api, token, "", http.MethodGet, "/api/v1/sales/sale-nope", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestSettleCreditSaleEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	custRes := do(t, api, token, csrf, http.MethodPost, "/api/v1/customers", domain.CustomerCreateRequest{Name: "Marcos Tenda Festas"})
	if custRes.Code != http.StatusCreated {
		t.Fatalf("create customer failed, status %d", custRes.Code)
	}
	var custPayload struct {
		Customer domain.Customer `json:"customer"`
	}
	if err := json.NewDecoder(custRes.Body).Decode(&custPayload); err != nil {
		t.Fatalf("decode customer failed: %v", err)
	}

	due := time.Now().UTC().AddDate(0, 0, 15)
	saleRes := do(t, api, token, csrf, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		ProductID:  "prod-tenda-3x3",
		Quantity:   1,
		CustomerID: custPayload.Customer.ID,
		Payment:    domain.CreditPayment(due),
	})
	if saleRes.Code != http.StatusCreated {
		t.Fatalf("create credit sale failed, status %d: %s", saleRes.Code, saleRes.Body.String())
	}
	var salePayload struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(saleRes.Body).Decode(&salePayload); err != nil {
		t.Fatalf("decode sale failed: %v", err)
	}

	settleRes := do(t, api, token, csrf, http.MethodPost, "/api/v1/sales/"+salePayload.Sale.ID+"/settle", nil)
	if settleRes.Code != http.StatusOK {
		t.Fatalf("settle failed, status %d: %s", settleRes.Code, settleRes.Body.String())
	}
	var settled struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(settleRes.Body).Decode(&settled); err != nil {
		t.Fatalf("decode settled sale failed: %v", err)
	}
	if settled.Sale.SettledAt == nil {
		t.Fatalf("expected settled_at to be set")
	}
}

func TestSettleCashSaleReturns400(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	saleRes := do(t, api, token, csrf, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		ProductID: "prod-estaca",
		Quantity:  4,
		Payment:   domain.CashPayment(),
	})
	if saleRes.Code != http.StatusCreated {
		t.Fatalf("create sale failed, status %d", saleRes.Code)
	}
	var salePayload struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(saleRes.Body).Decode(&salePayload); err != nil {
		t.Fatalf("decode sale failed: %v", err)
	}

	res := do(t, api, token, csrf, http.MethodPost, "/api/v1/sales/"+salePayload.Sale.ID+"/settle", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 settling a cash sale, got %d", res.Code)
	}
}

func TestSalesExportCSV(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	res := do(t, api, token, csrf, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		ProductID: "prod-lona-4x4",
		Quantity:  1,
		Payment:   domain.PixPayment(),
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create sale failed, status %d", res.Code)
	}

	export := do(t, api, token, "", http.MethodGet, "/api/v1/sales/export", nil)
	if export.Code != http.StatusOK {
		t.Fatalf("export failed, status %d", export.Code)
	}
	if ct := export.Header().Get("Content-Type"); !strings.Contains(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	body := export.Body.String()
	if !strings.HasPrefix(body, "id,created_at,sale_date,") {
		t.Fatalf("expected csv header, got %q", body)
	}
	if !strings.Contains(body, "Lona 4x4") {
		t.Fatalf("expected sale row in csv, got %q", body)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	res := do(t, api, token, csrf, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		ProductID: "prod-lona-4x4",
		Quantity:  1,
		Payment:   domain.CashPayment(),
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("create sale failed, status %d", res.Code)
	}

	dash := do(t, api, token, "", http.MethodGet, "/api/v1/dashboard", nil)
	if dash.Code != http.StatusOK {
		t.Fatalf("dashboard failed, status %d", dash.Code)
	}
	var payload domain.DashboardMetrics
	if err := json.NewDecoder(dash.Body).Decode(&payload); err != nil {
		t.Fatalf("decode dashboard failed: %v", err)
	}
	if payload.Month.RevenueCents != 28000 {
		t.Fatalf("expected revenue 28000, got %d", payload.Month.RevenueCents)
	}
}

func TestDashboardBadMonthReturns400(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)

	res := do(t, api, token, "", http.MethodGet, "/api/v1/dashboard?month=agosto", nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad month, got %d", res.Code)
	}
}

func TestReceiptEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	saleRes := do(t, api, token, csrf, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		ProductID: "prod-lona-4x4",
		Quantity:  1,
		Payment:   domain.CashPayment(),
	})
	if saleRes.Code != http.StatusCreated {
		t.Fatalf("create sale failed, status %d", saleRes.Code)
	}
	var salePayload struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(saleRes.Body).Decode(&salePayload); err != nil {
		t.Fatalf("decode sale failed: %v", err)
	}

	receipt := do(t, api, token, "", http.MethodGet, "/api/v1/sales/"+salePayload.Sale.ID+"/receipt", nil)
	if receipt.Code != http.StatusOK {
		t.Fatalf("receipt failed, status %d", receipt.Code)
	}
	var doc domain.ReceiptDocument
	if err := json.NewDecoder(receipt.Body).Decode(&doc); err != nil {
		t.Fatalf("decode receipt failed: %v", err)
	}
	if !strings.Contains(doc.PreviewText, "R$ 280,00") {
		t.Fatalf("expected formatted total in receipt, got %q", doc.PreviewText)
	}

	page := do(t, api, token, "", http.MethodGet, "/api/v1/sales/"+salePayload.Sale.ID+"/receipt.html", nil)
	if page.Code != http.StatusOK {
		t.Fatalf("receipt.html failed, status %d", page.Code)
	}
	if ct := page.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Fatalf("expected html content type, got %q", ct)
	}
	if !strings.Contains(page.Body.String(), "R$ 280,00") {
		t.Fatalf("expected formatted total in receipt page")
	}
}

func TestContractOnlyForTendaSalesWithCustomer(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	custRes := do(t, api, token, csrf, http.MethodPost, "/api/v1/customers", domain.CustomerCreateRequest{Name: "Buffet Alegria"})
	if custRes.Code != http.StatusCreated {
		t.Fatalf("create customer failed, status %d", custRes.Code)
	}
	var custPayload struct {
		Customer domain.Customer `json:"customer"`
	}
	if err := json.NewDecoder(custRes.Body).Decode(&custPayload); err != nil {
		t.Fatalf("decode customer failed: %v", err)
	}

	tendaRes := do(t, api, token, csrf, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		ProductID:  "prod-tenda-6x6",
		Quantity:   1,
		CustomerID: custPayload.Customer.ID,
		Payment:    domain.CashPayment(),
	})
	if tendaRes.Code != http.StatusCreated {
		t.Fatalf("create tenda sale failed, status %d", tendaRes.Code)
	}
	var tendaPayload struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(tendaRes.Body).Decode(&tendaPayload); err != nil {
		t.Fatalf("decode sale failed: %v", err)
	}

	contract := do(t, api, token, "", http.MethodGet, "/api/v1/sales/"+tendaPayload.Sale.ID+"/contract", nil)
	if contract.Code != http.StatusOK {
		t.Fatalf("contract failed, status %d: %s", contract.Code, contract.Body.String())
	}
	if !strings.Contains(contract.Body.String(), "Buffet Alegria") {
		t.Fatalf("expected customer name in contract")
	}

	lonaRes := do(t, api, token, csrf, http.MethodPost, "/api/v1/sales", domain.SaleCreateRequest{
		ProductID: "prod-lona-4x4",
		Quantity:  1,
		Payment:   domain.CashPayment(),
	})
	if lonaRes.Code != http.StatusCreated {
		t.Fatalf("create lona sale failed, status %d", lonaRes.Code)
	}
	var lonaPayload struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(lonaRes.Body).Decode(&lonaPayload); err != nil {
		t.Fatalf("decode sale failed: %v", err)
	}

	denied := do(t, api, token, "", http.MethodGet, "/api/v1/sales/"+lonaPayload.Sale.ID+"/contract", nil)
	if denied.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for lona contract, got %d", denied.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	get := do(t, api, token, "", http.MethodGet, "/api/v1/settings", nil)
	if get.Code != http.StatusOK {
		t.Fatalf("get settings failed, status %d", get.Code)
	}
	var initial struct {
		Settings domain.CompanySettings `json:"settings"`
	}
	if err := json.NewDecoder(get.Body).Decode(&initial); err != nil {
		t.Fatalf("decode settings failed: %v", err)
	}
	if initial.Settings.CompanyName != domain.DefaultCompanyName {
		t.Fatalf("expected default company name, got %q", initial.Settings.CompanyName)
	}

	put := do(t, api, token, csrf, http.MethodPut, "/api/v1/settings", domain.CompanySettings{
		CompanyName: "Lonas do Vale",
		Phone:       "(11) 98888-0000",
	})
	if put.Code != http.StatusOK {
		t.Fatalf("put settings failed, status %d", put.Code)
	}

	again := do(t, api, token, "", http.MethodGet, "/api/v1/settings", nil)
	var updated struct {
		Settings domain.CompanySettings `json:"settings"`
	}
	if err := json.NewDecoder(again.Body).Decode(&updated); err != nil {
		t.Fatalf("decode settings failed: %v", err)
	}
	if updated.Settings.CompanyName != "Lonas do Vale" {
		t.Fatalf("expected updated company name, got %q", updated.Settings.CompanyName)
	}
}

func TestSavedReportLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	create := do(t, api, token, csrf, http.MethodPost, "/api/v1/reports", domain.SavedReportCreateRequest{
		Title:     "Vendas de agosto",
		Type:      domain.ReportTypeSales,
		StartDate: "2026-08-01",
		EndDate:   "2026-08-31",
		Data:      json.RawMessage(`{"total_cents":40000}`),
	})
	if create.Code != http.StatusCreated {
		t.Fatalf("create report failed, status %d: %s", create.Code, create.Body.String())
	}
	var created struct {
		Report domain.SavedReport `json:"report"`
	}
	if err := json.NewDecoder(create.Body).Decode(&created); err != nil {
		t.Fatalf("decode report failed: %v", err)
	}

	del := do(t, api, token, csrf, http.MethodDelete, "/api/v1/reports/"+created.Report.ID, nil)
	if del.Code != http.StatusNoContent {
		t.Fatalf("delete report failed, status %d", del.Code)
	}

	list := do(t, api, token, "", http.MethodGet, "/api/v1/reports", nil)
	var payload struct {
		Reports []domain.SavedReport `json:"reports"`
	}
	if err := json.NewDecoder(list.Body).Decode(&payload); err != nil {
		t.Fatalf("decode reports failed: %v", err)
	}
	if len(payload.Reports) != 0 {
		t.Fatalf("expected empty report list, got %d", len(payload.Reports))
	}
}

func TestMethodNotAllowedOnSales(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsOperator(t, api)
	csrf := fetchCSRFToken(t, api)

	res := do(t, api, token, csrf, http.MethodPut, "/api/v1/sales", nil)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
