package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"salesportal/internal/domain"
	"salesportal/internal/service"
	"salesportal/internal/session"
	"salesportal/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	sessions := session.NewMemoryStore(time.Hour)
	svc := service.New(repo, sessions, 0)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*", 0)
}

// uploadRequest builds a multipart POST with a single "file" field.
func uploadRequest(t *testing.T, target, token, csrf, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	return req
}

const itemSalesCSV = `Item Sales Report,2025-03-07
Site: S012 - MAIN
Barcode,Description,Quantity,Amount
4800011111111,Biscuits 200g,2,100.00
4800033333333,Gift Basket,1,50.00
`

const paymentsCSV = `Payment Summary
From March 7, 2025 12:00 AM to March 7, 2025 11:59 PM
Site: S012 - MAIN
Terminal,Cash,Credit Card,Transaction Count
T1,100.00,50.00,10
`

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

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

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "encoder",
		"password": "encoder123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatalf("expected access_token in response")
	}
	if resp.StoreID != "S012" || resp.Branch != "MAIN" {
		t.Fatalf("expected branch assignment in login response, got %s / %s", resp.StoreID, resp.Branch)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleCatalog_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleCatalog_UploadRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "encoder", "encoder123")
	csrf := fetchCSRFToken(t, api)

	catalogCSV := "Barcode,Classification\n4800055555555,Regular\n"
	req := uploadRequest(t, "/api/v1/catalog", token, csrf, "catalog.csv", catalogCSV)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for encoder catalog upload, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleCatalog_UploadAndPage(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)

	catalogCSV := "Barcode,Classification\n" +
		"4800055555555,Regular\n" +
		"4800066666666,Non-Regular\n" +
		"4800077777777,Regular\n"
	req := uploadRequest(t, "/api/v1/catalog", token, csrf, "catalog.csv", catalogCSV)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var uploadResp domain.CatalogUploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&uploadResp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if uploadResp.Entries != 3 {
		t.Fatalf("expected 3 entries replaced, got %d", uploadResp.Entries)
	}

	pageReq := httptest.NewRequest(http.MethodGet, "/api/v1/catalog?offset=0&limit=2", nil)
	pageReq.Header.Set("Authorization", "Bearer "+token)
	pageRec := httptest.NewRecorder()
	handler.ServeHTTP(pageRec, pageReq)

	if pageRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", pageRec.Code, pageRec.Body.String())
	}
	var page domain.CatalogPage
	if err := json.NewDecoder(pageRec.Body).Decode(&page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Entries) != 2 || !page.HasMore {
		t.Fatalf("expected first page of 2 with has_more, got %d entries has_more=%v", len(page.Entries), page.HasMore)
	}
	if page.Total != 3 {
		t.Fatalf("expected total of 3 catalog entries, got %d", page.Total)
	}
	if page.Entries[0].Barcode != "4800055555555" {
		t.Fatalf("expected file order preserved, got %s first", page.Entries[0].Barcode)
	}
}

func TestUploadAndSubmitFlow(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "encoder", "encoder123")
	csrf := fetchCSRFToken(t, api)

	itemReq := uploadRequest(t, "/api/v1/uploads/item-sales", token, csrf, "items.csv", itemSalesCSV)
	itemRec := httptest.NewRecorder()
	handler.ServeHTTP(itemRec, itemReq)
	if itemRec.Code != http.StatusOK {
		t.Fatalf("item upload: expected 200, got %d (body: %s)", itemRec.Code, itemRec.Body.String())
	}

	payReq := uploadRequest(t, "/api/v1/uploads/payments", token, csrf, "payments.csv", paymentsCSV)
	payRec := httptest.NewRecorder()
	handler.ServeHTTP(payRec, payReq)
	if payRec.Code != http.StatusOK {
		t.Fatalf("payment upload: expected 200, got %d (body: %s)", payRec.Code, payRec.Body.String())
	}

	var preview domain.SessionPreview
	if err := json.NewDecoder(payRec.Body).Decode(&preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if !preview.Ready {
		t.Fatalf("expected session ready after both uploads, got %+v", preview)
	}
	if preview.ItemTotals == nil || preview.ItemTotals.TotalAmt != 150 {
		t.Fatalf("expected item total 150, got %+v", preview.ItemTotals)
	}
	if preview.PaymentTotals == nil || preview.PaymentTotals.TotalPayments != 150 {
		t.Fatalf("expected payment total 150, got %+v", preview.PaymentTotals)
	}

	submitReq := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", nil)
	submitReq.Header.Set("Authorization", "Bearer "+token)
	submitReq.Header.Set("X-CSRF-Token", csrf)
	submitRec := httptest.NewRecorder()
	handler.ServeHTTP(submitRec, submitReq)
	if submitRec.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d (body: %s)", submitRec.Code, submitRec.Body.String())
	}

	var submitResp struct {
		Summary domain.SalesSummary `json:"summary"`
	}
	if err := json.NewDecoder(submitRec.Body).Decode(&submitResp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	summary := submitResp.Summary
	if summary.Branch != "S012 - MAIN" {
		t.Fatalf("unexpected branch %q", summary.Branch)
	}
	if summary.PeriodLabel != "March 07, 2025" {
		t.Fatalf("unexpected period label %q", summary.PeriodLabel)
	}
	if summary.TotalAmt != 150 || summary.TotalPayments != 150 || !summary.AmountsMatch {
		t.Fatalf("expected clean reconciliation, got %+v", summary)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/submissions", nil)
	listReq.Header.Set("Authorization", "Bearer "+token)
	listRec := httptest.NewRecorder()
	handler.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", listRec.Code)
	}
	var listResp struct {
		Summaries []domain.SalesSummary `json:"summaries"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&listResp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listResp.Summaries) != 1 || listResp.Summaries[0].ID != summary.ID {
		t.Fatalf("expected the submitted summary in list, got %+v", listResp.Summaries)
	}

	// The staged session is consumed by the submit.
	sessReq := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/session", nil)
	sessReq.Header.Set("Authorization", "Bearer "+token)
	sessRec := httptest.NewRecorder()
	handler.ServeHTTP(sessRec, sessReq)
	var after domain.SessionPreview
	if err := json.NewDecoder(sessRec.Body).Decode(&after); err != nil {
		t.Fatalf("decode session preview: %v", err)
	}
	if after.Ready || after.Items != nil {
		t.Fatalf("expected empty session after submit, got %+v", after)
	}
}

func TestBranchMismatchRejectsUpload(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "encoder", "encoder123")
	csrf := fetchCSRFToken(t, api)

	itemReq := uploadRequest(t, "/api/v1/uploads/item-sales", token, csrf, "items.csv", itemSalesCSV)
	itemRec := httptest.NewRecorder()
	handler.ServeHTTP(itemRec, itemReq)
	if itemRec.Code != http.StatusOK {
		t.Fatalf("item upload: expected 200, got %d", itemRec.Code)
	}

	otherBranchCSV := `Payment Summary
From March 7, 2025 12:00 AM to March 7, 2025 11:59 PM
Site: S099 - OTHER
Terminal,Cash,Transaction Count
T1,150.00,10
`
	payReq := uploadRequest(t, "/api/v1/uploads/payments", token, csrf, "payments.csv", otherBranchCSV)
	payRec := httptest.NewRecorder()
	handler.ServeHTTP(payRec, payReq)
	if payRec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for branch mismatch, got %d (body: %s)", payRec.Code, payRec.Body.String())
	}

	// The whole staged session is discarded on a cross-file failure.
	sessReq := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/session", nil)
	sessReq.Header.Set("Authorization", "Bearer "+token)
	sessRec := httptest.NewRecorder()
	handler.ServeHTTP(sessRec, sessReq)
	var preview domain.SessionPreview
	if err := json.NewDecoder(sessRec.Body).Decode(&preview); err != nil {
		t.Fatalf("decode session preview: %v", err)
	}
	if preview.Items != nil || preview.Payments != nil {
		t.Fatalf("expected discarded session, got %+v", preview)
	}
}

func TestSubmitWithoutUploadsConflicts(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "encoder", "encoder123")
	csrf := fetchCSRFToken(t, api)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for submit without uploads, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestExportDownload(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "encoder", "encoder123")
	csrf := fetchCSRFToken(t, api)

	for _, target := range []string{"/api/v1/uploads/item-sales", "/api/v1/uploads/payments"} {
		content := itemSalesCSV
		name := "items.csv"
		if target == "/api/v1/uploads/payments" {
			content = paymentsCSV
			name = "payments.csv"
		}
		req := uploadRequest(t, target, token, csrf, name, content)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("upload %s: expected 200, got %d (body: %s)", target, rec.Code, rec.Body.String())
		}
	}
	submitReq := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", nil)
	submitReq.Header.Set("Authorization", "Bearer "+token)
	submitReq.Header.Set("X-CSRF-Token", csrf)
	submitRec := httptest.NewRecorder()
	handler.ServeHTTP(submitRec, submitReq)
	if submitRec.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d", submitRec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/export", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("expected workbook bytes in response")
	}

	csvReq := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/export?format=csv", nil)
	csvReq.Header.Set("Authorization", "Bearer "+token)
	csvRec := httptest.NewRecorder()
	handler.ServeHTTP(csvRec, csvReq)
	if csvRec.Code != http.StatusOK {
		t.Fatalf("csv export: expected 200, got %d", csvRec.Code)
	}
	if !bytes.Contains(csvRec.Body.Bytes(), []byte("S012 - MAIN")) {
		t.Fatalf("expected branch in CSV export, got %s", csvRec.Body.String())
	}
}

func TestEncoderManagementRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	encoderToken := loginAs(t, api, "encoder", "encoder123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/encoders", nil)
	req.Header.Set("Authorization", "Bearer "+encoderToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for encoder, got %d", rec.Code)
	}

	adminToken := loginAs(t, api, "admin", "admin123")
	csrf := fetchCSRFToken(t, api)
	payload, _ := json.Marshal(domain.EncoderCreateRequest{
		Username:    "new.encoder",
		Password:    "pass1234",
		StoreID:     "S044",
		BranchLabel: "ANNEX",
	})
	createReq := httptest.NewRequest(http.MethodPost, "/api/v1/users/encoders", bytes.NewReader(payload))
	createReq.Header.Set("Content-Type", "application/json")
	createReq.Header.Set("Authorization", "Bearer "+adminToken)
	createReq.Header.Set("X-CSRF-Token", csrf)
	createRec := httptest.NewRecorder()
	handler.ServeHTTP(createRec, createReq)

	if createRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", createRec.Code, createRec.Body.String())
	}

	newToken := loginAs(t, api, "new.encoder", "pass1234")
	if newToken == "" {
		t.Fatalf("expected new encoder to log in")
	}
}

func TestGetSubmissionByID(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "encoder", "encoder123")
	csrf := fetchCSRFToken(t, api)

	itemReq := uploadRequest(t, "/api/v1/uploads/item-sales", token, csrf, "items.csv", itemSalesCSV)
	itemRec := httptest.NewRecorder()
	handler.ServeHTTP(itemRec, itemReq)
	if itemRec.Code != http.StatusOK {
		t.Fatalf("item upload: expected 200, got %d", itemRec.Code)
	}
	payReq := uploadRequest(t, "/api/v1/uploads/payments", token, csrf, "payments.csv", paymentsCSV)
	payRec := httptest.NewRecorder()
	handler.ServeHTTP(payRec, payReq)
	if payRec.Code != http.StatusOK {
		t.Fatalf("payment upload: expected 200, got %d", payRec.Code)
	}
	submitReq := httptest.NewRequest(http.MethodPost, "/api/v1/submissions", nil)
	submitReq.Header.Set("Authorization", "Bearer "+token)
	submitReq.Header.Set("X-CSRF-Token", csrf)
	submitRec := httptest.NewRecorder()
	handler.ServeHTTP(submitRec, submitReq)
	if submitRec.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d", submitRec.Code)
	}
	var submitResp struct {
		Summary domain.SalesSummary `json:"summary"`
	}
	if err := json.NewDecoder(submitRec.Body).Decode(&submitResp); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}

	adminToken := loginAs(t, api, "admin", "admin123")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/"+submitResp.Summary.ID, nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var getResp struct {
		Summary domain.SalesSummary `json:"summary"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&getResp); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if getResp.Summary.ID != submitResp.Summary.ID || getResp.Summary.Branch != "S012 - MAIN" {
		t.Fatalf("expected the submitted summary, got %+v", getResp.Summary)
	}

	missing := httptest.NewRequest(http.MethodGet, "/api/v1/submissions/sum-missing", nil)
	missing.Header.Set("Authorization", "Bearer "+adminToken)
	missingRec := httptest.NewRecorder()
	handler.ServeHTTP(missingRec, missing)
	if missingRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", missingRec.Code)
	}
}

func TestDeleteSubmissionRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, api, "encoder", "encoder123")
	csrf := fetchCSRFToken(t, api)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/submissions/sum-anything", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for encoder delete, got %d", rec.Code)
	}
}
