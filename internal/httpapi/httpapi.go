package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"salesportal/internal/domain"
	"salesportal/internal/export"
	"salesportal/internal/recon"
	"salesportal/internal/service"
	"salesportal/internal/sheet"
	"salesportal/internal/store"
)

type API struct {
	service        *service.Service
	auth           *AuthManager
	allowedOrigin  string
	maxUploadBytes int64
	loginLimiter   *attemptLimiter
	csrfSecret     []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, maxUploadBytes int64) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 << 20
	}
	return &API{
		service:        svc,
		auth:           auth,
		allowedOrigin:  allowedOrigin,
		maxUploadBytes: maxUploadBytes,
		loginLimiter:   newAttemptLimiter(5, time.Minute),
		csrfSecret:     csrfSecret,
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

	mux.HandleFunc("/api/v1/catalog", a.requireAuth(a.handleCatalog, "admin"))
	mux.HandleFunc("/api/v1/uploads/item-sales", a.requireAuth(a.handleItemSalesUpload, "encoder", "admin"))
	mux.HandleFunc("/api/v1/uploads/payments", a.requireAuth(a.handlePaymentsUpload, "encoder", "admin"))
	mux.HandleFunc("/api/v1/uploads/session", a.requireAuth(a.handleUploadSession, "encoder", "admin"))
	mux.HandleFunc("/api/v1/submissions", a.requireAuth(a.handleSubmissions, "encoder", "admin"))
	mux.HandleFunc("/api/v1/submissions/export", a.requireAuth(a.handleSubmissionsExport, "encoder", "admin"))
	mux.HandleFunc("/api/v1/submissions/", a.requireAuth(a.handleSubmissionActions, "admin"))
	mux.HandleFunc("/api/v1/users/encoders", a.requireAuth(a.handleEncoders, "admin"))
	mux.HandleFunc("/api/v1/users/encoders/", a.requireAuth(a.handleEncoderActions, "admin"))

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
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
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

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		offset := parseNonNegative(r.URL.Query().Get("offset"), 0)
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 0, 0)
		page, err := a.service.CatalogPage(r.Context(), offset, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	case http.MethodPost:
		grid, _, err := a.readUploadGrid(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.ReplaceCatalog(r.Context(), grid)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleItemSalesUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	grid, fileName, err := a.readUploadGrid(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	preview, err := a.service.UploadItemSales(r.Context(), fileName, grid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (a *API) handlePaymentsUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	grid, fileName, err := a.readUploadGrid(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	preview, err := a.service.UploadPayments(r.Context(), fileName, grid)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (a *API) handleUploadSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		preview, err := a.service.SessionPreview(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, preview)
	case http.MethodDelete:
		if err := a.service.ClearSession(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		summary, err := a.service.Submit(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"summary": summary})
	case http.MethodGet:
		filter, err := summaryFilterFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rows, err := a.service.ListSummaries(r.Context(), filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"summaries": rows})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSubmissionsExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	filter, err := summaryFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rows, err := a.service.ListSummaries(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	stamp := time.Now().UTC().Format("2006-01-02")
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"sales-summaries-%s.xlsx\"", stamp))
		if err := export.WriteWorkbook(w, rows); err != nil {
			log.Printf("[httpapi] WARN: workbook export failed: %v", err)
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"sales-summaries-%s.csv\"", stamp))
		_, _ = w.Write([]byte(export.ToCSV(rows)))
	default:
		writeError(w, http.StatusBadRequest, errors.New("unsupported export format"))
	}
}

func (a *API) handleSubmissionActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/submissions/"
	id := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, errors.New("submission id required"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		summary, err := a.service.GetSummary(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
	case http.MethodDelete:
		if err := a.service.DeleteSummary(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleEncoders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"encoders": a.auth.ListEncoders()})
	case http.MethodPost:
		var req domain.EncoderCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		user, err := a.auth.CreateEncoder(req)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"encoder": user})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleEncoderActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/users/encoders/"
	tail := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	username, action, ok := strings.Cut(tail, "/")
	if !ok || action != "branch" || strings.TrimSpace(username) == "" {
		writeError(w, http.StatusBadRequest, errors.New("expected /users/encoders/{username}/branch"))
		return
	}
	if r.Method != http.MethodPut {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.BranchUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.auth.UpdateBranch(username, req)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, store.ErrNotFound) || strings.Contains(err.Error(), "not found") {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"encoder": user})
}

// readUploadGrid reads the multipart "file" field into a sheet grid. The file
// format is chosen by extension; anything that is not .csv is treated as XLSX.
func (a *API) readUploadGrid(w http.ResponseWriter, r *http.Request) (sheet.Grid, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		return nil, "", fmt.Errorf("parse upload: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errors.New("multipart field \"file\" is required")
	}
	defer file.Close()

	var grid sheet.Grid
	if strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		grid, err = sheet.FromCSV(file)
	} else {
		grid, err = sheet.FromXLSX(file)
	}
	if err != nil {
		return nil, "", err
	}
	return grid, header.Filename, nil
}

func summaryFilterFromQuery(r *http.Request) (domain.SummaryFilter, error) {
	q := r.URL.Query()
	filter := domain.SummaryFilter{
		UserID:  strings.TrimSpace(q.Get("user")),
		StoreID: strings.TrimSpace(q.Get("store")),
		Branch:  strings.TrimSpace(q.Get("branch")),
		Limit:   parsePositiveLimit(q.Get("limit"), 0, 1000),
	}
	for _, span := range []struct {
		key  string
		dest *time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		raw := strings.TrimSpace(q.Get(span.key))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return domain.SummaryFilter{}, fmt.Errorf("invalid %s date, expected YYYY-MM-DD", span.key)
		}
		*span.dest = parsed
	}
	return filter, nil
}

// writeServiceError maps service and pipeline errors onto HTTP statuses.
// Validation gate failures are 422 because the files parsed fine but cannot
// be accepted together; structural parse failures are 400.
func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sheet.ErrEmptyFile), errors.Is(err, sheet.ErrHeaderNotFound):
		status = http.StatusBadRequest
	case errors.Is(err, recon.ErrBranchMismatch),
		errors.Is(err, recon.ErrBranchAssignment),
		errors.Is(err, recon.ErrInvalidPeriodDate),
		errors.Is(err, recon.ErrPeriodMismatch):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, recon.ErrSessionIncomplete),
		errors.Is(err, recon.ErrUnmatchedRows),
		errors.Is(err, recon.ErrPeriodMissing):
		status = http.StatusConflict
	}
	writeError(w, status, err)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
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

func parseNonNegative(raw string, fallback int) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(trimmed); err == nil && parsed >= 0 {
		return parsed
	}
	return fallback
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
