// Package helpers provides common test utilities for e2e testing.
//
// This package includes HTTP request builders, response validators,
// and assertion helpers for testing API endpoints.
package helpers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/forgo/sipmate/api/internal/model"
	"github.com/forgo/sipmate/api/pkg/jwt"
)

// ============================================================================
// JWT Helpers
// ============================================================================

// JWTHelper issues access tokens with the same service the middleware
// validates against
type JWTHelper struct {
	svc *jwt.Service
}

// NewJWTHelper wraps a JWT service for tests
func NewJWTHelper(svc *jwt.Service) *JWTHelper {
	return &JWTHelper{svc: svc}
}

// GenerateToken creates a valid access token for the user's account
func (h *JWTHelper) GenerateToken(t *testing.T, user *model.User) string {
	t.Helper()

	token, err := h.svc.Sign(jwt.NewClaims(model.AccountID(user.ID), user.Email, user.Username))
	if err != nil {
		t.Fatalf("helpers: failed to sign token: %v", err)
	}
	return token
}

// GenerateExpiredToken creates an access token that expired an hour ago
func (h *JWTHelper) GenerateExpiredToken(t *testing.T, user *model.User) string {
	t.Helper()

	claims := jwt.NewClaims(model.AccountID(user.ID), user.Email, user.Username)
	claims.ExpiresAt = gojwt.NewNumericDate(time.Now().Add(-1 * time.Hour))
	token, err := h.svc.Sign(claims)
	if err != nil {
		t.Fatalf("helpers: failed to sign token: %v", err)
	}
	return token
}

// ============================================================================
// HTTP Request Helpers
// ============================================================================

// RequestBuilder helps construct HTTP requests for testing
type RequestBuilder struct {
	t       *testing.T
	method  string
	path    string
	body    interface{}
	headers map[string]string
	jwt     *JWTHelper
	user    *model.User
}

// NewRequest creates a new request builder
func NewRequest(t *testing.T, method, path string) *RequestBuilder {
	t.Helper()
	return &RequestBuilder{
		t:       t,
		method:  method,
		path:    path,
		headers: make(map[string]string),
	}
}

// WithBody sets the request body (will be JSON encoded)
func (rb *RequestBuilder) WithBody(body interface{}) *RequestBuilder {
	rb.body = body
	return rb
}

// WithHeader adds a header to the request
func (rb *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	rb.headers[key] = value
	return rb
}

// WithAuth adds authentication for the given user
func (rb *RequestBuilder) WithAuth(jwt *JWTHelper, user *model.User) *RequestBuilder {
	rb.jwt = jwt
	rb.user = user
	return rb
}

// Build creates the HTTP request
func (rb *RequestBuilder) Build() *http.Request {
	rb.t.Helper()

	var bodyReader io.Reader
	if rb.body != nil {
		bodyBytes, err := json.Marshal(rb.body)
		if err != nil {
			rb.t.Fatalf("helpers: failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(rb.method, rb.path, bodyReader)

	// Set content type for requests with body
	if rb.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Add custom headers
	for k, v := range rb.headers {
		req.Header.Set(k, v)
	}

	// Add auth header
	if rb.jwt != nil && rb.user != nil {
		token := rb.jwt.GenerateToken(rb.t, rb.user)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// Do builds the request and serves it through h
func (rb *RequestBuilder) Do(h http.Handler) *httptest.ResponseRecorder {
	rb.t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, rb.Build())
	return rec
}

// ============================================================================
// Response Assertion Helpers
// ============================================================================

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, resp *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if resp.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, resp.Code, resp.Body.String())
	}
}

// AssertProblemDetails validates an RFC 9457 Problem Details error response
func AssertProblemDetails(t *testing.T, resp *httptest.ResponseRecorder, expectedStatus int, expectedCode model.ErrorCode) {
	t.Helper()

	AssertStatus(t, resp, expectedStatus)

	var problem model.ProblemDetails
	bodyBytes := resp.Body.Bytes()
	if err := json.Unmarshal(bodyBytes, &problem); err != nil {
		t.Fatalf("failed to decode problem details: %v. Body: %s", err, string(bodyBytes))
	}

	if problem.Status != expectedStatus {
		t.Errorf("expected problem.status %d, got %d", expectedStatus, problem.Status)
	}

	if expectedCode != 0 && problem.Code != expectedCode {
		t.Errorf("expected problem.code %d, got %d", expectedCode, problem.Code)
	}
}

// AssertValidationError checks for a validation error on a specific field
func AssertValidationError(t *testing.T, resp *httptest.ResponseRecorder, field string) {
	t.Helper()

	AssertStatus(t, resp, http.StatusUnprocessableEntity)

	var problem model.ProblemDetails
	bodyBytes := resp.Body.Bytes()
	if err := json.Unmarshal(bodyBytes, &problem); err != nil {
		t.Fatalf("failed to decode problem details: %v", err)
	}

	for _, fe := range problem.Errors {
		if fe.Field == field {
			return // Found the expected field error
		}
	}

	t.Errorf("expected validation error on field %q, but not found. Errors: %+v", field, problem.Errors)
}

// AssertJSONContains checks that the response body contains expected key-value pairs
func AssertJSONContains(t *testing.T, resp *httptest.ResponseRecorder, expected map[string]interface{}) {
	t.Helper()

	var actual map[string]interface{}
	bodyBytes := resp.Body.Bytes()
	if err := json.Unmarshal(bodyBytes, &actual); err != nil {
		t.Fatalf("failed to decode response: %v. Body: %s", err, string(bodyBytes))
	}

	for key, expectedVal := range expected {
		actualVal, ok := actual[key]
		if !ok {
			t.Errorf("expected key %q not found in response", key)
			continue
		}

		if !jsonEqual(expectedVal, actualVal) {
			t.Errorf("for key %q: expected %v, got %v", key, expectedVal, actualVal)
		}
	}
}

// GetDataFromResponse extracts the "data" field from a standard response
func GetDataFromResponse(t *testing.T, resp *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response struct {
		Data map[string]interface{} `json:"data"`
	}
	bodyBytes := resp.Body.Bytes()
	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		t.Fatalf("failed to decode response: %v. Body: %s", err, string(bodyBytes))
	}

	return response.Data
}

// GetListFromResponse extracts the "data" array from a collection response
func GetListFromResponse(t *testing.T, resp *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()

	var response struct {
		Data []map[string]interface{} `json:"data"`
	}
	bodyBytes := resp.Body.Bytes()
	if err := json.Unmarshal(bodyBytes, &response); err != nil {
		t.Fatalf("failed to decode response: %v. Body: %s", err, string(bodyBytes))
	}

	return response.Data
}

// ============================================================================
// Database Assertion Helpers
// ============================================================================

// AssertRecordExists checks that a record exists in the database. id may be
// given with or without its table prefix.
func AssertRecordExists(t *testing.T, db database.Database, table, id string) {
	t.Helper()

	if !recordExists(t, db, table, id) {
		t.Errorf("expected record %s:%s to exist, but it doesn't", table, model.RecordKey(id))
	}
}

// AssertRecordNotExists checks that a record does not exist
func AssertRecordNotExists(t *testing.T, db database.Database, table, id string) {
	t.Helper()

	if recordExists(t, db, table, id) {
		t.Errorf("expected record %s:%s to not exist, but it does", table, model.RecordKey(id))
	}
}

// CountWhere counts rows in table whose field references the given record
func CountWhere(t *testing.T, db database.Database, table, field, recordID string) int {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := "SELECT count() AS n FROM type::table($table) WHERE type::field($field) = type::thing($ref_table, $ref_key) GROUP ALL"
	refTable, refKey, _ := strings.Cut(recordID, ":")
	results, err := db.Query(ctx, query, map[string]interface{}{
		"table":     table,
		"field":     field,
		"ref_table": refTable,
		"ref_key":   refKey,
	})
	if err != nil {
		t.Fatalf("failed to count %s: %v", table, err)
	}

	row, err := database.FirstRecord(results)
	if err != nil {
		return 0
	}
	m, ok := row.(map[string]interface{})
	if !ok {
		return 0
	}
	switch n := m["n"].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	}
	return 0
}

func recordExists(t *testing.T, db database.Database, table, id string) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := db.Query(ctx, "SELECT * FROM type::thing($table, $id)", map[string]interface{}{
		"table": table,
		"id":    model.RecordKey(id),
	})
	if err != nil {
		t.Fatalf("failed to query for record: %v", err)
	}
	return hasResults(results)
}

// hasResults checks if SurrealDB query returned any results
func hasResults(results []interface{}) bool {
	if len(results) == 0 {
		return false
	}

	resp, ok := results[0].(map[string]interface{})
	if !ok {
		return false
	}

	result, ok := resp["result"]
	if !ok {
		return false
	}

	switch v := result.(type) {
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return true
	case nil:
		return false
	default:
		return true
	}
}

// ============================================================================
// Service Factory Helpers
// ============================================================================

// NewTestJWTService creates a JWT service with in-memory keys for testing
func NewTestJWTService(t *testing.T) *jwt.Service {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("helpers: failed to generate RSA key: %v", err)
	}

	return jwt.NewTestService(privateKey, "sipmate-test", 15*time.Minute)
}

// ============================================================================
// Utility Helpers
// ============================================================================

// jsonEqual compares two JSON values for equality
func jsonEqual(a, b interface{}) bool {
	aBytes, _ := json.Marshal(a)
	bBytes, _ := json.Marshal(b)
	return string(aBytes) == string(bBytes)
}

// StringPtr returns a pointer to the string
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to the int
func IntPtr(i int) *int {
	return &i
}
