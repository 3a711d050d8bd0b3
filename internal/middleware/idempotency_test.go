package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingPost answers 201 with a body naming how many times it ran
func countingPost(calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"post:` + string(rune('0'+n)) + `"}}`))
	}
}

func keyedPost(userID, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/community/posts", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	if userID != "" {
		req = req.WithContext(context.WithValue(req.Context(), UserIDKey, userID))
	}
	return req
}

// ============================================================================
// Store Tests
// ============================================================================

func TestNewIdempotencyStore_Defaults(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	if store.ttl != 24*time.Hour {
		t.Errorf("expected TTL 24h, got %v", store.ttl)
	}
}

func TestIdempotencyStore_StopTwice(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{Cleanup: time.Millisecond})

	store.Stop()
	store.Stop()
}

func TestIdempotencyStore_CleanupDropsExpired(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{TTL: time.Minute})
	defer store.Stop()

	now := time.Now()
	store.now = func() time.Time { return now }

	var calls atomic.Int32
	h := Idempotency(store)(countingPost(&calls))
	h.ServeHTTP(httptest.NewRecorder(), keyedPost("profile:a", "k1", `{"content":"Cheers"}`))

	now = now.Add(2 * time.Minute)
	store.cleanup()

	store.mu.Lock()
	remaining := len(store.entries)
	store.mu.Unlock()
	if remaining != 0 {
		t.Errorf("expected expired entry removed, %d left", remaining)
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := fingerprint("profile:a", "k1", "POST", "/v1/community/posts", []byte(`{"content":"x"}`))
	if a != fingerprint("profile:a", "k1", "POST", "/v1/community/posts", []byte(`{"content":"x"}`)) {
		t.Error("expected identical requests to share a fingerprint")
	}

	variants := []string{
		fingerprint("profile:b", "k1", "POST", "/v1/community/posts", []byte(`{"content":"x"}`)),
		fingerprint("profile:a", "k2", "POST", "/v1/community/posts", []byte(`{"content":"x"}`)),
		fingerprint("profile:a", "k1", "POST", "/v1/community/posts/p1/comments", []byte(`{"content":"x"}`)),
		fingerprint("profile:a", "k1", "POST", "/v1/community/posts", []byte(`{"content":"y"}`)),
		// field boundaries matter: "ab"+"c" must differ from "a"+"bc"
		fingerprint("profile:ak", "1", "POST", "/v1/community/posts", []byte(`{"content":"x"}`)),
	}
	for i, v := range variants {
		if v == a {
			t.Errorf("variant %d should not match", i)
		}
	}
}

// ============================================================================
// Middleware Tests
// ============================================================================

func TestIdempotency_ReplaysRepeatedPost(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store)(countingPost(&calls))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, keyedPost("profile:a", "retry-1", `{"content":"Opened the Reserve"}`))

	second := httptest.NewRecorder()
	h.ServeHTTP(second, keyedPost("profile:a", "retry-1", `{"content":"Opened the Reserve"}`))

	if calls.Load() != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls.Load())
	}
	if second.Code != http.StatusCreated {
		t.Errorf("expected replayed 201, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Errorf("expected replayed body %q, got %q", first.Body.String(), second.Body.String())
	}
	if second.Header().Get("X-Idempotency-Replayed") != "true" {
		t.Error("expected replay marker header")
	}
	if first.Header().Get("X-Idempotency-Replayed") != "" {
		t.Error("first response should not be marked as replayed")
	}
}

func TestIdempotency_ScopedToCaller(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store)(countingPost(&calls))

	h.ServeHTTP(httptest.NewRecorder(), keyedPost("profile:a", "same", `{"content":"Hello"}`))
	h.ServeHTTP(httptest.NewRecorder(), keyedPost("profile:b", "same", `{"content":"Hello"}`))

	if calls.Load() != 2 {
		t.Errorf("expected both callers to post, got %d calls", calls.Load())
	}
}

func TestIdempotency_PassThrough(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store)(countingPost(&calls))

	// no key
	h.ServeHTTP(httptest.NewRecorder(), keyedPost("profile:a", "", `{}`))
	h.ServeHTTP(httptest.NewRecorder(), keyedPost("profile:a", "", `{}`))

	// keyed, but not a POST
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPut, "/v1/community/posts/p1/like", nil)
		req.Header.Set(IdempotencyKeyHeader, "k")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls.Load() != 4 {
		t.Errorf("expected 4 calls, got %d", calls.Load())
	}
}

func TestIdempotency_ServerErrorIsNotStored(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, keyedPost("profile:a", "k", `{"content":"x"}`))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, keyedPost("profile:a", "k", `{"content":"x"}`))

	if first.Code != http.StatusServiceUnavailable || second.Code != http.StatusCreated {
		t.Errorf("expected 503 then 201, got %d then %d", first.Code, second.Code)
	}
	if calls.Load() != 2 {
		t.Errorf("expected the retry to run, got %d calls", calls.Load())
	}
}

func TestIdempotency_ClientErrorIsReplayed(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	h.ServeHTTP(httptest.NewRecorder(), keyedPost("profile:a", "k", `{"content":""}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, keyedPost("profile:a", "k", `{"content":""}`))

	if calls.Load() != 1 || rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected replayed 422 after one call, got %d after %d calls", rr.Code, calls.Load())
	}
}

func TestIdempotency_ExpiredEntryRunsAgain(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{TTL: time.Minute})
	defer store.Stop()

	now := time.Now()
	var mu sync.Mutex
	store.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	var calls atomic.Int32
	h := Idempotency(store)(countingPost(&calls))
	h.ServeHTTP(httptest.NewRecorder(), keyedPost("profile:a", "k", `{"content":"x"}`))

	mu.Lock()
	now = now.Add(time.Minute + time.Second)
	mu.Unlock()

	h.ServeHTTP(httptest.NewRecorder(), keyedPost("profile:a", "k", `{"content":"x"}`))
	if calls.Load() != 2 {
		t.Errorf("expected expired key to run again, got %d calls", calls.Load())
	}
}

func TestIdempotency_ConcurrentDuplicatesRunOnce(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	release := make(chan struct{})
	var calls atomic.Int32
	h := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))

	const n = 5
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, keyedPost("profile:a", "burst", `{"content":"x"}`))
			codes[i] = rr.Code
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected one execution, got %d", calls.Load())
	}
	for i, code := range codes {
		if code != http.StatusCreated {
			t.Errorf("request %d: expected 201, got %d", i, code)
		}
	}
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	var calls atomic.Int32
	h := Recovery(Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		w.WriteHeader(http.StatusCreated)
	})))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, keyedPost("profile:a", "k", `{"content":"x"}`))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, keyedPost("profile:a", "k", `{"content":"x"}`))

	if first.Code != http.StatusInternalServerError || second.Code != http.StatusCreated {
		t.Errorf("expected 500 then 201, got %d then %d", first.Code, second.Code)
	}
}

// failingBody returns an error partway through the read
type failingBody struct{ sent bool }

func (b *failingBody) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, `{"content":`), nil
	}
	return 0, errors.New("connection reset")
}

func (b *failingBody) Close() error { return nil }

func TestIdempotency_OversizedBodyRejected(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store)(countingPost(&calls))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, keyedPost("profile:a", "big", strings.Repeat("a", maxIdempotentBody+1)))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rr.Code)
	}
	if calls.Load() != 0 {
		t.Errorf("expected handler not to run, ran %d times", calls.Load())
	}
}

func TestIdempotency_BodyReadErrorRejected(t *testing.T) {
	t.Parallel()
	store := NewIdempotencyStore(IdempotencyConfig{})
	defer store.Stop()

	var calls atomic.Int32
	h := Idempotency(store)(countingPost(&calls))

	req := keyedPost("profile:a", "k", "")
	req.Body = &failingBody{}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if calls.Load() != 0 {
		t.Errorf("expected handler not to run, ran %d times", calls.Load())
	}

	store.mu.Lock()
	remaining := len(store.entries)
	store.mu.Unlock()
	if remaining != 0 {
		t.Errorf("expected no claimed keys, got %d", remaining)
	}
}
