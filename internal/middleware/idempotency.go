package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/forgo/sipmate/api/internal/model"
)

// IdempotencyKeyHeader is the request header clients set to make a POST safe to retry
const IdempotencyKeyHeader = "Idempotency-Key"

// maxIdempotentBody caps the body read for fingerprinting keyed requests
const maxIdempotentBody = 64 << 10

// IdempotencyStore remembers the responses to keyed POST requests, so that a
// client retrying a post or comment after a timeout gets the original
// response instead of a duplicate.
type IdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*idempotencyEntry
	ttl      time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

type idempotencyEntry struct {
	status    int
	headers   http.Header
	body      []byte
	expiresAt time.Time
	done      chan struct{} // closed once the first request finishes
}

// IdempotencyConfig holds configuration for the idempotency store
type IdempotencyConfig struct {
	TTL     time.Duration // How long responses are replayed (default 24h)
	Cleanup time.Duration // Sweep interval for expired entries (default 1h)
}

// NewIdempotencyStore creates a store and starts its cleanup loop
func NewIdempotencyStore(cfg IdempotencyConfig) *IdempotencyStore {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Cleanup <= 0 {
		cfg.Cleanup = time.Hour
	}

	s := &IdempotencyStore{
		entries:  make(map[string]*idempotencyEntry),
		ttl:      cfg.TTL,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	go s.cleanupLoop(cfg.Cleanup)
	return s
}

// Stop stops the cleanup loop. It is safe to call more than once.
func (s *IdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *IdempotencyStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

func (s *IdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if e.finished() && e.expiresAt.Before(now) {
			delete(s.entries, key)
		}
	}
}

// claim returns the finished entry to replay, or registers key as in flight
// and returns nil. A concurrent duplicate waits for the first request.
func (s *IdempotencyStore) claim(key string) *idempotencyEntry {
	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		switch {
		case !ok, e.finished() && !e.expiresAt.After(s.now()):
			s.entries[key] = &idempotencyEntry{done: make(chan struct{})}
			s.mu.Unlock()
			return nil
		case e.finished():
			s.mu.Unlock()
			return e
		}
		s.mu.Unlock()

		// The first request may be dropped instead of stored, so look again
		<-e.done
	}
}

// complete stores a response for replay. Server errors are not stored, so
// a retry after a transient failure runs again. A nil rec drops the claim.
func (s *IdempotencyStore) complete(key string, rec *capturingWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[key]
	if rec == nil || rec.status >= http.StatusInternalServerError {
		delete(s.entries, key)
	} else {
		e.status = rec.status
		e.headers = rec.Header().Clone()
		e.body = rec.body.Bytes()
		e.expiresAt = s.now().Add(s.ttl)
	}
	close(e.done)
}

func (e *idempotencyEntry) finished() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *idempotencyEntry) replay(w http.ResponseWriter) {
	for k, v := range e.headers {
		w.Header()[k] = append([]string(nil), v...)
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(e.status)
	_, _ = w.Write(e.body)
}

// fingerprint binds the key to the caller and the exact request, so reusing
// a key for a different body creates a new post rather than replaying
func fingerprint(userID, key, method, path string, body []byte) string {
	h := sha256.New()
	for _, part := range [][]byte{[]byte(userID), []byte(key), []byte(method), []byte(path), body} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// capturingWriter records the status and body while passing them through
type capturingWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *capturingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a POST that repeats an
// Idempotency-Key. It must run after Auth so the key is scoped to the caller.
// Other methods, and requests without the header, pass through.
func Idempotency(store *IdempotencyStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idemKey := r.Header.Get(IdempotencyKeyHeader)
			if r.Method != http.MethodPost || idemKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBody))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					model.NewPayloadTooLargeError(tooLarge.Limit).WriteJSON(w)
					return
				}
				model.NewBadRequestError("could not read request body").WriteJSON(w)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			caller := GetUserID(r.Context())
			if caller == "" {
				caller = ClientKey(r)
			}
			key := fingerprint(caller, idemKey, r.Method, r.URL.Path, body)

			if e := store.claim(key); e != nil {
				e.replay(w)
				return
			}

			rec := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				if p := recover(); p != nil {
					store.complete(key, nil)
					panic(p)
				}
			}()
			next.ServeHTTP(rec, r)
			store.complete(key, rec)
		})
	}
}
