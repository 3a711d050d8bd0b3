package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// SurrealDB implements the Database interface for SurrealDB
type SurrealDB struct {
	db     *surrealdb.DB
	config Config
}

// NewSurrealDB creates a new SurrealDB instance
func NewSurrealDB(cfg Config) *SurrealDB {
	return &SurrealDB{
		config: cfg,
	}
}

// Connect establishes a connection to SurrealDB
func (s *SurrealDB) Connect(ctx context.Context) error {
	endpoint := fmt.Sprintf("ws://%s:%s", s.config.Host, s.config.Port)

	db, err := surrealdb.FromEndpointURLString(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	_, err = db.SignIn(ctx, &surrealdb.Auth{
		Username: s.config.User,
		Password: s.config.Password,
	})
	if err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: signin failed: %v", ErrConnection, err)
	}

	if err := db.Use(ctx, s.config.Namespace, s.config.Database); err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: use failed: %v", ErrConnection, err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SurrealDB) Close() error {
	if s.db != nil {
		return s.db.Close(context.Background())
	}
	return nil
}

// Ping checks the database connection
func (s *SurrealDB) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrConnection
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Query executes a query and returns results
func (s *SurrealDB) Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error) {
	if s.db == nil {
		return nil, ErrConnection
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	results, err := surrealdb.Query[interface{}](ctx, s.db, query, vars)
	if err != nil {
		return nil, classifyError(err.Error())
	}
	if results == nil {
		return nil, nil
	}

	output := make([]interface{}, 0, len(*results))
	for _, r := range *results {
		if r.Status != "OK" {
			if r.Error != nil {
				return nil, classifyError(r.Error.Message)
			}
			return nil, ErrQuery
		}
		output = append(output, map[string]interface{}{
			"status": r.Status,
			"result": r.Result,
		})
	}

	return output, nil
}

// QueryOne executes a query and returns a single result
func (s *SurrealDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	results, err := s.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return FirstRecord(results)
}

// Execute runs a query without returning results
func (s *SurrealDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := s.Query(ctx, query, vars)
	return err
}

func (s *SurrealDB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.QueryTimeout)
}

// FirstRecord unwraps the {status, result} envelope of the first statement
// and returns its first record. An empty result set yields ErrNotFound.
func FirstRecord(results []interface{}) (interface{}, error) {
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	first := results[0]
	if resp, ok := first.(map[string]interface{}); ok {
		if status, ok := resp["status"].(string); ok && status == "OK" {
			if resultData, ok := resp["result"].([]interface{}); ok {
				if len(resultData) == 0 {
					return nil, ErrNotFound
				}
				return resultData[0], nil
			}
			// Scalar result (count, bool, etc.)
			return resp["result"], nil
		}
	}

	return first, nil
}

// classifyError maps SurrealDB error messages onto the package sentinels.
//
// Unique index violations read "Database index `x` already contains ...".
// Record id collisions read "Database record `t:k` already exists".
func classifyError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "already contains"):
		return fmt.Errorf("%w: %s", ErrDuplicate, msg)
	case strings.Contains(lower, "already exists"):
		return fmt.Errorf("%w: %s", ErrRecordExists, msg)
	case strings.Contains(lower, "connection"), strings.Contains(lower, "context deadline exceeded"):
		return fmt.Errorf("%w: %s", ErrConnection, msg)
	default:
		return fmt.Errorf("%w: %s", ErrQuery, msg)
	}
}
