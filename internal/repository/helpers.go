package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/forgo/sipmate/api/internal/database"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// isUniqueConstraintError checks if an error is a unique index violation
func isUniqueConstraintError(err error) bool {
	return errors.Is(err, database.ErrDuplicate)
}

// isRecordExistsError checks if a CREATE hit an existing record id
func isRecordExistsError(err error) bool {
	return errors.Is(err, database.ErrRecordExists)
}

// convertSurrealID converts a SurrealDB ID (which may be a complex object) to a string
func convertSurrealID(id interface{}) string {
	if str, ok := id.(string); ok {
		return str
	}

	if rid, ok := id.(models.RecordID); ok {
		return fmt.Sprintf("%s:%v", rid.Table, rid.ID)
	}
	if rid, ok := id.(*models.RecordID); ok && rid != nil {
		return fmt.Sprintf("%s:%v", rid.Table, rid.ID)
	}

	// Map format: {"tb": "profile", "id": {"String": "abc"}} or similar
	if m, ok := id.(map[string]interface{}); ok {
		tb := ""
		idPart := ""

		if t, ok := m["tb"].(string); ok {
			tb = t
		} else if t, ok := m["Table"].(string); ok {
			tb = t
		}

		if idVal, ok := m["id"]; ok {
			idPart = extractIDValue(idVal)
		} else if idVal, ok := m["ID"]; ok {
			idPart = extractIDValue(idVal)
		}

		if tb != "" && idPart != "" {
			return tb + ":" + idPart
		}
		if idPart != "" {
			return idPart
		}
	}

	return fmt.Sprintf("%v", id)
}

// extractIDValue extracts the ID value which may be nested
func extractIDValue(val interface{}) string {
	if str, ok := val.(string); ok {
		return str
	}
	if m, ok := val.(map[string]interface{}); ok {
		if s, ok := m["String"].(string); ok {
			return s
		}
	}
	return fmt.Sprintf("%v", val)
}

// normalizeValue rewrites driver types into JSON-friendly ones: record ids
// become "table:key" strings and datetimes become time.Time. Maps and slices
// are walked recursively so FETCHed records are handled too.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case models.RecordID, *models.RecordID:
		return convertSurrealID(t)
	case models.CustomDateTime:
		return t.Time
	case *models.CustomDateTime:
		if t == nil {
			return nil
		}
		return t.Time
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	}
	return v
}

// decodeRecord converts a raw record map into out via a JSON round trip
func decodeRecord(data map[string]interface{}, out interface{}) error {
	jsonBytes, err := json.Marshal(normalizeValue(data))
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, out)
}

// recordMap unwraps a QueryOne result into a record map
func recordMap(result interface{}) (map[string]interface{}, error) {
	if result == nil {
		return nil, database.ErrNotFound
	}

	if resp, ok := result.(map[string]interface{}); ok {
		if status, ok := resp["status"].(string); ok && status == "OK" {
			if resultData, ok := resp["result"].([]interface{}); ok {
				if len(resultData) == 0 {
					return nil, database.ErrNotFound
				}
				result = resultData[0]
			}
		}
	}

	if arr, ok := result.([]interface{}); ok {
		if len(arr) == 0 {
			return nil, database.ErrNotFound
		}
		result = arr[0]
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}
	return data, nil
}

// extractQueryResults returns the records produced by statement idx of a Query call
func extractQueryResults(results []interface{}, idx int) []interface{} {
	if idx >= len(results) {
		return nil
	}
	if resp, ok := results[idx].(map[string]interface{}); ok {
		if records, ok := resp["result"].([]interface{}); ok {
			return records
		}
		if resp["result"] == nil {
			return nil
		}
		return []interface{}{resp["result"]}
	}
	return nil
}

// recordMaps returns every map record of statement idx
func recordMaps(results []interface{}, idx int) []map[string]interface{} {
	records := extractQueryResults(results, idx)
	out := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		if m, ok := r.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

type createdRecord struct {
	ID        string
	CreatedOn time.Time
	UpdatedOn time.Time
}

func extractCreatedRecord(result []interface{}) (*createdRecord, error) {
	records := recordMaps(result, 0)
	if len(records) == 0 {
		return nil, errors.New("no result returned")
	}
	data := records[0]

	record := &createdRecord{ID: convertSurrealID(data["id"])}
	if t := getTime(data, "created_on"); t != nil {
		record.CreatedOn = *t
	}
	if t := getTime(data, "updated_on"); t != nil {
		record.UpdatedOn = *t
	}
	return record, nil
}

// extractCountValue converts various numeric types to int
func extractCountValue(v interface{}) int {
	switch c := v.(type) {
	case float64:
		return int(c)
	case float32:
		return int(c)
	case int:
		return c
	case int64:
		return int(c)
	case uint64:
		return int(c)
	}
	return 0
}

// getTime extracts a time value from a map
func getTime(m map[string]interface{}, key string) *time.Time {
	switch v := m[key].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &t
		}
	case time.Time:
		return &v
	case models.CustomDateTime:
		t := v.Time
		return &t
	case *models.CustomDateTime:
		if v != nil {
			t := v.Time
			return &t
		}
	}
	return nil
}

// ptrToNone converts an optional pointer to either its value or nil, for use with
// IF $x IS NOT NULL THEN $x ELSE NONE END in queries.
func ptrToNone[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// timeToNone formats an optional time as RFC 3339 for a <datetime> cast
func timeToNone(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
