package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/forgo/sipmate/api/internal/model"
)

// maxBodyBytes caps request bodies; the largest is a 1000 character post
const maxBodyBytes = 64 << 10

// DataResponse wraps a successful response with optional HATEOAS links
type DataResponse struct {
	Data  interface{}       `json:"data"`
	Links map[string]string `json:"_links,omitempty"`
}

// CollectionResponse wraps a list response
type CollectionResponse struct {
	Data  interface{}       `json:"data"`
	Count int               `json:"count"`
	Links map[string]string `json:"_links,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteData writes a successful data response
func WriteData(w http.ResponseWriter, status int, data interface{}, links map[string]string) {
	WriteJSON(w, status, DataResponse{Data: data, Links: links})
}

// WriteCollection writes a list response with its length
func WriteCollection(w http.ResponseWriter, data interface{}, count int, links map[string]string) {
	WriteJSON(w, http.StatusOK, CollectionResponse{Data: data, Count: count, Links: links})
}

// WriteError writes an error response using RFC 9457 Problem Details
func WriteError(w http.ResponseWriter, err *model.ProblemDetails) {
	err.WriteJSON(w)
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// DecodeJSON decodes a JSON request body into v, rejecting unknown fields
// and trailing data
func DecodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// DecodeOptionalJSON is like DecodeJSON but treats an empty body as an empty
// object
func DecodeOptionalJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := DecodeJSON(r, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// requireUser writes a 401 and returns false when the request is anonymous
func requireUser(w http.ResponseWriter, userID string) bool {
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return false
	}
	return true
}
