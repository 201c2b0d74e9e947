package server

import (
	"encoding/json"
	"io"
	"net/http"
	"reflect"

	"github.com/go-errors/errors"

	"github.com/strrl/telescope-dashboard/pkg/querier"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req querier.SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			writeValidation(w, &querier.ValidationError{Errors: map[string][]string{
				typeErr.Field: {"The " + typeErr.Field + " field must be " + describeKind(typeErr.Type) + "."},
			}})
			return
		}
		writeError(w, http.StatusBadRequest, "Malformed JSON body.")
		return
	}

	page, err := s.querier.Search(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request) {
	d, err := s.querier.Find(r.Context(), r.PathValue("uuid"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "Entry not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	d, err := s.querier.FindWithBatch(r.Context(), r.PathValue("uuid"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "Entry not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.querier.FilterValues(r.PathValue("type")))
}

// fail maps an engine error onto a response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *querier.ValidationError
	if errors.As(err, &verr) {
		writeValidation(w, verr)
		return
	}
	attrs := []any{"err", err, "path", r.URL.Path, "request_id", RequestID(r.Context())}
	var stack *errors.Error
	if errors.As(err, &stack) {
		attrs = append(attrs, "stack", stack.ErrorStack())
	}
	s.logger.Error("request failed", attrs...)
	writeError(w, http.StatusInternalServerError, "Server Error")
}

func describeKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Bool:
		return "true or false"
	case reflect.Slice, reflect.Array:
		return "an array"
	default:
		return "a string"
	}
}
