package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/target/mediabroker/internal/domain/model"
	apperrors "github.com/target/mediabroker/internal/errors"
)

const maxSubmitBodyBytes = 16 << 10

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError.
type ErrorParams struct {
	Code     int
	Category model.ErrorCategory
	Message  string
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   model.ErrorCategory `json:"error"`
	Message string              `json:"message"`
}

// WriteError writes {"error": category, "message": text}.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	msg := p.Message
	if msg == "" {
		msg = p.Category.UserMessage()
	}
	WriteJSON(w, p.Code, ErrorBody{Error: p.Category, Message: msg})
}

// WriteServiceError maps an error from the service layer onto a status code.
// Internal errors never expose their cause.
func WriteServiceError(w http.ResponseWriter, err error) {
	category := apperrors.GetCategory(err)
	var appErr *apperrors.AppError
	msg := ""
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}

	var code int
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidation:
		code = http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		code = http.StatusNotFound
	case apperrors.ErrCodeConflict:
		code = http.StatusConflict
	case apperrors.ErrCodeRateLimited:
		code = http.StatusTooManyRequests
	default:
		code = http.StatusInternalServerError
		category = model.CategoryUnknown
		msg = ""
	}
	WriteError(w, ErrorParams{Code: code, Category: category, Message: msg})
}

// decodeSubmit reads a submission from a JSON body, a form body or the query string.
func decodeSubmit(w http.ResponseWriter, r *http.Request) (model.SubmitJobRequest, error) {
	var req model.SubmitJobRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, fmt.Errorf("decode json body: %w", err)
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("parse form: %w", err)
	}
	req.URL = r.Form.Get("url")
	req.Mode = r.Form.Get("mode")
	req.Quality = r.Form.Get("quality")
	return req, nil
}
