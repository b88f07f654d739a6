package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cashback-platform/internal/middleware"
	"cashback-platform/internal/services"
	"cashback-platform/internal/storage"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/unrolled/render"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Status  bool        `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *PageMeta   `json:"meta,omitempty"`
}

type PageMeta struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

var renderer = render.New(render.Options{})

func respondWithJSON(w http.ResponseWriter, code int, message string, data interface{}) {
	renderer.JSON(w, code, Response{Status: true, Message: message, Data: data})
}

func respondWithPage(w http.ResponseWriter, data interface{}, page, perPage, total int) {
	renderer.JSON(w, http.StatusOK, Response{
		Status: true,
		Data:   data,
		Meta:   &PageMeta{Page: page, PerPage: perPage, Total: total},
	})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	renderer.JSON(w, code, Response{Status: false, Message: message})
}

// errorStatus maps a service error to its HTTP status and the message the
// caller may see. Unknown errors become a generic 500.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrAmountMismatch),
		errors.Is(err, services.ErrMovementsInvalid),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrStoreNotApproved),
		errors.Is(err, storage.ErrUnsupportedFileType),
		errors.Is(err, storage.ErrFileTooLarge):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrStoreNotFound),
		errors.Is(err, services.ErrPaymentNotFound),
		errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrNotificationNotFound),
		errors.Is(err, services.ErrUserNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrInvalidStatusTransition),
		errors.Is(err, services.ErrAlreadyProcessed),
		errors.Is(err, services.ErrUserExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, services.ErrNotRecipient):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidSignature):
		return http.StatusUnauthorized, err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondWithServiceError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error, action string) {
	code, message := errorStatus(err)
	event := logger.Warn()
	if code >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Int("status", code).
		Msg(action + " failed")
	respondWithError(w, code, message)
}

func pathID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// pagination reads page/per_page and derives limit and offset.
func pagination(r *http.Request) (page, perPage, offset int) {
	page = queryInt(r, "page", 1)
	perPage = queryInt(r, "per_page", 20)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage, (page - 1) * perPage
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
