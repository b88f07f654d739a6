package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cashback-platform/internal/models"
	"cashback-platform/internal/storage"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type PaymentProcessor interface {
	ProcessPayment(ctx context.Context, req *models.ProcessPaymentRequest) (*models.ProcessPaymentResult, error)
	UpdateStatus(ctx context.Context, paymentID int, next models.PaymentStatus) (*models.BalancePayment, error)
}

type PaymentQueries interface {
	ListPayments(ctx context.Context, f models.PaymentFilter) ([]*models.BalancePayment, int, error)
	PendingByStore(ctx context.Context, f models.PendingFilter) ([]*models.StorePendingSummary, int, error)
	StoreBalanceDetail(ctx context.Context, storeID, page, perPage int) (*models.StoreBalanceDetail, error)
	GetPaymentDetail(ctx context.Context, paymentID, storeScope int) (*models.PaymentDetail, error)
	Statistics(ctx context.Context) (*models.PaymentStatistics, error)
}

type BalancePaymentHandler struct {
	processor PaymentProcessor
	queries   PaymentQueries
	logger    zerolog.Logger
}

func NewBalancePaymentHandler(processor PaymentProcessor, queries PaymentQueries, logger zerolog.Logger) *BalancePaymentHandler {
	return &BalancePaymentHandler{
		processor: processor,
		queries:   queries,
		logger:    logger,
	}
}

var errBadForm = errors.New("invalid form")

// ParseMovementIDs accepts repeated values as well as comma separated lists.
func ParseMovementIDs(values []string) ([]int, error) {
	var ids []int
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("%w: invalid movement id %q", errBadForm, part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes", "sim":
		return true
	}
	return false
}

// parseProcessRequest reads the processPayment form. The returned cleanup
// closes the uploaded receipt, if any.
func parseProcessRequest(r *http.Request) (*models.ProcessPaymentRequest, func(), error) {
	cleanup := func() {}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(storage.MaxReceiptSize); err != nil {
			return nil, cleanup, fmt.Errorf("%w: %v", errBadForm, err)
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, cleanup, fmt.Errorf("%w: %v", errBadForm, err)
	}

	req := &models.ProcessPaymentRequest{
		PaymentMethod:   strings.TrimSpace(r.FormValue("paymentMethod")),
		ReferenceNumber: strings.TrimSpace(r.FormValue("referenceNumber")),
		Note:            strings.TrimSpace(r.FormValue("note")),
		AutoApprove:     parseFlag(r.FormValue("autoApprove")),
	}

	if v := r.FormValue("storeId"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, cleanup, fmt.Errorf("%w: invalid storeId", errBadForm)
		}
		req.StoreID = id
	}

	ids, err := ParseMovementIDs(append(r.Form["movements"], r.Form["movements[]"]...))
	if err != nil {
		return nil, cleanup, err
	}
	req.MovementIDs = ids

	if v := strings.TrimSpace(r.FormValue("totalAmount")); v != "" {
		total, err := decimal.NewFromString(strings.Replace(v, ",", ".", 1))
		if err != nil {
			return nil, cleanup, fmt.Errorf("%w: invalid totalAmount", errBadForm)
		}
		req.DeclaredTotal = total
	}

	if r.MultipartForm != nil {
		file, header, err := r.FormFile("receiptFile")
		switch {
		case err == nil:
			req.Receipt = &models.ReceiptUpload{Filename: header.Filename, Content: file}
			cleanup = func() { file.Close() }
		case !errors.Is(err, http.ErrMissingFile):
			return nil, cleanup, fmt.Errorf("%w: %v", errBadForm, err)
		}
	}

	return req, cleanup, nil
}

func (h *BalancePaymentHandler) Process(w http.ResponseWriter, r *http.Request) {
	req, cleanup, err := parseProcessRequest(r)
	defer cleanup()
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.processor.ProcessPayment(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Balance payment")
		return
	}

	respondWithJSON(w, http.StatusCreated, "Balance payment processed", result)
}

func (h *BalancePaymentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID")
		return
	}

	var status string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeJSON(r, &body); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		status = body.Status
	} else {
		status = r.FormValue("status")
	}

	payment, err := h.processor.UpdateStatus(r.Context(), id, models.PaymentStatus(strings.TrimSpace(status)))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Payment status update")
		return
	}

	respondWithJSON(w, http.StatusOK, "Payment status updated", payment)
}

func (h *BalancePaymentHandler) Pending(w http.ResponseWriter, r *http.Request) {
	page, perPage, _ := pagination(r)

	summaries, total, err := h.queries.PendingByStore(r.Context(), models.PendingFilter{
		StoreID: queryInt(r, "store_id", 0),
		Search:  r.URL.Query().Get("search"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Pending balances")
		return
	}

	respondWithPage(w, summaries, page, perPage, total)
}

func (h *BalancePaymentHandler) StoreDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid store ID")
		return
	}

	page, perPage, _ := pagination(r)

	detail, err := h.queries.StoreBalanceDetail(r.Context(), id, page, perPage)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Store balance detail")
		return
	}

	respondWithJSON(w, http.StatusOK, "", detail)
}

func (h *BalancePaymentHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID")
		return
	}

	detail, err := h.queries.GetPaymentDetail(r.Context(), id, 0)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Payment detail")
		return
	}

	respondWithJSON(w, http.StatusOK, "", detail)
}

func (h *BalancePaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := parsePaymentFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.StoreID = queryInt(r, "store_id", 0)

	h.listPayments(w, r, filter)
}

func (h *BalancePaymentHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queries.Statistics(r.Context())
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Payment statistics")
		return
	}

	respondWithJSON(w, http.StatusOK, "", stats)
}

// StorePayments lists the calling store's own payments.
func (h *BalancePaymentHandler) StorePayments(w http.ResponseWriter, r *http.Request) {
	storeID, ok := storeScope(r)
	if !ok {
		respondWithError(w, http.StatusForbidden, "No store linked to this account")
		return
	}

	filter, err := parsePaymentFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.StoreID = storeID

	h.listPayments(w, r, filter)
}

func (h *BalancePaymentHandler) StorePaymentDetail(w http.ResponseWriter, r *http.Request) {
	storeID, ok := storeScope(r)
	if !ok {
		respondWithError(w, http.StatusForbidden, "No store linked to this account")
		return
	}

	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid payment ID")
		return
	}

	detail, err := h.queries.GetPaymentDetail(r.Context(), id, storeID)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Payment detail")
		return
	}

	respondWithJSON(w, http.StatusOK, "", detail)
}

func (h *BalancePaymentHandler) listPayments(w http.ResponseWriter, r *http.Request, filter models.PaymentFilter) {
	payments, total, err := h.queries.ListPayments(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err, "Payment history")
		return
	}

	respondWithPage(w, payments, filter.Page, filter.PerPage, total)
}

var allPaymentStatuses = []models.PaymentStatus{
	models.PaymentStatusPending,
	models.PaymentStatusProcessing,
	models.PaymentStatusApproved,
}

// parsePaymentFilter reads status, from, to and paging from the query string.
// "all" (or "todos") lifts the default status restriction.
func parsePaymentFilter(r *http.Request) (models.PaymentFilter, error) {
	page, perPage, _ := pagination(r)
	filter := models.PaymentFilter{Page: page, PerPage: perPage}

	for _, v := range r.URL.Query()["status"] {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			switch {
			case part == "":
				continue
			case part == "all" || part == "todos":
				filter.Statuses = append([]models.PaymentStatus(nil), allPaymentStatuses...)
				continue
			case !models.PaymentStatus(part).Valid():
				return filter, fmt.Errorf("invalid status %q", part)
			}
			filter.Statuses = append(filter.Statuses, models.PaymentStatus(part))
		}
	}

	from, err := parseDateParam(r.URL.Query().Get("from"), false)
	if err != nil {
		return filter, err
	}
	to, err := parseDateParam(r.URL.Query().Get("to"), true)
	if err != nil {
		return filter, err
	}
	filter.From, filter.To = from, to

	return filter, nil
}

// parseDateParam accepts RFC3339 or a plain date. A plain end date covers the
// whole day.
func parseDateParam(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, use YYYY-MM-DD or RFC3339", v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return &t, nil
}
