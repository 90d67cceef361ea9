package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dejobratic/garment-orders/internal/orders/app"
	"github.com/dejobratic/garment-orders/internal/orders/app/queries"
	"github.com/dejobratic/garment-orders/internal/orders/domain"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
)

// Handler exposes HTTP endpoints for order operations.
type Handler struct {
	service *app.Service
}

// NewHandler constructs a Handler.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the order routes under /v1/orders.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1/orders", func(r chi.Router) {
		r.Use(WithIdentity)

		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders(queries.ScopeAll))
		r.Get("/mine", h.listOrders(queries.ScopeMine))
		r.Get("/pending", h.listOrders(queries.ScopePending))
		r.Get("/approved", h.listOrders(queries.ScopeApproved))
		r.Get("/stats", h.orderStats)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getOrder)
			r.Put("/cancel", h.cancelOrder)
			r.Put("/approve", h.approveOrder)
			r.Put("/reject", h.rejectOrder)
			r.Put("/status", h.updateStatus)
			r.Post("/tracking", h.addTracking)
		})
	})
}

// quantity accepts both 3 and "3".
type quantity int

func (q *quantity) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*q = 0
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("quantity must be an integer, got %s", s)
	}
	*q = quantity(n)
	return nil
}

type createOrderRequest struct {
	ProductID        string          `json:"product_id"`
	Quantity         quantity        `json:"quantity"`
	ShippingAddress  string          `json:"shipping_address"`
	PhoneNumber      string          `json:"phone_number"`
	Notes            string          `json:"notes"`
	PaymentMethod    string          `json:"payment_method"`
	PaymentType      string          `json:"payment_type"`
	PaymentReference string          `json:"payment_reference"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
}

func (req createOrderRequest) input() app.CreateOrderInput {
	in := app.CreateOrderInput{
		ProductID:        strings.TrimSpace(req.ProductID),
		Quantity:         int(req.Quantity),
		ShippingAddress:  req.ShippingAddress,
		PhoneNumber:      req.PhoneNumber,
		Notes:            req.Notes,
		PaymentMethod:    domain.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
		PaymentType:      domain.PaymentType(strings.TrimSpace(req.PaymentType)),
		PaymentReference: strings.TrimSpace(req.PaymentReference),
		TotalAmount:      req.TotalAmount,
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = domain.PaymentMethodCOD
	}
	if in.PaymentType == "" {
		in.PaymentType = domain.PaymentTypeCashOnDelivery
	}
	return in
}

type statusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type trackingRequest struct {
	Status   string `json:"status"`
	Location string `json:"location"`
	Note     string `json:"note"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := callerFrom(ctx)

	// Keys are scoped per buyer so one buyer cannot replay another's response.
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	created := false
	if idemKey != "" {
		idemKey = caller.ID + ":" + idemKey

		stored, err := h.service.ClaimIdempotencyKey(ctx, idemKey)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if stored != nil {
			for key, values := range restoreHeaders(stored) {
				for _, value := range values {
					w.Header().Add(key, value)
				}
			}
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}

		// A request that created nothing gives the key back for a retry.
		defer func() {
			if created {
				return
			}
			if err := h.service.ReleaseIdempotencyKey(context.WithoutCancel(ctx), idemKey); err != nil {
				slog.WarnContext(ctx, "failed to release idempotency key", "error", err)
			}
		}()
	}

	var payload createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, domain.ErrValidation.Error(), "invalid JSON payload: "+err.Error())
		return
	}

	result, err := h.service.CreateOrder(ctx, caller, payload.input())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	created = true

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}

	body, err := json.Marshal(map[string]any{"order": result.Order})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// The order exists either way; an unsaved key stays claimed until it
	// expires, so retries are refused rather than duplicated.
	if idemKey != "" {
		stored := ports.StoredResponse{
			StatusCode: status,
			Body:       body,
			OrderID:    result.Order.ID,
		}
		if err := h.service.SaveIdempotentResponse(ctx, idemKey, stored); err != nil {
			slog.WarnContext(ctx, "failed to save idempotent response",
				"order_id", result.Order.ID,
				"error", domain.Detail(err),
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/v1/orders/"+result.Order.ID)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) listOrders(scope queries.Scope) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := queries.ListOrdersQuery{
			Caller: callerFrom(r.Context()),
			Scope:  scope,
			Status: q.Get("status"),
		}

		var err error
		if query.Page, err = intParam(q.Get("page")); err != nil {
			writeError(w, http.StatusBadRequest, domain.ErrValidation.Error(), "page must be an integer")
			return
		}
		if query.PageSize, err = intParam(q.Get("page_size")); err != nil {
			writeError(w, http.StatusBadRequest, domain.ErrValidation.Error(), "page_size must be an integer")
			return
		}

		page, err := h.service.ListOrders(r.Context(), query)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (h *Handler) orderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.OrderStats(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.CancelOrder(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	h.writeOrder(w, order, err)
}

func (h *Handler) approveOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.ApproveOrder(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"))
	h.writeOrder(w, order, err)
}

func (h *Handler) rejectOrder(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	order, err := h.service.RejectOrder(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), req.Reason)
	h.writeOrder(w, order, err)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	order, err := h.service.UpdateStatus(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), req.Status, req.Note)
	h.writeOrder(w, order, err)
}

func (h *Handler) addTracking(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	order, err := h.service.AddTracking(r.Context(), callerFrom(r.Context()), chi.URLParam(r, "id"), app.TrackingInput{
		Status:   req.Status,
		Location: req.Location,
		Note:     req.Note,
	})
	h.writeOrder(w, order, err)
}

func (h *Handler) writeOrder(w http.ResponseWriter, order *domain.Order, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

// decodeOptional decodes a JSON body if one was sent. An empty body is not an error.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, domain.ErrValidation.Error(), "invalid JSON payload")
		return false
	}
	return true
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// restoreHeaders rebuilds the headers of a replayed create response.
func restoreHeaders(stored *ports.StoredResponse) http.Header {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Idempotent-Replayed", "true")
	if stored.OrderID != "" {
		header.Set("Location", "/v1/orders/"+stored.OrderID)
	}
	return header
}
