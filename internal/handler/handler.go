// Package handler содержит HTTP-обработчики API киоска.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/kiosk-system/internal/model"
	"github.com/mmeshcher/kiosk-system/internal/repository"
	"github.com/mmeshcher/kiosk-system/internal/service"
	"github.com/mmeshcher/kiosk-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	GetMenu(ctx context.Context, restaurantID uuid.UUID) ([]model.MenuCategory, error)
	CreateOrder(ctx context.Context, restaurantID uuid.UUID, in service.CreateOrderInput) (int64, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	AdvanceOrder(ctx context.Context, id int64, requested model.OrderStatus) (*model.Order, error)
	InProgressOrders(ctx context.Context, restaurantID uuid.UUID) ([]model.QueueOrder, error)
	ReadyOrders(ctx context.Context, restaurantID uuid.UUID) ([]model.ReadyOrder, error)
	DeliveredOrders(ctx context.Context, restaurantID uuid.UUID) ([]model.DeliveredView, error)
}

// Handler реализует HTTP-обработчики API киоска. Ресторан фиксируется
// при старте сервиса и передаётся во все вызовы явно.
type Handler struct {
	service      Service
	logger       *zap.Logger
	restaurantID uuid.UUID
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, restaurantID uuid.UUID) *Handler {
	return &Handler{
		service:      s,
		logger:       logger,
		restaurantID: restaurantID,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type menuProductResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
}

type menuCategoryResponse struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	Products []menuProductResponse `json:"products"`
}

// GetMenu возвращает меню ресторана по категориям.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.GetMenu(r.Context(), h.restaurantID)
	if err != nil {
		h.logger.Error("get menu error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]menuCategoryResponse, 0, len(categories))
	for _, c := range categories {
		cat := menuCategoryResponse{
			ID:       c.ID.String(),
			Name:     c.Name,
			Products: make([]menuProductResponse, 0, len(c.Products)),
		}
		for _, p := range c.Products {
			cat.Products = append(cat.Products, menuProductResponse{
				ID:          p.ID.String(),
				Name:        p.Name,
				Description: p.Description,
				Price:       float64(p.PriceCents) / 100,
			})
		}
		resp = append(resp, cat)
	}

	writeJSON(w, http.StatusOK, resp)
}

type createOrderResponse struct {
	Success bool   `json:"success"`
	OrderID int64  `json:"orderId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CreateOrder принимает форму киоска и создаёт новый заказ.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, createOrderResponse{Success: false, Error: "malformed form"})
		return
	}

	method := model.ConsumptionMethod(r.PostFormValue("consumptionMethod"))
	if method == "" {
		method = model.ConsumptionTakeaway
	}
	if !method.IsValid() {
		writeJSON(w, http.StatusBadRequest, createOrderResponse{Success: false, Error: "unsupported consumption method"})
		return
	}

	rawItems, err := validation.ParseCartItems(r.PostFormValue("items"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, createOrderResponse{Success: false, Error: "malformed cart"})
		return
	}

	in := service.CreateOrderInput{ConsumptionMethod: method}
	for _, it := range rawItems {
		in.Items = append(in.Items, service.CartItem{
			ProductID: uuid.MustParse(it.ProductID),
			Quantity:  it.Quantity,
		})
	}

	switch method {
	case model.ConsumptionTakeaway:
		name := r.PostFormValue("pickupName")
		if !validation.IsValidPickupName(name) {
			writeJSON(w, http.StatusBadRequest, createOrderResponse{Success: false, Error: "pickup name required for takeaway"})
			return
		}
		in.PickupName = &name
	case model.ConsumptionDineIn:
		table, convErr := strconv.Atoi(r.PostFormValue("tableNumber"))
		if convErr != nil || !validation.IsValidTableNumber(table) {
			writeJSON(w, http.StatusBadRequest, createOrderResponse{Success: false, Error: "table number required for dine-in"})
			return
		}
		in.TableNumber = &table
	}

	orderID, err := h.service.CreateOrder(r.Context(), h.restaurantID, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCart):
			writeJSON(w, http.StatusBadRequest, createOrderResponse{Success: false, Error: "cart is empty"})
		case errors.Is(err, service.ErrUnknownProduct):
			writeJSON(w, http.StatusBadRequest, createOrderResponse{Success: false, Error: "unknown product in cart"})
		default:
			h.logger.Error("create order error", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, createOrderResponse{Success: false, Error: "failed to create order"})
		}
		return
	}

	writeJSON(w, http.StatusOK, createOrderResponse{Success: true, OrderID: orderID})
}

type orderResponse struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	Total             float64 `json:"total"`
	ConsumptionMethod string  `json:"consumptionMethod"`
	UpdatedAt         string  `json:"updatedAt"`
}

// GetOrder возвращает краткое состояние живого заказа.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get order error", zap.Error(err), zap.Int64("orderID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, orderResponse{
		ID:                order.ID,
		Status:            string(order.Status),
		Total:             float64(order.TotalCents) / 100,
		ConsumptionMethod: string(order.ConsumptionMethod),
		UpdatedAt:         order.UpdatedAt.Format(time.RFC3339),
	})
}

type patchOrderRequest struct {
	Status string `json:"status"`
}

type patchOrderResponse struct {
	ID        int64    `json:"id"`
	Status    string   `json:"status"`
	Total     *float64 `json:"total,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`
}

// PatchOrder применяет переход статуса к заказу.
func (h *Handler) PatchOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req patchOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	requested := model.OrderStatus(req.Status)
	if !requested.IsValid() {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order, err := h.service.AdvanceOrder(r.Context(), id, requested)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrInvalidTransition):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			h.logger.Error("advance order error", zap.Error(err),
				zap.Int64("orderID", id), zap.String("status", req.Status))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	resp := patchOrderResponse{
		ID:     order.ID,
		Status: string(order.Status),
	}
	// После выдачи живой записи больше нет: отдаём только подтверждение статуса.
	if order.Status != model.OrderStatusDelivered {
		total := float64(order.TotalCents) / 100
		resp.Total = &total
		resp.CreatedAt = order.CreatedAt.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}

type orderLineResponse struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

func toLines(lines []model.OrderLine) []orderLineResponse {
	res := make([]orderLineResponse, 0, len(lines))
	for _, l := range lines {
		res = append(res, orderLineResponse{Name: l.Name, Quantity: l.Quantity})
	}
	return res
}

type queueOrderResponse struct {
	ID        int64               `json:"id"`
	Status    string              `json:"status"`
	Total     float64             `json:"total"`
	CreatedAt string              `json:"createdAt"`
	Items     []orderLineResponse `json:"items"`
}

// GetInProgress возвращает очередь заказов в работе: старые первыми.
func (h *Handler) GetInProgress(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.InProgressOrders(r.Context(), h.restaurantID)
	if err != nil {
		h.logger.Error("get in-progress orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]queueOrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, queueOrderResponse{
			ID:        o.ID,
			Status:    string(o.Status),
			Total:     float64(o.TotalCents) / 100,
			CreatedAt: o.CreatedAt.Format(time.RFC3339),
			Items:     toLines(o.Items),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type readyOrderResponse struct {
	ID                int64               `json:"id"`
	PickupName        *string             `json:"pickupName"`
	ConsumptionMethod string              `json:"consumptionMethod"`
	TableNumber       *int                `json:"tableNumber"`
	CreatedAt         string              `json:"createdAt"`
	Items             []orderLineResponse `json:"items"`
}

// GetReady возвращает заказы, готовые к выдаче.
func (h *Handler) GetReady(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ReadyOrders(r.Context(), h.restaurantID)
	if err != nil {
		h.logger.Error("get ready orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]readyOrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, readyOrderResponse{
			ID:                o.ID,
			PickupName:        o.PickupName,
			ConsumptionMethod: string(o.ConsumptionMethod),
			TableNumber:       o.TableNumber,
			CreatedAt:         o.CreatedAt.Format(time.RFC3339),
			Items:             toLines(o.Items),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type deliveredOrderResponse struct {
	ID                string              `json:"id"`
	PickupName        *string             `json:"pickupName"`
	ConsumptionMethod string              `json:"consumptionMethod"`
	DeliveredAt       string              `json:"deliveredAt"`
	Items             []orderLineResponse `json:"items"`
}

// GetDelivered возвращает историю выдач: новые первыми.
func (h *Handler) GetDelivered(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.DeliveredOrders(r.Context(), h.restaurantID)
	if err != nil {
		h.logger.Error("get delivered orders error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]deliveredOrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, deliveredOrderResponse{
			ID:                o.ID.String(),
			PickupName:        o.PickupName,
			ConsumptionMethod: string(o.ConsumptionMethod),
			DeliveredAt:       o.DeliveredAt.Format(time.RFC3339),
			Items:             toLines(o.Items),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
