// Package service реализует бизнес-логику киоска: создание заказов,
// машину статусов с архивацией и проекции для табло.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/kiosk-system/internal/events"
	"github.com/mmeshcher/kiosk-system/internal/metrics"
	"github.com/mmeshcher/kiosk-system/internal/model"
	"github.com/mmeshcher/kiosk-system/internal/repository"
)

// ErrEmptyCart возвращается при попытке создать заказ с пустой корзиной.
var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrUnknownProduct возвращается, если позиция корзины ссылается на продукт,
	// отсутствующий в каталоге ресторана. Молчаливое занижение суммы недопустимо.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrInvalidTransition возвращается при нарушении графа переходов статусов.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrCreationFailed возвращается при сбое сохранения заказа.
	ErrCreationFailed = errors.New("order creation failed")
	// ErrArchivalFailed возвращается при сбое переноса заказа в архив.
	ErrArchivalFailed = errors.New("order archival failed")
)

// deliveredHistoryLimit ограничивает размер отдаваемой истории выдач.
const deliveredHistoryLimit = 100

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetRestaurantBySlug(ctx context.Context, slug string) (*model.Restaurant, error)
	GetMenu(ctx context.Context, restaurantID uuid.UUID) ([]model.MenuCategory, error)
	GetProductPrices(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]int64, error)
	CreateOrder(ctx context.Context, o repository.NewOrder) (int64, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) (*model.Order, error)
	ArchiveOrder(ctx context.Context, id int64) error
	IsOrderArchived(ctx context.Context, orderID int64) (bool, error)
	ListInProgress(ctx context.Context, restaurantID uuid.UUID) ([]model.QueueOrder, error)
	ListReady(ctx context.Context, restaurantID uuid.UUID) ([]model.ReadyOrder, error)
	ListDelivered(ctx context.Context, restaurantID uuid.UUID, limit int) ([]model.DeliveredView, error)
}

// EventPublisher описывает контракт публикации событий заказов.
type EventPublisher interface {
	Publish(ctx context.Context, event events.OrderEvent) error
}

// Service содержит бизнес-логику киоска.
type Service struct {
	repo      Repository
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewService создаёт сервис. Публикация событий и метрики опциональны.
func NewService(repo Repository, publisher EventPublisher, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// GetRestaurantBySlug возвращает ресторан по slug.
func (s *Service) GetRestaurantBySlug(ctx context.Context, slug string) (*model.Restaurant, error) {
	return s.repo.GetRestaurantBySlug(ctx, slug)
}

// GetMenu возвращает меню ресторана.
func (s *Service) GetMenu(ctx context.Context, restaurantID uuid.UUID) ([]model.MenuCategory, error) {
	return s.repo.GetMenu(ctx, restaurantID)
}

// CartItem — позиция корзины с проверенными данными.
type CartItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput описывает данные формы киоска для создания заказа.
type CreateOrderInput struct {
	ConsumptionMethod model.ConsumptionMethod
	PickupName        *string
	TableNumber       *int
	Items             []CartItem
}

// CreateOrder проверяет корзину, переоценивает позиции по текущему каталогу
// и сохраняет заказ в статусе PENDING. Цены клиента игнорируются: каждая
// позиция получает снимок каталожной цены, из которого складывается итог.
func (s *Service) CreateOrder(ctx context.Context, restaurantID uuid.UUID, in CreateOrderInput) (int64, error) {
	if len(in.Items) == 0 {
		return 0, ErrEmptyCart
	}

	ids := make([]uuid.UUID, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.ProductID)
	}

	prices, err := s.repo.GetProductPrices(ctx, restaurantID, ids)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	var total int64
	items := make([]model.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		price, ok := prices[it.ProductID]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownProduct, it.ProductID)
		}
		total += price * int64(it.Quantity)
		items = append(items, model.OrderItem{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			PriceCents: price,
		})
	}

	newOrder := repository.NewOrder{
		RestaurantID:      restaurantID,
		ConsumptionMethod: in.ConsumptionMethod,
		TotalCents:        total,
		Items:             items,
	}
	// Заполняется ровно одно из полей, в зависимости от способа получения.
	switch in.ConsumptionMethod {
	case model.ConsumptionTakeaway:
		newOrder.PickupName = in.PickupName
	case model.ConsumptionDineIn:
		newOrder.TableNumber = in.TableNumber
	}

	orderID, err := s.repo.CreateOrder(ctx, newOrder)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}
	s.publish(ctx, events.OrderEvent{
		Type:         events.TypeOrderCreated,
		OrderID:      orderID,
		RestaurantID: restaurantID.String(),
		Status:       string(model.OrderStatusPending),
		TotalCents:   total,
	})

	return orderID, nil
}

// GetOrder возвращает живой заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// AdvanceOrder применяет запрошенный переход статуса к заказу.
//
// Повторное применение текущего статуса — идемпотентная no-op операция.
// DELIVERED допустим только из FINISHED и выполняет атомарную архивацию
// с удалением живой записи; повторный запрос DELIVERED по уже
// архивированному заказу подтверждается успехом.
func (s *Service) AdvanceOrder(ctx context.Context, id int64, requested model.OrderStatus) (*model.Order, error) {
	if !requested.IsValid() {
		return nil, ErrInvalidTransition
	}

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) && requested == model.OrderStatusDelivered {
			return s.acknowledgeArchived(ctx, id)
		}
		return nil, err
	}

	if order.Status == requested {
		return order, nil
	}

	if !order.Status.CanAdvanceTo(requested) {
		return nil, ErrInvalidTransition
	}

	if requested == model.OrderStatusDelivered {
		return s.deliverOrder(ctx, order)
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, id, requested)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(requested)).Inc()
	}
	s.publish(ctx, events.OrderEvent{
		Type:         events.TypeOrderStatusChanged,
		OrderID:      updated.ID,
		RestaurantID: updated.RestaurantID.String(),
		Status:       string(updated.Status),
	})

	return updated, nil
}

func (s *Service) deliverOrder(ctx context.Context, order *model.Order) (*model.Order, error) {
	err := s.repo.ArchiveOrder(ctx, order.ID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			// Живую строку успел удалить параллельный запрос выдачи.
			return s.acknowledgeArchived(ctx, order.ID)
		case errors.Is(err, repository.ErrOrderNotFinished):
			return nil, ErrInvalidTransition
		default:
			if s.metrics != nil {
				s.metrics.ArchiveFailures.Inc()
			}
			return nil, fmt.Errorf("%w: %v", ErrArchivalFailed, err)
		}
	}

	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(model.OrderStatusDelivered)).Inc()
	}
	s.publish(ctx, events.OrderEvent{
		Type:         events.TypeOrderDelivered,
		OrderID:      order.ID,
		RestaurantID: order.RestaurantID.String(),
		Status:       string(model.OrderStatusDelivered),
	})

	delivered := *order
	delivered.Status = model.OrderStatusDelivered
	return &delivered, nil
}

// acknowledgeArchived подтверждает повторный запрос выдачи по заказу,
// живая запись которого уже удалена архивацией.
func (s *Service) acknowledgeArchived(ctx context.Context, id int64) (*model.Order, error) {
	archived, err := s.repo.IsOrderArchived(ctx, id)
	if err != nil {
		return nil, err
	}
	if !archived {
		return nil, repository.ErrOrderNotFound
	}
	return &model.Order{ID: id, Status: model.OrderStatusDelivered}, nil
}

// InProgressOrders возвращает очередь заказов в работе: старые первыми.
func (s *Service) InProgressOrders(ctx context.Context, restaurantID uuid.UUID) ([]model.QueueOrder, error) {
	return s.repo.ListInProgress(ctx, restaurantID)
}

// ReadyOrders возвращает заказы, готовые к выдаче.
func (s *Service) ReadyOrders(ctx context.Context, restaurantID uuid.UUID) ([]model.ReadyOrder, error) {
	return s.repo.ListReady(ctx, restaurantID)
}

// DeliveredOrders возвращает историю выдач: новые первыми, не более ста записей.
func (s *Service) DeliveredOrders(ctx context.Context, restaurantID uuid.UUID) ([]model.DeliveredView, error) {
	return s.repo.ListDelivered(ctx, restaurantID, deliveredHistoryLimit)
}

// publish отправляет событие, если публикация настроена. Сбой публикации
// логируется и не влияет на результат операции.
func (s *Service) publish(ctx context.Context, event events.OrderEvent) {
	if s.publisher == nil {
		return
	}
	event.OccurredAt = time.Now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish order event",
			zap.String("type", event.Type),
			zap.Int64("orderID", event.OrderID),
			zap.Error(err),
		)
	}
}
