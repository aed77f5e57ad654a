package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mmeshcher/kiosk-system/internal/events"
	"github.com/mmeshcher/kiosk-system/internal/model"
	"github.com/mmeshcher/kiosk-system/internal/repository"
)

type stubRepo struct {
	prices    map[uuid.UUID]int64
	pricesErr error

	createOrderID  int64
	createOrderErr error
	lastNewOrder   *repository.NewOrder

	getOrder    *model.Order
	getOrderErr error

	updatedOrder    *model.Order
	updateErr       error
	updatedToStatus model.OrderStatus

	archiveErr   error
	archiveCalls int

	isArchived    bool
	isArchivedErr error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) GetRestaurantBySlug(ctx context.Context, slug string) (*model.Restaurant, error) {
	return nil, repository.ErrRestaurantNotFound
}

func (s *stubRepo) GetMenu(ctx context.Context, restaurantID uuid.UUID) ([]model.MenuCategory, error) {
	return nil, nil
}

func (s *stubRepo) GetProductPrices(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	return s.prices, s.pricesErr
}

func (s *stubRepo) CreateOrder(ctx context.Context, o repository.NewOrder) (int64, error) {
	s.lastNewOrder = &o
	return s.createOrderID, s.createOrderErr
}

func (s *stubRepo) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return s.getOrder, s.getOrderErr
}

func (s *stubRepo) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) (*model.Order, error) {
	s.updatedToStatus = status
	return s.updatedOrder, s.updateErr
}

func (s *stubRepo) ArchiveOrder(ctx context.Context, id int64) error {
	s.archiveCalls++
	return s.archiveErr
}

func (s *stubRepo) IsOrderArchived(ctx context.Context, orderID int64) (bool, error) {
	return s.isArchived, s.isArchivedErr
}

func (s *stubRepo) ListInProgress(ctx context.Context, restaurantID uuid.UUID) ([]model.QueueOrder, error) {
	return nil, nil
}

func (s *stubRepo) ListReady(ctx context.Context, restaurantID uuid.UUID) ([]model.ReadyOrder, error) {
	return nil, nil
}

func (s *stubRepo) ListDelivered(ctx context.Context, restaurantID uuid.UUID, limit int) ([]model.DeliveredView, error) {
	return nil, nil
}

type stubPublisher struct {
	published []events.OrderEvent
	err       error
}

func (p *stubPublisher) Publish(ctx context.Context, event events.OrderEvent) error {
	p.published = append(p.published, event)
	return p.err
}

var (
	productA = uuid.MustParse("4d444444-4444-4444-8444-444444444444")
	productB = uuid.MustParse("5e555555-5555-4555-8555-555555555555")
	testRest = uuid.MustParse("0b0f7b0e-1a2b-4c3d-9e4f-5a6b7c8d9e0f")
)

func TestCreateOrder_EmptyCart(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, nil)

	_, err := svc.CreateOrder(context.Background(), testRest, CreateOrderInput{
		ConsumptionMethod: model.ConsumptionTakeaway,
	})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	repo := &stubRepo{
		prices: map[uuid.UUID]int64{productA: 1000},
	}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreateOrder(context.Background(), testRest, CreateOrderInput{
		ConsumptionMethod: model.ConsumptionTakeaway,
		Items: []CartItem{
			{ProductID: productA, Quantity: 1},
			{ProductID: productB, Quantity: 1},
		},
	})
	if !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
	if repo.lastNewOrder != nil {
		t.Fatalf("order must not be persisted when a product is unknown")
	}
}

func TestCreateOrder_TotalFromCatalogSnapshot(t *testing.T) {
	repo := &stubRepo{
		prices: map[uuid.UUID]int64{
			productA: 1000,
			productB: 500,
		},
		createOrderID: 7,
	}
	svc := NewService(repo, nil, nil, nil)

	name := "Ana"
	orderID, err := svc.CreateOrder(context.Background(), testRest, CreateOrderInput{
		ConsumptionMethod: model.ConsumptionTakeaway,
		PickupName:        &name,
		Items: []CartItem{
			{ProductID: productA, Quantity: 2},
			{ProductID: productB, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if orderID != 7 {
		t.Fatalf("orderID = %d, want 7", orderID)
	}

	o := repo.lastNewOrder
	if o == nil {
		t.Fatalf("order was not persisted")
	}
	if o.TotalCents != 2500 {
		t.Fatalf("total = %d, want 2500", o.TotalCents)
	}
	if len(o.Items) != 2 || o.Items[0].PriceCents != 1000 || o.Items[1].PriceCents != 500 {
		t.Fatalf("unexpected item snapshot prices: %+v", o.Items)
	}
	if o.PickupName == nil || *o.PickupName != "Ana" {
		t.Fatalf("pickup name must be kept for TAKEAWAY")
	}
	if o.TableNumber != nil {
		t.Fatalf("table number must be empty for TAKEAWAY")
	}
}

func TestCreateOrder_DineInKeepsOnlyTableNumber(t *testing.T) {
	repo := &stubRepo{
		prices:        map[uuid.UUID]int64{productA: 1000},
		createOrderID: 8,
	}
	svc := NewService(repo, nil, nil, nil)

	name := "Ana"
	table := 12
	_, err := svc.CreateOrder(context.Background(), testRest, CreateOrderInput{
		ConsumptionMethod: model.ConsumptionDineIn,
		PickupName:        &name,
		TableNumber:       &table,
		Items:             []CartItem{{ProductID: productA, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}

	o := repo.lastNewOrder
	if o.PickupName != nil {
		t.Fatalf("pickup name must be dropped for DINE_IN")
	}
	if o.TableNumber == nil || *o.TableNumber != 12 {
		t.Fatalf("table number must be kept for DINE_IN")
	}
}

func TestCreateOrder_PersistenceFailure(t *testing.T) {
	repo := &stubRepo{
		prices:         map[uuid.UUID]int64{productA: 1000},
		createOrderErr: errors.New("connection lost"),
	}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.CreateOrder(context.Background(), testRest, CreateOrderInput{
		ConsumptionMethod: model.ConsumptionTakeaway,
		Items:             []CartItem{{ProductID: productA, Quantity: 1}},
	})
	if !errors.Is(err, ErrCreationFailed) {
		t.Fatalf("expected ErrCreationFailed, got %v", err)
	}
}

func TestCreateOrder_PublishesEvent(t *testing.T) {
	repo := &stubRepo{
		prices:        map[uuid.UUID]int64{productA: 1000},
		createOrderID: 9,
	}
	pub := &stubPublisher{}
	svc := NewService(repo, pub, nil, nil)

	_, err := svc.CreateOrder(context.Background(), testRest, CreateOrderInput{
		ConsumptionMethod: model.ConsumptionTakeaway,
		Items:             []CartItem{{ProductID: productA, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if len(pub.published) != 1 || pub.published[0].Type != events.TypeOrderCreated {
		t.Fatalf("expected one order.created event, got %+v", pub.published)
	}
}

func TestAdvanceOrder_ForwardTransition(t *testing.T) {
	repo := &stubRepo{
		getOrder:     &model.Order{ID: 1, Status: model.OrderStatusPending},
		updatedOrder: &model.Order{ID: 1, Status: model.OrderStatusInPreparation},
	}
	svc := NewService(repo, nil, nil, nil)

	updated, err := svc.AdvanceOrder(context.Background(), 1, model.OrderStatusInPreparation)
	if err != nil {
		t.Fatalf("AdvanceOrder error: %v", err)
	}
	if updated.Status != model.OrderStatusInPreparation {
		t.Fatalf("status = %s, want IN_PREPARATION", updated.Status)
	}
	if repo.updatedToStatus != model.OrderStatusInPreparation {
		t.Fatalf("repository received status %s", repo.updatedToStatus)
	}
}

func TestAdvanceOrder_SameStatusIsNoOp(t *testing.T) {
	order := &model.Order{ID: 1, Status: model.OrderStatusInPreparation}
	repo := &stubRepo{getOrder: order}
	svc := NewService(repo, nil, nil, nil)

	got, err := svc.AdvanceOrder(context.Background(), 1, model.OrderStatusInPreparation)
	if err != nil {
		t.Fatalf("AdvanceOrder error: %v", err)
	}
	if got != order {
		t.Fatalf("expected current order returned unchanged")
	}
	if repo.updatedToStatus != "" {
		t.Fatalf("status must not be written on a no-op")
	}
}

func TestAdvanceOrder_SkippingStateFails(t *testing.T) {
	repo := &stubRepo{
		getOrder: &model.Order{ID: 1, Status: model.OrderStatusPending},
	}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.AdvanceOrder(context.Background(), 1, model.OrderStatusFinished)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAdvanceOrder_BackwardTransitionFails(t *testing.T) {
	repo := &stubRepo{
		getOrder: &model.Order{ID: 1, Status: model.OrderStatusFinished},
	}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.AdvanceOrder(context.Background(), 1, model.OrderStatusPending)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAdvanceOrder_DeliveredOnlyFromFinished(t *testing.T) {
	repo := &stubRepo{
		getOrder: &model.Order{ID: 1, Status: model.OrderStatusInPreparation},
	}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.AdvanceOrder(context.Background(), 1, model.OrderStatusDelivered)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if repo.archiveCalls != 0 {
		t.Fatalf("archive must not run for invalid transition")
	}
}

func TestAdvanceOrder_DeliveredArchives(t *testing.T) {
	repo := &stubRepo{
		getOrder: &model.Order{ID: 1, RestaurantID: testRest, Status: model.OrderStatusFinished},
	}
	pub := &stubPublisher{}
	svc := NewService(repo, pub, nil, nil)

	got, err := svc.AdvanceOrder(context.Background(), 1, model.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("AdvanceOrder error: %v", err)
	}
	if repo.archiveCalls != 1 {
		t.Fatalf("archiveCalls = %d, want 1", repo.archiveCalls)
	}
	if got.Status != model.OrderStatusDelivered {
		t.Fatalf("status = %s, want DELIVERED", got.Status)
	}
	if len(pub.published) != 1 || pub.published[0].Type != events.TypeOrderDelivered {
		t.Fatalf("expected one order.delivered event, got %+v", pub.published)
	}
}

func TestAdvanceOrder_NotFound(t *testing.T) {
	repo := &stubRepo{getOrderErr: repository.ErrOrderNotFound}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.AdvanceOrder(context.Background(), 404, model.OrderStatusInPreparation)
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestAdvanceOrder_DeliveredIdempotentAfterArchive(t *testing.T) {
	repo := &stubRepo{
		getOrderErr: repository.ErrOrderNotFound,
		isArchived:  true,
	}
	svc := NewService(repo, nil, nil, nil)

	got, err := svc.AdvanceOrder(context.Background(), 5, model.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("AdvanceOrder error: %v", err)
	}
	if got.ID != 5 || got.Status != model.OrderStatusDelivered {
		t.Fatalf("unexpected acknowledgment: %+v", got)
	}
}

func TestAdvanceOrder_DeliveredMissingEverywhere(t *testing.T) {
	repo := &stubRepo{
		getOrderErr: repository.ErrOrderNotFound,
		isArchived:  false,
	}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.AdvanceOrder(context.Background(), 5, model.OrderStatusDelivered)
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestAdvanceOrder_ArchiveRaceAcknowledged(t *testing.T) {
	repo := &stubRepo{
		getOrder:   &model.Order{ID: 2, Status: model.OrderStatusFinished},
		archiveErr: repository.ErrOrderNotFound,
		isArchived: true,
	}
	svc := NewService(repo, nil, nil, nil)

	got, err := svc.AdvanceOrder(context.Background(), 2, model.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("AdvanceOrder error: %v", err)
	}
	if got.Status != model.OrderStatusDelivered {
		t.Fatalf("status = %s, want DELIVERED", got.Status)
	}
}

func TestAdvanceOrder_ArchivalFailure(t *testing.T) {
	repo := &stubRepo{
		getOrder:   &model.Order{ID: 3, Status: model.OrderStatusFinished},
		archiveErr: errors.New("disk is full"),
	}
	svc := NewService(repo, nil, nil, nil)

	_, err := svc.AdvanceOrder(context.Background(), 3, model.OrderStatusDelivered)
	if !errors.Is(err, ErrArchivalFailed) {
		t.Fatalf("expected ErrArchivalFailed, got %v", err)
	}
}

func TestAdvanceOrder_UnsupportedStatus(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, nil)

	_, err := svc.AdvanceOrder(context.Background(), 1, model.OrderStatus("CANCELLED"))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	repo := &stubRepo{
		prices:        map[uuid.UUID]int64{productA: 1000},
		createOrderID: 10,
	}
	pub := &stubPublisher{err: errors.New("broker unavailable")}
	svc := NewService(repo, pub, nil, nil)

	_, err := svc.CreateOrder(context.Background(), testRest, CreateOrderInput{
		ConsumptionMethod: model.ConsumptionTakeaway,
		Items:             []CartItem{{ProductID: productA, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("publish failure must not fail creation, got %v", err)
	}
}
