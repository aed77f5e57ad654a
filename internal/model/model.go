// Package model содержит доменные сущности киоска самообслуживания.
package model

import (
	"time"

	"github.com/google/uuid"
)

// ConsumptionMethod описывает способ получения заказа.
type ConsumptionMethod string

const (
	ConsumptionTakeaway ConsumptionMethod = "TAKEAWAY"
	ConsumptionDineIn   ConsumptionMethod = "DINE_IN"
)

// IsValid сообщает, поддерживается ли способ получения.
func (m ConsumptionMethod) IsValid() bool {
	return m == ConsumptionTakeaway || m == ConsumptionDineIn
}

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "PENDING"
	OrderStatusInPreparation OrderStatus = "IN_PREPARATION"
	OrderStatusFinished      OrderStatus = "FINISHED"
	OrderStatusDelivered     OrderStatus = "DELIVERED"
)

// transitions задаёт допустимые переходы статусов. Статусы двигаются только
// вперёд: PENDING -> IN_PREPARATION -> FINISHED -> DELIVERED, путей отмены нет.
var transitions = map[OrderStatus]OrderStatus{
	OrderStatusPending:       OrderStatusInPreparation,
	OrderStatusInPreparation: OrderStatusFinished,
	OrderStatusFinished:      OrderStatusDelivered,
}

// IsValid сообщает, является ли значение одним из четырёх статусов.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInPreparation, OrderStatusFinished, OrderStatusDelivered:
		return true
	}
	return false
}

// CanAdvanceTo сообщает, разрешён ли переход из текущего статуса в next.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	return transitions[s] == next
}

// Restaurant представляет ресторан, которому принадлежат меню и заказы.
type Restaurant struct {
	ID        uuid.UUID
	Slug      string
	Name      string
	CreatedAt time.Time
}

// Product описывает позицию каталога с текущей ценой в копейках.
type Product struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description string
	PriceCents  int64
}

// MenuCategory группирует продукты меню.
type MenuCategory struct {
	ID       uuid.UUID
	Name     string
	Products []Product
}

// OrderItem — позиция заказа. Цена фиксируется в момент создания заказа
// и не зависит от последующих изменений каталога.
type OrderItem struct {
	ProductID  uuid.UUID
	Quantity   int
	PriceCents int64
}

// Order — живой заказ, находящийся в обработке.
type Order struct {
	ID                int64
	RestaurantID      uuid.UUID
	Status            OrderStatus
	TotalCents        int64
	ConsumptionMethod ConsumptionMethod
	PickupName        *string
	TableNumber       *int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Items             []OrderItem
}

// DeliveredOrder — архивная запись о выданном заказе. OrderID хранит номер
// исходного заказа как обычное значение: живая строка к этому моменту удалена.
type DeliveredOrder struct {
	ID                uuid.UUID
	OrderID           int64
	RestaurantID      uuid.UUID
	PickupName        *string
	ConsumptionMethod ConsumptionMethod
	DeliveredAt       time.Time
	Items             []OrderItem
}

// OrderLine — позиция заказа в проекциях для табло: название и количество.
type OrderLine struct {
	Name     string
	Quantity int
}

// QueueOrder — проекция заказа для табло очереди (PENDING и IN_PREPARATION).
type QueueOrder struct {
	ID         int64
	Status     OrderStatus
	TotalCents int64
	CreatedAt  time.Time
	Items      []OrderLine
}

// ReadyOrder — проекция заказа для табло выдачи (FINISHED).
type ReadyOrder struct {
	ID                int64
	PickupName        *string
	ConsumptionMethod ConsumptionMethod
	TableNumber       *int
	CreatedAt         time.Time
	Items             []OrderLine
}

// DeliveredView — проекция выданного заказа из архива.
type DeliveredView struct {
	ID                uuid.UUID
	PickupName        *string
	ConsumptionMethod ConsumptionMethod
	DeliveredAt       time.Time
	Items             []OrderLine
}
