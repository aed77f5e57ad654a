// Package validation содержит проверки входных данных заказа киоска.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CartItem описывает позицию корзины, переданную формой киоска.
type CartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

const maxPickupNameLen = 100

// ParseCartItems разбирает JSON-кодированную корзину из формы и проверяет
// каждую позицию: идентификатор продукта должен быть UUID, количество — не меньше единицы.
func ParseCartItems(raw string) ([]CartItem, error) {
	var items []CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("parse cart items: %w", err)
	}

	for i, it := range items {
		if _, err := uuid.Parse(it.ProductID); err != nil {
			return nil, fmt.Errorf("cart item %d: invalid product id %q", i, it.ProductID)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("cart item %d: quantity must be at least 1, got %d", i, it.Quantity)
		}
	}

	return items, nil
}

// IsValidTableNumber сообщает, попадает ли номер стола в допустимый диапазон.
func IsValidTableNumber(n int) bool {
	return n >= 1 && n <= 999
}

// IsValidPickupName сообщает, пригодно ли имя для табло выдачи.
func IsValidPickupName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed != "" && len(trimmed) <= maxPickupNameLen
}
