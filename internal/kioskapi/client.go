// Package kioskapi предоставляет HTTP-клиент API киоска для табло персонала.
package kioskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client инкапсулирует HTTP-взаимодействие с сервером киоска.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// OrderLine описывает позицию заказа в ответах табло.
type OrderLine struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// QueueOrder описывает заказ в очереди кухни.
type QueueOrder struct {
	ID        int64       `json:"id"`
	Status    string      `json:"status"`
	Total     float64     `json:"total"`
	CreatedAt string      `json:"createdAt"`
	Items     []OrderLine `json:"items"`
}

// ReadyOrder описывает готовый к выдаче заказ.
type ReadyOrder struct {
	ID                int64       `json:"id"`
	PickupName        *string     `json:"pickupName"`
	ConsumptionMethod string      `json:"consumptionMethod"`
	TableNumber       *int        `json:"tableNumber"`
	CreatedAt         string      `json:"createdAt"`
	Items             []OrderLine `json:"items"`
}

// DeliveredOrder описывает выданный заказ из архива.
type DeliveredOrder struct {
	ID                string      `json:"id"`
	PickupName        *string     `json:"pickupName"`
	ConsumptionMethod string      `json:"consumptionMethod"`
	DeliveredAt       string      `json:"deliveredAt"`
	Items             []OrderLine `json:"items"`
}

// OrderStatus описывает ответ на смену статуса заказа.
type OrderStatus struct {
	ID        int64    `json:"id"`
	Status    string   `json:"status"`
	Total     *float64 `json:"total,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`
}

// NewClient создаёт HTTP-клиент киоска по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *Client) url(path string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("kiosk client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	url, err := c.url(path)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// FetchInProgress запрашивает очередь кухни: заказы в ожидании и в работе.
func (c *Client) FetchInProgress(ctx context.Context) ([]QueueOrder, error) {
	var orders []QueueOrder
	if err := c.getJSON(ctx, "/api/orders/in-progress", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// FetchReady запрашивает готовые к выдаче заказы.
func (c *Client) FetchReady(ctx context.Context) ([]ReadyOrder, error) {
	var orders []ReadyOrder
	if err := c.getJSON(ctx, "/api/orders/ready", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// FetchDelivered запрашивает историю выданных заказов.
func (c *Client) FetchDelivered(ctx context.Context) ([]DeliveredOrder, error) {
	var orders []DeliveredOrder
	if err := c.getJSON(ctx, "/api/orders/delivered", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// AdvanceOrder переводит заказ в указанный статус.
func (c *Client) AdvanceOrder(ctx context.Context, orderID int64, status string) (*OrderStatus, error) {
	url, err := c.url(fmt.Sprintf("/api/orders/%d", orderID))
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result OrderStatus
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}
