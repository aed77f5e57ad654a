package kioskapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchInProgress(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/orders/in-progress" {
			t.Fatalf("path = %s, want /api/orders/in-progress", r.URL.Path)
		}

		orders := []QueueOrder{
			{
				ID:        7,
				Status:    "PENDING",
				Total:     25.0,
				CreatedAt: "2026-08-30T12:00:00Z",
				Items:     []OrderLine{{Name: "Бургер", Quantity: 2}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(orders); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	orders, err := client.FetchInProgress(ctx)
	if err != nil {
		t.Fatalf("FetchInProgress error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("orders count = %d, want 1", len(orders))
	}
	if orders[0].ID != 7 || orders[0].Status != "PENDING" || orders[0].Total != 25.0 {
		t.Fatalf("unexpected order: %+v", orders[0])
	}
	if len(orders[0].Items) != 1 || orders[0].Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", orders[0].Items)
	}
}

func TestFetchReady(t *testing.T) {
	name := "Анна"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders/ready" {
			t.Fatalf("path = %s, want /api/orders/ready", r.URL.Path)
		}
		orders := []ReadyOrder{
			{ID: 3, PickupName: &name, ConsumptionMethod: "TAKEAWAY", CreatedAt: "2026-08-30T12:00:00Z"},
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(orders); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	orders, err := client.FetchReady(ctx)
	if err != nil {
		t.Fatalf("FetchReady error: %v", err)
	}
	if len(orders) != 1 || orders[0].PickupName == nil || *orders[0].PickupName != "Анна" {
		t.Fatalf("unexpected orders: %+v", orders)
	}
	if orders[0].TableNumber != nil {
		t.Fatalf("tableNumber = %v, want nil", *orders[0].TableNumber)
	}
}

func TestAdvanceOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Fatalf("method = %s, want PATCH", r.Method)
		}
		if r.URL.Path != "/api/orders/7" {
			t.Fatalf("path = %s, want /api/orders/7", r.URL.Path)
		}

		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["status"] != "IN_PREPARATION" {
			t.Fatalf("status = %s, want IN_PREPARATION", req["status"])
		}

		total := 25.0
		resp := OrderStatus{ID: 7, Status: "IN_PREPARATION", Total: &total, CreatedAt: "2026-08-30T12:00:00Z"}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.AdvanceOrder(ctx, 7, "IN_PREPARATION")
	if err != nil {
		t.Fatalf("AdvanceOrder error: %v", err)
	}
	if res.ID != 7 || res.Status != "IN_PREPARATION" {
		t.Fatalf("unexpected response: %+v", res)
	}
	if res.Total == nil || *res.Total != 25.0 {
		t.Fatalf("unexpected total: %v", res.Total)
	}
}

func TestAdvanceOrderRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := client.AdvanceOrder(ctx, 7, "DELIVERED"); err == nil {
		t.Fatal("expected error for rejected transition")
	}
}

func TestClientNotConfigured(t *testing.T) {
	var client *Client
	if _, err := client.FetchDelivered(context.Background()); err == nil {
		t.Fatal("expected error for nil client")
	}
}
