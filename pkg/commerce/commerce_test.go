package commerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Token: "token"})
	if err == nil {
		t.Fatal("NewClient() error = nil, want error for missing url")
	}
}

func TestNewClientRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{URL: "://nope", Token: "token"})
	if err == nil {
		t.Fatal("NewClient() error = nil, want error for invalid url")
	}
}

func TestGetOrderDecodesResponse(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{
			"order_number": "1001",
			"fulfillment_status": "fulfilled",
			"financial_status": "paid",
			"total_price": "1499.00",
			"tracking_number": "TRK123",
			"line_items": [{"name": "Kurta", "quantity": 2}]
		}`)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	order, err := client.GetOrder(context.Background(), "1001")
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}

	if gotPath != "/orders/1001" {
		t.Fatalf("request path = %q, want %q", gotPath, "/orders/1001")
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization = %q, want %q", gotAuth, "Bearer secret")
	}
	if order.OrderNumber != "1001" {
		t.Fatalf("OrderNumber = %q, want %q", order.OrderNumber, "1001")
	}
	if order.TrackingNumber != "TRK123" {
		t.Fatalf("TrackingNumber = %q, want %q", order.TrackingNumber, "TRK123")
	}
	if len(order.LineItems) != 1 || order.LineItems[0].Quantity != 2 {
		t.Fatalf("unexpected line items: %#v", order.LineItems)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL, Token: "token"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.GetOrder(context.Background(), "9999")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("GetOrder() error = %v, want ErrOrderNotFound", err)
	}
}

func TestGetOrderUpstreamFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL, Token: "token"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	_, err = client.GetOrder(context.Background(), "1001")
	if err == nil {
		t.Fatal("GetOrder() error = nil, want upstream failure")
	}
	if errors.Is(err, ErrOrderNotFound) {
		t.Fatal("GetOrder() error is ErrOrderNotFound, want generic upstream failure")
	}
}

func TestGetTrackingDecodesResponse(t *testing.T) {
	t.Parallel()

	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{
			"status": "in_transit",
			"current_location": "Mumbai hub",
			"eta": "2026-09-02",
			"last_update": "2026-08-31T10:00:00Z"
		}`)
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL, Token: "token"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	tracking, err := client.GetTracking(context.Background(), "TRK123")
	if err != nil {
		t.Fatalf("GetTracking() error = %v", err)
	}

	if gotPath != "/tracking/TRK123" {
		t.Fatalf("request path = %q, want %q", gotPath, "/tracking/TRK123")
	}
	if tracking.Status != "in_transit" {
		t.Fatalf("Status = %q, want %q", tracking.Status, "in_transit")
	}
	if tracking.CurrentLocation != "Mumbai hub" {
		t.Fatalf("CurrentLocation = %q, want %q", tracking.CurrentLocation, "Mumbai hub")
	}
}
