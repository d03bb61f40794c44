package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"cafe-ordering/internal/models"
)

func TestFetchCartSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(models.CartResponse{Items: []models.CartEntry{
			{ID: "ce_1", MenuItemID: "latte", Name: "Latte", UnitPrice: 450, Quantity: 2},
		}})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	entries, err := client.FetchCart(context.Background(), "tok_abc")
	if err != nil {
		t.Fatalf("FetchCart: %v", err)
	}
	if gotAuth != "Bearer tok_abc" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok_abc")
	}
	if len(entries) != 1 || entries[0].UnitPrice != 450 {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestErrorEnvelopeIsSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Cart entry not found"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.RemoveEntry(context.Background(), "tok", "ce_missing")
	if err == nil {
		t.Fatalf("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "Cart entry not found") {
		t.Errorf("error %q does not carry the server message", err)
	}
}

func TestCreatePaymentIntentRejectsEmptySecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.CreatePaymentIntentResponse{ClientSecret: ""})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if _, err := client.CreatePaymentIntent(context.Background(), "tok", 900); err == nil {
		t.Fatalf("expected error for empty client secret")
	}
}

func TestGetOrderRepeatedReadsAreIdentical(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.Order{
			ID:     "ord_1",
			Items:  []models.OrderItem{{MenuItemID: "latte", Name: "Latte", UnitPrice: 450, Quantity: 2}},
			Total:  900,
			Status: models.StatusPreparing,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	first, err := client.GetOrder(context.Background(), "tok", "ord_1")
	if err != nil {
		t.Fatalf("first GetOrder: %v", err)
	}
	second, err := client.GetOrder(context.Background(), "tok", "ord_1")
	if err != nil {
		t.Fatalf("second GetOrder: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated reads differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
