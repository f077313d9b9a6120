package vtu

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestServiceID(t *testing.T) {
	tests := []struct {
		network string
		data    bool
		want    string
	}{
		{"mtn", false, "mtn"},
		{"glo", true, "glo-data"},
		{"9mobile", false, "etisalat"},
		{"9mobile", true, "etisalat-data"},
		{"AIRTEL", false, "airtel"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := ServiceID(tt.network, tt.data); got != tt.want {
				t.Errorf("ServiceID(%s, %v) = %s, want %s", tt.network, tt.data, got, tt.want)
			}
		})
	}
}

func TestClient_PurchaseAirtime(t *testing.T) {
	var got payRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pay" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("api-key") != "key" || r.Header.Get("secret-key") != "secret" {
			t.Error("missing VTPass auth headers")
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"code":"000","requestId":"` + got.RequestID + `","content":{"transactions":{"transactionId":"17","status":"delivered"}}}`))
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL, APIKey: "key", SecretKey: "secret"})
	receipt, err := client.PurchaseAirtime(context.Background(), AirtimeRequest{Network: "9mobile", Phone: "08091234567", Amount: 500})
	if err != nil {
		t.Fatalf("PurchaseAirtime() error = %v", err)
	}

	if got.ServiceID != "etisalat" || got.Amount != 500 || got.Phone != "08091234567" {
		t.Errorf("request = %+v", got)
	}
	if receipt.Reference != got.RequestID || receipt.TransactionID != "17" {
		t.Errorf("receipt = %+v", receipt)
	}
}

func TestClient_PurchaseData(t *testing.T) {
	var got payRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"code":"000"}`))
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL})
	_, err := client.PurchaseData(context.Background(), DataRequest{Network: "mtn", Phone: "08012345678", PlanCode: "mtn-1gb-1day", Amount: 300})
	if err != nil {
		t.Fatalf("PurchaseData() error = %v", err)
	}

	if got.ServiceID != "mtn-data" || got.VariationCode != "mtn-1gb-1day" || got.BillersCode != "08012345678" {
		t.Errorf("request = %+v", got)
	}
}

func TestClient_ProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"016","response_description":"TRANSACTION FAILED"}`))
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL})
	_, err := client.PurchaseAirtime(context.Background(), AirtimeRequest{Network: "mtn", Phone: "08012345678", Amount: 100})
	if err == nil || !strings.Contains(err.Error(), "TRANSACTION FAILED") {
		t.Fatalf("error = %v, want provider description", err)
	}
}

func TestClient_RequestID(t *testing.T) {
	client := NewClient(&Config{})
	client.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 0, 0, time.UTC) }

	id := client.RequestID()
	if !strings.HasPrefix(id, "202603040606") {
		t.Errorf("RequestID() = %s, want Lagos-time prefix 202603040606", id)
	}
	if len(id) != 24 {
		t.Errorf("RequestID() length = %d, want 24", len(id))
	}
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	ctx := context.Background()

	r, err := m.PurchaseAirtime(ctx, AirtimeRequest{Network: "mtn", Amount: 100})
	if err != nil || r.Reference == "" {
		t.Fatalf("PurchaseAirtime() = %+v, %v", r, err)
	}
	if len(m.AirtimeCalls()) != 1 {
		t.Errorf("AirtimeCalls() = %d, want 1", len(m.AirtimeCalls()))
	}

	m.Err = errors.New("provider down")
	if _, err := m.PurchaseData(ctx, DataRequest{}); err == nil {
		t.Error("PurchaseData() should fail when Err is set")
	}

	m.Err = nil
	m.Delay = time.Second
	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := m.PurchaseAirtime(short, AirtimeRequest{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("slow provider error = %v, want deadline exceeded", err)
	}
}
