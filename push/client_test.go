package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("PUSH_GATEWAY_BASE_URL", srv.URL)
	// Keep the rate limiter out of the test's way.
	t.Setenv("PUSH_RATE_LIMIT_PER_MIN", "600000")
	return NewClient()
}

func TestSend_OkTicket(t *testing.T) {
	var gotMessages []Message
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Errorf("path = %s, want /send", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotMessages); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"id": "ticket-abc", "status": "ok"}},
		})
	})

	ticket, err := client.Send(context.Background(), Message{
		To:    "ExponentPushToken[x]",
		Title: "Budget Alert",
		Body:  "You spent 85% of Groceries",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ticket.ID != "ticket-abc" || ticket.Status != "ok" {
		t.Errorf("ticket = %+v", ticket)
	}
	if len(gotMessages) != 1 || gotMessages[0].To != "ExponentPushToken[x]" {
		t.Errorf("gateway saw %+v", gotMessages)
	}
}

func TestSend_DeviceNotRegisteredIsPermanent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{
				"status":  "error",
				"message": `"ExponentPushToken[x]" is not a registered push notification recipient`,
				"details": map[string]string{"error": "DeviceNotRegistered"},
			}},
		})
	})

	_, err := client.Send(context.Background(), Message{To: "ExponentPushToken[x]"})
	if !errors.Is(err, ErrDeviceNotRegistered) {
		t.Fatalf("err = %v, want ErrDeviceNotRegistered", err)
	}
}

func TestSend_OtherTicketErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{{
				"status":  "error",
				"message": "message too big",
				"details": map[string]string{"error": "MessageTooBig"},
			}},
		})
	})

	_, err := client.Send(context.Background(), Message{To: "ExponentPushToken[x]"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrDeviceNotRegistered) {
		t.Fatal("MessageTooBig must not be a permanent token error")
	}
}

func TestSend_GatewayErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	})

	_, err := client.Send(context.Background(), Message{To: "ExponentPushToken[x]"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrDeviceNotRegistered) {
		t.Fatal("HTTP 502 must not be a permanent token error")
	}
}
