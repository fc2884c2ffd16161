package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/http/middleware"
)

type captureBody struct {
	Status        domain.Status  `json:"status"`
	Mode          string         `json:"mode"`
	Message       string         `json:"message"`
	Response      map[string]any `json:"response"`
	Driver        string         `json:"driver"`
	TransactionID string         `json:"transaction_id"`
	Replayed      bool           `json:"replayed"`
}

func TestStartCapture_Simulator(t *testing.T) {
	api := newTestAPI(t)
	api.route("Mada", "simulator", nil)

	tests := []struct {
		amount string
		status domain.Status
		code   string
	}{
		{"10.00", domain.StatusApproved, "00"},
		{"10.99", domain.StatusDeclined, "05"},
	}
	for _, tc := range tests {
		w := api.do(http.MethodPost, "/captures", `{"mode_of_payment":"Mada","amount":"`+tc.amount+`"}`, middleware.HeaderActor, "cashier-1")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", tc.amount, w.Code, w.Body.String())
		}
		got := decode[captureBody](t, w)
		if got.Status != tc.status || got.Response["response_code"] != tc.code || got.Driver != "simulator" || got.TransactionID == "" {
			t.Fatalf("%s: %+v", tc.amount, got)
		}
	}
}

func TestStartCapture_NotConfiguredIsAnErrorResult(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/captures", `{"mode_of_payment":"Unrouted","amount":150}`)
	if w.Code != http.StatusOK {
		t.Fatalf("configuration failures are results, got %d %s", w.Code, w.Body.String())
	}
	got := decode[captureBody](t, w)
	if got.Status != domain.StatusError || !strings.Contains(got.Message, "not configured") {
		t.Fatalf("result = %+v", got)
	}
}

func TestStartCapture_BadInput(t *testing.T) {
	api := newTestAPI(t)

	assertError(t, api.do(http.MethodPost, "/captures", `{"mode_of_payment":`), http.StatusBadRequest, ErrCodeBadRequest)
	assertError(t, api.do(http.MethodPost, "/captures", `{"mode_of_payment":"Mada","amount":0}`), http.StatusBadRequest, ErrCodeBadRequest)
	assertError(t, api.do(http.MethodPost, "/captures", `{"amount":5}`), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestStartCapture_IdempotencyKeyHeader(t *testing.T) {
	api := newTestAPI(t)
	api.route("Mada", "simulator", nil)
	hdr := []string{middleware.HeaderIdempotencyKey, "pos-7-0001", middleware.HeaderActor, "cashier-1"}

	first := decode[captureBody](t, api.do(http.MethodPost, "/captures", `{"mode_of_payment":"Mada","amount":"20"}`, hdr...))
	second := decode[captureBody](t, api.do(http.MethodPost, "/captures", `{"mode_of_payment":"Mada","amount":"20"}`, hdr...))
	if first.Replayed || !second.Replayed || second.TransactionID != first.TransactionID {
		t.Fatalf("replay: first=%+v second=%+v", first, second)
	}

	w := api.do(http.MethodPost, "/captures", `{"mode_of_payment":"Mada","amount":"21"}`, hdr...)
	assertError(t, w, http.StatusConflict, ErrCodeIdempotencyReused)

	// The body field is honoured when no header is sent.
	w = api.do(http.MethodPost, "/captures", `{"mode_of_payment":"Mada","amount":"20","idempotency_key":"pos-7-0001"}`, middleware.HeaderActor, "cashier-1")
	if got := decode[captureBody](t, w); !got.Replayed {
		t.Fatalf("body key should replay: %+v", got)
	}
}

func TestSessions_CreateAndStatus(t *testing.T) {
	api := newTestAPI(t)
	api.route("Mada", "simulator", nil)

	w := api.do(http.MethodPost, "/sessions", `{"mode_of_payment":"Mada","amount":"150.00"}`, middleware.HeaderIdempotencyKey, "s-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	created := decode[SessionCreatedResponse](t, w)
	if created.SessionID == "" || created.CorrelationToken == "" || created.Status != domain.StatusPending {
		t.Fatalf("created = %+v", created)
	}

	w = api.do(http.MethodPost, "/sessions", `{"mode_of_payment":"Mada","amount":"150.00"}`, middleware.HeaderIdempotencyKey, "s-1")
	if again := decode[SessionCreatedResponse](t, w); w.Code != http.StatusOK || again.CorrelationToken != created.CorrelationToken {
		t.Fatalf("repeat: %d %+v", w.Code, again)
	}

	st := decode[SessionStatusResponse](t, api.do(http.MethodGet, "/sessions/"+created.CorrelationToken, nil))
	if !st.Found || st.Status != domain.StatusPending || st.SessionID != created.SessionID {
		t.Fatalf("status = %+v", st)
	}

	w = api.do(http.MethodGet, "/sessions/unknown-token", nil)
	if st := decode[SessionStatusResponse](t, w); w.Code != http.StatusOK || st.Found || st.Status != "" {
		t.Fatalf("unknown token: %d %+v", w.Code, st)
	}

	w = api.do(http.MethodPost, "/sessions", `{"mode_of_payment":"Unrouted","amount":"1"}`)
	assertError(t, w, http.StatusUnprocessableEntity, ErrCodeNotConfigured)
}
