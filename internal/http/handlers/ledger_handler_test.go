package handlers

import (
	"net/http"
	"strings"
	"testing"
)

func TestLogTransaction(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/transactions", `{"status":"approved","amount":"75.25","mode_of_payment":"Mada","rrn":"R-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("log: %d %s", w.Code, w.Body.String())
	}
	got := decode[TransactionLoggedResponse](t, w)
	if got.TransactionID == "" || got.Status != "Approved" {
		t.Fatalf("logged = %+v", got)
	}

	assertError(t, api.do(http.MethodPost, "/transactions", `[1,2]`), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestLogTransaction_SecondRowForSessionConflicts(t *testing.T) {
	api := newTestAPI(t)
	token := pendingSession(t, api)
	body := `{"status":"declined","amount":"150","session_token":"` + token + `"}`

	if w := api.do(http.MethodPost, "/transactions", body); w.Code != http.StatusCreated {
		t.Fatalf("first: %d %s", w.Code, w.Body.String())
	}
	assertError(t, api.do(http.MethodPost, "/transactions", body), http.StatusConflict, ErrCodeAlreadyLogged)
}

func TestListTransactions_PaginationAndETag(t *testing.T) {
	api := newTestAPI(t)
	for _, body := range []string{
		`{"status":"approved","amount":"1","mode_of_payment":"Mada","reference_name":"SINV-1"}`,
		`{"status":"approved","amount":"2","mode_of_payment":"Mada","reference_name":"SINV-1"}`,
		`{"status":"declined","amount":"3","mode_of_payment":"Visa","reference_name":"SINV-2"}`,
	} {
		if w := api.do(http.MethodPost, "/transactions", body); w.Code != http.StatusCreated {
			t.Fatalf("seed: %d", w.Code)
		}
	}

	w := api.do(http.MethodGet, "/transactions?mode_of_payment=Mada&page=1&page_size=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	resp := decode[ListTransactionsResponse](t, w)
	if len(resp.Transactions) != 1 || resp.Pagination.Total != 2 || resp.Pagination.TotalPages != 2 || !resp.Pagination.HasNext {
		t.Fatalf("page = %+v", resp.Pagination)
	}
	etag := w.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"tx:2:`) {
		t.Fatalf("etag = %q", etag)
	}

	if w := api.do(http.MethodGet, "/transactions?mode_of_payment=Mada&page=1&page_size=1", nil, "If-None-Match", etag); w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}
	// A different page has a different tag.
	if w := api.do(http.MethodGet, "/transactions?mode_of_payment=Mada&page=2&page_size=1", nil, "If-None-Match", etag); w.Code != http.StatusOK {
		t.Fatalf("page 2 should not match, got %d", w.Code)
	}

	// page_size is capped at 100 and garbage falls back to defaults.
	resp = decode[ListTransactionsResponse](t, api.do(http.MethodGet, "/transactions?page=x&page_size=1000", nil))
	if resp.Pagination.Page != 1 || resp.Pagination.PageSize != 100 || resp.Pagination.Total != 3 {
		t.Fatalf("clamped = %+v", resp.Pagination)
	}
}

func TestApprovalCheck(t *testing.T) {
	api := newTestAPI(t)
	api.route("Mada", "simulator", nil)
	rows := `{"payments":[{"mode_of_payment":"Mada","amount":"150.00"}]}`

	e := assertError(t, api.do(http.MethodPost, "/invoices/SINV-1/approval-check", rows), http.StatusUnprocessableEntity, ErrCodeApprovalRequired)
	want := "Terminal approval is required for Mode of Payment 'Mada' (Amount: 150.00). " +
		"Capture and log an Approved terminal transaction before submitting."
	if e.Message != want {
		t.Fatalf("message = %q", e.Message)
	}

	capture := `{"mode_of_payment":"Mada","amount":"150.00","reference_doctype":"Sales Invoice","reference_name":"SINV-1"}`
	if got := decode[captureBody](t, api.do(http.MethodPost, "/captures", capture)); got.TransactionID == "" {
		t.Fatalf("approved capture should be logged: %+v", got)
	}

	w := api.do(http.MethodPost, "/invoices/SINV-1/approval-check", rows)
	if w.Code != http.StatusOK || !decode[ApprovalCheckResponse](t, w).Approved {
		t.Fatalf("after approval: %d %s", w.Code, w.Body.String())
	}
	assertError(t, api.do(http.MethodPost, "/invoices/SINV-1/approval-check", `{"payments":`), http.StatusBadRequest, ErrCodeBadRequest)
}
