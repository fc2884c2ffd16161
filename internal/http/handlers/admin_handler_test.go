package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
	"github.com/tbourn/card-terminal-gateway/internal/drivers"
	"github.com/tbourn/card-terminal-gateway/internal/services"
)

func TestDrivers_ListAndUpsert(t *testing.T) {
	api := newTestAPI(t)

	list := decode[DriverListResponse](t, api.do(http.MethodGet, "/drivers", nil))
	codes := map[string]bool{}
	for _, d := range list.Drivers {
		codes[d.Code] = true
	}
	for _, want := range []string{"simulator", "generic_rest", "local_bridge", "network_tcp", "mqtt_async_bridge", "android_mada_mqtt", "stripe_terminal_sdk"} {
		if !codes[want] {
			t.Fatalf("catalog misses %s: %+v", want, codes)
		}
	}

	w := api.do(http.MethodPut, "/drivers/lane_sim", `{"name":"Lane simulator","handler":"simulator","sort_order":5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("upsert: %d %s", w.Code, w.Body.String())
	}
	d := decode[domain.DriverDescriptor](t, w)
	if d.Code != "lane_sim" || d.Mode != string(drivers.ModeSync) || !d.Active {
		t.Fatalf("entry = %+v", d)
	}

	assertError(t, api.do(http.MethodPut, "/drivers/ghost", `{"name":"Ghost","handler":"ghost"}`), http.StatusUnprocessableEntity, ErrCodeNotConfigured)
	assertError(t, api.do(http.MethodPut, "/drivers/x", `{"handler":"simulator"}`), http.StatusBadRequest, ErrCodeBadRequest)

	// Deactivation hides the entry from the listing.
	if w := api.do(http.MethodPut, "/drivers/lane_sim", `{"name":"Lane simulator","handler":"simulator","active":false}`); w.Code != http.StatusOK {
		t.Fatalf("deactivate: %d", w.Code)
	}
	if strings.Contains(api.do(http.MethodGet, "/drivers", nil).Body.String(), "lane_sim") {
		t.Fatalf("inactive entry listed")
	}
}

func TestSettings_SecretsNeverReadBack(t *testing.T) {
	api := newTestAPI(t)
	body := `{"driver_code":"stripe_terminal_sdk","callback_secret":"hidden",` +
		`"config":{"stripe_public_key":"pk_test_1","stripe_secret_key":"sk_test_1","stripe_location_id":"tml_1"}}`

	w := api.do(http.MethodPut, "/settings/Front%20desk", body)
	if w.Code != http.StatusOK {
		t.Fatalf("put: %d %s", w.Code, w.Body.String())
	}
	for _, r := range []string{w.Body.String(), api.do(http.MethodGet, "/settings/Front%20desk", nil).Body.String()} {
		if strings.Contains(r, "hidden") || strings.Contains(r, "sk_test_1") || !strings.Contains(r, services.Redacted) {
			t.Fatalf("secrets leaked or not masked: %s", r)
		}
	}

	cc := decode[map[string]any](t, api.do(http.MethodGet, "/settings/Front%20desk/client-config", nil))
	if cc["public_key"] != "pk_test_1" || cc["location_id"] != "tml_1" {
		t.Fatalf("client config = %v", cc)
	}

	assertError(t, api.do(http.MethodGet, "/settings/nope", nil), http.StatusNotFound, ErrCodeNotFound)
	assertError(t, api.do(http.MethodPut, "/settings/Bad", `{"driver_code":"missing"}`), http.StatusUnprocessableEntity, ErrCodeNotConfigured)
	assertError(t, api.do(http.MethodPut, "/settings/Bad", `{"timeout_seconds":-1}`), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestTestConnection(t *testing.T) {
	api := newTestAPI(t)
	if w := api.do(http.MethodPut, "/settings/Sim", `{"driver_code":"simulator"}`); w.Code != http.StatusOK {
		t.Fatalf("put: %d", w.Code)
	}
	if w := api.do(http.MethodPut, "/settings/LAN", `{"provider":"Network TCP"}`); w.Code != http.StatusOK {
		t.Fatalf("put: %d", w.Code)
	}

	res := decode[drivers.ConnectivityResult](t, api.do(http.MethodPost, "/settings/Sim/test", nil))
	if !res.OK || res.Message != "Simulator ready." {
		t.Fatalf("simulator = %+v", res)
	}
	w := api.do(http.MethodPost, "/settings/LAN/test", nil)
	if res := decode[drivers.ConnectivityResult](t, w); w.Code != http.StatusOK || res.OK {
		t.Fatalf("failed probes are 200 with ok=false: %d %+v", w.Code, res)
	}
	assertError(t, api.do(http.MethodPost, "/settings/nope/test", nil), http.StatusNotFound, ErrCodeNotFound)
}

func TestPutModeOfPayment(t *testing.T) {
	api := newTestAPI(t)

	assertError(t, api.do(http.MethodPut, "/modes-of-payment/Mada", `{"settings_name":"missing"}`), http.StatusNotFound, ErrCodeNotFound)
	if w := api.do(http.MethodPut, "/modes-of-payment/Cash", `{}`); w.Code != http.StatusNoContent {
		t.Fatalf("unrouted mode: %d %s", w.Code, w.Body.String())
	}
	assertError(t, api.do(http.MethodPut, "/modes-of-payment/Cash", `not json`), http.StatusBadRequest, ErrCodeBadRequest)
}
