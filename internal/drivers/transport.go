package drivers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tbourn/card-terminal-gateway/internal/domain"
)

// HTTPClient is the outbound client used by the HTTP based drivers. Tests
// replace it with an httptest server client.
var HTTPClient = &http.Client{}

// maxResponseBytes caps how much of a vendor response is read.
const maxResponseBytes = 1 << 20

// DoJSON sends body (when non-nil) as JSON and decodes the response.
// obj is set when the response is a JSON object; otherwise raw holds the
// decoded value (or the raw text when it is not JSON). A non-2xx status is
// an error.
func DoJSON(ctx context.Context, method, url string, body any, timeout time.Duration) (obj map[string]any, raw any, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, string(data), fmt.Errorf("%s %s: unexpected status %d", method, url, resp.StatusCode)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, nil
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, string(data), nil
	}
	if m, ok := decoded.(map[string]any); ok {
		return m, decoded, nil
	}
	return nil, decoded, nil
}

// SyncResult turns a vendor response object into a result. The status key
// is read as-is ("Approved", "DECLINED", ...). A synchronous capture must end
// in a verdict, so anything other than APPROVED, DECLINED or ERROR (unknown
// values, a terminal-side cancel, a pending acknowledgement) becomes ERROR
// with the vendor response kept.
func SyncResult(mode Mode, resp map[string]any) CaptureResult {
	raw, _ := resp["status"].(string)
	st, ok := domain.ParseStatus(raw)
	switch {
	case !ok:
		res := Failed(mode, fmt.Sprintf("Unrecognized status %q from endpoint.", raw))
		res.Response = resp
		return res
	case st != domain.StatusApproved && st != domain.StatusDeclined && st != domain.StatusError:
		res := Failed(mode, fmt.Sprintf("Endpoint reported %q instead of a verdict.", raw))
		res.Response = resp
		return res
	}
	msg, _ := resp["message"].(string)
	if msg == "" {
		msg, _ = resp["response_message"].(string)
	}
	return CaptureResult{Status: st, Mode: mode, Message: msg, Response: resp}
}
