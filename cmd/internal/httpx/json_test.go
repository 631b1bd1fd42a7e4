package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWriteError_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusNotFound, "not_found", "task not found or access denied")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control = %q", got)
	}

	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "not_found" || body.Error.Message != "task not found or access denied" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestWriteRateLimited_RetryAfter(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteRateLimited(rr, 90*time.Second)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got != "90" {
		t.Fatalf("Retry-After = %q", got)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
	}

	cases := []struct {
		name    string
		body    string
		max     int64
		wantErr bool
	}{
		{"ok", `{"title":"x"}`, 0, false},
		{"unknown field", `{"title":"x","ownerId":"u2"}`, 0, true},
		{"trailing data", `{"title":"x"}{"title":"y"}`, 0, true},
		{"too large", `{"title":"` + strings.Repeat("a", 64) + `"}`, 16, true},
		{"not json", `title=x`, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst payload
			err := DecodeJSON(httptest.NewRecorder(), r, tc.max, &dst)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	var dst map[string]any
	if err := DecodeJSON(httptest.NewRecorder(), r, 0, &dst); err == nil {
		t.Fatalf("expected error for empty body")
	}
}
