package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type listRequest struct {
	Limit int    `query:"limit" default:"20" validate:"gte=1,lte=100"`
	Venue string `query:"venue" validate:"omitempty,oneof=MEXC BYBIT"`
}

func bindQuery(t *testing.T, query string) (listRequest, []ValidationError) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?"+query, nil), httptest.NewRecorder())
	var req listRequest
	errs := ReadAndValidateRequest(c, &req)
	return req, errs
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	req, errs := bindQuery(t, "")
	if errs != nil {
		t.Fatalf("unexpected errors %v", errs)
	}
	if req.Limit != 20 {
		t.Fatalf("expected default limit 20, got %d", req.Limit)
	}
}

func TestReadAndValidateRequestReportsQueryName(t *testing.T) {
	_, errs := bindQuery(t, "limit=500&venue=KRAKEN")
	if len(errs) != 2 {
		t.Fatalf("expected two errors, got %v", errs)
	}
	fields := map[string]string{}
	for _, e := range errs {
		fields[e.Field] = e.Code
	}
	if fields["limit"] != "ERR_LTE" || fields["venue"] != "ERR_ONEOF" {
		t.Fatalf("unexpected errors %v", errs)
	}
}
