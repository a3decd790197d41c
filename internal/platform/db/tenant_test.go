package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestExtractTenantID(t *testing.T) {
	tests := []struct {
		name     string
		jwtValue interface{}
		header   string
		query    string
		want     string
	}{
		{
			name:     "token claim wins over everything",
			jwtValue: "sunrise_care",
			header:   "oakwood_home",
			query:    "maple_grove",
			want:     "sunrise_care",
		},
		{
			name:   "header wins over query",
			header: "oakwood_home",
			query:  "maple_grove",
			want:   "oakwood_home",
		},
		{
			name:  "query param when nothing else set",
			query: "maple_grove",
			want:  "maple_grove",
		},
		{
			name: "default agency as last resort",
			want: "default",
		},
		{
			name:     "empty claim falls through to header",
			jwtValue: "",
			header:   "oakwood_home",
			want:     "oakwood_home",
		},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/v1/elders"
			if tt.query != "" {
				target += "?tenant_id=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("X-Tenant-ID", tt.header)
			}
			c := e.NewContext(req, httptest.NewRecorder())
			if tt.jwtValue != nil {
				c.Set("jwt_tenant_id", tt.jwtValue)
			}

			if got := extractTenantID(c, "default"); got != tt.want {
				t.Errorf("extractTenantID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTenantIDPattern(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"sunrise_care", true},
		{"oakwood_home", true},
		{"agency42", true},
		{"A1B2", true},
		{"a", true},
		{"sunrise-care", false},
		{"sunrise.care", false},
		{"sunrise care", false},
		{"'; DROP TABLE elders", false},
		{"agency/42", false},
		{"agency@42", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := tenantIDPattern.MatchString(tt.id); got != tt.valid {
			t.Errorf("tenantIDPattern.MatchString(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}

// Schema names are interpolated into DDL, so anything that fails the
// pattern must be rejected before any SQL runs.
func TestCreateTenantSchema_RejectsInvalidID(t *testing.T) {
	for _, id := range []string{"sunrise-care", "agency.one", "drop;table", "a b", ""} {
		if err := CreateTenantSchema(context.Background(), nil, id, ""); err == nil {
			t.Errorf("CreateTenantSchema(%q) did not reject the identifier", id)
		}
	}
}

func TestWithTenantConn_RejectsInvalidID(t *testing.T) {
	if _, _, err := WithTenantConn(context.Background(), nil, "sunrise-care"); err == nil {
		t.Error("WithTenantConn accepted an invalid identifier")
	}
}

func TestTenantFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TenantIDKey, "sunrise_care")
	if got := TenantFromContext(ctx); got != "sunrise_care" {
		t.Errorf("TenantFromContext() = %q, want sunrise_care", got)
	}
	if got := TenantFromContext(context.Background()); got != "" {
		t.Errorf("TenantFromContext() on empty context = %q, want empty", got)
	}
	wrongType := context.WithValue(context.Background(), TenantIDKey, 42)
	if got := TenantFromContext(wrongType); got != "" {
		t.Errorf("TenantFromContext() with non-string value = %q, want empty", got)
	}
}

func TestConnFromContext(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Error("ConnFromContext() on empty context should be nil")
	}
	wrongType := context.WithValue(context.Background(), DBConnKey, "not-a-conn")
	if conn := ConnFromContext(wrongType); conn != nil {
		t.Error("ConnFromContext() with non-conn value should be nil")
	}
}

func TestTxFromContext(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("TxFromContext() on empty context should be nil")
	}
	wrongType := context.WithValue(context.Background(), TxKey, "not-a-tx")
	if tx := TxFromContext(wrongType); tx != nil {
		t.Error("TxFromContext() with non-tx value should be nil")
	}
}

func TestNewTxRunner(t *testing.T) {
	if r := NewTxRunner(nil); r == nil {
		t.Fatal("NewTxRunner returned nil")
	}
}
