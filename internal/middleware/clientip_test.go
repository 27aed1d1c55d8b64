package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr with port", "10.0.0.1:5555", nil, false, "10.0.0.1"},
		{"ipv6 remote addr", "[2001:db8::1]:443", nil, false, "2001:db8::1"},
		{"mapped ipv4 is unmapped", "[::ffff:1.2.3.4]:80", nil, false, "1.2.3.4"},
		{"xff ignored without trust", "10.0.0.1:5555", map[string]string{"X-Forwarded-For": "1.2.3.4"}, false, "10.0.0.1"},
		{"xff first hop", "10.0.0.1:5555", map[string]string{"X-Forwarded-For": " 1.2.3.4 , 10.0.0.2"}, true, "1.2.3.4"},
		{"x-real-ip", "10.0.0.1:5555", map[string]string{"X-Real-IP": "5.6.7.8"}, true, "5.6.7.8"},
		{"garbage xff falls through", "10.0.0.1:5555", map[string]string{"X-Forwarded-For": "unknown"}, true, "10.0.0.1"},
		{"unparseable remote", "pipe", nil, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ExtractClientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIP_Middleware(t *testing.T) {
	var got string
	handler := ClientIP(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetClientIP(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "9.9.9.9")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "9.9.9.9" {
		t.Errorf("GetClientIP() = %q, want 9.9.9.9", got)
	}
}
