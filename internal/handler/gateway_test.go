package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/synk/synk-server-go/internal/gateway"
)

func TestGatewayHandler_CheckOrigin(t *testing.T) {
	hub := gateway.NewHub(gateway.DefaultOptions())
	defer hub.Close()

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"empty allowlist accepts any origin", nil, "https://evil.example", true},
		{"listed origin accepted", []string{"https://app.synk.io"}, "https://app.synk.io", true},
		{"match ignores case", []string{" https://App.Synk.io "}, "https://app.synk.io", true},
		{"unlisted origin rejected", []string{"https://app.synk.io"}, "https://evil.example", false},
		{"missing origin rejected", []string{"https://app.synk.io"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewGatewayHandler(hub, tt.allowed)
			req := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.upgrader.CheckOrigin(req))
		})
	}
}
