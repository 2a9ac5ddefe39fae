package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS_WildcardInDevelopment(t *testing.T) {
	h := CORS(DefaultCORSConfig())(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/products", nil)
	r.Header.Set("Origin", "https://anything.example")
	h.ServeHTTP(w, r)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowListedOrigin(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins: []string{"https://shop.example.se"},
		Environment:    "production",
	}
	h := CORS(cfg)(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/products", nil)
	r.Header.Set("Origin", "https://shop.example.se")
	h.ServeHTTP(w, r)

	assert.Equal(t, "https://shop.example.se", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))
}

func TestCORS_RejectsUnknownOriginInProduction(t *testing.T) {
	cfg := CORSConfig{
		AllowedOrigins: []string{"https://shop.example.se"},
		Environment:    "production",
	}
	h := CORS(cfg)(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/products", nil)
	r.Header.Set("Origin", "https://evil.example")
	h.ServeHTTP(w, r)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	h := CORS(DefaultCORSConfig())(next)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("OPTIONS", "/products", nil)
	r.Header.Set("Origin", "https://shop.example.se")
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, called)
}
