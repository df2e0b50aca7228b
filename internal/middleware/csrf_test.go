package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/dhartley/toolshed/internal/auth"
)

func csrfHandler() http.Handler {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return CSRFProtection(logger)(okHandler())
}

func TestCSRF_ReadsPassThrough(t *testing.T) {
	req := httptest.NewRequest("GET", "/users", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()

	csrfHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GET should bypass CSRF checks, got %d", w.Code)
	}
}

func TestCSRF_NoSessionCookiePassesThrough(t *testing.T) {
	// Bearer-authenticated and anonymous requests carry no ambient
	// credential, so cross-site forgery has nothing to ride on.
	req := httptest.NewRequest("POST", "/auth/login", nil)
	w := httptest.NewRecorder()

	csrfHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("request without session cookie should pass, got %d", w.Code)
	}
}

func TestCSRF_MissingToken(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()

	csrfHandler().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for missing token, got %d", w.Code)
	}
}

func TestCSRF_TokenMismatch(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "sess-1"})
	req.AddCookie(&http.Cookie{Name: auth.CSRFCookieName, Value: "aaaa"})
	req.Header.Set("X-CSRF-Token", "bbbb")
	w := httptest.NewRecorder()

	csrfHandler().ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for mismatched token, got %d", w.Code)
	}
}

func TestCSRF_ValidDoubleSubmit(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "sess-1"})
	req.AddCookie(&http.Cookie{Name: auth.CSRFCookieName, Value: "cafe1234"})
	req.Header.Set("X-CSRF-Token", "cafe1234")
	w := httptest.NewRecorder()

	csrfHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for matching tokens, got %d", w.Code)
	}
}
