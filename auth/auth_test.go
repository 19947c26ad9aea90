package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/slidefetch/config"
	"github.com/use-agent/slidefetch/models"
	"github.com/use-agent/slidefetch/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSession(t *testing.T, baseURL string) *session.Session {
	t.Helper()
	s, err := session.New(config.SiteConfig{
		BaseURL:        baseURL,
		IdPHost:        "idp.example.com",
		RequestTimeout: 5 * time.Second,
	}, testLogger())
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return s
}

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{Mode: "strict", MaxRedirects: 5}
}

var testCreds = models.Credentials{Username: "operator@example.com", Password: "hunter2"}

// loginHandler responds to the login POST with success and the given
// cookie_redirect target.
func loginHandler(t *testing.T, redirect *string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("login endpoint hit with %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("login form parse: %v", err)
		}
		if got := r.PostFormValue("username"); got != testCreds.Username {
			t.Errorf("unexpected username in login form: %q", got)
		}
		if r.PostFormValue("redirect_to") == "" {
			t.Error("login form missing redirect_to")
		}
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			t.Error("login request missing XMLHttpRequest marker")
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.LoginResponse{
			Success: true,
			Data:    models.LoginData{CookieRedirect: *redirect},
		})
	}
}

func TestStrictLogin_RedirectChainAndMarker(t *testing.T) {
	var base string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body class="user-logged-in"></body></html>`)
	})
	redirect := new(string)
	mux.HandleFunc("/api/v1/user/login", loginHandler(t, redirect))
	mux.HandleFunc("/sso/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, base+"/", http.StatusFound)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	base = srv.URL
	*redirect = srv.URL + "/sso/start"

	a := NewStrict(testSession(t, srv.URL), config.SiteConfig{BaseURL: srv.URL, IdPHost: "idp.example.com"}, testAuthCfg(), testLogger())
	if err := a.Login(context.Background(), testCreds); err != nil {
		t.Fatalf("login should succeed, got %v", err)
	}
}

func TestStrictLogin_RejectedCredentials(t *testing.T) {
	var afterLogin atomic.Int32
	loginSeen := false

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if loginSeen {
			afterLogin.Add(1)
		}
	})
	mux.HandleFunc("/sso/", func(w http.ResponseWriter, r *http.Request) {
		afterLogin.Add(1)
	})
	mux.HandleFunc("/api/v1/user/login", func(w http.ResponseWriter, r *http.Request) {
		loginSeen = true
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":false}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewStrict(testSession(t, srv.URL), config.SiteConfig{BaseURL: srv.URL, IdPHost: "idp.example.com"}, testAuthCfg(), testLogger())
	err := a.Login(context.Background(), testCreds)
	if !errors.Is(err, models.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
	if n := afterLogin.Load(); n != 0 {
		t.Errorf("no requests should follow a rejected login, saw %d", n)
	}
}

func TestStrictLogin_MissingCookieRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/api/v1/user/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"data":{}}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewStrict(testSession(t, srv.URL), config.SiteConfig{BaseURL: srv.URL, IdPHost: "idp.example.com"}, testAuthCfg(), testLogger())
	if err := a.Login(context.Background(), testCreds); !errors.Is(err, models.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
}

func TestStrictLogin_TooManyRedirects(t *testing.T) {
	var base string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	redirect := new(string)
	mux.HandleFunc("/api/v1/user/login", loginHandler(t, redirect))
	mux.HandleFunc("/sso/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, base+"/sso/loop", http.StatusFound)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	base = srv.URL
	*redirect = srv.URL + "/sso/loop"

	a := NewStrict(testSession(t, srv.URL), config.SiteConfig{BaseURL: srv.URL, IdPHost: "idp.example.com"}, testAuthCfg(), testLogger())
	if err := a.Login(context.Background(), testCreds); !errors.Is(err, models.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed on redirect loop, got %v", err)
	}
}

func TestStrictLogin_RedirectWithoutLocation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	redirect := new(string)
	mux.HandleFunc("/api/v1/user/login", loginHandler(t, redirect))
	mux.HandleFunc("/sso/broken", func(w http.ResponseWriter, r *http.Request) {
		// 302 with no Location header.
		w.WriteHeader(http.StatusFound)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	*redirect = srv.URL + "/sso/broken"

	a := NewStrict(testSession(t, srv.URL), config.SiteConfig{BaseURL: srv.URL, IdPHost: "idp.example.com"}, testAuthCfg(), testLogger())
	if err := a.Login(context.Background(), testCreds); !errors.Is(err, models.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed on missing Location, got %v", err)
	}
}

func TestStrictLogin_UnexpectedStatusOnChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	redirect := new(string)
	mux.HandleFunc("/api/v1/user/login", loginHandler(t, redirect))
	mux.HandleFunc("/sso/error", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	*redirect = srv.URL + "/sso/error"

	a := NewStrict(testSession(t, srv.URL), config.SiteConfig{BaseURL: srv.URL, IdPHost: "idp.example.com"}, testAuthCfg(), testLogger())
	if err := a.Login(context.Background(), testCreds); !errors.Is(err, models.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed on 500, got %v", err)
	}
}

func TestStrictLogin_MarkerAbsent(t *testing.T) {
	var base string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body class="anonymous"></body></html>`)
	})
	redirect := new(string)
	mux.HandleFunc("/api/v1/user/login", loginHandler(t, redirect))
	mux.HandleFunc("/sso/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, base+"/", http.StatusFound)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	base = srv.URL
	*redirect = srv.URL + "/sso/start"

	a := NewStrict(testSession(t, srv.URL), config.SiteConfig{BaseURL: srv.URL, IdPHost: "idp.example.com"}, testAuthCfg(), testLogger())
	if err := a.Login(context.Background(), testCreds); !errors.Is(err, models.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed when marker is absent, got %v", err)
	}
}

func TestSimpleLogin_TrustsOK(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	redirect := new(string)
	mux.HandleFunc("/api/v1/user/login", loginHandler(t, redirect))
	mux.HandleFunc("/sso/start", func(w http.ResponseWriter, r *http.Request) {
		// No marker anywhere; simple mode does not check.
		fmt.Fprint(w, "ok")
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	*redirect = srv.URL + "/sso/start"

	a := NewSimple(testSession(t, srv.URL), config.SiteConfig{BaseURL: srv.URL, IdPHost: "idp.example.com"}, testLogger())
	if err := a.Login(context.Background(), testCreds); err != nil {
		t.Fatalf("simple login should trust a 200, got %v", err)
	}
}

func TestSimpleLogin_NonOKFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {})
	redirect := new(string)
	mux.HandleFunc("/api/v1/user/login", loginHandler(t, redirect))
	mux.HandleFunc("/sso/start", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	*redirect = srv.URL + "/sso/start"

	a := NewSimple(testSession(t, srv.URL), config.SiteConfig{BaseURL: srv.URL, IdPHost: "idp.example.com"}, testLogger())
	if err := a.Login(context.Background(), testCreds); !errors.Is(err, models.ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
}

// New dispatches on the configured mode; strict is the authoritative
// default, simple only on explicit request.
func TestNew_ModeSelection(t *testing.T) {
	s := testSession(t, "http://example.com")
	site := config.SiteConfig{BaseURL: "http://example.com", IdPHost: "idp.example.com"}

	if _, ok := New(s, site, config.AuthConfig{Mode: "strict"}, testLogger()).(*Strict); !ok {
		t.Error("strict mode should build *Strict")
	}
	if _, ok := New(s, site, config.AuthConfig{Mode: ""}, testLogger()).(*Strict); !ok {
		t.Error("unset mode should default to *Strict")
	}
	if _, ok := New(s, site, config.AuthConfig{Mode: "simple"}, testLogger()).(*Simple); !ok {
		t.Error("simple mode should build *Simple")
	}
}
