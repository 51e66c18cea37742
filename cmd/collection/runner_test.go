package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/movieflix/internal/config"
	"github.com/iliyamo/movieflix/internal/database"
	"github.com/iliyamo/movieflix/internal/logger"
	"github.com/iliyamo/movieflix/internal/router"
	"github.com/iliyamo/movieflix/internal/session"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		DBDriver:       "sqlite",
		DBPath:         ":memory:",
		JWTSecret:      "cli-test-secret",
		AccessTTLMin:   60,
		RefreshTTLDays: 30,
		BcryptCost:     bcrypt.MinCost,
		PageSize:       20,
		MaxPageSize:    100,
	}
	db, err := database.Open(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(router.New(router.Deps{Cfg: cfg, DB: db, Sessions: session.NewMemoryStore(), Log: logger.Nop()}))
	t.Cleanup(func() {
		srv.Close()
		_ = database.Close(db)
	})
	return srv
}

type harness struct {
	t     *testing.T
	url   string
	creds string
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	r := NewRunner(RunnerOpts{Output: &out, Logger: log.New(io.Discard)})
	full := append([]string{"collection", "--server", h.url, "--credentials", h.creds}, args...)
	err := r.App().Run(context.Background(), full)
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner(RunnerOpts{})
	if r.logger == nil || r.output == nil || r.httpClient == nil || r.now == nil {
		t.Errorf("defaults not filled: %+v", r)
	}
}

func TestCollectionCommands(t *testing.T) {
	srv := newServer(t)
	h := &harness{t: t, url: srv.URL, creds: filepath.Join(t.TempDir(), "movieflix", "credentials.json")}

	if _, err := h.run("list"); err == nil || !strings.Contains(err.Error(), "not signed in") {
		t.Fatalf("list before login = %v", err)
	}

	out := h.mustRun("signup", "--name", "Paul", "--email", "paul@arrakis.io", "--password", "secret1")
	if !strings.Contains(out, "Account created for paul@arrakis.io") {
		t.Errorf("signup output = %q", out)
	}
	out = h.mustRun("login", "--email", "paul@arrakis.io", "--password", "secret1")
	if !strings.Contains(out, "Signed in as Paul") {
		t.Errorf("login output = %q", out)
	}
	if out := h.mustRun("whoami"); !strings.Contains(out, "Paul <paul@arrakis.io>") {
		t.Errorf("whoami output = %q", out)
	}

	out = h.mustRun("add", "--title", "Dune", "--type", "movie", "--genre", "Sci-Fi", "--year", "2021",
		"--rating", "8.5", "--description", "Arrakis", "--director", "Denis Villeneuve", "--duration", "155",
		"--budget", "165000000", "--location", "Cinema")
	if !strings.Contains(out, "Added #1 Dune") {
		t.Fatalf("add output = %q", out)
	}

	out = h.mustRun("list", "--theme", "light")
	for _, want := range []string{"Dune", "8.5/10", "2h 35m", "1 entry", "End of collection"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}

	if out := h.mustRun("edit", "--rating", "9", "--location", "", "1"); !strings.Contains(out, "Updated #1 Dune") {
		t.Errorf("edit output = %q", out)
	}
	out = h.mustRun("show", "1")
	if !strings.Contains(out, "9.0/10") || !strings.Contains(out, "$165,000,000") || strings.Contains(out, "Cinema") {
		t.Errorf("show after edit:\n%s", out)
	}

	_, err := h.run("add", "--title", "Old", "--genre", "Silent", "--year", "1899", "--rating", "7",
		"--description", "x", "--director", "y", "--duration", "0")
	if err == nil || !strings.Contains(err.Error(), "Validation failed") ||
		!strings.Contains(err.Error(), "releaseYear must be between 1900") ||
		!strings.Contains(err.Error(), "duration must be at least 1") {
		t.Errorf("invalid add = %v", err)
	}

	if _, err := h.run("show", "abc"); err == nil || !strings.Contains(err.Error(), "invalid entry id") {
		t.Errorf("show abc = %v", err)
	}
	if _, err := h.run("list", "--theme", "neon"); err == nil || !strings.Contains(err.Error(), "unknown theme") {
		t.Errorf("list --theme neon = %v", err)
	}

	if out := h.mustRun("delete", "1"); !strings.Contains(out, "Deleted #1 Dune") {
		t.Errorf("delete output = %q", out)
	}
	if _, err := h.run("delete", "1"); err == nil || err.Error() != "Entry not found" {
		t.Errorf("second delete = %v", err)
	}
	if out := h.mustRun("list", "--all"); !strings.Contains(out, "No entries yet") {
		t.Errorf("list after delete:\n%s", out)
	}

	if out := h.mustRun("logout"); !strings.Contains(out, "Signed out") {
		t.Errorf("logout output = %q", out)
	}
	if creds, err := loadCredentials(h.creds); err != nil || creds != nil {
		t.Errorf("credentials after logout = %+v, %v", creds, err)
	}
	if _, err := h.run("whoami"); err == nil {
		t.Error("whoami after logout succeeded")
	}
}

func TestExpiredTokenIsRefreshed(t *testing.T) {
	srv := newServer(t)
	h := &harness{t: t, url: srv.URL, creds: filepath.Join(t.TempDir(), "credentials.json")}
	h.mustRun("signup", "--name", "Chani", "--email", "chani@arrakis.io", "--password", "secret1")
	h.mustRun("login", "--email", "chani@arrakis.io", "--password", "secret1")

	creds, err := loadCredentials(h.creds)
	if err != nil || creds == nil {
		t.Fatalf("load = %+v, %v", creds, err)
	}
	oldRefresh := creds.RefreshToken
	creds.ExpiresAt = time.Now().Add(-time.Hour)
	if err := saveCredentials(h.creds, creds); err != nil {
		t.Fatal(err)
	}

	if out := h.mustRun("whoami"); !strings.Contains(out, "chani@arrakis.io") {
		t.Errorf("whoami = %q", out)
	}
	after, err := loadCredentials(h.creds)
	if err != nil || after.RefreshToken == oldRefresh || after.Expired(time.Now()) {
		t.Errorf("credentials not refreshed: %+v, %v", after, err)
	}

	// the rotated-out refresh token no longer works
	after.ExpiresAt = time.Now().Add(-time.Hour)
	after.RefreshToken = oldRefresh
	if err := saveCredentials(h.creds, after); err != nil {
		t.Fatal(err)
	}
	if _, err := h.run("whoami"); err == nil || !strings.Contains(err.Error(), "session expired") {
		t.Errorf("whoami with stale refresh = %v", err)
	}
}

func TestCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "creds.json")
	if c, err := loadCredentials(path); c != nil || err != nil {
		t.Fatalf("missing file = %+v, %v", c, err)
	}
	want := &Credentials{Server: "http://x", Token: "t", ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := saveCredentials(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := loadCredentials(path)
	if err != nil || got.Token != "t" || !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("round trip = %+v, %v", got, err)
	}
	if got.Expired(time.Date(2029, 12, 31, 23, 58, 0, 0, time.UTC)) {
		t.Error("expired two minutes early")
	}
	if !got.Expired(time.Date(2029, 12, 31, 23, 59, 30, 0, time.UTC)) {
		t.Error("not expired inside the last minute")
	}
	if err := removeCredentials(path); err != nil {
		t.Fatal(err)
	}
	if err := removeCredentials(path); err != nil {
		t.Errorf("second remove = %v", err)
	}
}
