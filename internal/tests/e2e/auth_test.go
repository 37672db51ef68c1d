//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/planthub/authapi/config"
	"github.com/planthub/authapi/internal/auth"
	"github.com/planthub/authapi/internal/db"
	"github.com/planthub/authapi/internal/server"
	"github.com/planthub/authapi/internal/services"
	"github.com/planthub/authapi/internal/store"
)

const (
	serverPort    = 18080
	adminEmail    = "admin@example.com"
	adminPassword = "ChangeMe123!"
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, cfg, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
		os.Exit(1)
	}
	terminate := func() { _ = container.Terminate(context.Background()) }

	if err := db.MigrateUp(db.DSN(cfg.Database)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		terminate()
		os.Exit(1)
	}

	if err := seedAdmin(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin: %v\n", err)
		terminate()
		os.Exit(1)
	}

	srv, err := server.New(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		terminate()
		os.Exit(1)
	}
	go func() {
		_ = srv.Start()
	}()

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		terminate()
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	terminate()
	os.Exit(code)
}

func TestSessionLifecycle(t *testing.T) {
	admin := newClient(t)
	if status, _ := admin.login(adminEmail, adminPassword); status != http.StatusOK {
		t.Fatalf("admin login status %d", status)
	}

	email := fmt.Sprintf("user_%d@example.com", time.Now().UnixNano())
	status, body := admin.do(http.MethodPost, "/users", map[string]string{
		"email":     email,
		"firstName": "Plant",
		"lastName":  "Keeper",
		"password":  "Secret123",
	})
	if status != http.StatusCreated {
		t.Fatalf("create user status %d: %s", status, body)
	}
	created := decodeUser(t, body)

	user := newClient(t)
	if status, body := user.login(email, "wrong-password"); status != http.StatusUnauthorized {
		t.Fatalf("wrong password status %d: %s", status, body)
	}
	_, unknownBody := user.login("nobody@example.com", "Secret123")
	_, wrongBody := user.login(email, "wrong-password")
	if unknownBody != wrongBody {
		t.Fatalf("login failures differ: %q vs %q", unknownBody, wrongBody)
	}

	if status, body := user.login(email, "Secret123"); status != http.StatusOK {
		t.Fatalf("login status %d: %s", status, body)
	}

	status, body = user.do(http.MethodGet, "/auth/me", nil)
	if status != http.StatusOK {
		t.Fatalf("me status %d: %s", status, body)
	}
	if me := decodeUser(t, body); me.ID != created.ID {
		t.Fatalf("me returned %q, want %q", me.ID, created.ID)
	}
	if strings.Contains(strings.ToLower(body), "password") {
		t.Fatalf("me response leaks password data: %s", body)
	}

	if status, _ := user.do(http.MethodGet, "/users", nil); status != http.StatusForbidden {
		t.Fatalf("user on admin route status %d, want 403", status)
	}

	status, body = user.do(http.MethodPatch, "/auth/me", map[string]string{"email": adminEmail})
	if status != http.StatusConflict {
		t.Fatalf("email conflict status %d: %s", status, body)
	}

	status, body = user.do(http.MethodPatch, "/auth/change-password", map[string]string{
		"currentPassword": "Secret123",
		"newPassword":     "NewSecret123",
	})
	if status != http.StatusOK {
		t.Fatalf("change password status %d: %s", status, body)
	}

	if status, body := user.do(http.MethodPost, "/auth/logout", nil); status != http.StatusOK {
		t.Fatalf("logout status %d: %s", status, body)
	}
	if status, _ := user.do(http.MethodGet, "/auth/me", nil); status != http.StatusUnauthorized {
		t.Fatalf("me after logout status %d, want 401", status)
	}

	if status, body := user.login(email, "NewSecret123"); status != http.StatusOK {
		t.Fatalf("login with new password status %d: %s", status, body)
	}

	if status, body := admin.do(http.MethodDelete, "/users/"+created.ID, nil); status != http.StatusOK {
		t.Fatalf("delete user status %d: %s", status, body)
	}
	if status, _ := user.do(http.MethodGet, "/auth/me", nil); status != http.StatusUnauthorized {
		t.Fatalf("me for deleted account status %d, want 401", status)
	}
	if status, _ := admin.do(http.MethodDelete, "/users/"+created.ID, nil); status != http.StatusNotFound {
		t.Fatalf("second delete status %d, want 404", status)
	}
}

type client struct {
	t    *testing.T
	http *http.Client
}

func newClient(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &client{t: t, http: &http.Client{Jar: jar, Timeout: 10 * time.Second}}
}

func (c *client) login(email, password string) (int, string) {
	return c.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
}

func (c *client) do(method, path string, payload any) (int, string) {
	c.t.Helper()

	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			c.t.Fatalf("encode payload: %v", err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		c.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, strings.TrimSpace(string(body))
}

type apiUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type userResponse struct {
	User apiUser `json:"user"`
}

func decodeUser(t *testing.T, body string) apiUser {
	t.Helper()
	var parsed userResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("decode user response: %v: %s", err, body)
	}
	if parsed.User.ID == "" {
		t.Fatalf("missing user id in response: %s", body)
	}
	return parsed.User
}

func startPostgres(ctx context.Context) (*postgres.PostgresContainer, config.Config, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("planthub_test"),
		postgres.WithUsername("planthub"),
		postgres.WithPassword("planthub"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, config.Config{}, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, config.Config{}, err
	}
	mapped, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, config.Config{}, err
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, config.Config{}, err
	}

	cfg := config.Config{
		ServerPort:  serverPort,
		Environment: "test",
		CORSOrigin:  "http://localhost:3000",
		Database: config.DatabaseConfig{
			Host:     host,
			Port:     port,
			User:     "planthub",
			Password: "planthub",
			DBName:   "planthub_test",
		},
		JWT: config.JWTConfig{
			AccessTokenSecret:  strings.Repeat("a", auth.MinSecretLength),
			RefreshTokenSecret: strings.Repeat("r", auth.MinSecretLength),
			AccessTokenTTL:     15 * time.Minute,
			RefreshTokenTTL:    7 * 24 * time.Hour,
		},
		Events: config.EventsConfig{Backend: "memory", Channel: "auth-events"},
	}
	return container, cfg, nil
}

func seedAdmin(ctx context.Context, cfg config.Config) error {
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	users := services.NewUserService(store.NewUserRepository(conn), auth.NewArgon2idHasher(), nil)
	_, _, err = users.EnsureAdmin(ctx, adminEmail, adminPassword)
	return err
}

func waitForHealth(ctx context.Context, url string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
