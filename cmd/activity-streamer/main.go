package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/a-h/templ"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/planhub/planhub/internal/app/activity"
	"github.com/planhub/planhub/internal/contracts"
	"github.com/planhub/planhub/internal/platform/auth"
	"github.com/planhub/planhub/internal/platform/config"
	"github.com/planhub/planhub/internal/platform/dbpool"
	"github.com/planhub/planhub/internal/platform/env"
	"github.com/planhub/planhub/internal/platform/metrics"
	"github.com/planhub/planhub/internal/platform/natsutil"
	"github.com/planhub/planhub/internal/realtime"
	"github.com/planhub/planhub/services/frontend"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	pool, err := dbpool.New(runCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	activityRepo := activity.NewPostgresRepository(pool)
	if err := waitForSchema(runCtx, 30*time.Second, activityRepo.EnsureSchema); err != nil {
		log.Fatal(err)
	}

	client, err := natsutil.ConnectJetStreamWithRetry(cfg.NATSURL, env.Duration("NATS_CONNECT_TIMEOUT", 20*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	tokenTTL := env.Duration("ACCESS_TOKEN_TTL", time.Hour)
	authManager := auth.NewManager(cfg.JWTSecret, tokenTTL)
	hub := realtime.NewHub(realtime.JetStreamSubscriber(client.JS), activityRepo)
	wsHandler := realtime.NewHandler(hub, authManager, cfg.UIOrigin)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/static/", http.StripPrefix("/static/", frontend.StaticHandler()))
	mux.Handle("/login", templ.Handler(frontend.LoginPage()))
	mux.Handle("/setup", templ.Handler(frontend.SetupPage()))
	mux.Handle("/workspace", templ.Handler(frontend.WorkspacePage()))
	mux.Handle("/wizard", templ.Handler(frontend.WizardPage()))
	mux.Handle("/", http.RedirectHandler("/workspace", http.StatusFound))
	mux.Handle("/api/v1/activities", activitiesHandler(authManager, activityRepo))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReadiness(r.Context(), pool, client.Conn); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.DefaultHandler())

	// No WriteTimeout: websocket connections outlive any sane deadline.
	server := &http.Server{
		Addr:              cfg.StreamerAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	fmt.Printf("Activity streamer listening on %s\n", cfg.StreamerAddr)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("activity-streamer graceful shutdown failed: %v", err)
	}
}

// activitiesHandler serves the current feed snapshot over plain HTTP so
// clients can render before (or without) a websocket session.
func activitiesHandler(authManager auth.Manager, repo activity.Repository) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		claims, err := claimsFromRequest(authManager, r)
		if err != nil {
			http.Error(w, "invalid or missing token", http.StatusUnauthorized)
			return
		}
		workspaceID := r.URL.Query().Get("workspace_id")
		if workspaceID == "" {
			workspaceID = claims.WorkspaceID
		}
		if workspaceID == "" || workspaceID != claims.WorkspaceID {
			http.Error(w, "workspace not selected for this token", http.StatusForbidden)
			return
		}
		feed, err := repo.ListFeed(r.Context(), workspaceID)
		if err != nil {
			log.Printf("list feed for workspace %s: %v", workspaceID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if feed == nil {
			feed = []contracts.ActivityEvent{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"activities": feed})
	})
}

func claimsFromRequest(authManager auth.Manager, r *http.Request) (auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	if token == "" {
		return auth.Claims{}, errors.New("missing token")
	}
	return authManager.Parse(token)
}

func waitForSchema(ctx context.Context, timeout time.Duration, ensure ...func(context.Context) error) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = nil
		for _, fn := range ensure {
			if lastErr = fn(attemptCtx); lastErr != nil {
				break
			}
		}
		cancel()
		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for schema readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}

func checkReadiness(ctx context.Context, pool *pgxpool.Pool, conn *nats.Conn) error {
	if conn == nil {
		return errors.New("nats connection is nil")
	}
	if conn.Status() != nats.CONNECTED {
		return fmt.Errorf("nats is not connected: %s", conn.Status().String())
	}

	checkCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
	defer cancel()
	if err := pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
