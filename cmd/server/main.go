package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/nathsir75/mmap/internal/config"
	"github.com/nathsir75/mmap/internal/hosttoken"
	mw "github.com/nathsir75/mmap/internal/middleware"
	"github.com/nathsir75/mmap/internal/mindmap"
	"github.com/nathsir75/mmap/internal/preview"
	"github.com/nathsir75/mmap/internal/session"
	"github.com/nathsir75/mmap/internal/store"
	"github.com/nathsir75/mmap/internal/workspace"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	ws := workspace.NewStore(kv, slog.Default())
	if _, err := ws.Load(ctx); err != nil {
		slog.Error("load workspace", "error", err)
		os.Exit(1)
	}

	origins := strings.Split(cfg.AllowedOrigins, ",")
	mw.SetAllowedOrigins(origins)

	renderer := &preview.Renderer{DecodeImages: true}
	hub := session.NewHub(session.Deps{
		Store:   ensuringStore{ws},
		Loader:  preview.Loader{},
		Preview: renderer.Render,
		Logger:  slog.Default(),
	}, origins)

	tokenSvc := hosttoken.NewService(cfg.TokenSecret)

	workspaceHandler := workspace.NewHandler(ws, hub.Preview)
	mindmapHandler := mindmap.NewHandler(mindmap.NewManager(kv, slog.Default()),
		func(ctx context.Context, pageID string) {
			// node pages may never have joined the workspace tree
			if err := ws.DeletePage(ctx, pageID); err != nil && !errors.Is(err, workspace.ErrNotFound) {
				slog.Warn("drop node page", "page", pageID, "error", err)
			}
		})

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS)

	// The host shell fetches one token at startup and attaches it to every
	// later call.
	r.HandleFunc("/auth/session", func(w http.ResponseWriter, r *http.Request) {
		token, sessionID, err := tokenSvc.Issue()
		if err != nil {
			slog.Error("issue token", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"token":%q,"sessionId":%q}`, token, sessionID)
	}).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(tokenSvc.Middleware)
	workspaceHandler.Register(api)
	mindmapHandler.Register(api)

	// WebSocket endpoint; the token travels as a query param because
	// browsers cannot set headers on websocket upgrades.
	r.Handle("/ws/pages/{pageID}", tokenSvc.Middleware(hub))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Close sessions first so every dirty page flushes
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := hub.Shutdown(shutdownCtx); err != nil {
			slog.Error("hub shutdown", "error", err)
		}
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "store", cfg.StoreDriver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// ensuringStore registers pages in the workspace tree the first time a
// session opens them, so pages reached through a mindmap node always have a
// metadata row.
type ensuringStore struct {
	*workspace.Store
}

func (s ensuringStore) LoadPage(ctx context.Context, pageID string) ([]byte, error) {
	if err := s.EnsurePage(ctx, pageID); err != nil {
		slog.Warn("ensure page", "page", pageID, "error", err)
	}
	return s.Store.LoadPage(ctx, pageID)
}

func openStore(ctx context.Context, cfg *config.Config) (store.KV, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return store.OpenSQLite(cfg.SQLitePath)
	case "postgres":
		return store.OpenPostgres(ctx, cfg.DatabaseURL)
	case "memory":
		return store.NewMem(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
