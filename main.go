package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func handleSessions(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.List())
	}
}

func handleStats(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := ledger.WinCounts(r.Context())
		if err != nil {
			logError("handleStats", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, counts)
	}
}

func handleGame(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := ledger.GamePlayers(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			logError("handleGame", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "game unavailable"})
			return
		}
		if len(rows) == 0 {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "game not found"})
			return
		}
		results := make([]PlayerResult, 0, len(rows))
		for _, row := range rows {
			results = append(results, row.result())
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func handleHealth(ledger *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		status, ledgerStatus := http.StatusOK, "ok"
		if err := ledger.db.PingContext(ctx); err != nil {
			logError("handleHealth: ledger", err)
			status, ledgerStatus = http.StatusServiceUnavailable, "error"
		}
		writeJSON(w, status, map[string]string{"ledger": ledgerStatus})
	}
}

func disableCaching(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Cache-Control", "no-cache")

		next.ServeHTTP(w, r)
	})
}

// newRouter wires the HTTP surface: the game socket and the JSON endpoints
func newRouter(h *Hub, reg *Registry, ledger *Ledger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(disableCaching)

	r.Get("/ws", handleWebSocketWith(h))
	r.Get("/healthz", handleHealth(ledger))
	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "application/json"))
		r.Get("/sessions", handleSessions(reg))
		r.Get("/stats", handleStats(ledger))
		r.Get("/games/{id}", handleGame(ledger))
	})

	if appLogger.logsRequests() {
		return &LoggingHandler{Handler: r, Logger: appLogger}
	}
	return r
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("werewolfd", flag.ContinueOnError)
	flags := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg := loadConfig(*flags.configPath)
	flags.applyTo(fs, &cfg)

	// Set up logging to both stdout and file
	logFile, err := os.OpenFile("werewolfd.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	if err := InitAppLogger(cfg.toLogConfig()); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer CloseAppLogger()
	if appLogger.IsEnabled() {
		log.Println("Extended logging enabled")
	}

	ledger, err := openLedger(cfg.DB)
	if err != nil {
		return err
	}
	defer ledger.Close()
	LogDBState(ledger.db, "after openLedger")

	initStoryteller(cfg)

	registry := NewRegistry()
	hub := newHub(ctx, registry, cfg.Game, ledger)
	go hub.run()
	defer hub.stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(hub, registry, ledger),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", srv.Addr, err)
		}
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// sessions see ctx cancelled and end at their next phase boundary
		registry.Wait()
		return err
	})
	return g.Wait()
}
