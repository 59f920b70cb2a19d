package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/detroit-blocks/blockline/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP query server for blocks and analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/blocks", func(w http.ResponseWriter, req *http.Request) {
		filter := store.BlockFilter{
			Street: req.URL.Query().Get("street"),
			SortBy: req.URL.Query().Get("sort"),
		}
		filter.Limit = queryInt(req, "limit", 50)
		filter.Offset = queryInt(req, "offset", 0)

		items, total, err := st.ListBlocks(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": items,
			"total": total,
		})
	})

	r.Get("/blocks/{id}", func(w http.ResponseWriter, req *http.Request) {
		block, err := st.GetBlock(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if block == nil {
			writeError(w, http.StatusNotFound, eris.New("block not found"))
			return
		}
		writeJSON(w, http.StatusOK, block)
	})

	r.Get("/blocks/{id}/parcels", func(w http.ResponseWriter, req *http.Request) {
		blockID := chi.URLParam(req, "id")
		block, err := st.GetBlock(req.Context(), blockID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if block == nil {
			writeError(w, http.StatusNotFound, eris.New("block not found"))
			return
		}
		parcels, err := st.ListParcels(req.Context(), blockID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"block_id": blockID,
			"parcels":  parcels,
		})
	})

	r.Get("/blocks/{id}/analytics", func(w http.ResponseWriter, req *http.Request) {
		date := time.Now()
		if raw := req.URL.Query().Get("date"); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, eris.New("date must be YYYY-MM-DD"))
				return
			}
			date = parsed
		}

		snap, err := st.GetSnapshot(req.Context(), chi.URLParam(req, "id"), date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if snap == nil {
			writeError(w, http.StatusNotFound, eris.New("snapshot not found"))
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Get("/runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := st.ListRuns(req.Context(), queryInt(req, "limit", 20))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	})

	return r
}

func queryInt(req *http.Request, key string, fallback int) int {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
