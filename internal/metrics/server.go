package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/veertuinc/glimpse/internal/plugins/plugin"
)

// Server defines the structure for the API server
type Server struct {
	Port       string
	Aggregator bool
	// Disabled hides plugins from /fields/v1; nil lists every registered plugin
	Disabled func(name string) bool
}

type pluginFields struct {
	DisplayCurse bool                               `json:"display_curse"`
	Fields       map[string]plugin.FieldDescription `json:"fields"`
}

// NewServer creates a new instance of Server
func NewServer(port string) *Server {
	return &Server{
		Port: port,
	}
}

// Handler builds the HTTP routes served from source.
func (s *Server) Handler(logger *slog.Logger, source Source) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(newCollector(source, logger))
	prometheusHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics/v1", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("format") {
		case "json":
			s.handleJsonMetrics(logger, source)(w, r)
		case "prometheus":
			prometheusHandler.ServeHTTP(w, r)
		default:
			http.Error(w, "unsupported format, please use '?format=json' or '?format=prometheus'", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/fields/v1", s.handleFields)
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
		w.Write([]byte("please use /metrics/v1"))
	})
	return mux
}

// Start runs the HTTP server until ctx is canceled
func (s *Server) Start(ctx context.Context, logger *slog.Logger, source Source) error {
	server := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           s.Handler(logger, source),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(ctx, "error shutting down metrics server", "error", err)
		}
	}()
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleJsonMetrics(logger *slog.Logger, source Source) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sets, err := source(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "error reading metrics source", "error", err)
			http.Error(w, "failed to get metrics data", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		encoder := json.NewEncoder(w)
		encoder.SetEscapeHTML(false)
		if !s.Aggregator {
			var data MetricsData
			if len(sets) > 0 {
				data = sets[0]
			}
			encoder.Encode(data)
			return
		}
		combined := make(map[string]MetricsData, len(sets))
		for _, data := range sets {
			combined[data.CollectorID] = data
		}
		encoder.Encode(combined)
	}
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	fields := make(map[string]pluginFields)
	for name, p := range plugin.List() {
		if s.Disabled != nil && s.Disabled(name) {
			continue
		}
		fields[name] = pluginFields{
			DisplayCurse: p.DisplayCurse(),
			Fields:       p.FieldsDescription(),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fields)
}
