package http

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second
	defaultUpstreamTimeout  = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

// Server exposes the thin HTTP surface next to the websocket channel:
// a health endpoint and a pass-through proxy for third-party ICE
// server credentials. The proxy never interprets the upstream JSON.
type Server struct {
	logger  zerolog.Logger
	client  *http.Client
	turnURL string
	*http.Server
}

type Config struct {
	Logger *zerolog.Logger
	// TurnCredentialsURL is the full upstream credentials URL,
	// api key included. Empty disables the proxy.
	TurnCredentialsURL string
	ListenAddr         string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger:  cfg.Logger.With().Str("component", "api-server").Logger(),
		client:  &http.Client{Timeout: defaultUpstreamTimeout},
		turnURL: cfg.TurnCredentialsURL,
	}

	r := http.NewServeMux()
	r.HandleFunc("GET /api/turn", srv.turnCredentials)
	r.HandleFunc("GET /healthz", srv.health)
	r.HandleFunc("OPTIONS /", corsHandler)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func corsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeBytes(w, http.StatusOK, []byte(`{"status":"ok"}`))
}

func (srv *Server) turnCredentials(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if srv.turnURL == "" {
		writeBytes(w, http.StatusInternalServerError, []byte(`{"error":"API key not configured"}`))
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, srv.turnURL, nil)
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to build upstream request")
		writeBytes(w, http.StatusInternalServerError, []byte(`{"error":"Failed to fetch credentials"}`))
		return
	}
	resp, err := srv.client.Do(req)
	if err != nil {
		srv.logger.Error().Err(err).Msg("turn credentials fetch failed")
		writeBytes(w, http.StatusInternalServerError, []byte(`{"error":"Failed to fetch credentials"}`))
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		srv.logger.Error().Err(err).Int("status", resp.StatusCode).Msg("turn credentials upstream error")
		writeBytes(w, http.StatusInternalServerError, []byte(`{"error":"Failed to fetch credentials"}`))
		return
	}
	writeBytes(w, http.StatusOK, body)
}

func writeBytes(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err := w.Write(b); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}
