// Package server exposes the control panel: the websocket endpoint, a small
// REST API and the embedded static frontend.
package server

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/safem8/controller/internal/hub"
	"github.com/safem8/controller/internal/joystick"
	"github.com/safem8/controller/internal/monitor"
	"github.com/safem8/controller/internal/store"
)

// Sensors is the live sensor view served to panels.
type Sensors interface {
	Snapshot() monitor.Snapshot
	Notifications() []monitor.Detection
	AcknowledgeNotifications()
}

// History answers history queries. It may be nil when no store is configured.
type History interface {
	Readings(ctx context.Context, sensor string, limit int) ([]store.Reading, error)
	Detections(ctx context.Context, limit int) ([]store.Detection, error)
	Alerts(ctx context.Context, limit int) ([]store.Alert, error)
}

type Options struct {
	Addr     string
	Mapper   joystick.Mapper
	Frontend fs.FS
}

type Server struct {
	hub         *hub.Hub
	broadcaster *hub.Broadcaster
	commands    hub.Commander
	sensors     Sensors
	history     History
	opts        Options
	httpServer  *http.Server
	log         zerolog.Logger
}

func New(h *hub.Hub, b *hub.Broadcaster, cmds hub.Commander, sensors Sensors, history History, opts Options, log zerolog.Logger) *Server {
	return &Server{
		hub:         h,
		broadcaster: b,
		commands:    cmds,
		sensors:     sensors,
		history:     history,
		opts:        opts,
		log:         log.With().Str("component", "server").Logger(),
	}
}

// Handler builds the router.
func (s *Server) Handler() (http.Handler, error) {
	r := mux.NewRouter()

	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/sensors", s.handleSensors).Methods(http.MethodGet)
	api.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/ack", s.handleAck).Methods(http.MethodPost)
	api.HandleFunc("/camera/{direction}", s.handleCamera).Methods(http.MethodPost)
	api.HandleFunc("/history/{sensor}", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/detections", s.handleDetections).Methods(http.MethodGet)
	api.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)

	if s.opts.Frontend != nil {
		static, err := newStaticHandler(s.opts.Frontend)
		if err != nil {
			return nil, err
		}
		r.PathPrefix("/").Handler(static)
	}

	return r, nil
}

func (s *Server) ListenAndServe() error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info().Str("addr", s.opts.Addr).Msg("HTTP server listening")
	err = s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		s.log.Info().Msg("Shutting down HTTP server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
