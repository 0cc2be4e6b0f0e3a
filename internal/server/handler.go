package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/spf13/cast"

	"github.com/safem8/controller/internal/hub"
	"github.com/safem8/controller/internal/joystick"
	"github.com/safem8/controller/internal/monitor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // panel is served on the local network
	},
}

var historySensors = map[string]bool{
	string(monitor.Temperature): true,
	string(monitor.Humidity):    true,
	string(monitor.Battery):     true,
	string(monitor.AirQuality):  true,
}

var errNoHistory = errors.New("history store is disabled")

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := hub.NewClient(s.hub, conn, s.opts.Mapper)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}
	s.broadcaster.SendInitialState(client)

	go client.WritePump()
	go client.ReadPump(hub.Handler{Commands: s.commands, Notifications: s.sensors})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.Count(),
	})
}

func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sensors.Snapshot())
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	snap := s.sensors.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"hasNotification": snap.HasNotification,
		"notifications":   snap.Notifications,
	})
}

func (s *Server) handleAck(w http.ResponseWriter, _ *http.Request) {
	s.sensors.AcknowledgeNotifications()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	cc, err := joystick.NewCameraCommand(mux.Vars(r)["direction"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.commands.Camera(cc)
	s.writeJSON(w, http.StatusAccepted, hub.CameraFeedback{Direction: cc.Direction, Code: cc.Code})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sensor := mux.Vars(r)["sensor"]
	if !historySensors[sensor] {
		s.writeError(w, http.StatusBadRequest, errors.New("unknown sensor "+sensor))
		return
	}
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, errNoHistory)
		return
	}
	rows, err := s.history.Readings(r.Context(), sensor, limit)
	if err != nil {
		s.log.Error().Err(err).Str("sensor", sensor).Msg("Error querying history")
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleDetections(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, errNoHistory)
		return
	}
	rows, err := s.history.Detections(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Error querying detections")
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, errNoHistory)
		return
	}
	rows, err := s.history.Alerts(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Error querying alerts")
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

// limit reads the optional ?limit= parameter; 0 lets the store pick.
func (s *Server) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := cast.ToIntE(raw)
	if err != nil || n < 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
		return 0, false
	}
	return n, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Msg("Error writing response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
