package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	gwebsocket "github.com/gorilla/websocket" // Alias to avoid name conflict

	"iot-console/internal/alerting"
	"iot-console/internal/anomaly"
	"iot-console/internal/auth"
	"iot-console/internal/data"
	"iot-console/internal/health"
	"iot-console/internal/telemetry"
	"iot-console/internal/websocket"
)

var upgrader = gwebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Dashboards may be served from another host
}

const maxBodySize = 1 << 16

type APIHandler struct {
	console   *telemetry.Console
	poller    *health.Poller
	formatter *health.Formatter
	alerter   *alerting.Alerter
	hub       *websocket.Hub
	auth      *auth.AuthManager
	tmpl      *template.Template
	webDir    string
	logger    *slog.Logger
}

// Deps bundles the components the handlers read from and drive.
type Deps struct {
	Console   *telemetry.Console
	Poller    *health.Poller
	Formatter *health.Formatter
	Alerter   *alerting.Alerter
	Hub       *websocket.Hub
	Auth      *auth.AuthManager
	Logger    *slog.Logger
}

func NewAPIHandler(d Deps, webDir string) (*APIHandler, error) {
	tmplPath := filepath.Join(webDir, "templates", "*.html")
	tmpl, err := template.ParseGlob(tmplPath)
	if err != nil {
		return nil, err
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandler{
		console:   d.Console,
		poller:    d.Poller,
		formatter: d.Formatter,
		alerter:   d.Alerter,
		hub:       d.Hub,
		auth:      d.Auth,
		tmpl:      tmpl,
		webDir:    webDir,
		logger:    logger,
	}, nil
}

// ServeTelemetryPage renders the live telemetry console.
func (h *APIHandler) ServeTelemetryPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "telemetry.html", h.console.Page())
}

// ServeOverviewPage renders the health overview console.
func (h *APIHandler) ServeOverviewPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "overview.html", h.formatter.Overview(h.poller.Snapshot()))
}

func (h *APIHandler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("Error executing template", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// HandleWebSocket upgrades connections and registers clients with the hub
func (h *APIHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade error", "error", err)
		return
	}

	client := websocket.NewClient(h.hub, conn)
	// The snapshot is queued before the hub knows the client, so it
	// precedes every broadcast and nothing else writes to Send meanwhile.
	h.queueInitialState(client)
	if !h.hub.RegisterClient(client) {
		conn.Close()
		return
	}

	// Start read/write pumps in separate goroutines
	go client.WritePump()
	go client.ReadPump() // Must run ReadPump to handle control messages (close, pong)

	h.logger.Debug("WebSocket connection established", "remote", conn.RemoteAddr().String())
}

// queueInitialState brings a newly connected dashboard up to date. Frames
// that do not fit in the send buffer are dropped; later broadcasts fill in.
func (h *APIHandler) queueInitialState(client *websocket.Client) int {
	frames := []websocket.Envelope{
		{Type: websocket.TypeConnection, Payload: connectionPayload{Connected: h.console.Connected()}},
		{Type: websocket.TypeHealth, Payload: h.formatter.Overview(h.poller.Snapshot())},
	}
	for _, card := range h.console.Cards() {
		frames = append(frames, websocket.Envelope{Type: websocket.TypeReading, Payload: card})
	}

	for i, f := range frames {
		messageBytes, err := json.Marshal(f)
		if err != nil {
			h.logger.Error("Error marshalling initial state", "error", err)
			return i
		}
		select {
		case client.Send <- messageBytes:
		default:
			h.logger.Warn("Initial state truncated", "queued", i, "frames", len(frames))
			return i
		}
	}
	return len(frames)
}

type connectionPayload struct {
	Connected bool `json:"connected"`
}

func (h *APIHandler) GetReadings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.console.Readings())
}

func (h *APIHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, connectionPayload{Connected: h.console.Connected()})
}

func (h *APIHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.console.Draft())
}

// PutDraft replaces the configuration draft without contacting the generator.
func (h *APIHandler) PutDraft(w http.ResponseWriter, r *http.Request) {
	var cfg data.Configuration
	if err := decodeBody(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.console.SetDraft(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.console.Draft())
}

// HandleConfigure submits the draft. A body, when present, replaces the
// draft first.
func (h *APIHandler) HandleConfigure(w http.ResponseWriter, r *http.Request) {
	var cfg data.Configuration
	switch err := decodeBody(r, &cfg); {
	case errors.Is(err, io.EOF):
		// No body: submit the draft as is.
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	default:
		if err := h.console.SetDraft(cfg); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	if err := h.console.UpdateConfiguration(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	h.logger.Info("Operator command", "command", "configure", "operator", operator(r))
	writeJSON(w, http.StatusOK, map[string]any{"status": "configured", "configuration": h.console.Draft()})
}

type anomalyCommand struct {
	SensorID    string `json:"sensor_id"`
	AnomalyType string `json:"anomaly_type"`
}

func (h *APIHandler) HandleInjectAnomaly(w http.ResponseWriter, r *http.Request) {
	var cmd anomalyCommand
	if err := decodeBody(r, &cmd); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err := h.console.InjectAnomaly(r.Context(), cmd.SensorID, cmd.AnomalyType)
	switch {
	case err == nil:
		h.logger.Info("Operator command", "command", "inject_anomaly", "sensor_id", cmd.SensorID, "operator", operator(r))
		writeJSON(w, http.StatusOK, map[string]string{"status": "anomaly_injected"})
	case errors.Is(err, anomaly.ErrUnknownType), errors.Is(err, telemetry.ErrUnknownSensor):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}

type overviewResponse struct {
	health.Snapshot
	View health.Overview `json:"view"`
}

func (h *APIHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	snap := h.poller.Snapshot()
	writeJSON(w, http.StatusOK, overviewResponse{Snapshot: snap, View: h.formatter.Overview(snap)})
}

func (h *APIHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.alerter.Recent(50))
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin exchanges a username and password for a bearer token.
func (h *APIHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	role, err := h.auth.AuthenticateUser(req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}
	token, err := h.auth.GenerateJWT(req.Username, role)
	if err != nil {
		h.logger.Error("Error generating token", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("could not issue token"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// operator names who issued a command: the token's user, or the kind of
// credential when there is no user.
func operator(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		return claims.Username
	}
	if r.Header.Get("X-API-Key") != "" {
		return "api-key"
	}
	return "anonymous"
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
