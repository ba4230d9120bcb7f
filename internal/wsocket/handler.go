package wsocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"pixelmint_go_backend/internal/models"
	"pixelmint_go_backend/internal/progress"
	"pixelmint_go_backend/internal/services"
	"pixelmint_go_backend/internal/utils/broker"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler serves the live generation channel. Clients submit generate or
// regenerate commands and receive the full progress event sequence plus
// quota snapshots pushed after each recorded usage.
type Handler struct {
	orchestrator *services.GenerationOrchestrator
	logStore     services.GenerationLogStore
	upgrader     websocket.Upgrader
	log          zerolog.Logger
}

type Message struct {
	Type       string                 `json:"type"`
	Prompt     string                 `json:"prompt,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	HistoryID  uint                   `json:"historyId,omitempty"`
}

func NewHandler(orchestrator *services.GenerationOrchestrator, logStore services.GenerationLogStore, upgrader websocket.Upgrader, log zerolog.Logger) *Handler {
	return &Handler{orchestrator: orchestrator, logStore: logStore, upgrader: upgrader, log: log}
}

// wsWriter serializes writes from the quota forwarder and the progress
// sink onto one connection.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) WriteJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request, user *models.User, messageBroker *broker.Broker) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	writer := &wsWriter{conn: conn}
	ctx := r.Context()

	quotaUpdates := messageBroker.Subscribe(services.QuotaUpdateTopic)
	defer messageBroker.Unsubscribe(services.QuotaUpdateTopic, quotaUpdates)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-quotaUpdates:
				if !ok {
					return
				}
				envelope := map[string]interface{}{"type": "quota_update", "data": update}
				if err := writer.WriteJSON(envelope); err != nil {
					h.log.Warn().Err(err).Msg("failed to push quota update")
					return
				}
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.writeError(writer, "invalid message payload")
			continue
		}

		switch msg.Type {
		case "generate":
			reporter := h.newReporter(writer)
			if _, err := h.orchestrator.GenerateImage(ctx, user.ID, msg.Prompt, services.GenerationParams(msg.Parameters), reporter); err != nil && !reporter.Closed() {
				h.writeError(writer, err.Error())
			}
		case "regenerate":
			reporter := h.newReporter(writer)
			if _, err := h.orchestrator.Regenerate(ctx, msg.HistoryID, user.ID, reporter); err != nil && !reporter.Closed() {
				h.writeError(writer, err.Error())
			}
		default:
			h.writeError(writer, "unknown message type: "+msg.Type)
		}
	}
}

func (h *Handler) newReporter(writer *wsWriter) *progress.Reporter {
	sink := func(e progress.Event) {
		envelope := map[string]interface{}{"type": "progress", "event": e}
		if err := writer.WriteJSON(envelope); err != nil {
			h.log.Warn().Err(err).Str("step", string(e.Step)).Msg("failed to push progress event")
		}
	}
	return progress.NewReporter(h.logStore, sink, h.log)
}

func (h *Handler) writeError(writer *wsWriter, message string) {
	if err := writer.WriteJSON(map[string]interface{}{"type": "error", "error": message}); err != nil {
		h.log.Warn().Err(err).Msg("failed to push error message")
	}
}
