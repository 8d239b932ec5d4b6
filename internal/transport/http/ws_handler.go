package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"music-trivia-service/internal/app"
	"music-trivia-service/internal/domain"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
	logger   log.FieldLogger
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.WithField("component", "ws"),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type voicePayload struct {
	Alternatives []string `json:"alternatives"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorEvent(msg string) app.Event {
	return app.Event{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeWS upgrades HTTP requests to websockets, starts a game and streams its events.
// Without a source the user's last selection is reused.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	sel := domain.Selection{
		Subject: domain.SubjectMode(q.Get("subject")),
		Source:  q.Get("source"),
		Length:  domain.RoundLength(q.Get("length")),
	}
	if ids := q.Get("ids"); ids != "" {
		sel.IDs = strings.Split(ids, ",")
	}
	if sel.Source == "" {
		last, ok, err := h.service.LastSelection(r.Context(), userID)
		if err != nil || !ok {
			http.Error(w, "missing source and no previous selection", http.StatusBadRequest)
			return
		}
		sel = last
	}
	if sel.Subject == "" {
		sel.Subject = domain.SubjectTrack
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	view, err := h.service.StartGame(r.Context(), userID, sel)
	if err != nil {
		_ = conn.WriteJSON(errorEvent(err.Error()))
		return
	}
	gameID := view.GameID
	logger := h.logger.WithFields(log.Fields{"game_id": gameID, "user_id": userID})
	// a reset moves the game to a new id
	defer func() { h.service.End(r.Context(), gameID) }()

	updates, cancel, err := h.service.Subscribe(r.Context(), gameID)
	if err != nil {
		_ = conn.WriteJSON(errorEvent(err.Error()))
		return
	}
	defer cancel()

	send := make(chan app.Event, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- update:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg, ok := h.handle(r, &gameID, inbound); !ok {
			send <- msg
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// handle applies one client command. Results reach the client through the
// game's event stream; only failures produce a direct reply.
func (h *WSHandler) handle(r *http.Request, game *string, inbound inboundMessage) (app.Event, bool) {
	ctx := r.Context()
	gameID := *game
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorEvent("invalid answer payload"), false
		}
		_, accepted, err := h.service.SubmitAnswer(ctx, gameID, payload.Answer)
		return rejected(accepted, err, "answer not accepted")
	case "voice":
		var payload voicePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorEvent("invalid voice payload"), false
		}
		_, accepted, err := h.service.SubmitSpoken(ctx, gameID, payload.Alternatives)
		return rejected(accepted, err, "answer not accepted")
	case "pause":
		ok, err := h.service.Pause(ctx, gameID)
		return rejected(ok, err, "game is not running")
	case "resume":
		ok, err := h.service.Resume(ctx, gameID)
		return rejected(ok, err, "game is not paused")
	case "reset":
		view, err := h.service.Reset(ctx, gameID)
		if err == nil {
			*game = view.GameID
		}
		return rejected(true, err, "")
	}
	return errorEvent("unsupported message type"), false
}

func rejected(ok bool, err error, reason string) (app.Event, bool) {
	if err != nil {
		return errorEvent(err.Error()), false
	}
	if !ok {
		return errorEvent(reason), false
	}
	return app.Event{}, true
}
