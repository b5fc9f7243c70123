package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"atelier/internal/catalog/controller"
	"atelier/internal/catalog/presenter"
	"atelier/internal/server"
	"atelier/pkg/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Stream message types.
const (
	TypeSetQuery    = "set_query"
	TypeSetCategory = "set_category"
	TypeSetSort     = "set_sort"
	TypeLoadMore    = "load_more"
	TypeClear       = "clear"
	TypeView        = "view"
	TypeError       = "error"
)

// ClientMessage is an edit of the stream's filter state.
type ClientMessage struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// ServerMessage carries a recomputed view or an error.
type ServerMessage struct {
	Type    string           `json:"type"`
	Payload *presenter.View  `json:"payload,omitempty"`
	Error   *server.APIError `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// stream is one websocket connection. It owns the filter state of its view.
type stream struct {
	id     string
	conn   *websocket.Conn
	ctrl   *controller.Controller
	pres   *presenter.Presenter
	errs   chan server.APIError
	done   chan struct{}
	logger *slog.Logger
}

// handleStream handles GET /api/v1/views/{view}/stream.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookupView(w, r)
	if !ok {
		return
	}

	h.streamsMu.Lock()
	if h.closing {
		h.streamsMu.Unlock()
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "Server is shutting down")
		return
	}
	h.streamWG.Add(1)
	h.streamsMu.Unlock()
	defer h.streamWG.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		h.logger.Warn("Stream upgrade failed", "view", v.Config.Name, "error", err)
		return
	}

	ctrl := controller.New(v.Config.PageSize)
	s := &stream{
		id:   uuid.NewString(),
		conn: conn,
		ctrl: ctrl,
		pres: presenter.New(v.Config.Name, v.Mirror, ctrl),
		errs: make(chan server.APIError, 8),
		done: make(chan struct{}),
	}
	s.logger = h.logger.With("stream", s.id, "view", v.Config.Name)

	if !h.track(s) {
		s.pres.Close()
		s.ctrl.Close()
		_ = conn.Close()
		return
	}
	defer h.untrack(s)

	s.logger.Info("Stream opened")
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump()
	}()
	s.readPump()

	close(s.done)
	s.pres.Close()
	s.ctrl.Close()
	_ = conn.Close()
	<-writerDone
	s.logger.Info("Stream closed")
}

func (h *Handler) track(s *stream) bool {
	h.streamsMu.Lock()
	defer h.streamsMu.Unlock()
	if h.closing {
		return false
	}
	h.streams[s] = struct{}{}
	return true
}

func (h *Handler) untrack(s *stream) {
	h.streamsMu.Lock()
	delete(h.streams, s)
	h.streamsMu.Unlock()
}

// Shutdown closes every open stream and waits for their handlers to return
// or ctx to expire. New streams are refused afterwards.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.streamsMu.Lock()
	h.closing = true
	streams := make([]*stream, 0, len(h.streams))
	for s := range h.streams {
		streams = append(streams, s)
	}
	h.streamsMu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, s := range streams {
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = s.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		h.streamWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readPump applies client edits until the connection fails.
func (s *stream) readPump() {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Stream read failed", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.fail(ErrCodeBadRequest, "invalid message")
			continue
		}
		if err := s.apply(msg); err != nil {
			s.fail(ErrCodeBadRequest, err.Error())
		}
	}
}

// apply performs one edit. The presenter picks up the change through the
// controller.
func (s *stream) apply(msg ClientMessage) error {
	switch msg.Type {
	case TypeSetQuery:
		v, err := stringValue(msg.Value)
		if err != nil {
			return err
		}
		return s.ctrl.SetQuery(v)
	case TypeSetCategory:
		v, err := stringValue(msg.Value)
		if err != nil {
			return err
		}
		return s.ctrl.SetCategory(v)
	case TypeSetSort:
		v, err := stringValue(msg.Value)
		if err != nil {
			return err
		}
		mode, err := model.ParseSortMode(v)
		if err != nil {
			return err
		}
		return s.ctrl.SetSortMode(mode)
	case TypeLoadMore:
		step := 0
		if len(msg.Value) > 0 && string(msg.Value) != "null" {
			if err := json.Unmarshal(msg.Value, &step); err != nil {
				return errors.New("load_more value must be a number")
			}
		}
		return s.pres.LoadMore(step)
	case TypeClear:
		return s.ctrl.ClearFilters()
	}
	return fmt.Errorf("unknown message type %q", msg.Type)
}

func stringValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", errors.New("value must be a string")
	}
	return v, nil
}

// fail queues an error message. Errors are dropped while the queue is full.
func (s *stream) fail(code, message string) {
	select {
	case s.errs <- server.APIError{Code: code, Message: message}:
	default:
		s.logger.Warn("Stream error dropped", "code", code, "message", message)
	}
}

// writePump is the only writer of the connection.
func (s *stream) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	updates := s.pres.Updates()
	for {
		var msg ServerMessage
		select {
		case <-s.done:
			return
		case view, ok := <-updates:
			if !ok {
				return
			}
			msg = ServerMessage{Type: TypeView, Payload: &view}
		case apiErr := <-s.errs:
			msg = ServerMessage{Type: TypeError, Error: &apiErr}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return
			}
			continue
		}

		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteJSON(msg); err != nil {
			s.logger.Debug("Stream write failed", "error", err)
			_ = s.conn.Close()
			return
		}
	}
}
