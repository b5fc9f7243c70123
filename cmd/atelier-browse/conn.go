package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"atelier/internal/catalog/presenter"
	"atelier/internal/gateway"
)

const writeWait = 10 * time.Second

// viewMsg is a recomputed view pushed by the server.
type viewMsg presenter.View

// serverErrMsg is an error message the server sent on the stream.
type serverErrMsg struct {
	code    string
	message string
}

// disconnectedMsg ends the stream.
type disconnectedMsg struct {
	err error
}

// sender delivers filter edits to the server.
type sender interface {
	Send(msg gateway.ClientMessage) error
}

// conn is one view stream.
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// streamURL turns the server base URL into the stream endpoint of view.
func streamURL(base, view string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1/views/" + url.PathEscape(view) + "/stream"
	return u.String(), nil
}

func dial(base, view, token string) (*conn, error) {
	target, err := streamURL(base, view)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, resp, err := websocket.DefaultDialer.Dial(target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s", target, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &conn{ws: ws}, nil
}

func (c *conn) Send(msg gateway.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

// listen forwards server messages to p until the connection drops.
func (c *conn) listen(p *tea.Program) {
	for {
		var msg gateway.ServerMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			p.Send(disconnectedMsg{err: err})
			return
		}
		switch {
		case msg.Type == gateway.TypeView && msg.Payload != nil:
			p.Send(viewMsg(*msg.Payload))
		case msg.Type == gateway.TypeError && msg.Error != nil:
			p.Send(serverErrMsg{code: msg.Error.Code, message: msg.Error.Message})
		}
	}
}

func (c *conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return c.ws.Close()
}

func stringMessage(kind, value string) gateway.ClientMessage {
	raw, _ := json.Marshal(value)
	return gateway.ClientMessage{Type: kind, Value: raw}
}
