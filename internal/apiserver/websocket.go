package apiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GravitonINC/xeenon-tokens-mcp-server/internal/tools"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	wsReadLimit      = 1 << 20
	wsPongWait       = 90 * time.Second
	wsPingInterval   = 30 * time.Second
	wsWriteWait      = 10 * time.Second
	wsMaxConcurrency = 8
)

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsRequest is one tool call frame. ID is echoed back so a client can match
// responses that complete out of order.
type wsRequest struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

type wsResponse struct {
	ID        string       `json:"id"`
	RequestID string       `json:"requestId,omitempty"`
	Tool      string       `json:"tool,omitempty"`
	Result    any          `json:"result,omitempty"`
	Error     *tools.Error `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(payload)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (s *Service) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	upgrader := websocketUpgrader
	upgrader.CheckOrigin = s.isOriginAllowed

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	s.metrics.ObserveHTTPRequest("/ws", http.StatusSwitchingProtocols)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := &wsConn{conn: conn}
	calls, callCtx := errgroup.WithContext(ctx)
	calls.SetLimit(wsMaxConcurrency)

	go s.websocketPinger(callCtx, out)

	err = s.websocketReadLoop(conn, func(req wsRequest) {
		calls.Go(func() error {
			result := s.runner.Call(callCtx, req.Tool, req.Arguments)
			return out.writeJSON(wsResponse{
				ID:        req.ID,
				RequestID: result.RequestID,
				Tool:      result.Tool,
				Result:    result.Data,
				Error:     result.Error,
			})
		})
	}, out)
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.logger.Debug("websocket read loop ended", "err", err)
	}
	if err := calls.Wait(); err != nil {
		s.logger.Debug("websocket write failed", "err", err)
	}
}

func (s *Service) websocketReadLoop(conn *websocket.Conn, dispatch func(wsRequest), out *wsConn) error {
	conn.SetReadLimit(wsReadLimit)
	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var req wsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			if werr := out.writeJSON(wsResponse{Error: &tools.Error{Code: tools.CodeValidation, Message: "frame must be a JSON object"}}); werr != nil {
				return werr
			}
			continue
		}
		req.Tool = strings.TrimSpace(req.Tool)
		if req.Tool == "" {
			if werr := out.writeJSON(wsResponse{ID: req.ID, Error: &tools.Error{Code: tools.CodeValidation, Message: "tool is required"}}); werr != nil {
				return werr
			}
			continue
		}
		dispatch(req)
	}
}

func (s *Service) websocketPinger(ctx context.Context, out *wsConn) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := out.ping(); err != nil {
				return
			}
		}
	}
}
