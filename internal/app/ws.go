package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	// maxFrameBytes bounds one client frame; audio chunks arrive base64
	// encoded so this allows roughly 6 MB of raw audio.
	maxFrameBytes = 8 << 20

	writeTimeout = 10 * time.Second
)

// wsSender serializes writes to one WebSocket connection.
type wsSender struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	logger *slog.Logger
}

func (s *wsSender) send(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("message marshal failed", "kind", msg.Kind, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		s.logger.Debug("message write failed", "kind", msg.Kind, "error", err)
	}
}

func (s *wsSender) close(reason string) {
	s.conn.Close(websocket.StatusNormalClosure, reason)
}

// ServeWS upgrades the request and runs the session read loop until the
// client disconnects or stops the session.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Browsers served from a different origin than the API still need to
		// connect; auth happens before the upgrade.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		m.cfg.Logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	snd := &wsSender{conn: conn, logger: m.cfg.Logger}
	ctx := r.Context()

	var sessionID string
	defer func() {
		if sessionID != "" {
			m.Disconnect(context.Background(), sessionID)
		}
		conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return
			}
			if ctx.Err() != nil {
				return
			}
			m.cfg.Logger.Debug("websocket read failed",
				"session_id", sessionID, "error", err)
			return
		}

		msg, err := ParseClientMessage(data)
		if err != nil {
			// Malformed frames are non-fatal; the session survives.
			snd.send(errorMessage(CodeInvalidMessage, err.Error()))
			continue
		}
		if sessionID == "" {
			sessionID = msg.SessionID
		}

		m.Handle(ctx, snd, msg)
		if msg.Kind == KindStop {
			return
		}
	}
}

func encodeAudio(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}
