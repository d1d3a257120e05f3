package transport

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tidechat/server/internal/v1/chat"
	"github.com/tidechat/server/internal/v1/hub"
	"github.com/tidechat/server/internal/v1/logging"
	"github.com/tidechat/server/internal/v1/types"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pingPeriod is the keepalive interval.
	pingPeriod = 20 * time.Second
)

// writePump drains the sender's outbox onto the connection and keeps the
// connection alive with pings. It owns all writes; closing the sender makes
// it send a close frame and exit.
func writePump(conn *websocket.Conn, sender *hub.Sender) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case data := <-sender.Outbox():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sender.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// readPump decodes binary frames into events and feeds them to the session.
// It tears the session down on exit, whatever the cause.
func (h *Handler) readPump(ctx context.Context, conn *websocket.Conn, client *chat.Client) {
	defer func() {
		client.Unregister(ctx)
		conn.Close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug(ctx, "websocket read failed", zap.Error(err))
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		event, err := types.DecodeEvent(data)
		if err != nil {
			logging.Warn(ctx, "undecodable frame", zap.Error(err))
			continue
		}
		if err := client.Process(ctx, event); err != nil {
			return
		}
	}
}
