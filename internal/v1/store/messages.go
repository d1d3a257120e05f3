package store

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/tidechat/server/internal/v1/logging"
	"github.com/tidechat/server/internal/v1/types"
)

// recentMessageCap bounds the per-room history kept in redis. Indices 0..35,
// newest first.
const recentMessageCap = 36

// CacheMessage pushes a message onto the room's recent list and trims it.
// Best effort behind a breaker: a failure is logged, never surfaced, so chat
// keeps flowing while redis is degraded.
func (s *Store) CacheMessage(ctx context.Context, msg types.Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		logging.Error(ctx, "message marshal failed", zap.Error(err))
		return
	}

	_, err = s.cacheBreaker.Execute(func() (any, error) {
		pipe := s.Redis.Pipeline()
		pipe.LPush(ctx, msg.RoomID, raw)
		pipe.LTrim(ctx, msg.RoomID, 0, recentMessageCap-1)
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	if err != nil {
		logging.Warn(ctx, "message cache write failed",
			zap.String("room_id", msg.RoomID), zap.Error(err))
	}
}

// RecentMessages returns up to the cap of a room's history, oldest first.
func (s *Store) RecentMessages(ctx context.Context, roomID string) ([]types.Message, error) {
	raws, err := s.Redis.LRange(ctx, roomID, 0, recentMessageCap-1).Result()
	if err != nil {
		return nil, wrapRedisErr(err)
	}

	msgs := make([]types.Message, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var msg types.Message
		if err := json.Unmarshal([]byte(raws[i]), &msg); err != nil {
			logging.Warn(ctx, "skipping corrupt cached message",
				zap.String("room_id", roomID), zap.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
