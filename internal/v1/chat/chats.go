// Package chat ties a user's WebSocket session to the hub and the store: the
// init push on connect and the dispatch of every inbound event.
package chat

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tidechat/server/internal/v1/logging"
	"github.com/tidechat/server/internal/v1/types"
)

const (
	personalRoomName  = "My Device"
	personalRoomCover = "/default/cover.jpg"
)

// initState is everything a freshly connected client needs: the room list,
// the friend list, the recent messages per room, and the feed subscriptions.
type initState struct {
	rooms    []types.Room
	friends  []types.Friend
	messages map[string][]types.Message
	roomIDs  []string
}

// buildInit assembles the init payloads. Rooms come out sorted by their last
// activity, oldest first. A room whose history cannot be loaded still shows
// up, just empty.
func (c *Client) buildInit(ctx context.Context) (initState, error) {
	friends, err := c.store.ListFriends(ctx, c.user.ID)
	if err != nil {
		return initState{}, err
	}

	st := initState{
		friends:  friends,
		messages: make(map[string][]types.Message),
	}

	loadRoom := func(room types.Room) {
		msgs, err := c.store.RecentMessages(ctx, room.ID)
		if err != nil {
			logging.Warn(ctx, "room history unavailable",
				zap.String("room_id", room.ID), zap.Error(err))
			msgs = []types.Message{}
		}
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			room.Content = last.Content
			room.SendAt = last.SendAt
		}
		st.rooms = append(st.rooms, room)
		st.messages[room.ID] = msgs
		st.roomIDs = append(st.roomIDs, room.ID)
	}

	personal := types.Room{
		Key:   uuid.New(),
		ID:    types.UserRoomID(c.user.ID),
		Name:  personalRoomName,
		Cover: personalRoomCover,
	}
	loadRoom(personal)

	for _, friend := range friends {
		if friend.Status != types.StatusAccepted {
			continue
		}
		loadRoom(types.RoomFromFriend(friend))
	}

	sort.SliceStable(st.rooms, func(i, j int) bool {
		return st.rooms[i].SendAt < st.rooms[j].SendAt
	})
	return st, nil
}
