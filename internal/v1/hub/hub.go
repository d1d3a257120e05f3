// Package hub is the in-memory switchboard of the chat core. It tracks which
// users are online, which clients subscribe to which room feeds, and who can
// take a call, all under a single mutex.
package hub

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"k8s.io/utils/set"

	"github.com/tidechat/server/internal/v1/errs"
	"github.com/tidechat/server/internal/v1/logging"
	"github.com/tidechat/server/internal/v1/metrics"
	"github.com/tidechat/server/internal/v1/types"
)

// feed is the fan-out point of one room. Exists if and only if at least one
// client subscribes to it.
type feed struct {
	lastSendAt int64
	clients    map[uuid.UUID]*Sender
}

// userState tracks one online user. numClients is always at least 1.
type userState struct {
	callable   bool
	numClients int
	roomIDs    set.Set[string]
	clients    map[uuid.UUID]*Sender
}

// Hub is the process-wide connection registry.
type Hub struct {
	mu    sync.Mutex
	users map[int64]*userState
	feeds map[string]*feed
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		users: make(map[int64]*userState),
		feeds: make(map[string]*feed),
	}
}

// subscribeLocked adds a client to a feed, creating it on first use.
func (h *Hub) subscribeLocked(roomID string, sender *Sender) {
	f, ok := h.feeds[roomID]
	if !ok {
		f = &feed{clients: make(map[uuid.UUID]*Sender)}
		h.feeds[roomID] = f
		metrics.ActiveFeeds.Inc()
	}
	f.clients[sender.ID()] = sender
}

// unsubscribeLocked drops a client from a feed and reaps the feed when empty.
func (h *Hub) unsubscribeLocked(roomID string, clientID uuid.UUID) {
	f, ok := h.feeds[roomID]
	if !ok {
		return
	}
	delete(f.clients, clientID)
	if len(f.clients) == 0 {
		delete(h.feeds, roomID)
		metrics.ActiveFeeds.Dec()
	}
}

// Register attaches a client to the hub, subscribing it to every given room.
// A user's first client marks them online and callable.
func (h *Hub) Register(ctx context.Context, userID int64, roomIDs []string, sender *Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()

	us, ok := h.users[userID]
	if !ok {
		us = &userState{
			callable: true,
			roomIDs:  set.New[string](),
			clients:  make(map[uuid.UUID]*Sender),
		}
		h.users[userID] = us
		metrics.OnlineUsers.Inc()
	}
	us.numClients++
	us.clients[sender.ID()] = sender
	us.roomIDs.Insert(roomIDs...)

	for _, roomID := range roomIDs {
		h.subscribeLocked(roomID, sender)
	}
	metrics.ConnectedClients.Inc()

	logging.Debug(ctx, "client registered",
		zap.Int64("user_id", userID),
		zap.String("client_id", sender.ID().String()),
		zap.Int("num_clients", us.numClients))
}

// Unregister detaches a client. The user's last client takes the user state
// with it.
func (h *Hub) Unregister(ctx context.Context, userID int64, clientID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	us, ok := h.users[userID]
	if !ok {
		return
	}
	if _, ok := us.clients[clientID]; !ok {
		return
	}

	for _, roomID := range us.roomIDs.UnsortedList() {
		h.unsubscribeLocked(roomID, clientID)
	}
	delete(us.clients, clientID)
	us.numClients--
	metrics.ConnectedClients.Dec()

	if us.numClients <= 0 {
		delete(h.users, userID)
		metrics.OnlineUsers.Dec()
	}

	logging.Debug(ctx, "client unregistered",
		zap.Int64("user_id", userID),
		zap.String("client_id", clientID.String()))
}

// Remove force-disconnects every client of a user. Used when an account is
// deactivated.
func (h *Hub) Remove(ctx context.Context, userID int64) {
	h.mu.Lock()
	us, ok := h.users[userID]
	if !ok {
		h.mu.Unlock()
		return
	}

	senders := make([]*Sender, 0, len(us.clients))
	for clientID, sender := range us.clients {
		for _, roomID := range us.roomIDs.UnsortedList() {
			h.unsubscribeLocked(roomID, clientID)
		}
		senders = append(senders, sender)
		metrics.ConnectedClients.Dec()
	}
	delete(h.users, userID)
	metrics.OnlineUsers.Dec()
	h.mu.Unlock()

	// Closing outside the lock; teardown paths re-enter Unregister.
	for _, sender := range senders {
		sender.Close()
	}
	logging.Info(ctx, "user removed from hub", zap.Int64("user_id", userID))
}

// CreateFriendRoom subscribes every online client of both users to the room
// of a freshly accepted friendship. Any previous feed under the same room id
// is replaced wholesale: a re-accepted friendship starts with no send history
// and exactly the two users' current clients.
func (h *Hub) CreateFriendRoom(userID0, userID1 int64, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make(map[uuid.UUID]*Sender)
	for _, userID := range []int64{userID0, userID1} {
		us, ok := h.users[userID]
		if !ok {
			continue
		}
		us.roomIDs.Insert(roomID)
		for clientID, sender := range us.clients {
			clients[clientID] = sender
		}
	}
	if len(clients) == 0 {
		return
	}

	if _, ok := h.feeds[roomID]; !ok {
		metrics.ActiveFeeds.Inc()
	}
	h.feeds[roomID] = &feed{clients: clients}
}

// RemoveFriendRoom tears the room of a dissolved friendship down for both
// users.
func (h *Hub) RemoveFriendRoom(userID0, userID1 int64, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, userID := range []int64{userID0, userID1} {
		us, ok := h.users[userID]
		if !ok {
			continue
		}
		us.roomIDs.Delete(roomID)
		for clientID := range us.clients {
			h.unsubscribeLocked(roomID, clientID)
		}
	}
}

// Broadcast fans a message out to every client of its room, stamping the
// divide flag against the feed's last send time. Returns the stamped message
// for caching. Per-client delivery failures are counted, not surfaced.
func (h *Hub) Broadcast(ctx context.Context, msg types.Message) (types.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, ok := h.feeds[msg.RoomID]
	if !ok {
		return types.Message{}, errs.BadRequest("room doesn't exist")
	}

	stamped := msg.WithDivide(f.lastSendAt)
	data, err := types.ReceiveEvent(stamped).Encode()
	if err != nil {
		return types.Message{}, err
	}

	for _, sender := range f.clients {
		if err := sender.Send(data); err != nil {
			metrics.EventsDropped.Inc()
		}
	}
	f.lastSendAt = msg.SendAt
	metrics.MessagesBroadcast.Inc()
	return stamped, nil
}

// Send delivers an event to every client of a user. A user who is offline is
// a no-op.
func (h *Hub) Send(ctx context.Context, userID int64, event types.Event) error {
	data, err := event.Encode()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	us, ok := h.users[userID]
	if !ok {
		return nil
	}
	for _, sender := range us.clients {
		if err := sender.Send(data); err != nil {
			metrics.EventsDropped.Inc()
		}
	}
	return nil
}

// SendToClient delivers an event to one specific client of a user. Used by
// call signaling, where frames target the negotiating client, not the user.
// The bool reports whether the client was found and the send succeeded.
func (h *Hub) SendToClient(ctx context.Context, userID int64, clientID uuid.UUID, event types.Event) (bool, error) {
	data, err := event.Encode()
	if err != nil {
		return false, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	us, ok := h.users[userID]
	if !ok {
		return false, nil
	}
	sender, ok := us.clients[clientID]
	if !ok {
		return false, nil
	}
	if err := sender.Send(data); err != nil {
		metrics.EventsDropped.Inc()
		return false, nil
	}
	return true, nil
}

// MakeCall admits a call attempt. It atomically checks that both ends are
// free and, on admission, marks both busy. On rejection the returned reason
// is Offline or Busy.
func (h *Hub) MakeCall(callerID, calleeID int64) (types.HungUpReason, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if caller, ok := h.users[callerID]; ok && !caller.callable {
		metrics.CallAttempts.WithLabelValues("busy").Inc()
		return types.HungUpBusy, false
	}

	callee, ok := h.users[calleeID]
	if !ok {
		metrics.CallAttempts.WithLabelValues("offline").Inc()
		return types.HungUpOffline, false
	}
	if !callee.callable {
		metrics.CallAttempts.WithLabelValues("busy").Inc()
		return types.HungUpBusy, false
	}

	callee.callable = false
	if caller, ok := h.users[callerID]; ok {
		caller.callable = false
	}
	metrics.CallAttempts.WithLabelValues("ringing").Inc()
	return 0, true
}

// MakeHungUp restores the callable flag for every given user.
func (h *Hub) MakeHungUp(userIDs ...int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, userID := range userIDs {
		if us, ok := h.users[userID]; ok {
			us.callable = true
		}
	}
}

// GetFeeds snapshots every active feed, sorted by room id.
func (h *Hub) GetFeeds() []types.FeedData {
	h.mu.Lock()
	defer h.mu.Unlock()

	feeds := make([]types.FeedData, 0, len(h.feeds))
	for roomID, f := range h.feeds {
		feeds = append(feeds, types.FeedData{
			Name:       roomID,
			NumClients: len(f.clients),
			ActiveAt:   f.lastSendAt,
		})
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].Name < feeds[j].Name })
	return feeds
}

// UserData is one row of the admin online-users snapshot.
type UserData struct {
	ID         int64    `json:"id"`
	NumClients int      `json:"num_clients"`
	Callable   bool     `json:"callable"`
	Rooms      []string `json:"rooms"`
}

// GetUsers snapshots every online user, sorted by id.
func (h *Hub) GetUsers() []UserData {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := make([]UserData, 0, len(h.users))
	for userID, us := range h.users {
		users = append(users, UserData{
			ID:         userID,
			NumClients: us.numClients,
			Callable:   us.callable,
			Rooms:      us.roomIDs.SortedList(),
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}
