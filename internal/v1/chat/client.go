package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tidechat/server/internal/v1/errs"
	"github.com/tidechat/server/internal/v1/hub"
	"github.com/tidechat/server/internal/v1/logging"
	"github.com/tidechat/server/internal/v1/metrics"
	"github.com/tidechat/server/internal/v1/store"
	"github.com/tidechat/server/internal/v1/types"
)

// Client is one WebSocket session of an authenticated user.
type Client struct {
	user     types.User
	clientID uuid.UUID
	hub      *hub.Hub
	store    *store.Store
	sender   *hub.Sender
}

// NewClient creates a session for the given user with a fresh client id.
func NewClient(user types.User, h *hub.Hub, st *store.Store) *Client {
	clientID := uuid.New()
	return &Client{
		user:     user,
		clientID: clientID,
		hub:      h,
		store:    st,
		sender:   hub.NewSender(clientID),
	}
}

// ClientID returns the session's client id.
func (c *Client) ClientID() uuid.UUID { return c.clientID }

// Sender returns the outbound handle for the write pump.
func (c *Client) Sender() *hub.Sender { return c.sender }

// Register attaches the session to the hub and pushes the init events, rooms
// first, then friends, then messages.
func (c *Client) Register(ctx context.Context) error {
	st, err := c.buildInit(ctx)
	if err != nil {
		return err
	}

	c.hub.Register(ctx, c.user.ID, st.roomIDs, c.sender)

	for _, event := range []types.Event{
		types.InitRoomsEvent(st.rooms),
		types.InitFriendsEvent(st.friends),
		types.InitMessagesEvent(st.messages),
	} {
		if err := c.sendSelf(event); err != nil {
			return err
		}
	}
	return nil
}

// Unregister detaches the session and closes the outbound handle.
func (c *Client) Unregister(ctx context.Context) {
	c.hub.Unregister(ctx, c.user.ID, c.clientID)
	c.sender.Close()
}

// Process handles one inbound event. Only a closed outbound channel ends the
// session; every other failure is logged and the session carries on.
func (c *Client) Process(ctx context.Context, event types.Event) error {
	metrics.EventsInbound.WithLabelValues(string(event.Kind)).Inc()

	err := c.dispatch(ctx, event)
	if err == nil {
		return nil
	}
	if errors.Is(err, errs.ErrSendClosed) {
		return err
	}

	logging.Warn(ctx, "event rejected",
		zap.String("kind", string(event.Kind)), zap.Error(err))
	return nil
}

func (c *Client) dispatch(ctx context.Context, event types.Event) error {
	switch event.Kind {
	case types.KindSend:
		return c.handleSend(ctx, event)
	case types.KindAddFriend:
		return c.handleAddFriend(ctx, event.PeerID)
	case types.KindAcceptFriend:
		return c.handleAcceptFriend(ctx, event.PeerID)
	case types.KindRevertFriend:
		return c.handleRevertFriend(ctx, event.PeerID)
	case types.KindDeleteFriend:
		return c.handleDeleteFriend(ctx, event.PeerID)
	case types.KindSendCall:
		return c.handleSendCall(ctx, event.PeerID)
	case types.KindSendHungUp:
		return c.handleSendHungUp(ctx, event)
	case types.KindSendReply:
		return c.handleSendReply(ctx, event)
	case types.KindSendOffer:
		return c.relay(ctx, event.PeerID, event.ClientID, types.ReceiveOfferEvent(event.SDP))
	case types.KindSendAnswer:
		return c.relay(ctx, event.PeerID, event.ClientID, types.ReceiveAnswerEvent(event.SDP))
	case types.KindSendCandidate:
		if event.Candidate == nil {
			return errs.BadRequest("Missing candidate")
		}
		return c.relay(ctx, event.PeerID, event.ClientID, types.ReceiveCandidateEvent(*event.Candidate))
	default:
		return errs.BadRequest("Unexpected event")
	}
}

// sendSelf queues an event on the session's own outbound handle.
func (c *Client) sendSelf(event types.Event) error {
	data, err := event.Encode()
	if err != nil {
		return err
	}
	return c.sender.Send(data)
}

// relay forwards one negotiation frame to the peer's negotiating client. A
// vanished target is dropped silently.
func (c *Client) relay(ctx context.Context, peerID int64, clientID uuid.UUID, event types.Event) error {
	_, err := c.hub.SendToClient(ctx, peerID, clientID, event)
	return err
}

func (c *Client) handleSend(ctx context.Context, event types.Event) error {
	if event.Message == nil {
		return errs.BadRequest("Missing message")
	}

	msg := *event.Message
	msg.Sender = c.user
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.SendAt == 0 {
		msg.SendAt = time.Now().Unix()
	}

	stamped, err := c.hub.Broadcast(ctx, msg)
	if err != nil {
		return err
	}
	c.store.CacheMessage(ctx, stamped)
	return nil
}

func (c *Client) handleAddFriend(ctx context.Context, peerID int64) error {
	fsp, err := c.store.AddFriendship(ctx, c.user.ID, peerID)
	if err != nil {
		return err
	}
	self, other, err := c.store.FriendPair(ctx, c.user.ID, fsp)
	if err != nil {
		return err
	}

	// Every client of both users learns of the request, not just this one.
	if err := c.hub.Send(ctx, c.user.ID, types.ReceiveFriendEvent(other)); err != nil {
		return err
	}
	return c.hub.Send(ctx, peerID, types.ReceiveFriendEvent(self))
}

func (c *Client) handleAcceptFriend(ctx context.Context, peerID int64) error {
	fsp, err := c.store.AcceptFriendship(ctx, c.user.ID, peerID)
	if err != nil {
		return err
	}
	self, other, err := c.store.FriendPair(ctx, c.user.ID, fsp)
	if err != nil {
		return err
	}

	c.hub.CreateFriendRoom(fsp.ID0, fsp.ID1, types.FriendRoomID(fsp))

	if err := c.hub.Send(ctx, c.user.ID, types.ReceiveFriendEvent(other)); err != nil {
		return err
	}
	if err := c.hub.Send(ctx, c.user.ID, types.ReceiveRoomEvent(types.RoomFromFriend(other))); err != nil {
		return err
	}
	if err := c.hub.Send(ctx, peerID, types.ReceiveFriendEvent(self)); err != nil {
		return err
	}
	return c.hub.Send(ctx, peerID, types.ReceiveRoomEvent(types.RoomFromFriend(self)))
}

func (c *Client) handleRevertFriend(ctx context.Context, peerID int64) error {
	if _, err := c.store.RevertFriendship(ctx, c.user.ID, peerID); err != nil {
		return err
	}

	if err := c.hub.Send(ctx, c.user.ID, types.RevertFriendEvent(peerID)); err != nil {
		return err
	}
	return c.hub.Send(ctx, peerID, types.RevertFriendEvent(c.user.ID))
}

func (c *Client) handleDeleteFriend(ctx context.Context, peerID int64) error {
	fsp, err := c.store.DeleteFriendship(ctx, c.user.ID, peerID)
	if err != nil {
		return err
	}

	c.hub.RemoveFriendRoom(fsp.ID0, fsp.ID1, types.FriendRoomID(fsp))

	if err := c.hub.Send(ctx, c.user.ID, types.DeleteFriendEvent(peerID)); err != nil {
		return err
	}
	return c.hub.Send(ctx, peerID, types.DeleteFriendEvent(c.user.ID))
}

func (c *Client) handleSendCall(ctx context.Context, peerID int64) error {
	if reason, ok := c.hub.MakeCall(c.user.ID, peerID); !ok {
		return c.sendSelf(types.ReceiveHungUpEvent(reason))
	}

	// SendCallDone ends the originating client's dialing state; the pickup
	// arrives later as ReceiveReply.
	if err := c.sendSelf(types.SendCallDoneEvent(peerID)); err != nil {
		return err
	}
	return c.hub.Send(ctx, peerID, types.ReceiveCallEvent(c.user.ID, c.clientID))
}

// handleSendHungUp releases both lines and tells every client of both users,
// so the actor's other devices stop ringing too.
func (c *Client) handleSendHungUp(ctx context.Context, event types.Event) error {
	c.hub.MakeHungUp(c.user.ID, event.PeerID)
	if err := c.hub.Send(ctx, c.user.ID, types.ReceiveHungUpEvent(event.Reason)); err != nil {
		return err
	}
	return c.hub.Send(ctx, event.PeerID, types.ReceiveHungUpEvent(event.Reason))
}

// handleSendReply routes the pickup to the caller's negotiating client and
// tells the user's remaining clients to stop ringing. A caller who vanished
// since ringing turns into a local hang-up.
func (c *Client) handleSendReply(ctx context.Context, event types.Event) error {
	ok, err := c.hub.SendToClient(ctx, event.PeerID, event.ClientID, types.ReceiveReplyEvent(c.clientID))
	if err != nil {
		return err
	}
	if !ok {
		return c.sendSelf(types.ReceiveHungUpEvent(types.HungUpOffline))
	}
	return c.hub.Send(ctx, c.user.ID, types.SendCallDoneEvent(event.PeerID))
}
