package types

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventKind names one variant of the WebSocket event union.
type EventKind string

const (
	// server → client
	KindInitRooms        EventKind = "InitRooms"
	KindInitFriends      EventKind = "InitFriends"
	KindInitMessages     EventKind = "InitMessages"
	KindReceive          EventKind = "Receive"
	KindReceiveFriend    EventKind = "ReceiveFriend"
	KindReceiveRoom      EventKind = "ReceiveRoom"
	KindReceiveCall      EventKind = "ReceiveCall"
	KindSendCallDone     EventKind = "SendCallDone"
	KindReceiveReply     EventKind = "ReceiveReply"
	KindReceiveHungUp    EventKind = "ReceiveHungUp"
	KindReceiveOffer     EventKind = "ReceiveOffer"
	KindReceiveAnswer    EventKind = "ReceiveAnswer"
	KindReceiveCandidate EventKind = "ReceiveCandidate"

	// client → server
	KindSend          EventKind = "Send"
	KindAddFriend     EventKind = "AddFriend"
	KindAcceptFriend  EventKind = "AcceptFriend"
	KindRevertFriend  EventKind = "RevertFriend"
	KindDeleteFriend  EventKind = "DeleteFriend"
	KindSendCall      EventKind = "SendCall"
	KindSendHungUp    EventKind = "SendHungUp"
	KindSendReply     EventKind = "SendReply"
	KindSendOffer     EventKind = "SendOffer"
	KindSendAnswer    EventKind = "SendAnswer"
	KindSendCandidate EventKind = "SendCandidate"
)

// Event is the tagged union exchanged on the WebSocket in both directions.
// Exactly the fields relevant to Kind are populated; the JSON form is an
// externally tagged object {"Variant": payload}, with multi-value payloads
// encoded as arrays.
type Event struct {
	Kind EventKind

	Rooms       []Room
	Friends     []Friend
	MessagesMap map[string][]Message
	Message     *Message
	Friend      *Friend
	Room        *Room

	// PeerID is the friend/user id argument of friendship and call variants.
	PeerID int64
	// ClientID is the target or replying client of a call-signaling variant.
	ClientID  uuid.UUID
	Reason    HungUpReason
	SDP       string
	Candidate *IceCandidate
}

// Constructors for the server → client variants.

func InitRoomsEvent(rooms []Room) Event     { return Event{Kind: KindInitRooms, Rooms: rooms} }
func InitFriendsEvent(fs []Friend) Event    { return Event{Kind: KindInitFriends, Friends: fs} }
func ReceiveEvent(m Message) Event          { return Event{Kind: KindReceive, Message: &m} }
func ReceiveFriendEvent(f Friend) Event     { return Event{Kind: KindReceiveFriend, Friend: &f} }
func ReceiveRoomEvent(r Room) Event         { return Event{Kind: KindReceiveRoom, Room: &r} }
func SendCallDoneEvent(peer int64) Event    { return Event{Kind: KindSendCallDone, PeerID: peer} }
func ReceiveOfferEvent(sdp string) Event    { return Event{Kind: KindReceiveOffer, SDP: sdp} }
func ReceiveAnswerEvent(sdp string) Event   { return Event{Kind: KindReceiveAnswer, SDP: sdp} }
func RevertFriendEvent(peer int64) Event    { return Event{Kind: KindRevertFriend, PeerID: peer} }
func DeleteFriendEvent(peer int64) Event    { return Event{Kind: KindDeleteFriend, PeerID: peer} }

func InitMessagesEvent(mm map[string][]Message) Event {
	return Event{Kind: KindInitMessages, MessagesMap: mm}
}

func ReceiveCallEvent(callerID int64, clientID uuid.UUID) Event {
	return Event{Kind: KindReceiveCall, PeerID: callerID, ClientID: clientID}
}

func ReceiveReplyEvent(clientID uuid.UUID) Event {
	return Event{Kind: KindReceiveReply, ClientID: clientID}
}

func ReceiveHungUpEvent(reason HungUpReason) Event {
	return Event{Kind: KindReceiveHungUp, Reason: reason}
}

func ReceiveCandidateEvent(c IceCandidate) Event {
	return Event{Kind: KindReceiveCandidate, Candidate: &c}
}

// MarshalJSON encodes the event as an externally tagged single-key object.
func (e Event) MarshalJSON() ([]byte, error) {
	var payload any
	switch e.Kind {
	case KindInitRooms:
		payload = e.Rooms
	case KindInitFriends:
		payload = e.Friends
	case KindInitMessages:
		payload = e.MessagesMap
	case KindSend, KindReceive:
		payload = e.Message
	case KindReceiveFriend:
		payload = e.Friend
	case KindReceiveRoom:
		payload = e.Room
	case KindAddFriend, KindAcceptFriend, KindRevertFriend, KindDeleteFriend,
		KindSendCall, KindSendCallDone:
		payload = e.PeerID
	case KindReceiveCall:
		payload = [2]any{e.PeerID, e.ClientID}
	case KindSendReply:
		payload = [2]any{e.PeerID, e.ClientID}
	case KindReceiveReply:
		payload = e.ClientID
	case KindSendHungUp:
		payload = [2]any{e.PeerID, e.Reason}
	case KindReceiveHungUp:
		payload = e.Reason
	case KindSendOffer, KindSendAnswer:
		payload = [3]any{e.PeerID, e.ClientID, e.SDP}
	case KindReceiveOffer, KindReceiveAnswer:
		payload = e.SDP
	case KindSendCandidate:
		payload = [3]any{e.PeerID, e.ClientID, e.Candidate}
	case KindReceiveCandidate:
		payload = e.Candidate
	default:
		return nil, fmt.Errorf("marshal event: unknown kind %q", e.Kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{string(e.Kind): raw})
}

// UnmarshalJSON decodes an externally tagged event object.
func (e *Event) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("unmarshal event: expected one variant, got %d", len(tagged))
	}

	var kind EventKind
	var raw json.RawMessage
	for k, v := range tagged {
		kind, raw = EventKind(k), v
	}

	*e = Event{Kind: kind}
	switch kind {
	case KindInitRooms:
		return json.Unmarshal(raw, &e.Rooms)
	case KindInitFriends:
		return json.Unmarshal(raw, &e.Friends)
	case KindInitMessages:
		return json.Unmarshal(raw, &e.MessagesMap)
	case KindSend, KindReceive:
		e.Message = &Message{}
		return json.Unmarshal(raw, e.Message)
	case KindReceiveFriend:
		e.Friend = &Friend{}
		return json.Unmarshal(raw, e.Friend)
	case KindReceiveRoom:
		e.Room = &Room{}
		return json.Unmarshal(raw, e.Room)
	case KindAddFriend, KindAcceptFriend, KindRevertFriend, KindDeleteFriend,
		KindSendCall, KindSendCallDone:
		return json.Unmarshal(raw, &e.PeerID)
	case KindReceiveCall, KindSendReply:
		return decodeTuple(raw, &e.PeerID, &e.ClientID)
	case KindReceiveReply:
		return json.Unmarshal(raw, &e.ClientID)
	case KindSendHungUp:
		return decodeTuple(raw, &e.PeerID, &e.Reason)
	case KindReceiveHungUp:
		return json.Unmarshal(raw, &e.Reason)
	case KindSendOffer, KindSendAnswer:
		return decodeTuple(raw, &e.PeerID, &e.ClientID, &e.SDP)
	case KindReceiveOffer, KindReceiveAnswer:
		return json.Unmarshal(raw, &e.SDP)
	case KindSendCandidate:
		e.Candidate = &IceCandidate{}
		return decodeTuple(raw, &e.PeerID, &e.ClientID, e.Candidate)
	case KindReceiveCandidate:
		e.Candidate = &IceCandidate{}
		return json.Unmarshal(raw, e.Candidate)
	default:
		return fmt.Errorf("unmarshal event: unknown kind %q", kind)
	}
}

// decodeTuple unpacks a JSON array payload into the given targets.
func decodeTuple(raw json.RawMessage, targets ...any) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return err
	}
	if len(parts) != len(targets) {
		return fmt.Errorf("unmarshal event: expected %d tuple elements, got %d", len(targets), len(parts))
	}
	for i, part := range parts {
		if err := json.Unmarshal(part, targets[i]); err != nil {
			return err
		}
	}
	return nil
}

// Encode serializes an event for the wire.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses one inbound WebSocket frame.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
