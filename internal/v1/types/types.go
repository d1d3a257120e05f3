// Package types holds the domain types shared across the chat core: users,
// friendships, rooms, messages, sessions, and the WebSocket event protocol.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// --- Users ---

// UserRole is the numeric role code stored in the database and sent on the wire.
type UserRole uint8

const (
	RoleAdmin UserRole = 1
	RoleUser  UserRole = 2
)

// User is the public projection of an account. The password hash never leaves
// the store layer.
type User struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Nickname string   `json:"nickname"`
	Avatar   string   `json:"avatar"`
	Role     UserRole `json:"role"`
	Active   bool     `json:"active"`
}

// IsAdmin reports whether the user holds the administrator role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserKey returns the redis cache key for a user.
func UserKey(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// --- Sessions ---

// Session describes one authentication token as listed to its owner.
type Session struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Current   bool   `json:"current"`
}

// SessionKey returns the redis sorted-set key holding a user's sessions.
func SessionKey(userID int64) string {
	return fmt.Sprintf("session:%d", userID)
}

// --- Friendships ---

// FriendStatus is the friendship state code. Adding/Added are the two views of
// the same pending row: the requester sees Adding, the counterparty sees Added.
type FriendStatus uint8

const (
	StatusAccepted FriendStatus = 1
	StatusAdding   FriendStatus = 2
	StatusAdded    FriendStatus = 3
	StatusDeleted  FriendStatus = 4
)

// Friendship is the canonical stored row: one row per unordered pair, with
// ID0 < ID1 guaranteed by construction.
type Friendship struct {
	ID0    int64        `json:"id0"`
	ID1    int64        `json:"id1"`
	Status FriendStatus `json:"status"`
}

// StatusFor projects the stored status onto one side of the pair. The first
// user (ID0) sees the status as stored; the second sees Adding and Added
// swapped.
func (f Friendship) StatusFor(first bool) FriendStatus {
	if first {
		return f.Status
	}
	switch f.Status {
	case StatusAdding:
		return StatusAdded
	case StatusAdded:
		return StatusAdding
	default:
		return f.Status
	}
}

// Friend is the per-viewer projection of a Friendship joined with the
// counterparty's User row. Never persisted.
type Friend struct {
	ID       int64        `json:"id"`
	Username string       `json:"username"`
	Nickname string       `json:"nickname"`
	Avatar   string       `json:"avatar"`
	Status   FriendStatus `json:"status"`
	RoomID   string       `json:"room_id"`
}

// FriendFromUser builds the projection of a friendship around the given user.
// first marks whether user is ID0 of the stored row.
func FriendFromUser(fsp Friendship, user User, first bool) Friend {
	return Friend{
		ID:       user.ID,
		Username: user.Username,
		Nickname: user.Nickname,
		Avatar:   user.Avatar,
		Status:   fsp.StatusFor(first),
		RoomID:   FriendRoomID(fsp),
	}
}

// --- Rooms ---

// UserRoomID returns the id of a user's personal room.
func UserRoomID(userID int64) string {
	return fmt.Sprintf("chats:private-%d", userID)
}

// FriendRoomID returns the room id derived from a friendship, lower id first.
func FriendRoomID(fsp Friendship) string {
	return fmt.Sprintf("chats:room-%d-%d", fsp.ID0, fsp.ID1)
}

// Room is the client-facing room summary sent in InitRooms and ReceiveRoom.
type Room struct {
	Key     uuid.UUID `json:"key"`
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Cover   string    `json:"cover"`
	Unreads uint32    `json:"unreads"`
	Content string    `json:"content"`
	SendAt  int64     `json:"send_at"`
}

// RoomFromFriend builds an empty room summary for a newly accepted friend.
func RoomFromFriend(friend Friend) Room {
	return Room{
		Key:   uuid.New(),
		ID:    friend.RoomID,
		Name:  friend.Nickname,
		Cover: friend.Avatar,
	}
}

// --- Messages ---

// MessageKind is the numeric message-kind code.
type MessageKind uint8

const (
	KindText  MessageKind = 1
	KindImage MessageKind = 2
	KindFile  MessageKind = 3
)

// DivideThresholdSeconds is the gap after which clients render a timestamp
// separator before a message.
const DivideThresholdSeconds = 400

// Message is one chat message. Divide is derived at broadcast time and is
// meaningful only on the server→client path.
type Message struct {
	ID      uuid.UUID   `json:"id"`
	Content string      `json:"content"`
	URL     string      `json:"url"`
	Kind    MessageKind `json:"kind"`
	Divide  bool        `json:"divide"`
	RoomID  string      `json:"room_id"`
	Sender  User        `json:"sender"`
	SendAt  int64       `json:"send_at"`
}

// TextMessage creates a new text message stamped with the current time.
func TextMessage(roomID string, sender User, content string) Message {
	return Message{
		ID:      uuid.New(),
		Content: content,
		Kind:    KindText,
		RoomID:  roomID,
		Sender:  sender,
		SendAt:  time.Now().Unix(),
	}
}

// FileMessage creates a new image or file message stamped with the current time.
func FileMessage(roomID string, sender User, name, url string, img bool) Message {
	kind := KindFile
	if img {
		kind = KindImage
	}
	return Message{
		ID:      uuid.New(),
		Content: name,
		URL:     url,
		Kind:    kind,
		RoomID:  roomID,
		Sender:  sender,
		SendAt:  time.Now().Unix(),
	}
}

// WithDivide returns a copy of the message with Divide derived from the feed's
// last send time.
func (m Message) WithDivide(lastSendAt int64) Message {
	m.Divide = m.SendAt-lastSendAt > DivideThresholdSeconds
	return m
}

// --- Calls ---

// HungUpReason states why a call ends or fails to start.
type HungUpReason uint8

const (
	HungUpOffline HungUpReason = 1
	HungUpBusy    HungUpReason = 2
	HungUpRefuse  HungUpReason = 3
	HungUpCancel  HungUpReason = 4
	HungUpFinish  HungUpReason = 5
)

// IceCandidate is an opaque ICE candidate forwarded verbatim between two
// clients. The server never parses its contents.
type IceCandidate struct {
	Candidate     string `json:"candidate"`
	SdpMid        string `json:"sdp_mid"`
	SdpMLineIndex uint16 `json:"sdp_m_line_index"`
}

// --- Admin snapshot ---

// FeedData is one row of the admin hub snapshot.
type FeedData struct {
	Name       string `json:"name"`
	NumClients int    `json:"num_clients"`
	ActiveAt   int64  `json:"active_at"`
}
