package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMarshal_ExternallyTagged(t *testing.T) {
	data, err := SendCallDoneEvent(42).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"SendCallDone":42}`, string(data))
}

func TestEventMarshal_TupleVariants(t *testing.T) {
	clientID := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	data, err := ReceiveCallEvent(7, clientID).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"ReceiveCall":[7,"11111111-2222-3333-4444-555555555555"]}`, string(data))
}

func TestEventUnmarshal_SendOffer(t *testing.T) {
	raw := `{"SendOffer":[9,"11111111-2222-3333-4444-555555555555","v=0 sdp"]}`

	event, err := DecodeEvent([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, KindSendOffer, event.Kind)
	assert.Equal(t, int64(9), event.PeerID)
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", event.ClientID.String())
	assert.Equal(t, "v=0 sdp", event.SDP)
}

func TestEventUnmarshal_SendHungUp(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"SendHungUp":[3,2]}`))
	require.NoError(t, err)
	assert.Equal(t, KindSendHungUp, event.Kind)
	assert.Equal(t, int64(3), event.PeerID)
	assert.Equal(t, HungUpBusy, event.Reason)
}

func TestEventRoundTrip_Message(t *testing.T) {
	msg := TextMessage("chats:room-1-2", User{ID: 1, Username: "ada"}, "hello")
	msg.Divide = true

	data, err := ReceiveEvent(msg).Encode()
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	require.Equal(t, KindReceive, decoded.Kind)
	require.NotNil(t, decoded.Message)
	assert.Equal(t, msg, *decoded.Message)
}

func TestEventRoundTrip_Candidate(t *testing.T) {
	clientID := uuid.New()
	cand := IceCandidate{Candidate: "candidate:0 1 UDP", SdpMid: "0", SdpMLineIndex: 1}

	event := Event{Kind: KindSendCandidate, PeerID: 5, ClientID: clientID, Candidate: &cand}
	data, err := event.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, int64(5), decoded.PeerID)
	assert.Equal(t, clientID, decoded.ClientID)
	require.NotNil(t, decoded.Candidate)
	assert.Equal(t, cand, *decoded.Candidate)
}

func TestEventRoundTrip_InitMessages(t *testing.T) {
	mm := map[string][]Message{
		"chats:private-1": {TextMessage("chats:private-1", User{ID: 1}, "note")},
	}

	data, err := InitMessagesEvent(mm).Encode()
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, mm, decoded.MessagesMap)
}

func TestEventUnmarshal_RejectsUnknownVariant(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"Bogus":1}`))
	assert.Error(t, err)
}

func TestEventUnmarshal_RejectsMultipleVariants(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"SendCall":1,"AddFriend":2}`))
	assert.Error(t, err)
}

func TestEventUnmarshal_RejectsWrongTupleArity(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"SendReply":[1]}`))
	assert.Error(t, err)
}

func TestEventMarshal_SnakeCaseFields(t *testing.T) {
	room := Room{Key: uuid.New(), ID: "chats:room-1-2", Name: "ada", SendAt: 99}
	data, err := ReceiveRoomEvent(room).Encode()
	require.NoError(t, err)

	var tagged map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &tagged))
	payload := tagged["ReceiveRoom"]
	assert.Contains(t, payload, "send_at")
	assert.Contains(t, payload, "cover")
}
