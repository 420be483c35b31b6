package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/npezzotti/go-chatclient/internal/types"
)

// Inbound envelope tags. RecieveUsername keeps the server's spelling.
const (
	TypeIdentityAnnounced  = "identity_announced"
	TypeSendMessage        = "send_message"
	TypePrivateMessage     = "private_message"
	TypeRoomUpdate         = "room_update"
	TypeUserJoined         = "user_joined"
	TypeUserLeft           = "user_left"
	TypeDisplaynameChanged = "displayname_changed"
	TypeRoomList           = "room_list"
	TypeUserStatusChanged  = "user_status_changed"
	TypeUserStatusUpdate   = "user_status_update"
	TypeRecieveUsername    = "recieve_username"
	TypeLoadRoomMessages   = "load_room_messages"
	TypePing               = "ping"
	TypeError              = "error"
)

// Event is the closed set of inbound events. Only types in this package
// implement it.
type Event interface {
	EventType() string
	event()
}

type IdentityAnnounced struct {
	Payload types.UserID `json:"payload"`
}

type SendMessage struct {
	Payload         string       `json:"payload"`
	FromId          types.UserID `json:"from_id"`
	FromUsername    string       `json:"from_username"`
	FromDisplayName string       `json:"from_display_name"`
	CreatedAt       string       `json:"created_at"`
	EditedAt        string       `json:"edited_at,omitempty"`
}

type PrivateMessage struct {
	Payload         string       `json:"payload"`
	FromId          types.UserID `json:"from_id"`
	FromUsername    string       `json:"from_username"`
	FromDisplayName string       `json:"from_display_name"`
	CreatedAt       string       `json:"created_at"`
	EditedAt        string       `json:"edited_at,omitempty"`
}

type RoomUpdate struct {
	RoomName string              `json:"room_name"`
	Users    []types.RosterEntry `json:"users"`
}

type UserJoined struct {
	RoomName string `json:"room_name"`
	Username string `json:"username"`
}

type UserLeft struct {
	RoomName string `json:"room_name"`
	Username string `json:"username"`
}

type DisplaynameChanged struct {
	Old string `json:"old"`
	New string `json:"new"`
}

type RoomList struct {
	Rooms []types.RoomListEntry `json:"rooms"`
}

type UserStatusChanged struct {
	Username string         `json:"username"`
	Status   types.Presence `json:"status"`
}

type UserStatusUpdate struct {
	Status types.Presence `json:"status"`
}

type RecieveUsername struct {
	Username string `json:"username"`
}

type LoadRoomMessages struct {
	RoomName string              `json:"room_name"`
	Messages []types.RoomMessage `json:"messages"`
}

type Ping struct{}

type ServerError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorCode is the server's error code, sent as a JSON string or number.
type ErrorCode string

func (c *ErrorCode) UnmarshalJSON(data []byte) error {
	var v types.UserID
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	*c = ErrorCode(v)
	return nil
}

// Unknown carries a tag this client does not understand.
type Unknown struct {
	Type string
}

func (IdentityAnnounced) EventType() string  { return TypeIdentityAnnounced }
func (SendMessage) EventType() string        { return TypeSendMessage }
func (PrivateMessage) EventType() string     { return TypePrivateMessage }
func (RoomUpdate) EventType() string         { return TypeRoomUpdate }
func (UserJoined) EventType() string         { return TypeUserJoined }
func (UserLeft) EventType() string           { return TypeUserLeft }
func (DisplaynameChanged) EventType() string { return TypeDisplaynameChanged }
func (RoomList) EventType() string           { return TypeRoomList }
func (UserStatusChanged) EventType() string  { return TypeUserStatusChanged }
func (UserStatusUpdate) EventType() string   { return TypeUserStatusUpdate }
func (RecieveUsername) EventType() string    { return TypeRecieveUsername }
func (LoadRoomMessages) EventType() string   { return TypeLoadRoomMessages }
func (Ping) EventType() string               { return TypePing }
func (ServerError) EventType() string        { return TypeError }
func (u Unknown) EventType() string          { return u.Type }

func (IdentityAnnounced) event()  {}
func (SendMessage) event()        {}
func (PrivateMessage) event()     {}
func (RoomUpdate) event()         {}
func (UserJoined) event()         {}
func (UserLeft) event()           {}
func (DisplaynameChanged) event() {}
func (RoomList) event()           {}
func (UserStatusChanged) event()  {}
func (UserStatusUpdate) event()   {}
func (RecieveUsername) event()    {}
func (LoadRoomMessages) event()   {}
func (Ping) event()               {}
func (ServerError) event()        {}
func (Unknown) event()            {}

// ParseEvent maps a decoded envelope onto its typed event. Tags outside the
// known set yield Unknown and no error.
func ParseEvent(env *Envelope) (Event, error) {
	switch env.Type {
	case TypeIdentityAnnounced:
		return unmarshalEvent[IdentityAnnounced](env)
	case TypeSendMessage:
		return unmarshalEvent[SendMessage](env)
	case TypePrivateMessage:
		return unmarshalEvent[PrivateMessage](env)
	case TypeRoomUpdate:
		return unmarshalEvent[RoomUpdate](env)
	case TypeUserJoined:
		return unmarshalEvent[UserJoined](env)
	case TypeUserLeft:
		return unmarshalEvent[UserLeft](env)
	case TypeDisplaynameChanged:
		return unmarshalEvent[DisplaynameChanged](env)
	case TypeRoomList:
		return unmarshalEvent[RoomList](env)
	case TypeUserStatusChanged:
		return unmarshalEvent[UserStatusChanged](env)
	case TypeUserStatusUpdate:
		return unmarshalEvent[UserStatusUpdate](env)
	case TypeRecieveUsername:
		return unmarshalEvent[RecieveUsername](env)
	case TypeLoadRoomMessages:
		return unmarshalEvent[LoadRoomMessages](env)
	case TypePing:
		return Ping{}, nil
	case TypeError:
		return unmarshalEvent[ServerError](env)
	default:
		return Unknown{Type: env.Type}, nil
	}
}

func unmarshalEvent[T Event](env *Envelope) (Event, error) {
	var ev T
	if err := json.Unmarshal(env.Body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
	}
	return ev, nil
}
