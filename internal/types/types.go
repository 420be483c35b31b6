package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UserID is a user identifier as it appears on the wire. The server may
// send it as a JSON string (session UUID) or a JSON number (database id);
// both are kept in canonical string form so they compare equal.
type UserID string

func (id UserID) String() string {
	return string(id)
}

func (id UserID) IsZero() bool {
	return id == ""
}

func (id UserID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)

func (p Presence) Valid() bool {
	switch p {
	case PresenceOnline, PresenceAway, PresenceOffline:
		return true
	}
	return false
}

// Identity is the local user. Username, display name and avatar come from
// the auth collaborator before the session starts; the id is bound later
// from the server's identity announcement.
type Identity struct {
	Id          UserID `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type RosterEntry struct {
	UserId      UserID   `json:"user_id,omitempty"`
	Username    string   `json:"username"`
	DisplayName string   `json:"display_name"`
	AvatarURL   string   `json:"avatar_url,omitempty"`
	Status      Presence `json:"status"`
}

type RoomListEntry struct {
	Name        string `json:"name"`
	MemberCount int    `json:"count"`
}

// ChatMessage is a message as handed to the rendering collaborator.
type ChatMessage struct {
	Room            string `json:"room,omitempty"`
	FromId          UserID `json:"from_id"`
	FromUsername    string `json:"from_username"`
	FromDisplayName string `json:"from_display_name"`
	Content         string `json:"content"`
	CreatedAt       string `json:"created_at"`
	EditedAt        string `json:"edited_at,omitempty"`
	Own             bool   `json:"own"`
	Private         bool   `json:"private"`
}

type MessageAuthor struct {
	Id          UserID `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// RoomMessage is a persisted message replayed by the server after a join.
type RoomMessage struct {
	Id          int           `json:"id"`
	Content     string        `json:"content"`
	CreatedAt   string        `json:"created_at"`
	EditedAt    string        `json:"edited_at,omitempty"`
	MessageType string        `json:"message_type"`
	User        MessageAuthor `json:"user"`
}
