package session

import (
	"testing"

	"github.com/npezzotti/go-chatclient/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestParseIntent(t *testing.T) {
	tests := []struct {
		line    string
		want    Intent
		wantErr bool
	}{
		{line: "hello there", want: Broadcast{Text: "hello there"}},
		{line: "", want: Broadcast{Text: ""}},
		{line: "   ", want: Broadcast{Text: "   "}},
		{line: "/join lobby", want: JoinRoom{Room: "lobby"}},
		{line: "/JOIN  lobby ", want: JoinRoom{Room: "lobby"}},
		{line: "/join", wantErr: true},
		{line: "/leave", want: LeaveRoom{}},
		{line: "/leave games", want: LeaveRoom{Room: "games"}},
		{line: "/status away", want: UpdateStatus{Status: types.PresenceAway}},
		{line: "/status Online", want: UpdateStatus{Status: types.PresenceOnline}},
		{line: "/status offline", wantErr: true},
		{line: "/status busy", wantErr: true},
		{line: "/nick Ally Cat", want: ChangeDisplayName{Name: "Ally Cat"}},
		{line: "/nick", wantErr: true},
		{line: "/rooms", want: ListRooms{}},
		{line: "/who", want: ListRoomUsers{}},
		{line: "/who lobby", want: ListRoomUsers{Room: "lobby"}},
		{line: "/profile 12", want: SubscribeProfile{UserId: 12}},
		{line: "/profile bob", wantErr: true},
		{line: "/unprofile", want: UnsubscribeProfile{}},
		{line: "/whois Bob", want: ResolveUsername{DisplayName: "Bob"}},
		{line: "/whois", wantErr: true},
		{line: "/msg bob see you soon", want: SendPrivate{To: "bob", Text: "see you soon"}},
		{line: "/msg bob", want: SendPrivate{To: "bob"}},
		{line: "/msg", wantErr: true},
		{line: "/reconnect", want: Reconnect{}},
		{line: "/dance", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := ParseIntent(tt.line)
			if tt.wantErr {
				assert.Error(t, err, "expected %q to be rejected", tt.line)
				assert.Nil(t, got)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIntent_unknownCommand(t *testing.T) {
	_, err := ParseIntent("/dance")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Contains(t, err.Error(), "/dance")
}
