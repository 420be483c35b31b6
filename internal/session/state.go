package session

import (
	"slices"
	"sync"

	"github.com/npezzotti/go-chatclient/internal/types"
)

// State is the room and presence view of one session. Only the session
// goroutine writes it; the exported methods are read-only projections safe
// to call from any goroutine.
type State struct {
	mu            sync.RWMutex
	identity      types.Identity
	identityBound bool
	currentRoom   string
	chatOpen      bool
	rosters       map[string][]types.RosterEntry
	rooms         []types.RoomListEntry
	presence      types.Presence
	profileStatus types.Presence
}

// Snapshot is a copy of State at one point in time.
type Snapshot struct {
	Identity      types.Identity        `json:"identity"`
	IdentityBound bool                  `json:"identity_bound"`
	CurrentRoom   string                `json:"current_room"`
	ChatOpen      bool                  `json:"chat_open"`
	Roster        []types.RosterEntry   `json:"roster"`
	Rooms         []types.RoomListEntry `json:"rooms"`
	Presence      types.Presence        `json:"presence"`
	ProfileStatus types.Presence        `json:"profile_status,omitempty"`
}

func NewState(identity types.Identity) *State {
	return &State{
		identity: identity,
		rosters:  make(map[string][]types.RosterEntry),
		presence: types.PresenceOffline,
	}
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Identity:      s.identity,
		IdentityBound: s.identityBound,
		CurrentRoom:   s.currentRoom,
		ChatOpen:      s.chatOpen,
		Roster:        slices.Clone(s.rosters[s.currentRoom]),
		Rooms:         slices.Clone(s.rooms),
		Presence:      s.presence,
		ProfileStatus: s.profileStatus,
	}
}

func (s *State) Identity() types.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *State) CurrentRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRoom
}

func (s *State) Roster() []types.RosterEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rosters[s.currentRoom])
}

func (s *State) MyPresence() types.Presence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.presence
}

// bindIdentity sets the local id once. Later announcements are ignored.
func (s *State) bindIdentity(id types.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identityBound {
		return false
	}
	s.identity.Id = id
	s.identityBound = true
	return true
}

func (s *State) isLocalUser(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return username != "" && username == s.identity.Username
}

func (s *State) isLocalId(id types.UserID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identityBound && !id.IsZero() && id == s.identity.Id
}

// openRoom records the local user's confirmed membership. It returns the
// room shown before and whether the chat surface was already visible.
// Rosters of every other room are dropped; a roster the server already sent
// for room itself is kept.
func (s *State) openRoom(room string) (prev string, wasOpen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, wasOpen = s.currentRoom, s.chatOpen
	s.currentRoom = room
	for name := range s.rosters {
		if name != room {
			delete(s.rosters, name)
		}
	}
	s.chatOpen = true
	return prev, wasOpen
}

// closeRoom clears room state when the local user leaves room.
func (s *State) closeRoom(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentRoom != room {
		return false
	}
	s.currentRoom = ""
	clear(s.rosters)
	s.chatOpen = false
	return true
}

// replaceRoster stores the server's roster for room. It reports whether the
// visible roster changed.
func (s *State) replaceRoster(room string, roster []types.RosterEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rosters[room] = slices.Clone(roster)
	return s.currentRoom == "" || s.currentRoom == room
}

// noteMember adds a placeholder roster entry for a user the server reported
// joining the current room. The next room_update replaces it.
func (s *State) noteMember(room, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room != s.currentRoom {
		return false
	}
	roster := s.rosters[room]
	if slices.ContainsFunc(roster, func(e types.RosterEntry) bool { return e.Username == username }) {
		return false
	}
	s.rosters[room] = append(roster, types.RosterEntry{
		Username:    username,
		DisplayName: username,
		Status:      types.PresenceOnline,
	})
	return true
}

func (s *State) removeMember(room, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster, ok := s.rosters[room]
	if !ok || room != s.currentRoom {
		return false
	}
	n := len(roster)
	s.rosters[room] = slices.DeleteFunc(roster, func(e types.RosterEntry) bool { return e.Username == username })
	return len(s.rosters[room]) != n
}

// renameDisplayName replaces old with new in the local identity and in every
// roster entry, under one lock. It reports whether anything matched.
func (s *State) renameDisplayName(old, new string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old == "" || old == new {
		return false
	}

	changed := false
	if s.identity.DisplayName == old {
		s.identity.DisplayName = new
		changed = true
	}
	for _, roster := range s.rosters {
		for i := range roster {
			if roster[i].DisplayName == old {
				roster[i].DisplayName = new
				changed = true
			}
		}
	}
	return changed
}

func (s *State) replaceRoomList(rooms []types.RoomListEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms = slices.Clone(rooms)
}

func (s *State) setRosterStatus(username string, status types.Presence) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, roster := range s.rosters {
		for i := range roster {
			if roster[i].Username == username && roster[i].Status != status {
				roster[i].Status = status
				changed = true
			}
		}
	}
	return changed
}

func (s *State) setProfileStatus(status types.Presence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileStatus = status
}

// setPresence applies a presence transition. Leaving offline is only
// allowed on a fresh connection.
func (s *State) setPresence(to types.Presence, freshConnection bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !to.Valid() || s.presence == to {
		return false
	}
	if s.presence == types.PresenceOffline && !freshConnection {
		return false
	}
	s.presence = to
	return true
}
