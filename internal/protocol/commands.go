package protocol

// Outbound command tags.
const (
	TypeJoinRoom                   = "join_room"
	TypeLeaveRoom                  = "leave_room"
	TypeRoomBroadcast              = "room_broadcast"
	TypeUpdateStatus               = "update_status"
	TypeSubscribeToProfile         = "subscribe_to_profile"
	TypeUnsubscribeFromProfile     = "unsubscribe_from_profile"
	TypeChangeDisplayname          = "change_displayname"
	TypeGetRoomList                = "get_room_list"
	TypeGetRoomUsers               = "get_room_users"
	TypeGetUsernameFromDisplayname = "get_username_from_displayname"
	TypePong                       = "pong"
	// TypePrivateMessage is shared with the inbound event of the same name.
)

type RoomBroadcast struct {
	Payload  string `json:"payload"`
	RoomName string `json:"room_name"`
}

type PrivateMessageCommand struct {
	Payload        string `json:"payload"`
	TargetUsername string `json:"target_username"`
}

type ProfileSubscription struct {
	UserId int `json:"user_id"`
}

type ChangeDisplayname struct {
	DisplayName string `json:"displayName"`
}
