package protocol

type Joined struct {
	RoomKey string `json:"roomKey"`
	Role    string `json:"role"`
}

func (Joined) Action() Action { return ActionJoined }

type RoomFull struct{}

func (RoomFull) Action() Action { return ActionRoomFull }

type SessionReady struct {
	RoomKey      string `json:"roomKey"`
	OpponentName string `json:"opponentName,omitempty"`
}

func (SessionReady) Action() Action { return ActionSessionReady }

type OpponentName struct {
	Name string `json:"name"`
}

func (OpponentName) Action() Action { return ActionOpponentName }

type MoveApplied struct {
	CellIndex int    `json:"cellIndex"`
	Mark      string `json:"mark"`
}

func (MoveApplied) Action() Action { return ActionMoveApplied }

type RoundRestarted struct {
	RoomKey string `json:"roomKey,omitempty"`
}

func (RoundRestarted) Action() Action { return ActionRoundRestarted }

type PlayerLeft struct{}

func (PlayerLeft) Action() Action { return ActionPlayerLeft }

type RoomExpired struct {
	RoomKey string `json:"roomKey"`
}

func (RoomExpired) Action() Action { return ActionRoomExpired }

// Error is only sent when membership enforcement rejects a request.
type Error struct {
	Reason string `json:"reason"`
}

func (Error) Action() Action { return ActionError }
