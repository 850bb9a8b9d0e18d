package main

// Messages coming from clients. A single tagged shape covers both games;
// which fields are meaningful depends on Type.
type ClientMessage struct {
	Type           string       `json:"type"`                     // "createGame", "joinGame", "startGame", "playCard", "playCards", "discardCards", "counterAction", "rejoin", "requestRestart"
	SessionID      string       `json:"sessionId,omitempty"`      // joinGame / rejoin
	PlayerName     string       `json:"playerName,omitempty"`     // joinGame / rejoin
	Options        *GameOptions `json:"options,omitempty"`        // createGame
	CardID         string       `json:"cardId,omitempty"`         // playCard / counterAction
	CardIDs        []string     `json:"cardIds,omitempty"`        // discardCards
	TargetPlayerID string       `json:"targetPlayerId,omitempty"` // playCard (knight/potion)
	TargetQueenID  string       `json:"targetQueenId,omitempty"`  // playCard, or "first"
	CardType       int          `json:"cardType,omitempty"`       // playCards (kariba animal kind)
	Count          int          `json:"count,omitempty"`          // playCards
	Accept         bool         `json:"accept,omitempty"`         // counterAction
}

// GameOptions carries per-session house rules chosen by the table.
type GameOptions struct {
	AllQueens  bool `json:"allQueens,omitempty"`  // queens: play until the pool is empty
	ExpertMode bool `json:"expertMode,omitempty"` // kariba: three face-up open cards
}

// ServerInfoMessage is sent once on connect.
type ServerInfoMessage struct {
	Type    string `json:"type"` // "serverInfo"
	Version string `json:"version"`
	Prefix  string `json:"prefix,omitempty"`
}

// GameCreatedMessage is sent to the table after createGame.
type GameCreatedMessage struct {
	Type      string `json:"type"` // "gameCreated"
	SessionID string `json:"sessionId"`
	JoinURL   string `json:"joinUrl"`
	QRPath    string `json:"qrPath"` // PNG QR of the join URL
}

// JoinResultMessage is sent to the joining client only.
type JoinResultMessage struct {
	Type       string `json:"type"` // "joinResult"
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	PlayerID   string `json:"playerId,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
}

// PlayerJoinedMessage is broadcast to the session on a successful join.
type PlayerJoinedMessage struct {
	Type        string `json:"type"` // "playerJoined"
	PlayerID    string `json:"playerId"`
	PlayerName  string `json:"playerName"`
	PlayerCount int    `json:"playerCount"`
}

// ActionResultMessage reports the outcome of an action, either to the
// acting client alone (failures) or to the whole session (narration).
type ActionResultMessage struct {
	Type    string `json:"type"` // "actionResult"
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TurnStartMessage announces whose turn begins. TimeLimit is in seconds,
// 0 meaning no limit.
type TurnStartMessage struct {
	Type       string  `json:"type"` // "turnStart"
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	TimeLimit  float64 `json:"timeLimit"`
}

// CounterRequestMessage is sent only to the targeted player while an
// adversarial action awaits their response.
type CounterRequestMessage struct {
	Type           string  `json:"type"`        // "counterRequest"
	CounterType    string  `json:"counterType"` // card kind that blocks the attack
	TargetPlayerID string  `json:"targetPlayerId"`
	AttackerName   string  `json:"attackerName"`
	QueenName      string  `json:"queenName"`
	TimeLimit      float64 `json:"timeLimit"`
}

// RestartStatusMessage tracks rematch votes after a game ends.
type RestartStatusMessage struct {
	Type    string `json:"type"` // "restartStatus"
	Current int    `json:"current"`
	Total   int    `json:"total"`
}
