package model

import "time"

// RoundStatus is the lifecycle of one question/answer turn.
// Stored as a small integer; the three terminal states are absorbing.
type RoundStatus int16

const (
	RoundStatusPending    RoundStatus = 0
	RoundStatusProcessing RoundStatus = 1
	RoundStatusCompleted  RoundStatus = 2
	RoundStatusFailed     RoundStatus = 3
	RoundStatusStopped    RoundStatus = 4
)

// Terminal reports whether no further transition may leave this status.
func (s RoundStatus) Terminal() bool {
	return s >= RoundStatusCompleted
}

func (s RoundStatus) String() string {
	switch s {
	case RoundStatusPending:
		return "pending"
	case RoundStatusProcessing:
		return "processing"
	case RoundStatusCompleted:
		return "completed"
	case RoundStatusFailed:
		return "failed"
	case RoundStatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Round is one turn within a conversation: the question, the answer
// accumulated during streaming, and where the turn ended up.
type Round struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversation_id"`
	Question       string      `json:"question"`
	Answer         []byte      `json:"answer"`
	Status         RoundStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
