package models

import (
	"errors"
	"time"
)

// Result is what enroll and finish report back to the caller.
type Result struct {
	Paired  bool   `json:"paired"`
	PeerID  string `json:"peerId,omitempty"`
	PairID  string `json:"pairId,omitempty"`
	Message string `json:"message"`
}

type EventType string

const (
	EventQueued   EventType = "queued"
	EventPaired   EventType = "paired"
	EventExited   EventType = "exited"
	EventFinished EventType = "finished"
)

// Event describes one change in a room. Queued/exited events carry UserID and Role,
// paired/finished events carry both participants.
type Event struct {
	Type         EventType `json:"type"`
	RoomID       string    `json:"roomId"`
	UserID       string    `json:"userId,omitempty"`
	Role         Role      `json:"role,omitempty"`
	AskerID      string    `json:"askerId,omitempty"`
	RespondentID string    `json:"respondentId,omitempty"`
	PairID       string    `json:"pairId,omitempty"`
	StartedAt    time.Time `json:"startedAt,omitempty"`
	At           time.Time `json:"at"`
}

// RoomInfo is a read-only view of one room.
type RoomInfo struct {
	RoomID             string    `json:"roomId"`
	WaitingAskers      int       `json:"waitingAskers"`
	WaitingRespondents int       `json:"waitingRespondents"`
	ActivePairs        int       `json:"activePairs"`
	CreatedAt          time.Time `json:"createdAt"`
	LastActivity       time.Time `json:"lastActivity"`
}

type Resp struct {
	OK   bool        `json:"ok"`
	Info interface{} `json:"info"`
}

type EnrollReq struct {
	Role string `json:"role"`
}

func (r *EnrollReq) Validate() error {
	if r.Role == "" {
		return errors.New("role is required")
	}
	if _, err := ParseRole(r.Role); err != nil {
		return err
	}
	return nil
}

type EnrollResp struct {
	RoomID  string `json:"roomId"`
	Role    Role   `json:"role"`
	Paired  bool   `json:"paired"`
	PeerID  string `json:"peerId,omitempty"`
	PairID  string `json:"pairId,omitempty"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

type StatusResp struct {
	RoomID string `json:"roomId"`
	Role   Role   `json:"role"`
	Status string `json:"status"`
	PeerID string `json:"peerId,omitempty"`
	PairID string `json:"pairId,omitempty"`
	Token  string `json:"token,omitempty"`
}

type RemainingResp struct {
	RoomID    string `json:"roomId"`
	Role      Role   `json:"role"`
	Remaining int    `json:"remaining"`
}
