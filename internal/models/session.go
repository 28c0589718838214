package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the fixed side a user takes in a room.
type Role string

const (
	RoleAsker      Role = "asker"
	RoleRespondent Role = "respondent"
)

// Opposite returns the role a user of this role is paired with.
func (r Role) Opposite() Role {
	if r == RoleAsker {
		return RoleRespondent
	}
	return RoleAsker
}

func (r Role) Valid() bool {
	return r == RoleAsker || r == RoleRespondent
}

// ParseRole accepts the role names plus the interviewer/interviewee aliases.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asker", "interviewer":
		return RoleAsker, nil
	case "respondent", "interviewee":
		return RoleRespondent, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

const (
	StatusWaiting   = "waiting"
	StatusInSession = "in_session"
)

// SessionState is either Waiting or InSession.
type SessionState interface {
	status() string
}

// Waiting means the user sits in its role's queue.
type Waiting struct {
	Since time.Time
}

func (Waiting) status() string { return StatusWaiting }

// InSession means the user is paired. Both participants share PairID.
type InSession struct {
	PeerID string
	PairID string
	Since  time.Time
}

func (InSession) status() string { return StatusInSession }

// Session is a user's current enrollment record.
type Session struct {
	UserID string
	RoomID string
	Role   Role
	State  SessionState
}

func (s Session) Status() string {
	if s.State == nil {
		return ""
	}
	return s.State.status()
}

func (s Session) IsWaiting() bool {
	_, ok := s.State.(Waiting)
	return ok
}

// Pairing returns the InSession state if the user is paired.
func (s Session) Pairing() (InSession, bool) {
	p, ok := s.State.(InSession)
	return p, ok
}

// PeerID is empty unless the session is paired.
func (s Session) PeerID() string {
	if p, ok := s.Pairing(); ok {
		return p.PeerID
	}
	return ""
}

func NewWaitingSession(userID, roomID string, role Role, now time.Time) Session {
	return Session{UserID: userID, RoomID: roomID, Role: role, State: Waiting{Since: now}}
}

func NewPairedSession(userID, roomID string, role Role, peerID, pairID string, now time.Time) Session {
	return Session{
		UserID: userID,
		RoomID: roomID,
		Role:   role,
		State:  InSession{PeerID: peerID, PairID: pairID, Since: now},
	}
}
