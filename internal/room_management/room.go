package room_management

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"peerprep/interview/internal/models"
)

// Room owns the two FIFO waiting queues of one matching namespace. Every queue
// change and every write to a session of this room happens under mu.
type Room struct {
	ID string

	mu           sync.Mutex
	dir          *UserDirectory
	askers       []string
	respondents  []string
	activePairs  int
	createdAt    time.Time
	lastActivity time.Time
	closed       bool
	events       *eventQueue

	now       func() time.Time
	newPairID func() string
}

func NewRoom(id string, dir *UserDirectory) *Room {
	now := time.Now()
	return &Room{
		ID:           id,
		dir:          dir,
		createdAt:    now,
		lastActivity: now,
		now:          time.Now,
		newPairID:    func() string { return uuid.New().String() },
	}
}

func (r *Room) queue(role models.Role) *[]string {
	if role == models.RoleAsker {
		return &r.askers
	}
	return &r.respondents
}

// Enroll pairs userID with the longest-waiting user of the opposite role, or
// queues it when nobody is waiting. The user must not hold a session anywhere.
func (r *Room) Enroll(userID string, role models.Role) (models.Result, []models.Event, error) {
	if userID == "" {
		return models.Result{}, nil, ErrMissingUser
	}
	if !role.Valid() {
		return models.Result{}, nil, ErrInvalidRole
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return models.Result{}, nil, ErrRoomNotFound
	}
	res, events, err := r.enrollLocked(userID, role, r.dir.claim)
	if err != nil {
		return models.Result{}, nil, err
	}
	r.emit(events)
	return res, events, nil
}

// emit queues events for delivery. The caller holds mu.
func (r *Room) emit(events []models.Event) {
	if r.events != nil {
		r.events.push(events)
	}
}

// enrollLocked runs the matching step. store writes the caller's new session and
// reports false if the user already had one; nothing is mutated before it succeeds.
func (r *Room) enrollLocked(userID string, role models.Role, store func(models.Session) bool) (models.Result, []models.Event, error) {
	now := r.now()
	waiting := r.queue(role.Opposite())

	if len(*waiting) == 0 {
		if !store(models.NewWaitingSession(userID, r.ID, role, now)) {
			return models.Result{}, nil, ErrAlreadyEnrolled
		}
		own := r.queue(role)
		*own = append(*own, userID)
		r.lastActivity = now

		return models.Result{
				Message: fmt.Sprintf("no %s waiting, queued", role.Opposite()),
			}, []models.Event{{
				Type:   models.EventQueued,
				RoomID: r.ID,
				UserID: userID,
				Role:   role,
				At:     now,
			}}, nil
	}

	peerID := (*waiting)[0]
	pairID := r.newPairID()
	if !store(models.NewPairedSession(userID, r.ID, role, peerID, pairID, now)) {
		return models.Result{}, nil, ErrAlreadyEnrolled
	}
	r.dir.Put(models.NewPairedSession(peerID, r.ID, role.Opposite(), userID, pairID, now))
	*waiting = (*waiting)[1:]
	r.activePairs++
	r.lastActivity = now

	asker, respondent := userID, peerID
	if role == models.RoleRespondent {
		asker, respondent = peerID, userID
	}

	return models.Result{
			Paired:  true,
			PeerID:  peerID,
			PairID:  pairID,
			Message: fmt.Sprintf("paired with %s", peerID),
		}, []models.Event{{
			Type:         models.EventPaired,
			RoomID:       r.ID,
			AskerID:      asker,
			RespondentID: respondent,
			PairID:       pairID,
			StartedAt:    now,
			At:           now,
		}}, nil
}

// Exit removes a waiting user from the room. Paired users cannot leave.
func (r *Room) Exit(userID string) (models.Result, []models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return models.Result{}, nil, ErrRoomNotFound
	}
	s, ok := r.dir.Get(userID)
	if !ok || s.RoomID != r.ID {
		return models.Result{}, nil, ErrNotEnrolled
	}
	if !s.IsWaiting() {
		return models.Result{}, nil, illegalState("cannot leave while paired")
	}

	removeFrom(r.queue(s.Role), userID)
	r.dir.Remove(userID)
	now := r.now()
	r.lastActivity = now

	events := []models.Event{{
		Type:   models.EventExited,
		RoomID: r.ID,
		UserID: userID,
		Role:   s.Role,
		At:     now,
	}}
	r.emit(events)
	return models.Result{Message: "left the room"}, events, nil
}

// Finish ends the asker's session: both sessions are dropped, then the asker is
// enrolled again. The asker's directory entry is overwritten in place so it is
// never observed without a session.
func (r *Room) Finish(userID string) (models.Result, []models.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return models.Result{}, nil, ErrRoomNotFound
	}
	s, ok := r.dir.Get(userID)
	if !ok || s.RoomID != r.ID {
		return models.Result{}, nil, ErrNotEnrolled
	}
	if s.Role != models.RoleAsker {
		return models.Result{}, nil, ErrNotAsker
	}
	pairing, ok := s.Pairing()
	if !ok {
		return models.Result{}, nil, illegalState("not currently in a session")
	}

	r.dir.Remove(pairing.PeerID)
	r.activePairs--
	finished := models.Event{
		Type:         models.EventFinished,
		RoomID:       r.ID,
		AskerID:      userID,
		RespondentID: pairing.PeerID,
		PairID:       pairing.PairID,
		StartedAt:    pairing.Since,
		At:           r.now(),
	}

	res, events, err := r.enrollLocked(userID, s.Role, func(next models.Session) bool {
		r.dir.Put(next)
		return true
	})
	if err != nil {
		return models.Result{}, nil, err
	}
	events = append([]models.Event{finished}, events...)
	r.emit(events)
	return res, events, nil
}

// Position is the zero-based place of a waiting user in its own role's queue.
func (r *Room) Position(userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.dir.Get(userID)
	if !ok || s.RoomID != r.ID || !s.IsWaiting() {
		return 0, ErrNotFound
	}
	for i, id := range *r.queue(s.Role) {
		if id == userID {
			return i, nil
		}
	}
	return 0, ErrNotFound
}

// Depth is the number of users waiting as role.
func (r *Room) Depth(role models.Role) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(*r.queue(role))
}

// RemainingAhead is the respondent queue depth when userID is empty, otherwise
// the user's own queue position.
func (r *Room) RemainingAhead(userID string) (int, error) {
	if userID == "" {
		return r.Depth(models.RoleRespondent), nil
	}
	return r.Position(userID)
}

func (r *Room) Info() models.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.RoomInfo{
		RoomID:             r.ID,
		WaitingAskers:      len(r.askers),
		WaitingRespondents: len(r.respondents),
		ActivePairs:        r.activePairs,
		CreatedAt:          r.createdAt,
		LastActivity:       r.lastActivity,
	}
}

// session reads a user's directory entry while holding the room lock, so a
// pair of this room is never seen half written. The entry may name another room
// if the user moved since the caller last looked.
func (r *Room) session(userID string) (models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir.Get(userID)
}

// closeIfIdle marks the room closed when nobody is queued or paired and nothing
// happened for idleFor.
func (r *Room) closeIfIdle(idleFor time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	if len(r.askers) > 0 || len(r.respondents) > 0 || r.activePairs > 0 {
		return false
	}
	if now.Sub(r.lastActivity) < idleFor {
		return false
	}
	r.closed = true
	return true
}

func removeFrom(q *[]string, userID string) {
	for i, id := range *q {
		if id == userID {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return
		}
	}
}
