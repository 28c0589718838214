package room_management

import (
	"sync"

	"peerprep/interview/internal/models"
)

// UserDirectory maps every enrolled user to its current session. It holds no
// validation logic; Room enforces the cross-field invariants. A sync.Map keeps
// enrollments into different rooms from contending on one mutex.
type UserDirectory struct {
	sessions sync.Map // userID -> models.Session
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{}
}

func (d *UserDirectory) Get(userID string) (models.Session, bool) {
	v, ok := d.sessions.Load(userID)
	if !ok {
		return models.Session{}, false
	}
	return v.(models.Session), true
}

func (d *UserDirectory) Put(s models.Session) {
	d.sessions.Store(s.UserID, s)
}

func (d *UserDirectory) Remove(userID string) {
	d.sessions.Delete(userID)
}

// claim stores s only if the user has no session yet.
func (d *UserDirectory) claim(s models.Session) bool {
	_, loaded := d.sessions.LoadOrStore(s.UserID, s)
	return !loaded
}

// Len counts enrolled users.
func (d *UserDirectory) Len() int {
	n := 0
	d.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
