package room_management

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RoomRegistry maps room ids to rooms. The lock only guards the map; room
// operations never hold it.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	dir    *UserDirectory
	events *dispatcher
	newID  func() string
}

func NewRoomRegistry(dir *UserDirectory) *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*Room),
		dir:   dir,
		newID: func() string { return uuid.New().String() },
	}
}

// CreateRoom stores an empty room under a fresh id.
func (rr *RoomRegistry) CreateRoom() *Room {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	id := rr.newID()
	for {
		if _, taken := rr.rooms[id]; !taken {
			break
		}
		id = rr.newID()
	}
	room := NewRoom(id, rr.dir)
	if rr.events != nil {
		room.events = rr.events.newQueue()
	}
	rr.rooms[id] = room
	return room
}

func (rr *RoomRegistry) Lookup(roomID string) (*Room, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	room, ok := rr.rooms[roomID]
	return room, ok
}

// Rooms returns the current rooms ordered by id.
func (rr *RoomRegistry) Rooms() []*Room {
	rr.mu.RLock()
	rooms := make([]*Room, 0, len(rr.rooms))
	for _, room := range rr.rooms {
		rooms = append(rooms, room)
	}
	rr.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms
}

// Reap drops rooms that are empty and have been idle for at least idleFor.
func (rr *RoomRegistry) Reap(idleFor time.Duration, now time.Time) []string {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	var reaped []string
	for id, room := range rr.rooms {
		if room.closeIfIdle(idleFor, now) {
			delete(rr.rooms, id)
			reaped = append(reaped, id)
		}
	}
	sort.Strings(reaped)
	return reaped
}
