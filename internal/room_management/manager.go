package room_management

import (
	"context"
	"time"

	"go.uber.org/zap"

	"peerprep/interview/internal/models"
)

// Listener receives room events on a delivery goroutine, one room's events in
// the order they were committed.
type Listener interface {
	HandleEvent(ctx context.Context, event models.Event)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(ctx context.Context, event models.Event)

func (f ListenerFunc) HandleEvent(ctx context.Context, event models.Event) { f(ctx, event) }

// Stats is a point-in-time summary across all rooms.
type Stats struct {
	Rooms              int
	WaitingAskers      int
	WaitingRespondents int
	ActivePairs        int
}

// RoomManager is the API the transport layer talks to. It resolves room ids,
// runs one room operation and leaves its events on the room's delivery queue.
type RoomManager struct {
	dir      *UserDirectory
	registry *RoomRegistry
	events   *dispatcher
	logger   *zap.Logger
}

func NewRoomManager(logger *zap.Logger, listeners ...Listener) *RoomManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := NewUserDirectory()
	events := newDispatcher(logger, listeners)
	registry := NewRoomRegistry(dir)
	registry.events = events
	return &RoomManager{
		dir:      dir,
		registry: registry,
		events:   events,
		logger:   logger,
	}
}

// AddListener registers l for events committed from now on.
func (rm *RoomManager) AddListener(l Listener) {
	rm.events.addListener(l)
}

// Flush waits until every event committed so far has been delivered.
func (rm *RoomManager) Flush() {
	rm.events.flush()
}

func (rm *RoomManager) Directory() *UserDirectory { return rm.dir }

func (rm *RoomManager) Registry() *RoomRegistry { return rm.registry }

func (rm *RoomManager) CreateRoom(ctx context.Context) string {
	room := rm.registry.CreateRoom()
	rm.logger.Info("room created", zap.String("roomId", room.ID))
	return room.ID
}

func (rm *RoomManager) room(roomID string) (*Room, error) {
	room, ok := rm.registry.Lookup(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (rm *RoomManager) Enroll(ctx context.Context, roomID, userID string, role models.Role) (models.Result, error) {
	if userID == "" {
		return models.Result{}, ErrMissingUser
	}
	if !role.Valid() {
		return models.Result{}, ErrInvalidRole
	}
	room, err := rm.room(roomID)
	if err != nil {
		return models.Result{}, err
	}

	res, _, err := room.Enroll(userID, role)
	if err != nil {
		return models.Result{}, err
	}
	rm.logger.Info("user enrolled",
		zap.String("roomId", roomID),
		zap.String("userId", userID),
		zap.String("role", string(role)),
		zap.Bool("paired", res.Paired))
	return res, nil
}

func (rm *RoomManager) Exit(ctx context.Context, roomID, userID string) (models.Result, error) {
	room, err := rm.room(roomID)
	if err != nil {
		return models.Result{}, err
	}
	res, _, err := room.Exit(userID)
	if err != nil {
		return models.Result{}, err
	}
	rm.logger.Info("user exited", zap.String("roomId", roomID), zap.String("userId", userID))
	return res, nil
}

func (rm *RoomManager) Finish(ctx context.Context, roomID, userID string) (models.Result, error) {
	room, err := rm.room(roomID)
	if err != nil {
		return models.Result{}, err
	}
	res, _, err := room.Finish(userID)
	if err != nil {
		return models.Result{}, err
	}
	rm.logger.Info("session finished",
		zap.String("roomId", roomID),
		zap.String("userId", userID),
		zap.Bool("repaired", res.Paired))
	return res, nil
}

// Status returns the caller's session, read under its room's lock.
func (rm *RoomManager) Status(userID string) (models.Session, error) {
	s, ok := rm.dir.Get(userID)
	// A concurrent exit and re-enroll can move the user between the two reads;
	// follow it until both reads name the same room.
	for ok {
		room, found := rm.registry.Lookup(s.RoomID)
		if !found {
			next, still := rm.dir.Get(userID)
			if !still || next.RoomID == s.RoomID {
				break
			}
			s = next
			continue
		}
		current, present := room.session(userID)
		if !present {
			break
		}
		if current.RoomID == room.ID {
			return current, nil
		}
		s = current
	}
	return models.Session{}, ErrNotEnrolled
}

func (rm *RoomManager) RemainingAhead(roomID, userID string) (int, error) {
	room, err := rm.room(roomID)
	if err != nil {
		return 0, err
	}
	return room.RemainingAhead(userID)
}

func (rm *RoomManager) QueuePosition(roomID, userID string) (int, error) {
	room, err := rm.room(roomID)
	if err != nil {
		return 0, err
	}
	return room.Position(userID)
}

func (rm *RoomManager) QueueDepth(roomID string, role models.Role) (int, error) {
	if !role.Valid() {
		return 0, ErrInvalidRole
	}
	room, err := rm.room(roomID)
	if err != nil {
		return 0, err
	}
	return room.Depth(role), nil
}

func (rm *RoomManager) RoomInfo(roomID string) (models.RoomInfo, error) {
	room, err := rm.room(roomID)
	if err != nil {
		return models.RoomInfo{}, err
	}
	return room.Info(), nil
}

func (rm *RoomManager) Stats() Stats {
	rooms := rm.registry.Rooms()
	stats := Stats{Rooms: len(rooms)}
	for _, room := range rooms {
		info := room.Info()
		stats.WaitingAskers += info.WaitingAskers
		stats.WaitingRespondents += info.WaitingRespondents
		stats.ActivePairs += info.ActivePairs
	}
	return stats
}

// ReapIdleRooms removes empty rooms idle for at least idleFor.
func (rm *RoomManager) ReapIdleRooms(ctx context.Context, idleFor time.Duration) []string {
	reaped := rm.registry.Reap(idleFor, time.Now())
	if len(reaped) > 0 {
		rm.logger.Info("reaped idle rooms", zap.Strings("roomIds", reaped))
	}
	return reaped
}
