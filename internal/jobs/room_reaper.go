package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reaper is satisfied by *room_management.RoomManager.
type Reaper interface {
	ReapIdleRooms(ctx context.Context, idleFor time.Duration) []string
}

// RoomReaperJob periodically drops rooms that have been empty and idle for IdleTTL.
type RoomReaperJob struct {
	reaper   Reaper
	schedule string
	idleTTL  time.Duration
	cron     *cron.Cron
	logger   *zap.Logger
}

func NewRoomReaperJob(reaper Reaper, schedule string, idleTTL time.Duration, logger *zap.Logger) *RoomReaperJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomReaperJob{
		reaper:   reaper,
		schedule: schedule,
		idleTTL:  idleTTL,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start schedules the job. An empty schedule leaves reaping disabled.
func (j *RoomReaperJob) Start() error {
	if j.schedule == "" {
		j.logger.Info("room reaping is disabled, skipping scheduler")
		return nil
	}

	if _, err := j.cron.AddFunc(j.schedule, func() { j.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule room reaper: %w", err)
	}
	j.cron.Start()
	j.logger.Info("room reaper started",
		zap.String("schedule", j.schedule),
		zap.Duration("idleTTL", j.idleTTL))
	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (j *RoomReaperJob) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// RunOnce performs a single reaping pass.
func (j *RoomReaperJob) RunOnce(ctx context.Context) []string {
	reaped := j.reaper.ReapIdleRooms(ctx, j.idleTTL)
	j.logger.Debug("room reaper pass finished", zap.Int("reaped", len(reaped)))
	return reaped
}
