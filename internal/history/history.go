package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"peerprep/interview/internal/models"
)

// InterviewRecord is one finished pairing.
type InterviewRecord struct {
	gorm.Model
	PairID       string    `gorm:"not null;uniqueIndex" json:"pairId"`
	RoomID       string    `gorm:"not null;index" json:"roomId"`
	AskerID      string    `gorm:"not null;index" json:"askerId"`
	RespondentID string    `gorm:"not null;index" json:"respondentId"`
	StartedAt    time.Time `json:"startedAt"`
	EndedAt      time.Time `json:"endedAt"`
	DurationSec  int       `json:"durationSeconds"`
}

// ErrRecordNotFound is returned when no interview has the requested pair id.
var ErrRecordNotFound = errors.New("interview record not found")

// Open connects to the configured database and migrates the history table.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported history driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&InterviewRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

// Create stores record unless a record with the same pair id already exists.
func (r *Repository) Create(ctx context.Context, record *InterviewRecord) error {
	var existing InterviewRecord
	err := r.DB.WithContext(ctx).Where("pair_id = ?", record.PairID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.DB.WithContext(ctx).Create(record).Error
}

// ListByUser returns the user's interviews on either side, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]InterviewRecord, error) {
	records := []InterviewRecord{}
	err := r.DB.WithContext(ctx).
		Where("asker_id = ? OR respondent_id = ?", userID, userID).
		Order("ended_at DESC").
		Find(&records).Error
	return records, err
}

func (r *Repository) GetByPairID(ctx context.Context, pairID string) (*InterviewRecord, error) {
	var record InterviewRecord
	if err := r.DB.WithContext(ctx).Where("pair_id = ?", pairID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Ping checks the underlying connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Recorder turns finished events into history rows.
type Recorder struct {
	repo   *Repository
	logger *zap.Logger
}

func NewRecorder(repo *Repository, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{repo: repo, logger: logger}
}

func (rc *Recorder) HandleEvent(ctx context.Context, event models.Event) {
	if event.Type != models.EventFinished {
		return
	}
	record := &InterviewRecord{
		PairID:       event.PairID,
		RoomID:       event.RoomID,
		AskerID:      event.AskerID,
		RespondentID: event.RespondentID,
		StartedAt:    event.StartedAt,
		EndedAt:      event.At,
		DurationSec:  int(event.At.Sub(event.StartedAt).Seconds()),
	}
	if err := rc.repo.Create(context.WithoutCancel(ctx), record); err != nil {
		rc.logger.Error("failed to record interview",
			zap.String("pairId", event.PairID),
			zap.Error(err))
	}
}
