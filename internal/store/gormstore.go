package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harsh7800/adofly/internal/logging"
)

// Compile-time interface check.
var _ Store = (*GormStore)(nil)

type creativeModel struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(64)"`
	UserID    string    `gorm:"column:user_id;type:varchar(128);not null;index:idx_ad_creatives_user_created,priority:1"`
	Request   []byte    `gorm:"column:request;type:jsonb;not null"`
	Creative  []byte    `gorm:"column:creative;type:jsonb;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_ad_creatives_user_created,priority:2"`
}

func (creativeModel) TableName() string { return "ad_creatives" }

func modelFromRecord(rec Record) (creativeModel, error) {
	req, err := json.Marshal(rec.Request)
	if err != nil {
		return creativeModel{}, fmt.Errorf("store: marshal request: %w", err)
	}
	c, err := json.Marshal(rec.Creative)
	if err != nil {
		return creativeModel{}, fmt.Errorf("store: marshal creative: %w", err)
	}
	return creativeModel{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Request:   req,
		Creative:  c,
		CreatedAt: rec.CreatedAt.UTC(),
	}, nil
}

func (m creativeModel) toRecord() (Record, error) {
	rec := Record{ID: m.ID, UserID: m.UserID, CreatedAt: m.CreatedAt}
	if err := json.Unmarshal(m.Request, &rec.Request); err != nil {
		return Record{}, fmt.Errorf("store: decode request %s: %w", m.ID, err)
	}
	if err := json.Unmarshal(m.Creative, &rec.Creative); err != nil {
		return Record{}, fmt.Errorf("store: decode creative %s: %w", m.ID, err)
	}
	return rec, nil
}

// GormStore keeps creatives in the ad_creatives table.
type GormStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewGormStore wraps an open database handle.
func NewGormStore(db *gorm.DB, logger *slog.Logger) *GormStore {
	return &GormStore{db: db, logger: logging.Or(logger)}
}

// OpenPostgres connects to dsn, verifies the connection and migrates the
// ad_creatives table.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*GormStore, error) {
	if dsn == "" {
		return nil, errors.New("store: postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: resolve sql handle: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	s := NewGormStore(db, logger)
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the ad_creatives table.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&creativeModel{}); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Save(ctx context.Context, rec Record) error {
	row, err := modelFromRecord(rec)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).
		Error
	if err != nil {
		return fmt.Errorf("store: save %s: %w", rec.ID, err)
	}
	s.logger.Debug("creative saved", slog.String("id", rec.ID), slog.String("user_id", rec.UserID))
	return nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*Record, error) {
	var row creativeModel
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	rec, err := row.toRecord()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormStore) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	tx := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var rows []creativeModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list %s: %w", userID, err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
