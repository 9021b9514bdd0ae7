package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
)

// DBConfig controls GORM/PostgreSQL connectivity.
type DBConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens a GORM connection to PostgreSQL.
func Connect(cfg DBConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("retrieve sql db: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// AutoMigrate applies the schema for rooms, room options and recordings.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(&RoomEntity{}, &RoomOptionsEntity{}, &RecordingEntity{}); err != nil {
		return err
	}
	var count int64
	if err := db.WithContext(ctx).Model(&RoomEntity{}).Count(&count).Error; err != nil {
		return err
	}
	log.Info().Int64("rooms", count).Msg("database schema up to date")
	return nil
}

// PostgresStore persists rooms and recordings via PostgreSQL using GORM.
type PostgresStore struct {
	db *gorm.DB
}

var (
	_ core.RoomStore      = (*PostgresStore)(nil)
	_ core.RecordingStore = (*PostgresStore)(nil)
)

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.Room, error) {
	var rows []RoomEntity
	if err := s.db.WithContext(ctx).Preload("Options").Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Room, 0, len(rows))
	for _, row := range rows {
		out = append(out, *roomFromEntity(row))
	}
	return out, nil
}

func (s *PostgresStore) first(ctx context.Context, query string, arg any) (*domain.Room, error) {
	var row RoomEntity
	err := s.db.WithContext(ctx).Preload("Options").Where(query, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return roomFromEntity(row), nil
}

func (s *PostgresStore) FindByParam(ctx context.Context, param string) (*domain.Room, error) {
	return s.first(ctx, "param = ?", param)
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	return s.first(ctx, "id = ?", string(id))
}

func (s *PostgresStore) checkUnique(tx *gorm.DB, room *domain.Room) error {
	taken := func(column, value string) (bool, error) {
		var n int64
		err := tx.Model(&RoomEntity{}).Where(column+" = ? AND id <> ?", value, string(room.ID)).Count(&n).Error
		return n > 0, err
	}
	checks := []struct {
		column, value string
		err           error
	}{
		{"param", room.Param, domain.ErrParamTaken},
		{"meetingid", room.MeetingID, domain.ErrMeetingIDTaken},
		{"voice_bridge", room.VoiceBridge, domain.ErrVoiceBridgeTaken},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		ok, err := taken(c.column, c.value)
		if err != nil {
			return err
		}
		if ok {
			return c.err
		}
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, room *domain.Room) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkUnique(tx, room); err != nil {
			return err
		}
		row := roomToEntity(room)
		return tx.Create(&row).Error
	})
}

func (s *PostgresStore) Update(ctx context.Context, room *domain.Room) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkUnique(tx, room); err != nil {
			return err
		}
		row := roomToEntity(room)
		// Status belongs to SetStatus; a concurrent updater write must survive an edit.
		res := tx.Model(&RoomEntity{}).Where("id = ?", row.ID).
			Select("*").Omit("id", "created_at", "status_running", "status_checked_at", "Options").Updates(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return core.ErrRoomNotFound
		}
		opts := row.Options
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"default_layout", "updated_at"}),
		}).Create(&opts).Error
	})
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.RoomID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", string(id)).Delete(&RoomEntity{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return core.ErrRoomNotFound
		}
		if err := tx.Where("room_id = ?", string(id)).Delete(&RoomOptionsEntity{}).Error; err != nil {
			return err
		}
		return tx.Model(&RecordingEntity{}).Where("room_id = ?", string(id)).Update("room_id", nil).Error
	})
}

func (s *PostgresStore) SetStatus(ctx context.Context, id domain.RoomID, status domain.MeetingStatus) error {
	res := s.db.WithContext(ctx).Model(&RoomEntity{}).Where("id = ?", string(id)).Updates(map[string]any{
		"status_running":    status.Running,
		"status_checked_at": status.CheckedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return core.ErrRoomNotFound
	}
	return nil
}

func (s *PostgresStore) UpsertRecordings(ctx context.Context, recs []domain.Recording) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]RecordingEntity, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, recordingToEntity(rec))
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_id"}},
		UpdateAll: true,
	}).Create(&rows).Error
}

func (s *PostgresStore) RecordingsByRoom(ctx context.Context, id domain.RoomID) ([]domain.Recording, error) {
	var rows []RecordingEntity
	if err := s.db.WithContext(ctx).Where("room_id = ?", string(id)).Order("start_time ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Recording, 0, len(rows))
	for _, row := range rows {
		out = append(out, recordingFromEntity(row))
	}
	return out, nil
}
