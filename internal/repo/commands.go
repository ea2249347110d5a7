package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dchome/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommandStore — device_control, одна строка на устройство.
// Все изменения поколоночные: параллельные SetChannel по разным каналам не теряются.
type CommandStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCommandStore(db *gorm.DB) *CommandStore {
	return &CommandStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock подменяет источник времени (тесты).
func (s *CommandStore) WithClock(now func() time.Time) *CommandStore {
	s.now = now
	return s
}

// insertDefault — INSERT ... ON CONFLICT DO NOTHING, безопасно при гонке первых pull'ов.
func (s *CommandStore) insertDefault(tx *gorm.DB, deviceID string) (bool, error) {
	row := models.DefaultControl(deviceID)
	row.CreatedAt = s.now()
	row.UpdatedAt = row.CreatedAt
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("insert device_control: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Ensure возвращает команду устройства, создавая дефолтную при первом обращении.
func (s *CommandStore) Ensure(ctx context.Context, deviceID string) (models.DeviceControl, bool, error) {
	db := s.db.WithContext(ctx)
	created, err := s.insertDefault(db, deviceID)
	if err != nil {
		return models.DeviceControl{}, false, err
	}
	var m models.DeviceControl
	if err := db.Where("device_id = ?", deviceID).First(&m).Error; err != nil {
		return models.DeviceControl{}, false, fmt.Errorf("select device_control: %w", err)
	}
	return m, created, nil
}

// Get — без создания; nil, nil если строки нет.
func (s *CommandStore) Get(ctx context.Context, deviceID string) (*models.DeviceControl, error) {
	var m models.DeviceControl
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select device_control: %w", err)
	}
	return &m, nil
}

func (s *CommandStore) SetChannel(ctx context.Context, deviceID string, c models.Channel, st models.State) (time.Time, error) {
	return s.updateColumn(ctx, deviceID, c.Column(), string(st))
}

func (s *CommandStore) SetMode(ctx context.Context, deviceID string, m models.Mode) (time.Time, error) {
	return s.updateColumn(ctx, deviceID, "mode", string(m))
}

// updateColumn трогает только одну колонку и updated_at.
func (s *CommandStore) updateColumn(ctx context.Context, deviceID, column, value string) (time.Time, error) {
	now := s.now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.insertDefault(tx, deviceID); err != nil {
			return err
		}
		res := tx.Model(&models.DeviceControl{}).
			Where("device_id = ?", deviceID).
			Updates(map[string]any{column: value, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("update device_control.%s: %w", column, res.Error)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return now, nil
}
