package repo

import (
	"context"
	"errors"
	"fmt"

	"dchome/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// TelemetryStore — история (sensor_data) + текущее состояние (current_status).
type TelemetryStore struct {
	db *gorm.DB
}

func NewTelemetryStore(db *gorm.DB) *TelemetryStore {
	return &TelemetryStore{db: db}
}

// Save пишет историю и заменяет текущее состояние в одной транзакции.
// Ошибка любой из записей откатывает обе.
func (s *TelemetryStore) Save(ctx context.Context, deviceID, sampleID string, r models.Reading, raw []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		h := models.SensorData{
			SampleID: sampleID,
			DeviceID: deviceID,
			Reading:  r,
			Raw:      datatypes.JSON(raw),
		}
		if err := tx.Create(&h).Error; err != nil {
			return fmt.Errorf("insert sensor_data: %w", err)
		}

		cur := models.CurrentStatus{
			DeviceID: deviceID,
			SampleID: sampleID,
			Reading:  r,
		}
		// REPLACE целиком: все колонки кроме ключа
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			UpdateAll: true,
		}).Create(&cur).Error; err != nil {
			return fmt.Errorf("replace current_status: %w", err)
		}
		return nil
	})
}

// Current возвращает nil, nil если устройство ещё ничего не присылало.
func (s *TelemetryStore) Current(ctx context.Context, deviceID string) (*models.CurrentStatus, error) {
	var m models.CurrentStatus
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select current_status: %w", err)
	}
	return &m, nil
}

// History — последние записи, новые первыми.
func (s *TelemetryStore) History(ctx context.Context, deviceID string, limit int) ([]models.SensorData, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	var out []models.SensorData
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("select sensor_data: %w", err)
	}
	return out, nil
}

func (s *TelemetryStore) CountHistory(ctx context.Context, deviceID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.SensorData{}).Where("device_id = ?", deviceID).Count(&n).Error
	return n, err
}
