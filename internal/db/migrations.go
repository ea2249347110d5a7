// internal/db/migrations.go
package db

import (
	"fmt"
	"strings"

	"dchome/internal/models"

	"gorm.io/gorm"
)

// Migrate — схема dchome: legacy-переименования, затем AutoMigrate.
func Migrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if err := MigrateLegacyColumns(db); err != nil {
		return err
	}
	if err := db.AutoMigrate(
		&models.SensorData{},
		&models.CurrentStatus{},
		&models.DeviceControl{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return CopyLegacyHistory(db)
}

// MigrateLegacyColumns — старая PHP-схема хранила ключ устройства в колонке `id`
// (current_status, device_control). Переносим в device_id.
func MigrateLegacyColumns(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	dialect := db.Dialector.Name()

	if err := parkLegacyHistory(db); err != nil {
		return err
	}

	for _, table := range []string{"current_status", "device_control"} {
		if !db.Migrator().HasTable(table) {
			continue
		}
		hasOld := db.Migrator().HasColumn(table, "id")
		hasNew := db.Migrator().HasColumn(table, "device_id")
		if !hasOld || hasNew {
			continue
		}
		if err := db.Migrator().RenameColumn(table, "id", "device_id"); err != nil {
			var e error
			switch dialect {
			case "mysql":
				e = db.Exec(fmt.Sprintf("ALTER TABLE `%s` CHANGE COLUMN `id` `device_id` varchar(64) NOT NULL", table)).Error
			case "postgres":
				e = db.Exec(fmt.Sprintf(`ALTER TABLE "%s" RENAME COLUMN "id" TO "device_id"`, table)).Error
			case "sqlite":
				e = db.Exec(fmt.Sprintf(`ALTER TABLE %s RENAME COLUMN id TO device_id`, table)).Error
			default:
				e = err
			}
			if e != nil {
				return fmt.Errorf("rename %s.id -> device_id: %w", table, e)
			}
		}
	}
	return nil
}

const legacyHistoryTable = "sensor_data_legacy"

// parkLegacyHistory — в старой sensor_data колонка id хранит строку устройства,
// а не целочисленный ключ. Такую таблицу уводим в sensor_data_legacy, AutoMigrate
// создаёт новую, CopyLegacyHistory переносит строки.
func parkLegacyHistory(db *gorm.DB) error {
	m := db.Migrator()
	if !m.HasTable("sensor_data") || m.HasColumn("sensor_data", "device_id") || m.HasTable(legacyHistoryTable) {
		return nil
	}
	cols, err := m.ColumnTypes("sensor_data")
	if err != nil {
		return fmt.Errorf("inspect sensor_data: %w", err)
	}
	legacy := false
	for _, c := range cols {
		if strings.EqualFold(c.Name(), "id") {
			legacy = !strings.Contains(strings.ToUpper(c.DatabaseTypeName()), "INT")
			break
		}
	}
	if !legacy {
		return nil
	}
	if err := m.RenameTable("sensor_data", legacyHistoryTable); err != nil {
		return fmt.Errorf("park legacy sensor_data: %w", err)
	}
	return nil
}

// CopyLegacyHistory переносит строки из sensor_data_legacy (id AS device_id)
// в sensor_data и удаляет legacy-таблицу. Без legacy-таблицы ничего не делает.
func CopyLegacyHistory(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	m := db.Migrator()
	if !m.HasTable(legacyHistoryTable) {
		return nil
	}
	oldCols, err := m.ColumnTypes(legacyHistoryTable)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", legacyHistoryTable, err)
	}
	newCols, err := m.ColumnTypes("sensor_data")
	if err != nil {
		return fmt.Errorf("inspect sensor_data: %w", err)
	}
	have := make(map[string]bool, len(newCols))
	for _, c := range newCols {
		have[strings.ToLower(c.Name())] = true
	}

	q := db.Statement.Quote
	dst := []string{q("device_id")}
	src := []string{q("id")}
	var hasTimestamp bool
	for _, c := range oldCols {
		name := strings.ToLower(c.Name())
		switch name {
		case "id", "device_id", "sample_id", "raw", "created_at":
			continue
		}
		if !have[name] {
			continue
		}
		if name == "timestamp" {
			hasTimestamp = true
		}
		dst = append(dst, q(name))
		src = append(src, q(name))
	}
	if hasTimestamp {
		dst = append(dst, q("created_at"))
		src = append(src, q("timestamp"))
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		q("sensor_data"), strings.Join(dst, ", "), strings.Join(src, ", "), q(legacyHistoryTable))
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(insert).Error; err != nil {
			return fmt.Errorf("copy legacy sensor_data: %w", err)
		}
		if err := tx.Migrator().DropTable(legacyHistoryTable); err != nil {
			return fmt.Errorf("drop %s: %w", legacyHistoryTable, err)
		}
		return nil
	})
}
