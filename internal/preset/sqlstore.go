package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/qmjianda/loglayout-sub001/internal/layer"
)

// presetRow is the SQLite schema. Layers holds the exported JSON list.
type presetRow struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"uniqueIndex"`
	Layers     string `gorm:"type:text"`
	LayerCount int
	SavedAt    time.Time `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (presetRow) TableName() string { return "presets" }

// SQLStore keeps presets in a SQLite database.
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLStore opens (and migrates) the database at path.
func OpenSQLStore(path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open preset db %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; an in-memory database also lives and dies
	// with its connection.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&presetRow{}); err != nil {
		return nil, fmt.Errorf("migrate preset db: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// List returns presets sorted by name.
func (s *SQLStore) List() ([]Info, error) {
	var rows []presetRow
	if err := s.db.Select("name", "layer_count", "saved_at").Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Info, len(rows))
	for i, r := range rows {
		out[i] = Info{Name: r.Name, Layers: r.LayerCount, SavedAt: r.SavedAt.UTC()}
	}
	return out, nil
}

// Get loads the named preset.
func (s *SQLStore) Get(name string) (Preset, error) {
	var row presetRow
	err := s.db.Where("name = ?", name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Preset{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return Preset{}, err
	}
	layers, err := layer.Import([]byte(row.Layers))
	if err != nil {
		return Preset{}, fmt.Errorf("preset %q: %w", name, err)
	}
	return Preset{Name: row.Name, SavedAt: row.SavedAt.UTC(), Layers: layers}, nil
}

// Save inserts or replaces a preset.
func (s *SQLStore) Save(p Preset) error {
	name, err := ValidateName(p.Name)
	if err != nil {
		return err
	}
	if p.SavedAt.IsZero() {
		p.SavedAt = time.Now().UTC()
	}
	body, err := layer.Export(p.Layers)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var cnt int64
		if err := tx.Model(&presetRow{}).Where("name = ?", name).Count(&cnt).Error; err != nil {
			return err
		}
		if cnt > 0 {
			return tx.Model(&presetRow{}).Where("name = ?", name).Updates(map[string]any{
				"layers":      string(body),
				"layer_count": len(p.Layers),
				"saved_at":    p.SavedAt,
			}).Error
		}
		return tx.Create(&presetRow{Name: name, Layers: string(body), LayerCount: len(p.Layers), SavedAt: p.SavedAt}).Error
	})
}

// Delete removes the named preset.
func (s *SQLStore) Delete(name string) error {
	res := s.db.Where("name = ?", name).Delete(&presetRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
