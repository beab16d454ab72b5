package lib

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fiffu/livewatch/lib/models"
	jsoniter "github.com/json-iterator/go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// KeyValueStore is the durability boundary. Get reports found=false and
// leaves dest untouched when the key was never written.
type KeyValueStore interface {
	Get(ctx context.Context, key string, dest any) (found bool, err error)
	Set(ctx context.Context, key string, value any) error
}

type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) KeyValueStore {
	return &gormStore{db}
}

func (s *gormStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	var row models.Setting
	tx := s.db.WithContext(ctx).Where("name = ?", key).First(&row)
	if err := tx.Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}

	if err := json.UnmarshalFromString(row.Value, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *gormStore) Set(ctx context.Context, key string, value any) error {
	encoded, err := json.MarshalToString(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	row := models.Setting{Name: key, Value: encoded, UpdatedAt: time.Now().UTC()}
	tx := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row)
	if err := tx.Error; err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
