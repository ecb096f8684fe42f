package repositories

import (
	"context"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/hearthd/hearthd/internal/database/models"
)

// LastSecondsKey is the state row holding the poll loop's "last
// processed second of day" watermark.
const LastSecondsKey = "LastSeconds"

// StateRepository handles controller state rows.
type StateRepository struct {
	db *gorm.DB
}

// NewStateRepository creates a new StateRepository.
func NewStateRepository(db *gorm.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns a state value by name, or "" if absent.
func (r *StateRepository) Get(ctx context.Context, name string) (string, error) {
	var state models.State
	result := r.db.WithContext(ctx).First(&state, "name = ?", name)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", result.Error
	}
	return state.Value, nil
}

// Set stores a state value, creating the row if needed.
func (r *StateRepository) Set(ctx context.Context, name, value string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "last_seen"}),
		}).
		Create(&models.State{Name: name, Value: value}).Error
}

// GetInt returns a state value parsed as an integer, or the fallback
// when the row is absent or unparsable.
func (r *StateRepository) GetInt(ctx context.Context, name string, fallback int) (int, error) {
	value, err := r.Get(ctx, name)
	if err != nil {
		return fallback, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback, nil
	}
	return n, nil
}

// SetInt stores an integer state value.
func (r *StateRepository) SetInt(ctx context.Context, name string, value int) error {
	return r.Set(ctx, name, strconv.Itoa(value))
}
