package ledger

import (
	"context"
	"time"

	"gorm.io/gorm"

	"main/internal/model"
	"main/internal/model/enum"
)

// FillRecord is the relational mirror of a fill. The journal remains the
// source of truth; the mirror exists for ad-hoc querying.
type FillRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Symbol    string    `gorm:"index;size:32"`
	Side      string    `gorm:"size:8"`
	Quantity  float64
	Price     float64
	Fee       float64
	FilledAt  time.Time `gorm:"index"`
	CreatedAt time.Time
}

// TableName keeps the mirror table name stable across gorm versions.
func (FillRecord) TableName() string { return "fills" }

// Store mirrors fills into PostgreSQL.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the mirror schema and returns a store.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&FillRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// SaveFill inserts one fill row.
func (s *Store) SaveFill(ctx context.Context, fill model.Fill) error {
	record := FillRecord{
		Symbol:   fill.Symbol,
		Side:     fill.Side.String(),
		Quantity: fill.Quantity,
		Price:    fill.Price,
		Fee:      fill.Fee,
		FilledAt: fill.Timestamp,
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

// RecentFills loads the newest fills, most recent first.
func (s *Store) RecentFills(ctx context.Context, limit int) ([]model.Fill, error) {
	var records []FillRecord
	err := s.db.WithContext(ctx).
		Order("filled_at desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	fills := make([]model.Fill, 0, len(records))
	for _, record := range records {
		side := enum.ParseSide(record.Side)
		if !side.IsAvailable() {
			continue
		}
		fills = append(fills, model.Fill{
			Symbol:    record.Symbol,
			Side:      side,
			Quantity:  record.Quantity,
			Price:     record.Price,
			Fee:       record.Fee,
			Timestamp: record.FilledAt,
		})
	}
	return fills, nil
}
