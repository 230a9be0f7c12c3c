// Package sqlite keeps single-device state in a local SQLite file through gorm.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/folioscope/portfolio-chat/internal/portfolio"
	"github.com/folioscope/portfolio-chat/internal/store"
)

type portfolioRow struct {
	ID        string             `gorm:"primaryKey"`
	Name      string             `gorm:"not null"`
	Tickers   []portfolio.Ticker `gorm:"serializer:json"`
	CreatedAt time.Time          `gorm:"index"`
	UpdatedAt time.Time
}

func (portfolioRow) TableName() string { return "portfolios" }

type stateRow struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

func (stateRow) TableName() string { return "client_state" }

type SQLiteStore struct {
	db *gorm.DB
}

var openDialector = sqlite.Open

// Open creates the database file and its parent directory when missing.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	db, err := gorm.Open(openDialector(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&portfolioRow{}, &stateRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate failed: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) ListPortfolios(ctx context.Context) ([]portfolio.Record, error) {
	var rows []portfolioRow
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	results := make([]portfolio.Record, 0, len(rows))
	for _, row := range rows {
		results = append(results, toRecord(row))
	}
	return results, nil
}

func (s *SQLiteStore) GetPortfolio(ctx context.Context, id string) (*portfolio.Record, error) {
	var row portfolioRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	record := toRecord(row)
	return &record, nil
}

func (s *SQLiteStore) CreatePortfolio(ctx context.Context, record portfolio.Record) error {
	row := fromRecord(record)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *SQLiteStore) UpdatePortfolio(ctx context.Context, record portfolio.Record) error {
	row := fromRecord(record)
	result := s.db.WithContext(ctx).Model(&portfolioRow{ID: record.ID}).
		Select("name", "tickers", "updated_at").
		Updates(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeletePortfolio(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&portfolioRow{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool, error) {
	var row stateRow
	if err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *SQLiteStore) PutState(ctx context.Context, key string, value string) error {
	row := stateRow{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&stateRow{}, "key = ?", key).Error
}

func toRecord(row portfolioRow) portfolio.Record {
	tickers := append([]portfolio.Ticker{}, row.Tickers...)
	return portfolio.Record{
		ID:        row.ID,
		Name:      row.Name,
		Tickers:   tickers,
		CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: row.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromRecord(record portfolio.Record) portfolioRow {
	return portfolioRow{
		ID:        record.ID,
		Name:      record.Name,
		Tickers:   append([]portfolio.Ticker{}, record.Tickers...),
		CreatedAt: parseTime(record.CreatedAt),
		UpdatedAt: parseTime(record.UpdatedAt),
	}
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
