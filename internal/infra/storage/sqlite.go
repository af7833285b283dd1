package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"quant_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store persists named pre-fit coefficient sets in an embedded SQLite
// database. Startup may load a named set from here instead of the YAML
// model block.
type Store struct {
	db *gorm.DB
}

// NewStore opens (or creates) the store at the given path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto Migration
	if err := db.AutoMigrate(&domain.ParameterSet{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveSet creates or replaces a named coefficient set.
func (s *Store) SaveSet(set *domain.ParameterSet) error {
	return s.db.Save(set).Error
}

// LoadSet retrieves a coefficient set by name. Not found is not an error.
func (s *Store) LoadSet(name string) (*domain.ParameterSet, error) {
	var set domain.ParameterSet
	err := s.db.First(&set, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &set, err
}

// ListSets returns every stored set ordered by name.
func (s *Store) ListSets() ([]domain.ParameterSet, error) {
	var sets []domain.ParameterSet
	err := s.db.Order("name").Find(&sets).Error
	return sets, err
}

// DeleteSet removes a coefficient set by name.
func (s *Store) DeleteSet(name string) error {
	return s.db.Where("name = ?", name).Delete(&domain.ParameterSet{}).Error
}
