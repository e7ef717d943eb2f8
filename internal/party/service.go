package party

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidPartyID indicates an empty party identifier.
	ErrInvalidPartyID = errors.New("party: invalid party id")
	// ErrNotFound indicates the party does not exist.
	ErrNotFound = errors.New("party: not found")
)

// ServiceConfig describes the dependencies for the party service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service manages party rows and their balance aggregates.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the party service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("party: database connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// EnsureExists creates a minimal party row when the id has not been seen
// before. Existing rows are left untouched, so a user-entered display
// name is never overwritten by the materialization default.
func (s *Service) EnsureExists(ctx context.Context, id, displayName, ownerID string) error {
	partyID := normalize(id)
	if partyID == "" {
		return ErrInvalidPartyID
	}
	name := normalize(displayName)
	if name == "" {
		name = partyID
	}

	row := Party{ID: partyID, OwnerID: normalize(ownerID), DisplayName: name}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("party: ensure %s: %w", partyID, err)
	}
	return nil
}

// Exists reports whether a party row exists for the id.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Party{}).
		Where("id = ?", normalize(id)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Get loads one party row.
func (s *Service) Get(ctx context.Context, id string) (Party, error) {
	var row Party
	err := s.db.WithContext(ctx).Where("id = ?", normalize(id)).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Party{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Party{}, err
	}
	return row, nil
}

// AdjustBalance applies a signed delta to the balance aggregate as a
// single atomic SQL increment. Concurrent adjustments for the same party
// serialize in the database instead of racing through a read-modify-write.
func (s *Service) AdjustBalance(ctx context.Context, id string, delta int64) error {
	result := s.db.WithContext(ctx).Model(&Party{}).
		Where("id = ?", normalize(id)).
		UpdateColumn("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("party: adjust balance %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
