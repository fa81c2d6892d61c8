package points_service

import (
	"time"

	model "mini-app-service/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Reasons recorded on ledger entries
const (
	ReasonAppSubmission = "app_submission"
)

// EntryStore ledger persistence (models/dao.PointsDAO)
type EntryStore interface {
	Create(entry *model.PointsEntry) error
	ListByIdentity(identity string) ([]*model.PointsEntry, error)
}

// Ledger sink for point awards
type Ledger interface {
	AwardPoints(identity string, amount int64, reason, referenceID string) error
}

// PointsService persisted points ledger
type PointsService struct {
	entries EntryStore
	now     func() time.Time
}

// NewPointsService create points service
func NewPointsService(entries EntryStore) *PointsService {
	return &PointsService{entries: entries, now: time.Now}
}

// AwardPoints append a ledger entry. Not idempotent.
func (s *PointsService) AwardPoints(identity string, amount int64, reason, referenceID string) error {
	entry := &model.PointsEntry{
		ID:          uuid.NewString(),
		Identity:    identity,
		Amount:      amount,
		Reason:      reason,
		ReferenceID: referenceID,
		CreatedAt:   s.now(),
	}
	if err := s.entries.Create(entry); err != nil {
		return err
	}
	log.Debug().Str("identity", identity).Int64("amount", amount).Str("reason", reason).Msg("points awarded")
	return nil
}

// Balance total points and entries of an identity, newest first
func (s *PointsService) Balance(identity string) (int64, []*model.PointsEntry, error) {
	entries, err := s.entries.ListByIdentity(identity)
	if err != nil {
		return 0, nil, err
	}
	var total int64
	for _, e := range entries {
		total += e.Amount
	}
	return total, entries, nil
}
