// Package voting holds the election lifecycle, ballot submission and voting
// status services. Each service enforces its invariants inside a single
// database transaction; callers never need their own locking.
package voting

import (
	"errors"
	"log/slog"
	"time"

	"campusvote/models"

	"gorm.io/gorm"
)

// Options configures the services. Zero values are usable.
type Options struct {
	Notifier Notifier
	Metrics  *Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Notifier == nil {
		o.Notifier = nopNotifier{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Service bundles the three voting components around one database handle.
type Service struct {
	Elections *ElectionManager
	Ballots   *BallotService
	Status    *StatusQuery
}

func New(conn *gorm.DB, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		Elections: NewElectionManager(conn, opts),
		Ballots:   NewBallotService(conn, opts),
		Status:    NewStatusQuery(conn),
	}
}

func mapNotFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(what, id)
	}
	return err
}

// ballotPositions returns the positions on an election's ballot ordered for
// display. A nil ids slice means every position on the ballot.
func ballotPositions(tx *gorm.DB, electionID uint, ids []uint) ([]models.Position, error) {
	q := tx.Model(&models.Position{}).
		Select("positions.*").
		Joins("JOIN election_positions ON election_positions.position_id = positions.id").
		Where("election_positions.election_id = ?", electionID)
	if ids != nil {
		q = q.Where("positions.id IN ?", ids)
	}
	var positions []models.Position
	if err := q.Order("positions.display_order, positions.id").Find(&positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}

// assignedCandidates returns the candidates assigned to an election, limited
// to ids when ids is not nil.
func assignedCandidates(tx *gorm.DB, electionID uint, ids []uint) ([]models.Candidate, error) {
	q := tx.Model(&models.Candidate{}).
		Select("candidates.*").
		Joins("JOIN election_candidates ON election_candidates.candidate_id = candidates.id").
		Where("election_candidates.election_id = ?", electionID)
	if ids != nil {
		q = q.Where("candidates.id IN ?", ids)
	}
	var candidates []models.Candidate
	if err := q.Order("candidates.name, candidates.id").Find(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
