package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"campusvote/db"
	"campusvote/models"

	"gorm.io/gorm"
)

// errRollback aborts a ballot transaction after the result was filled in.
var errRollback = errors.New("ballot has issues")

// BallotService records ballots. A batch is written completely or not at all.
type BallotService struct {
	db      *gorm.DB
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewBallotService(conn *gorm.DB, opts Options) *BallotService {
	opts = opts.withDefaults()
	return &BallotService{
		db:      conn,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

type voteKey struct {
	positionID  uint
	candidateID uint
}

// ballot tracks the per-item verdicts of one submission
type ballot struct {
	electionID uint
	items      []models.BallotItem
	issues     []*models.BallotIssue
}

func (b *ballot) reject(i int, code, format string, args ...any) {
	if b.issues[i] != nil {
		return
	}
	item := b.items[i]
	b.issues[i] = &models.BallotIssue{
		Index:       i,
		ElectionID:  item.ElectionID,
		PositionID:  item.PositionID,
		CandidateID: item.CandidateID,
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
	}
}

func (b *ballot) ok(i int) bool {
	return b.issues[i] == nil
}

func (b *ballot) rejected() bool {
	for _, issue := range b.issues {
		if issue != nil {
			return true
		}
	}
	return false
}

func (b *ballot) codes() []string {
	var codes []string
	for _, issue := range b.issues {
		if issue != nil {
			codes = append(codes, issue.Code)
		}
	}
	return codes
}

// precheck applies the rules that need no database access.
func (b *ballot) precheck() {
	for _, item := range b.items {
		if item.ElectionID != 0 {
			b.electionID = item.ElectionID
			break
		}
	}
	seen := make(map[voteKey]int, len(b.items))
	for i, item := range b.items {
		if item.ElectionID == 0 || item.PositionID == 0 || item.CandidateID == 0 {
			b.reject(i, models.IssueInvalidItem, "electionId, positionId and candidateId are required")
			continue
		}
		if item.ElectionID != b.electionID {
			b.reject(i, models.IssueMixedElection, "all votes must be for election %d", b.electionID)
			continue
		}
		key := voteKey{item.PositionID, item.CandidateID}
		if first, dup := seen[key]; dup {
			b.reject(i, models.IssueDuplicateInBatch, "candidate %d already selected at index %d", item.CandidateID, first)
			continue
		}
		seen[key] = i
	}
}

// positionOrder lists the positions referenced by the ballot in first
// appearance order.
func (b *ballot) positionOrder() []uint {
	var order []uint
	seen := make(map[uint]bool)
	for _, item := range b.items {
		if item.PositionID == 0 || item.ElectionID != b.electionID || seen[item.PositionID] {
			continue
		}
		seen[item.PositionID] = true
		order = append(order, item.PositionID)
	}
	return order
}

// Submit validates and records a batch of votes for voterID. Every item must
// target the same active election. When any item is refused nothing is
// written and the returned result is accompanied by ErrBallotRejected.
func (s *BallotService) Submit(ctx context.Context, voterID uint, items []models.BallotItem) (*models.BallotResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBallot
	}
	b := &ballot{items: items, issues: make([]*models.BallotIssue, len(items))}
	b.precheck()

	result := &models.BallotResult{VoterID: voterID, ElectionID: b.electionID}
	if b.electionID == 0 {
		s.fillOutcomes(result, b, nil, nil)
		s.metrics.ballotRejected(b.codes())
		return result, ErrBallotRejected
	}

	var accepted int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var voter models.Voter
		if err := db.ForUpdate(tx).First(&voter, voterID).Error; err != nil {
			return mapNotFound(err, "voter", voterID)
		}
		var election models.Election
		if err := tx.First(&election, b.electionID).Error; err != nil {
			return mapNotFound(err, "election", b.electionID)
		}
		if election.Status != models.StatusActive {
			return fmt.Errorf("%w: election %d is %s", ErrElectionNotActive, election.ID, election.Status)
		}

		order := b.positionOrder()
		positions, err := ballotPositions(tx, b.electionID, order)
		if err != nil {
			return err
		}
		byPosition := make(map[uint]models.Position, len(positions))
		for _, p := range positions {
			byPosition[p.ID] = p
		}

		candidateIDs := make([]uint, 0, len(items))
		for i, item := range items {
			if b.ok(i) {
				candidateIDs = append(candidateIDs, item.CandidateID)
			}
		}
		candidates, err := assignedCandidates(tx, b.electionID, uniqueIDs(candidateIDs))
		if err != nil {
			return err
		}
		byCandidate := make(map[uint]models.Candidate, len(candidates))
		for _, c := range candidates {
			byCandidate[c.ID] = c
		}

		var existing []models.Vote
		err = tx.Where("voter_id = ? AND election_id = ?", voterID, b.electionID).Find(&existing).Error
		if err != nil {
			return err
		}
		cast := make(map[uint]int)
		castKeys := make(map[voteKey]bool, len(existing))
		for _, v := range existing {
			cast[v.PositionID]++
			castKeys[voteKey{v.PositionID, v.CandidateID}] = true
		}

		proposed := make(map[uint]int)
		for i, item := range items {
			if !b.ok(i) {
				continue
			}
			if _, onBallot := byPosition[item.PositionID]; !onBallot {
				b.reject(i, models.IssuePositionNotOnBallot, "position %d is not on the ballot of election %d", item.PositionID, b.electionID)
				continue
			}
			if c, assigned := byCandidate[item.CandidateID]; !assigned || c.PositionID != item.PositionID {
				b.reject(i, models.IssueCandidateNotOnBallot, "candidate %d is not running for position %d", item.CandidateID, item.PositionID)
				continue
			}
			if castKeys[voteKey{item.PositionID, item.CandidateID}] {
				b.reject(i, models.IssueAlreadyVoted, "already voted for candidate %d", item.CandidateID)
				continue
			}
			proposed[item.PositionID]++
		}
		for positionID, n := range proposed {
			limit := byPosition[positionID].VoteLimit
			if cast[positionID]+n <= limit {
				continue
			}
			for i, item := range items {
				if item.PositionID == positionID && item.ElectionID == b.electionID && b.ok(i) {
					b.reject(i, models.IssueVoteLimitExceeded,
						"position %d allows %d votes, %d already cast and %d submitted",
						positionID, limit, cast[positionID], n)
				}
			}
		}

		s.fillOutcomes(result, b, byPosition, cast)
		if b.rejected() {
			return errRollback
		}

		now := s.now()
		votes := make([]models.Vote, 0, len(items))
		for _, item := range items {
			votes = append(votes, models.Vote{
				VoterID:     voterID,
				ElectionID:  b.electionID,
				PositionID:  item.PositionID,
				CandidateID: item.CandidateID,
				CreatedAt:   now,
			})
		}
		if err := tx.Create(&votes).Error; err != nil {
			return err
		}
		if err := recordReceipt(tx, voterID, b.electionID, now); err != nil {
			return err
		}
		if err := tx.Model(&voter).Update("has_voted", true).Error; err != nil {
			return err
		}
		accepted = len(votes)
		return nil
	}, db.TxOptions(s.db))

	switch {
	case err == nil:
	case errors.Is(err, errRollback):
		s.metrics.ballotRejected(b.codes())
		s.logger.Info("ballot rejected",
			"voter_id", voterID,
			"election_id", b.electionID,
			"issues", len(result.Errors),
		)
		return result, ErrBallotRejected
	case db.IsUniqueViolation(err), db.IsSerializationFailure(err):
		s.metrics.ballotConflicted()
		s.logger.Warn("ballot conflicted", "voter_id", voterID, "election_id", b.electionID, "error", err)
		return nil, ErrConcurrentSubmission
	default:
		return nil, err
	}

	result.Success = true
	result.Accepted = accepted
	result.HasVoted = true
	s.metrics.ballotAccepted(accepted)
	s.logger.Info("ballot accepted", "voter_id", voterID, "election_id", b.electionID, "votes", accepted)
	return result, nil
}

func recordReceipt(tx *gorm.DB, voterID, electionID uint, now time.Time) error {
	var receipt models.BallotReceipt
	err := tx.Where("voter_id = ? AND election_id = ?", voterID, electionID).First(&receipt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(&models.BallotReceipt{
			VoterID:          voterID,
			ElectionID:       electionID,
			Submissions:      1,
			FirstSubmittedAt: now,
			LastSubmittedAt:  now,
		}).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&receipt).Updates(map[string]any{
		"submissions":       gorm.Expr("submissions + 1"),
		"last_submitted_at": now,
	}).Error
}

// fillOutcomes summarizes the ballot per position and collects every issue.
func (s *BallotService) fillOutcomes(result *models.BallotResult, b *ballot, positions map[uint]models.Position, cast map[uint]int) {
	rejected := b.rejected()
	result.Positions = []models.PositionOutcome{}
	result.Errors = nil
	for _, issue := range b.issues {
		if issue != nil {
			result.Errors = append(result.Errors, *issue)
		}
	}
	for _, positionID := range b.positionOrder() {
		p, known := positions[positionID]
		outcome := models.PositionOutcome{
			PositionID:     positionID,
			PositionName:   p.Name,
			VoteLimit:      p.VoteLimit,
			PreviouslyCast: cast[positionID],
			Status:         models.OutcomeAccepted,
		}
		for i, item := range b.items {
			if item.PositionID != positionID || item.ElectionID != b.electionID {
				continue
			}
			if b.ok(i) {
				outcome.Submitted++
			} else {
				outcome.Status = models.OutcomeRejected
				outcome.Errors = append(outcome.Errors, *b.issues[i])
			}
		}
		if known {
			used := outcome.PreviouslyCast
			if !rejected {
				used += outcome.Submitted
			}
			outcome.Remaining = max(p.VoteLimit-used, 0)
		}
		result.Positions = append(result.Positions, outcome)
	}
}
