package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"campusvote/db"
	"campusvote/models"

	"gorm.io/gorm"
)

// ElectionManager owns election status transitions, ballot composition and
// the rule that only one election may be open at a time.
type ElectionManager struct {
	db       *gorm.DB
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time

	notifyMu sync.Mutex
	queue    []notification
	draining bool
	inflight sync.WaitGroup
}

// notifyTimeout bounds one broadcast once it has left the request.
const notifyTimeout = 30 * time.Second

type notification struct {
	ctx      context.Context
	election models.Election
	action   models.ElectionAction
}

func NewElectionManager(conn *gorm.DB, opts Options) *ElectionManager {
	opts = opts.withDefaults()
	return &ElectionManager{
		db:       conn,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

func validateElectionFields(title string, start, end *time.Time) error {
	if strings.TrimSpace(title) == "" {
		return invalid("title is required")
	}
	if start != nil && end != nil && !end.After(*start) {
		return invalid("endTime must be after startTime")
	}
	return nil
}

// Create stores a new pending election with its ballot. It fails with
// ErrOpenElectionExists while any other election has not ended.
func (m *ElectionManager) Create(ctx context.Context, req models.ElectionRequest) (*models.Election, error) {
	if err := validateElectionFields(req.Title, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	slot := 1
	election := models.Election{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      models.StatusPending,
		OpenSlot:    &slot,
	}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&models.Election{}).Where("status <> ?", models.StatusEnded).Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return ErrOpenElectionExists
		}
		if err := tx.Create(&election).Error; err != nil {
			// A concurrent creator won the open slot
			if db.IsUniqueViolation(err) {
				return ErrOpenElectionExists
			}
			return err
		}
		if err := setBallot(tx, election.ID, req.PositionIDs, req.CandidateIDs); err != nil {
			return err
		}
		// The cached flag now refers to the new election
		return tx.Model(&models.Voter{}).Where("has_voted = ?", true).Update("has_voted", false).Error
	}, db.TxOptions(m.db))
	if err != nil {
		if db.IsSerializationFailure(err) {
			return nil, ErrOpenElectionExists
		}
		return nil, err
	}
	m.metrics.electionCreated()
	m.logger.Info("election created", "election_id", election.ID, "title", election.Title)
	return &election, nil
}

// Update changes the descriptive fields of a pending election.
func (m *ElectionManager) Update(ctx context.Context, id uint, req models.ElectionUpdateRequest) (*models.Election, error) {
	if err := validateElectionFields(req.Title, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	var election models.Election
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.ForUpdate(tx).First(&election, id).Error; err != nil {
			return mapNotFound(err, "election", id)
		}
		if election.Status != models.StatusPending {
			return fmt.Errorf("%w: election %d is %s", ErrElectionLocked, id, election.Status)
		}
		election.Title = strings.TrimSpace(req.Title)
		election.Description = req.Description
		election.StartTime = req.StartTime
		election.EndTime = req.EndTime
		return tx.Save(&election).Error
	})
	if err != nil {
		return nil, err
	}
	return &election, nil
}

// SetBallot replaces the positions and candidate assignments of a pending
// election. With no candidate ids every candidate of the positions is assigned.
func (m *ElectionManager) SetBallot(ctx context.Context, id uint, req models.BallotRequest) ([]models.PositionAssignment, error) {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var election models.Election
		if err := db.ForUpdate(tx).First(&election, id).Error; err != nil {
			return mapNotFound(err, "election", id)
		}
		if election.Status != models.StatusPending {
			return fmt.Errorf("%w: election %d is %s", ErrElectionLocked, id, election.Status)
		}
		return setBallot(tx, id, req.PositionIDs, req.CandidateIDs)
	})
	if err != nil {
		return nil, err
	}
	return m.CandidateAssignments(ctx, id)
}

func setBallot(tx *gorm.DB, electionID uint, positionIDs, candidateIDs []uint) error {
	positionIDs = uniqueIDs(positionIDs)
	candidateIDs = uniqueIDs(candidateIDs)
	if len(positionIDs) == 0 && len(candidateIDs) > 0 {
		return invalid("candidates require at least one position")
	}

	var positions []models.Position
	if len(positionIDs) > 0 {
		if err := tx.Where("id IN ?", positionIDs).Find(&positions).Error; err != nil {
			return err
		}
		if len(positions) != len(positionIDs) {
			return invalid("unknown position in %v", positionIDs)
		}
	}
	onBallot := make(map[uint]bool, len(positions))
	for _, p := range positions {
		onBallot[p.ID] = true
	}

	var candidates []models.Candidate
	if len(positionIDs) > 0 {
		q := tx.Model(&models.Candidate{})
		if len(candidateIDs) > 0 {
			q = q.Where("id IN ?", candidateIDs)
		} else {
			q = q.Where("position_id IN ?", positionIDs)
		}
		if err := q.Find(&candidates).Error; err != nil {
			return err
		}
		if len(candidateIDs) > 0 && len(candidates) != len(candidateIDs) {
			return invalid("unknown candidate in %v", candidateIDs)
		}
	}
	for _, c := range candidates {
		if !onBallot[c.PositionID] {
			return invalid("candidate %d runs for position %d which is not on the ballot", c.ID, c.PositionID)
		}
	}

	if err := tx.Where("election_id = ?", electionID).Delete(&models.ElectionCandidate{}).Error; err != nil {
		return err
	}
	if err := tx.Where("election_id = ?", electionID).Delete(&models.ElectionPosition{}).Error; err != nil {
		return err
	}
	if len(positions) > 0 {
		rows := make([]models.ElectionPosition, 0, len(positions))
		for _, p := range positions {
			rows = append(rows, models.ElectionPosition{ElectionID: electionID, PositionID: p.ID})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	if len(candidates) > 0 {
		rows := make([]models.ElectionCandidate, 0, len(candidates))
		for _, c := range candidates {
			rows = append(rows, models.ElectionCandidate{ElectionID: electionID, CandidateID: c.ID, PositionID: c.PositionID})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *ElectionManager) Start(ctx context.Context, id uint) (*models.Election, error) {
	return m.apply(ctx, id, models.ActionStart)
}

func (m *ElectionManager) Pause(ctx context.Context, id uint) (*models.Election, error) {
	return m.apply(ctx, id, models.ActionPause)
}

func (m *ElectionManager) Resume(ctx context.Context, id uint) (*models.Election, error) {
	return m.apply(ctx, id, models.ActionResume)
}

func (m *ElectionManager) Stop(ctx context.Context, id uint) (*models.Election, error) {
	return m.apply(ctx, id, models.ActionStop)
}

// End archives a stopped election. It becomes read-only and frees the open
// election slot.
func (m *ElectionManager) End(ctx context.Context, id uint) (*models.Election, error) {
	return m.apply(ctx, id, models.ActionEnd)
}

// Apply runs any lifecycle action by name.
func (m *ElectionManager) Apply(ctx context.Context, id uint, action models.ElectionAction) (*models.Election, error) {
	return m.apply(ctx, id, action)
}

func (m *ElectionManager) apply(ctx context.Context, id uint, action models.ElectionAction) (*models.Election, error) {
	var election models.Election
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.ForUpdate(tx).First(&election, id).Error; err != nil {
			return mapNotFound(err, "election", id)
		}
		next, ok := election.Status.Next(action)
		if !ok {
			return &TransitionError{ElectionID: id, From: election.Status, Action: action}
		}
		now := m.now()
		election.Status = next
		switch action {
		case models.ActionStart:
			election.StartedAt = &now
		case models.ActionEnd:
			election.EndedAt = &now
			election.OpenSlot = nil
		}
		return tx.Save(&election).Error
	})
	if err != nil {
		return nil, err
	}
	m.metrics.transition(string(action))
	m.logger.Info("election transitioned",
		"election_id", election.ID,
		"action", action,
		"status", election.Status,
	)
	m.notify(ctx, election, action)
	return &election, nil
}

// notify queues a broadcast and returns at once. A single drain goroutine
// delivers queued changes in commit order.
func (m *ElectionManager) notify(ctx context.Context, election models.Election, action models.ElectionAction) {
	if _, ok := m.notifier.(nopNotifier); ok {
		return
	}
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	m.queue = append(m.queue, notification{
		ctx:      context.WithoutCancel(ctx),
		election: election,
		action:   action,
	})
	if m.draining {
		return
	}
	m.draining = true
	m.inflight.Add(1)
	go m.drain()
}

func (m *ElectionManager) drain() {
	defer m.inflight.Done()
	for {
		m.notifyMu.Lock()
		if len(m.queue) == 0 {
			m.draining = false
			m.notifyMu.Unlock()
			return
		}
		n := m.queue[0]
		m.queue = m.queue[1:]
		m.notifyMu.Unlock()

		ctx, cancel := context.WithTimeout(n.ctx, notifyTimeout)
		err := m.notifier.ElectionChanged(ctx, n.election, n.action)
		cancel()
		if err != nil {
			m.logger.Warn("failed to notify election change", "election_id", n.election.ID, "action", n.action, "error", err)
		}
	}
}

// Wait blocks until every queued change notification has been delivered or
// has failed.
func (m *ElectionManager) Wait() {
	m.inflight.Wait()
}

// Delete removes an election with its ballot, votes and receipts. Active
// elections cannot be deleted.
func (m *ElectionManager) Delete(ctx context.Context, id uint) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var election models.Election
		if err := db.ForUpdate(tx).First(&election, id).Error; err != nil {
			return mapNotFound(err, "election", id)
		}
		if election.Status == models.StatusActive {
			return fmt.Errorf("%w: stop the election before deleting it", ErrElectionActive)
		}
		for _, model := range []any{
			&models.Vote{},
			&models.BallotReceipt{},
			&models.ElectionCandidate{},
			&models.ElectionPosition{},
		} {
			if err := tx.Where("election_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&election).Error
	})
	if err != nil {
		return err
	}
	m.logger.Info("election deleted", "election_id", id)
	return nil
}

func (m *ElectionManager) Get(ctx context.Context, id uint) (*models.Election, error) {
	var election models.Election
	if err := m.db.WithContext(ctx).First(&election, id).Error; err != nil {
		return nil, mapNotFound(err, "election", id)
	}
	return &election, nil
}

// List returns elections newest first, optionally filtered by status.
func (m *ElectionManager) List(ctx context.Context, status models.ElectionStatus) ([]models.Election, error) {
	q := m.db.WithContext(ctx).Model(&models.Election{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	elections := []models.Election{}
	if err := q.Order("created_at DESC, id DESC").Find(&elections).Error; err != nil {
		return nil, err
	}
	return elections, nil
}

// Current returns the one election that has not ended.
func (m *ElectionManager) Current(ctx context.Context) (*models.Election, error) {
	var election models.Election
	err := m.db.WithContext(ctx).Where("status <> ?", models.StatusEnded).Order("id DESC").First(&election).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("open election: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &election, nil
}

// History returns ended elections, most recently ended first.
func (m *ElectionManager) History(ctx context.Context) ([]models.Election, error) {
	elections := []models.Election{}
	err := m.db.WithContext(ctx).
		Where("status = ?", models.StatusEnded).
		Order("ended_at DESC, id DESC").
		Find(&elections).Error
	if err != nil {
		return nil, err
	}
	return elections, nil
}

// Positions returns the ballot positions of an election in display order.
func (m *ElectionManager) Positions(ctx context.Context, id uint) ([]models.Position, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	positions, err := ballotPositions(m.db.WithContext(ctx), id, nil)
	if err != nil {
		return nil, err
	}
	if positions == nil {
		positions = []models.Position{}
	}
	return positions, nil
}

// CandidateAssignments returns every ballot position with its assigned candidates.
func (m *ElectionManager) CandidateAssignments(ctx context.Context, id uint) ([]models.PositionAssignment, error) {
	positions, err := m.Positions(ctx, id)
	if err != nil {
		return nil, err
	}
	candidates, err := assignedCandidates(m.db.WithContext(ctx), id, nil)
	if err != nil {
		return nil, err
	}
	byPosition := make(map[uint][]models.Candidate)
	for _, c := range candidates {
		byPosition[c.PositionID] = append(byPosition[c.PositionID], c)
	}
	assignments := make([]models.PositionAssignment, 0, len(positions))
	for _, p := range positions {
		list := byPosition[p.ID]
		if list == nil {
			list = []models.Candidate{}
		}
		assignments = append(assignments, models.PositionAssignment{Position: p, Candidates: list})
	}
	return assignments, nil
}

// Results tallies the votes of an election per position and candidate.
func (m *ElectionManager) Results(ctx context.Context, id uint) (*models.ElectionResults, error) {
	election, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	assignments, err := m.CandidateAssignments(ctx, id)
	if err != nil {
		return nil, err
	}

	var tallies []struct {
		CandidateID uint
		Votes       int64
	}
	conn := m.db.WithContext(ctx)
	err = conn.Model(&models.Vote{}).
		Select("candidate_id, COUNT(*) AS votes").
		Where("election_id = ?", id).
		Group("candidate_id").
		Scan(&tallies).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(tallies))
	for _, t := range tallies {
		counts[t.CandidateID] = t.Votes
	}

	results := &models.ElectionResults{Election: *election, Positions: make([]models.PositionResult, 0, len(assignments))}
	if err := conn.Model(&models.Vote{}).Where("election_id = ?", id).Distinct("voter_id").Count(&results.Voters).Error; err != nil {
		return nil, err
	}
	for _, a := range assignments {
		pr := models.PositionResult{
			PositionID:   a.Position.ID,
			PositionName: a.Position.Name,
			VoteLimit:    a.Position.VoteLimit,
			Candidates:   make([]models.CandidateTally, 0, len(a.Candidates)),
		}
		for _, c := range a.Candidates {
			votes := counts[c.ID]
			pr.TotalVotes += votes
			pr.Candidates = append(pr.Candidates, models.CandidateTally{CandidateID: c.ID, Name: c.Name, Votes: votes})
		}
		sort.SliceStable(pr.Candidates, func(i, j int) bool {
			return pr.Candidates[i].Votes > pr.Candidates[j].Votes
		})
		results.TotalVotes += pr.TotalVotes
		results.Positions = append(results.Positions, pr)
	}
	return results, nil
}
