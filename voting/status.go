package voting

import (
	"context"

	"campusvote/models"

	"gorm.io/gorm"
)

// StatusQuery reports how far a voter has progressed through a ballot.
type StatusQuery struct {
	db *gorm.DB
}

func NewStatusQuery(conn *gorm.DB) *StatusQuery {
	return &StatusQuery{db: conn}
}

// Position returns the voter's status on a single ballot position.
func (q *StatusQuery) Position(ctx context.Context, voterID, electionID, positionID uint) (*models.VotingStatus, error) {
	conn := q.db.WithContext(ctx)
	election, err := q.election(conn, electionID)
	if err != nil {
		return nil, err
	}
	positions, err := ballotPositions(conn, electionID, []uint{positionID})
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, notFound("ballot position", positionID)
	}
	selected, err := q.selections(conn, voterID, electionID)
	if err != nil {
		return nil, err
	}
	status := positionStatus(election, positions[0], selected[positionID])
	return &status, nil
}

// Election returns the voter's status on every position of the ballot.
func (q *StatusQuery) Election(ctx context.Context, voterID, electionID uint) (*models.ElectionVotingStatus, error) {
	conn := q.db.WithContext(ctx)
	election, err := q.election(conn, electionID)
	if err != nil {
		return nil, err
	}
	positions, err := ballotPositions(conn, electionID, nil)
	if err != nil {
		return nil, err
	}
	selected, err := q.selections(conn, voterID, electionID)
	if err != nil {
		return nil, err
	}
	var receipts int64
	err = conn.Model(&models.BallotReceipt{}).
		Where("voter_id = ? AND election_id = ?", voterID, electionID).
		Count(&receipts).Error
	if err != nil {
		return nil, err
	}
	out := &models.ElectionVotingStatus{
		ElectionID: electionID,
		Status:     election.Status,
		HasVoted:   receipts > 0,
		Positions:  make([]models.VotingStatus, 0, len(positions)),
	}
	for _, p := range positions {
		out.Positions = append(out.Positions, positionStatus(election, p, selected[p.ID]))
	}
	return out, nil
}

func (q *StatusQuery) election(conn *gorm.DB, id uint) (*models.Election, error) {
	var election models.Election
	if err := conn.First(&election, id).Error; err != nil {
		return nil, mapNotFound(err, "election", id)
	}
	return &election, nil
}

// selections maps position id to the candidates the voter picked, in vote order.
func (q *StatusQuery) selections(conn *gorm.DB, voterID, electionID uint) (map[uint][]uint, error) {
	var votes []models.Vote
	err := conn.Where("voter_id = ? AND election_id = ?", voterID, electionID).Order("id").Find(&votes).Error
	if err != nil {
		return nil, err
	}
	selected := make(map[uint][]uint)
	for _, v := range votes {
		selected[v.PositionID] = append(selected[v.PositionID], v.CandidateID)
	}
	return selected, nil
}

func positionStatus(election *models.Election, p models.Position, selected []uint) models.VotingStatus {
	if selected == nil {
		selected = []uint{}
	}
	remaining := max(p.VoteLimit-len(selected), 0)
	return models.VotingStatus{
		ElectionID:           election.ID,
		PositionID:           p.ID,
		VoteLimit:            p.VoteLimit,
		CurrentVotes:         len(selected),
		RemainingVotes:       remaining,
		SelectedCandidateIDs: selected,
		CanVote:              election.Status == models.StatusActive && remaining > 0,
	}
}
