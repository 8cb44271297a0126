package models

import "time"

// Vote is one selected candidate. Rows are never updated.
type Vote struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	VoterID     uint      `json:"voterId" gorm:"not null;uniqueIndex:idx_vote_unique,priority:1"`
	ElectionID  uint      `json:"electionId" gorm:"not null;uniqueIndex:idx_vote_unique,priority:2;index"`
	PositionID  uint      `json:"positionId" gorm:"not null;uniqueIndex:idx_vote_unique,priority:3"`
	CandidateID uint      `json:"candidateId" gorm:"not null;uniqueIndex:idx_vote_unique,priority:4;index"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BallotReceipt records that a voter submitted at least one ballot in an election
type BallotReceipt struct {
	ID               uint      `json:"-" gorm:"primaryKey"`
	VoterID          uint      `json:"voterId" gorm:"not null;uniqueIndex:idx_receipt_unique,priority:1"`
	ElectionID       uint      `json:"electionId" gorm:"not null;uniqueIndex:idx_receipt_unique,priority:2"`
	Submissions      int       `json:"submissions" gorm:"not null;default:1"`
	FirstSubmittedAt time.Time `json:"firstSubmittedAt"`
	LastSubmittedAt  time.Time `json:"lastSubmittedAt"`
}

// BallotItem is one (election, position, candidate) selection
type BallotItem struct {
	ElectionID  uint `json:"electionId"`
	PositionID  uint `json:"positionId"`
	CandidateID uint `json:"candidateId"`
}

// SubmitBallotRequest is the body of POST /votes/votes-array
type SubmitBallotRequest struct {
	Votes []BallotItem `json:"votes"`
}

// Ballot item issue codes
const (
	IssueInvalidItem          = "invalid_item"
	IssueMixedElection        = "mixed_election"
	IssueDuplicateInBatch     = "duplicate_in_batch"
	IssuePositionNotOnBallot  = "position_not_on_ballot"
	IssueCandidateNotOnBallot = "candidate_not_on_ballot"
	IssueAlreadyVoted         = "already_voted"
	IssueVoteLimitExceeded    = "vote_limit_exceeded"
)

// BallotIssue describes why one submitted item was refused
type BallotIssue struct {
	Index       int    `json:"index"`
	ElectionID  uint   `json:"electionId"`
	PositionID  uint   `json:"positionId"`
	CandidateID uint   `json:"candidateId"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

// PositionOutcome summarizes one position of a submitted ballot
type PositionOutcome struct {
	PositionID     uint          `json:"positionId"`
	PositionName   string        `json:"positionName,omitempty"`
	VoteLimit      int           `json:"voteLimit"`
	PreviouslyCast int           `json:"previouslyCast"`
	Submitted      int           `json:"submitted"`
	Remaining      int           `json:"remaining"`
	Status         string        `json:"status"`
	Errors         []BallotIssue `json:"errors,omitempty"`
}

// Position outcome statuses
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// BallotResult is returned for every submission, successful or not
type BallotResult struct {
	Success    bool              `json:"success"`
	VoterID    uint              `json:"voterId"`
	ElectionID uint              `json:"electionId"`
	Accepted   int               `json:"accepted"`
	HasVoted   bool              `json:"hasVoted"`
	Positions  []PositionOutcome `json:"positions"`
	Errors     []BallotIssue     `json:"errors,omitempty"`
}

// VotingStatus reports a voter's progress on one ballot position
type VotingStatus struct {
	ElectionID           uint   `json:"electionId"`
	PositionID           uint   `json:"positionId"`
	VoteLimit            int    `json:"voteLimit"`
	CurrentVotes         int    `json:"currentVotes"`
	RemainingVotes       int    `json:"remainingVotes"`
	SelectedCandidateIDs []uint `json:"selectedCandidateIds"`
	CanVote              bool   `json:"canVote"`
}

// ElectionVotingStatus reports a voter's progress on a whole ballot
type ElectionVotingStatus struct {
	ElectionID uint           `json:"electionId"`
	Status     ElectionStatus `json:"status"`
	HasVoted   bool           `json:"hasVoted"`
	Positions  []VotingStatus `json:"positions"`
}

// CandidateTally is the number of votes one candidate received
type CandidateTally struct {
	CandidateID uint   `json:"candidateId"`
	Name        string `json:"name"`
	Votes       int64  `json:"votes"`
}

// PositionResult holds the tallies for a ballot position, highest first
type PositionResult struct {
	PositionID   uint             `json:"positionId"`
	PositionName string           `json:"positionName"`
	VoteLimit    int              `json:"voteLimit"`
	TotalVotes   int64            `json:"totalVotes"`
	Candidates   []CandidateTally `json:"candidates"`
}

// ElectionResults is the tally of a whole election
type ElectionResults struct {
	Election   Election         `json:"election"`
	Voters     int64            `json:"voters"`
	TotalVotes int64            `json:"totalVotes"`
	Positions  []PositionResult `json:"positions"`
}
