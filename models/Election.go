package models

import (
	"fmt"
	"time"
)

// ElectionStatus is the lifecycle state of an election
type ElectionStatus string

const (
	StatusPending ElectionStatus = "pending"
	StatusActive  ElectionStatus = "active"
	StatusPaused  ElectionStatus = "paused"
	StatusStopped ElectionStatus = "stopped"
	StatusEnded   ElectionStatus = "ended"
)

// Valid reports whether s is one of the known statuses
func (s ElectionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusPaused, StatusStopped, StatusEnded:
		return true
	default:
		return false
	}
}

// ParseElectionStatus converts a query string value into a status
func ParseElectionStatus(v string) (ElectionStatus, error) {
	s := ElectionStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown election status %q", v)
	}
	return s, nil
}

// ElectionAction is a lifecycle operation requested on an election
type ElectionAction string

const (
	ActionStart  ElectionAction = "start"
	ActionPause  ElectionAction = "pause"
	ActionResume ElectionAction = "resume"
	ActionStop   ElectionAction = "stop"
	ActionEnd    ElectionAction = "end"
)

// Actions lists every lifecycle action in the order they are normally applied
var Actions = []ElectionAction{ActionStart, ActionPause, ActionResume, ActionStop, ActionEnd}

type transition struct {
	from []ElectionStatus
	to   ElectionStatus
}

// Anything missing from this table is an illegal transition.
var transitions = map[ElectionAction]transition{
	ActionStart:  {from: []ElectionStatus{StatusPending}, to: StatusActive},
	ActionPause:  {from: []ElectionStatus{StatusActive}, to: StatusPaused},
	ActionResume: {from: []ElectionStatus{StatusPaused}, to: StatusActive},
	ActionStop:   {from: []ElectionStatus{StatusActive, StatusPaused}, to: StatusStopped},
	ActionEnd:    {from: []ElectionStatus{StatusStopped}, to: StatusEnded},
}

// Next returns the status reached by applying action to s, and false if the
// transition is not allowed.
func (s ElectionStatus) Next(action ElectionAction) (ElectionStatus, bool) {
	t, ok := transitions[action]
	if !ok {
		return "", false
	}
	for _, from := range t.from {
		if from == s {
			return t.to, true
		}
	}
	return "", false
}

// Election is a single ballot run. OpenSlot is 1 while the election is not
// ended and NULL afterwards; its unique index keeps a single open election.
type Election struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"size:200;not null"`
	Description string         `json:"description"`
	StartTime   *time.Time     `json:"startTime"`
	EndTime     *time.Time     `json:"endTime"`
	Status      ElectionStatus `json:"status" gorm:"size:16;not null;index"`
	OpenSlot    *int           `json:"-" gorm:"uniqueIndex"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	EndedAt     *time.Time     `json:"endedAt,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// IsOpen reports whether the election still counts against the single
// open election rule.
func (e *Election) IsOpen() bool {
	return e.Status != StatusEnded
}

// ElectionRequest is used for creating an election and its ballot
type ElectionRequest struct {
	Title        string     `json:"title" binding:"required"`
	Description  string     `json:"description"`
	StartTime    *time.Time `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	PositionIDs  []uint     `json:"positionIds"`
	CandidateIDs []uint     `json:"candidateIds"`
}

// ElectionUpdateRequest changes the descriptive fields of a pending election
type ElectionUpdateRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
}

// BallotRequest replaces the positions and candidates of a pending election
type BallotRequest struct {
	PositionIDs  []uint `json:"positionIds" binding:"required"`
	CandidateIDs []uint `json:"candidateIds"`
}
