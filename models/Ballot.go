package models

import "time"

// Position is an office on the ballot, e.g. "Senator"
type Position struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"size:120;not null;uniqueIndex"`
	Description  string    `json:"description"`
	VoteLimit    int       `json:"voteLimit" gorm:"not null;default:1"`
	DisplayOrder int       `json:"displayOrder" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PositionRequest is used for creating or updating a position
type PositionRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	VoteLimit    int    `json:"voteLimit" binding:"required,min=1"`
	DisplayOrder int    `json:"displayOrder"`
}

// Candidate runs for exactly one position
type Candidate struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"size:160;not null"`
	PositionID   uint      `json:"positionId" gorm:"not null;index"`
	DepartmentID *uint     `json:"departmentId" gorm:"index"`
	CourseID     *uint     `json:"courseId" gorm:"index"`
	PhotoURL     string    `json:"photoUrl"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Position *Position `json:"position,omitempty" gorm:"foreignKey:PositionID"`
}

// CandidateRequest is used for creating or updating a candidate
type CandidateRequest struct {
	Name         string `json:"name" binding:"required"`
	PositionID   uint   `json:"positionId" binding:"required"`
	DepartmentID *uint  `json:"departmentId"`
	CourseID     *uint  `json:"courseId"`
	PhotoURL     string `json:"photoUrl"`
	Description  string `json:"description"`
}

// ElectionPosition puts a position on an election's ballot
type ElectionPosition struct {
	ElectionID uint `gorm:"primaryKey;autoIncrement:false"`
	PositionID uint `gorm:"primaryKey;autoIncrement:false;index"`
}

// ElectionCandidate assigns a candidate to an election's ballot
type ElectionCandidate struct {
	ElectionID  uint `gorm:"primaryKey;autoIncrement:false"`
	CandidateID uint `gorm:"primaryKey;autoIncrement:false"`
	PositionID  uint `gorm:"not null;index"`
}

// PositionAssignment is one ballot position with the candidates assigned to it
type PositionAssignment struct {
	Position   Position    `json:"position"`
	Candidates []Candidate `json:"candidates"`
}
