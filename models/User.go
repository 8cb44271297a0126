package models

import "time"

// Account roles carried in access tokens
const (
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
	RoleVoter      = "voter"
)

// Admin manages elections and reference data
type Admin struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"size:80;not null;uniqueIndex"`
	Email        string    `json:"email" gorm:"size:160;not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Role         string    `json:"role" gorm:"size:16;not null;default:admin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AdminRequest is used for creating or updating an admin. Password may be
// empty on update to keep the current one.
type AdminRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password"`
	Role     string `json:"role" binding:"required,oneof=admin superadmin"`
}

// Voter is a student eligible to vote. HasVoted refers to the current election.
type Voter struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"size:160;not null"`
	Email        string    `json:"email" gorm:"size:160;not null;uniqueIndex"`
	StudentID    string    `json:"studentId" gorm:"size:64;not null;uniqueIndex"`
	DepartmentID *uint     `json:"departmentId" gorm:"index"`
	CourseID     *uint     `json:"courseId" gorm:"index"`
	PasswordHash string    `json:"-"`
	DeviceToken  string    `json:"-" gorm:"size:200"`
	HasVoted     bool      `json:"hasVoted" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// VoterRequest is used for creating or updating a voter
type VoterRequest struct {
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	StudentID    string `json:"studentId" binding:"required"`
	DepartmentID *uint  `json:"departmentId"`
	CourseID     *uint  `json:"courseId"`
	Password     string `json:"password"`
}

// DeviceTokenRequest registers a device for push notifications
type DeviceTokenRequest struct {
	DeviceToken string `json:"deviceToken" binding:"required"`
}

// Department is reference data for voters and candidates
type Department struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:160;not null;uniqueIndex"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Course belongs to a department
type Course struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"size:160;not null;uniqueIndex:idx_course_department_name,priority:2"`
	DepartmentID uint      `json:"departmentId" gorm:"not null;uniqueIndex:idx_course_department_name,priority:1"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NameRequest is used for departments and courses
type NameRequest struct {
	Name string `json:"name" binding:"required"`
}

// All lists every persisted model, in dependency order, for migrations
var All = []any{
	&Department{},
	&Course{},
	&Admin{},
	&Voter{},
	&Position{},
	&Candidate{},
	&Election{},
	&ElectionPosition{},
	&ElectionCandidate{},
	&Vote{},
	&BallotReceipt{},
}
