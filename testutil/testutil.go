// Package testutil provides an in-memory database and fixtures for tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"campusvote/config"
	"campusvote/db"
	"campusvote/models"
	"campusvote/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestJWTSecret signs tokens in HTTP tests
const TestJWTSecret = "test-secret-change-me"

// TestPassword is the plain password of every fixture account
const TestPassword = "correct-horse-battery"

// NewDB opens a private in-memory SQLite database with every table migrated.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString()),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return conn
}

// Config returns a valid configuration pointing at SQLite
func Config() *config.Config {
	cfg := config.Default()
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.DSN = "file::memory:"
	cfg.Auth.JWTSecret = TestJWTSecret
	cfg.Metrics = false
	return cfg
}

func CreateDepartment(t testing.TB, conn *gorm.DB, name string) models.Department {
	t.Helper()
	d := models.Department{Name: name}
	require.NoError(t, conn.Create(&d).Error)
	return d
}

func CreatePosition(t testing.TB, conn *gorm.DB, name string, voteLimit int) models.Position {
	t.Helper()
	p := models.Position{Name: name, VoteLimit: voteLimit}
	require.NoError(t, conn.Create(&p).Error)
	return p
}

func CreateCandidate(t testing.TB, conn *gorm.DB, name string, positionID uint) models.Candidate {
	t.Helper()
	c := models.Candidate{Name: name, PositionID: positionID}
	require.NoError(t, conn.Create(&c).Error)
	return c
}

// CreateVoter stores a voter whose password is TestPassword
func CreateVoter(t testing.TB, conn *gorm.DB, studentID string) models.Voter {
	t.Helper()
	hash, err := utils.HashPassword(TestPassword)
	require.NoError(t, err)
	v := models.Voter{
		Name:         "Voter " + studentID,
		Email:        strings.ToLower(studentID) + "@students.example.edu",
		StudentID:    studentID,
		PasswordHash: hash,
	}
	require.NoError(t, conn.Create(&v).Error)
	return v
}

// CreateAdmin stores an admin whose password is TestPassword
func CreateAdmin(t testing.TB, conn *gorm.DB, username, role string) models.Admin {
	t.Helper()
	hash, err := utils.HashPassword(TestPassword)
	require.NoError(t, err)
	a := models.Admin{
		Username:     username,
		Email:        username + "@example.edu",
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, conn.Create(&a).Error)
	return a
}

// CreateElection stores an election in the given status with every listed
// position and all of their candidates on the ballot. It bypasses the
// lifecycle rules, so callers are responsible for keeping a single open
// election.
func CreateElection(t testing.TB, conn *gorm.DB, title string, status models.ElectionStatus, positions ...models.Position) models.Election {
	t.Helper()
	e := models.Election{Title: title, Status: status}
	if status != models.StatusEnded {
		slot := 1
		e.OpenSlot = &slot
	}
	require.NoError(t, conn.Create(&e).Error)
	for _, p := range positions {
		require.NoError(t, conn.Create(&models.ElectionPosition{ElectionID: e.ID, PositionID: p.ID}).Error)
		var candidates []models.Candidate
		require.NoError(t, conn.Where("position_id = ?", p.ID).Find(&candidates).Error)
		for _, c := range candidates {
			require.NoError(t, conn.Create(&models.ElectionCandidate{
				ElectionID:  e.ID,
				CandidateID: c.ID,
				PositionID:  p.ID,
			}).Error)
		}
	}
	return e
}

// CountVotes counts vote rows matching the optional where clause
func CountVotes(t testing.TB, conn *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := conn.Model(&models.Vote{})
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
