package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"campusvote/config"
	"campusvote/handlers"
	"campusvote/middleware"
	"campusvote/models"
	"campusvote/testutil"
	"campusvote/voting"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t        *testing.T
	db       *gorm.DB
	tokens   *middleware.TokenIssuer
	router   *gin.Engine
	photoDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := middleware.NewTokenIssuer(testutil.TestJWTSecret, time.Hour)
	photoDir := t.TempDir()
	router := NewRouter(Deps{
		DB:       conn,
		Voting:   voting.New(conn, voting.Options{Logger: logger}),
		Tokens:   tokens,
		Reset:    handlers.NewPasswordReset(conn, handlers.NewMailer(config.SMTPConfig{}, logger), logger),
		Logger:   logger,
		PhotoDir: photoDir,
		Registry: prometheus.NewRegistry(),
	})
	return &testServer{t: t, db: conn, tokens: tokens, router: router, photoDir: photoDir}
}

func (s *testServer) token(id uint, role string) string {
	s.t.Helper()
	token, _, err := s.tokens.Issue(id, role)
	require.NoError(s.t, err)
	return token
}

// do sends body as JSON with an optional bearer token.
func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodGet, "/health", "", nil)

	w := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `campusvote_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestPhotos(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.photoDir, "alice.jpg"), []byte("jpeg"), 0o600))

	w := s.do(http.MethodGet, "/photos/alice.jpg", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg", w.Body.String())

	w = s.do(http.MethodGet, "/api/photos/../../etc/passwd", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	testutil.CreateAdmin(t, s.db, "registrar", models.RoleAdmin)
	voter := testutil.CreateVoter(t, s.db, "S1001")

	tests := []struct {
		name   string
		path   string
		body   gin.H
		status int
		role   string
	}{
		{"admin by username", "/api/auth/admin/login", gin.H{"username": "registrar", "password": testutil.TestPassword}, http.StatusOK, models.RoleAdmin},
		{"admin by email", "/api/auth/admin/login", gin.H{"username": "Registrar@example.edu", "password": testutil.TestPassword}, http.StatusOK, models.RoleAdmin},
		{"admin wrong password", "/api/auth/admin/login", gin.H{"username": "registrar", "password": "nope"}, http.StatusUnauthorized, ""},
		{"admin unknown", "/api/auth/admin/login", gin.H{"username": "ghost", "password": testutil.TestPassword}, http.StatusUnauthorized, ""},
		{"voter by student id", "/api/auth/voter/login", gin.H{"identifier": "S1001", "password": testutil.TestPassword}, http.StatusOK, models.RoleVoter},
		{"voter by email", "/api/auth/voter/login", gin.H{"identifier": voter.Email, "password": testutil.TestPassword}, http.StatusOK, models.RoleVoter},
		{"voter wrong password", "/api/auth/voter/login", gin.H{"identifier": "S1001", "password": "nope"}, http.StatusUnauthorized, ""},
		{"missing fields", "/api/auth/voter/login", gin.H{"identifier": "S1001"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, tt.path, "", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			resp := decode[map[string]any](t, w)
			assert.Equal(t, tt.role, resp["role"])

			_, role, err := s.tokens.Parse(resp["token"].(string))
			require.NoError(t, err)
			assert.Equal(t, tt.role, role)
		})
	}
}

func TestVoterLoginWithoutPassword(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.db.Create(&models.Voter{Name: "New", Email: "new@students.example.edu", StudentID: "S2000"}).Error)

	w := s.do(http.MethodPost, "/api/auth/voter/login", "", gin.H{"identifier": "S2000", "password": "anything"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "forgot password")
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(1, models.RoleAdmin)
	superadmin := s.token(2, models.RoleSuperAdmin)
	voter := s.token(3, models.RoleVoter)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"anonymous", http.MethodGet, "/api/elections", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/elections", "garbage", http.StatusUnauthorized},
		{"voter on admin route", http.MethodGet, "/api/elections", voter, http.StatusForbidden},
		{"voter on positions", http.MethodGet, "/api/positions", voter, http.StatusForbidden},
		{"admin lists elections", http.MethodGet, "/api/elections", admin, http.StatusOK},
		{"superadmin lists elections", http.MethodGet, "/api/elections", superadmin, http.StatusOK},
		{"admin cannot vote", http.MethodPost, "/api/votes/votes-array", admin, http.StatusForbidden},
		{"admin cannot read voting status", http.MethodGet, "/api/votes/status/1", admin, http.StatusForbidden},
		{"admin cannot manage admins", http.MethodGet, "/api/admins", admin, http.StatusForbidden},
		{"superadmin manages admins", http.MethodGet, "/api/admins", superadmin, http.StatusOK},
		{"voter reads current election", http.MethodGet, "/api/elections/current", voter, http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/nothing-here", admin, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestElectionEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(1, models.RoleAdmin)
	president := testutil.CreatePosition(t, s.db, "President", 1)
	alice := testutil.CreateCandidate(t, s.db, "Alice", president.ID)

	w := s.do(http.MethodPost, "/api/elections", admin, gin.H{
		"title":        "Student Council 2026",
		"positionIds":  []uint{president.ID},
		"candidateIds": []uint{alice.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	election := decode[models.Election](t, w)
	assert.Equal(t, models.StatusPending, election.Status)

	w = s.do(http.MethodPost, "/api/elections", admin, gin.H{"title": "Second"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/elections/%d/positions", election.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "President")

	steps := []struct {
		action string
		status int
		want   models.ElectionStatus
	}{
		{"pause", http.StatusConflict, ""},
		{"start", http.StatusOK, models.StatusActive},
		{"start", http.StatusConflict, ""},
		{"pause", http.StatusOK, models.StatusPaused},
		{"resume", http.StatusOK, models.StatusActive},
		{"stop", http.StatusOK, models.StatusStopped},
		{"end", http.StatusOK, models.StatusEnded},
		{"resume", http.StatusConflict, ""},
	}
	for _, step := range steps {
		w := s.do(http.MethodPost, fmt.Sprintf("/api/elections/%d/%s", election.ID, step.action), admin, nil)
		require.Equal(t, step.status, w.Code, "%s: %s", step.action, w.Body.String())
		if step.status == http.StatusOK {
			assert.Equal(t, step.want, decode[models.Election](t, w).Status)
		}
	}

	w = s.do(http.MethodGet, "/api/elections/current", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/elections/history", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Student Council 2026")

	w = s.do(http.MethodGet, "/api/elections/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type votingFixture struct {
	*testServer
	voter     models.Voter
	election  models.Election
	president models.Position
	senator   models.Position
	alice     models.Candidate
	carol     models.Candidate
	dave      models.Candidate
	erin      models.Candidate
}

func newVotingFixture(t *testing.T) *votingFixture {
	s := newTestServer(t)
	f := &votingFixture{testServer: s}
	f.president = testutil.CreatePosition(t, s.db, "President", 1)
	f.senator = testutil.CreatePosition(t, s.db, "Senator", 2)
	f.alice = testutil.CreateCandidate(t, s.db, "Alice", f.president.ID)
	testutil.CreateCandidate(t, s.db, "Bob", f.president.ID)
	f.carol = testutil.CreateCandidate(t, s.db, "Carol", f.senator.ID)
	f.dave = testutil.CreateCandidate(t, s.db, "Dave", f.senator.ID)
	f.erin = testutil.CreateCandidate(t, s.db, "Erin", f.senator.ID)
	f.voter = testutil.CreateVoter(t, s.db, "S1001")
	f.election = testutil.CreateElection(t, s.db, "Student Council 2026", models.StatusActive, f.president, f.senator)
	return f
}

func (f *votingFixture) item(p models.Position, c models.Candidate) models.BallotItem {
	return models.BallotItem{ElectionID: f.election.ID, PositionID: p.ID, CandidateID: c.ID}
}

func TestSubmitBallotEndpoint(t *testing.T) {
	f := newVotingFixture(t)
	voter := f.token(f.voter.ID, models.RoleVoter)

	w := f.do(http.MethodPost, "/api/votes/votes-array", voter, models.SubmitBallotRequest{
		Votes: []models.BallotItem{f.item(f.president, f.alice), f.item(f.senator, f.carol)},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	result := decode[models.BallotResult](t, w)
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.Accepted)
	assert.True(t, result.HasVoted)

	w = f.do(http.MethodGet, fmt.Sprintf("/api/votes/status/%d/%d", f.election.ID, f.senator.ID), voter, nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[models.VotingStatus](t, w)
	assert.Equal(t, 1, status.CurrentVotes)
	assert.Equal(t, 1, status.RemainingVotes)
	assert.Equal(t, []uint{f.carol.ID}, status.SelectedCandidateIDs)
	assert.True(t, status.CanVote)

	// Two more senators exceed the limit of two; nothing is stored.
	w = f.do(http.MethodPost, "/api/votes/votes-array", voter, models.SubmitBallotRequest{
		Votes: []models.BallotItem{f.item(f.senator, f.dave), f.item(f.senator, f.erin)},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	var rejected struct {
		Error   string              `json:"error"`
		Details models.BallotResult `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rejected))
	assert.False(t, rejected.Details.Success)
	require.NotEmpty(t, rejected.Details.Errors)
	assert.Equal(t, models.IssueVoteLimitExceeded, rejected.Details.Errors[0].Code)
	assert.EqualValues(t, 2, testutil.CountVotes(t, f.db, "voter_id = ?", f.voter.ID))

	w = f.do(http.MethodPost, "/api/votes/votes-array", voter, models.SubmitBallotRequest{
		Votes: []models.BallotItem{f.item(f.president, f.alice)},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), models.IssueAlreadyVoted)

	w = f.do(http.MethodGet, fmt.Sprintf("/api/votes/status/%d", f.election.ID), voter, nil)
	require.Equal(t, http.StatusOK, w.Code)
	overall := decode[models.ElectionVotingStatus](t, w)
	assert.True(t, overall.HasVoted)
	assert.Len(t, overall.Positions, 2)
}

func TestSubmitBallotPreconditions(t *testing.T) {
	f := newVotingFixture(t)
	voter := f.token(f.voter.ID, models.RoleVoter)

	w := f.do(http.MethodPost, "/api/votes/votes-array", voter, models.SubmitBallotRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/votes/votes-array", voter, "not a ballot")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, f.db.Model(&f.election).Update("status", models.StatusPaused).Error)
	w = f.do(http.MethodPost, "/api/votes/votes-array", voter, models.SubmitBallotRequest{
		Votes: []models.BallotItem{f.item(f.president, f.alice)},
	})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = f.do(http.MethodGet, fmt.Sprintf("/api/votes/status/%d/%d", f.election.ID, 9999), voter, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeviceToken(t *testing.T) {
	f := newVotingFixture(t)
	voter := f.token(f.voter.ID, models.RoleVoter)

	w := f.do(http.MethodPut, "/api/voters/me/device-token", voter, gin.H{"deviceToken": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPut, "/api/voters/me/device-token", voter, gin.H{"deviceToken": "abc123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var stored models.Voter
	require.NoError(t, f.db.First(&stored, f.voter.ID).Error)
	assert.Equal(t, "abc123", stored.DeviceToken)

	w = f.do(http.MethodGet, "/api/voters/me", voter, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "S1001", decode[models.Voter](t, w).StudentID)
}

func TestReferencedRecordsCannotBeDeleted(t *testing.T) {
	f := newVotingFixture(t)
	admin := f.token(1, models.RoleAdmin)
	voter := f.token(f.voter.ID, models.RoleVoter)

	w := f.do(http.MethodPost, "/api/votes/votes-array", voter, models.SubmitBallotRequest{
		Votes: []models.BallotItem{f.item(f.president, f.alice)},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	department := testutil.CreateDepartment(t, f.db, "Engineering")
	require.NoError(t, f.db.Model(&f.voter).Update("department_id", department.ID).Error)

	tests := []struct {
		name string
		path string
	}{
		{"position with votes", fmt.Sprintf("/api/positions/%d", f.president.ID)},
		{"candidate with votes", fmt.Sprintf("/api/candidates/%d", f.alice.ID)},
		{"candidate on started ballot", fmt.Sprintf("/api/candidates/%d", f.dave.ID)},
		{"voter with votes", fmt.Sprintf("/api/voters/%d", f.voter.ID)},
		{"department with voters", fmt.Sprintf("/api/departments/%d", department.ID)},
		{"active election", fmt.Sprintf("/api/elections/%d", f.election.ID)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodDelete, tt.path, admin, nil)
			assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
		})
	}

	w = f.do(http.MethodPut, fmt.Sprintf("/api/positions/%d", f.senator.ID), admin, gin.H{"name": "Senator", "voteLimit": 3})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestVoteLimitCannotDropBelowCastVotes(t *testing.T) {
	f := newVotingFixture(t)
	admin := f.token(1, models.RoleAdmin)
	voter := f.token(f.voter.ID, models.RoleVoter)

	w := f.do(http.MethodPost, "/api/votes/votes-array", voter, models.SubmitBallotRequest{
		Votes: []models.BallotItem{f.item(f.senator, f.carol), f.item(f.senator, f.dave)},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	for _, action := range []string{"stop", "end"} {
		w = f.do(http.MethodPost, fmt.Sprintf("/api/elections/%d/%s", f.election.ID, action), admin, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	path := fmt.Sprintf("/api/positions/%d", f.senator.ID)
	w = f.do(http.MethodPut, path, admin, gin.H{"name": "Senator", "voteLimit": 1})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	var stored models.Position
	require.NoError(t, f.db.First(&stored, f.senator.ID).Error)
	assert.Equal(t, 2, stored.VoteLimit)

	w = f.do(http.MethodPut, path, admin, gin.H{"name": "Senator", "voteLimit": 2, "description": "Two seats"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = f.do(http.MethodPut, path, admin, gin.H{"name": "Senator", "voteLimit": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 3, decode[models.Position](t, w).VoteLimit)
}

func TestEndedBallotsKeepTheirPositions(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(1, models.RoleAdmin)
	treasurer := testutil.CreatePosition(t, s.db, "Treasurer", 1)
	frank := testutil.CreateCandidate(t, s.db, "Frank", treasurer.ID)
	secretary := testutil.CreatePosition(t, s.db, "Secretary", 1)
	grace := testutil.CreateCandidate(t, s.db, "Grace", secretary.ID)
	ended := testutil.CreateElection(t, s.db, "Council 2025", models.StatusEnded, treasurer)
	pending := testutil.CreateElection(t, s.db, "Council 2027", models.StatusPending, secretary)

	w := s.do(http.MethodDelete, fmt.Sprintf("/api/candidates/%d", frank.ID), admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	w = s.do(http.MethodDelete, fmt.Sprintf("/api/positions/%d", treasurer.ID), admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	var n int64
	require.NoError(t, s.db.Model(&models.ElectionCandidate{}).
		Where("election_id = ? AND candidate_id = ?", ended.ID, frank.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
	require.NoError(t, s.db.Model(&models.ElectionPosition{}).
		Where("election_id = ? AND position_id = ?", ended.ID, treasurer.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	// A pending ballot just loses the candidate.
	w = s.do(http.MethodDelete, fmt.Sprintf("/api/candidates/%d", grace.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, s.db.Model(&models.ElectionCandidate{}).
		Where("election_id = ? AND candidate_id = ?", pending.ID, grace.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCandidateCRUD(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(1, models.RoleAdmin)
	president := testutil.CreatePosition(t, s.db, "President", 1)
	department := testutil.CreateDepartment(t, s.db, "Engineering")

	w := s.do(http.MethodPost, "/api/candidates", admin, gin.H{"name": "Alice", "positionId": 9999})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/candidates", admin, gin.H{
		"name":         "Alice",
		"positionId":   president.ID,
		"departmentId": department.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	candidate := decode[models.Candidate](t, w)

	w = s.do(http.MethodGet, fmt.Sprintf("/api/candidates?positionId=%d&q=ali", president.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Candidates []models.Candidate `json:"candidates"`
		Total      int64              `json:"total"`
	}](t, w)
	assert.EqualValues(t, 1, list.Total)
	require.Len(t, list.Candidates, 1)
	require.NotNil(t, list.Candidates[0].Position)
	assert.Equal(t, "President", list.Candidates[0].Position.Name)

	w = s.do(http.MethodPut, fmt.Sprintf("/api/candidates/%d", candidate.ID), admin, gin.H{"name": "Alice B.", "positionId": president.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Alice B.", decode[models.Candidate](t, w).Name)

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/candidates/%d", candidate.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, fmt.Sprintf("/api/candidates/%d", candidate.ID), admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDuplicatePositionName(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(1, models.RoleAdmin)

	w := s.do(http.MethodPost, "/api/positions", admin, gin.H{"name": "President", "voteLimit": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/positions", admin, gin.H{"name": "President", "voteLimit": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/positions", admin, gin.H{"name": "Treasurer", "voteLimit": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminManagement(t *testing.T) {
	s := newTestServer(t)
	root := testutil.CreateAdmin(t, s.db, "root", models.RoleSuperAdmin)
	token := s.token(root.ID, models.RoleSuperAdmin)

	w := s.do(http.MethodPost, "/api/admins", token, gin.H{
		"username": "registrar",
		"email":    "registrar@example.edu",
		"password": "short",
		"role":     models.RoleAdmin,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/admins", token, gin.H{
		"username": "registrar",
		"email":    "Registrar@Example.edu",
		"password": testutil.TestPassword,
		"role":     models.RoleAdmin,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	registrar := decode[models.Admin](t, w)
	assert.Equal(t, "registrar@example.edu", registrar.Email)
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/admins/%d", root.ID), token, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "self delete")

	w = s.do(http.MethodPut, fmt.Sprintf("/api/admins/%d", root.ID), token, gin.H{
		"username": "root",
		"email":    "root@example.edu",
		"role":     models.RoleAdmin,
	})
	assert.Equal(t, http.StatusConflict, w.Code, "demote last superadmin")

	w = s.do(http.MethodDelete, fmt.Sprintf("/api/admins/%d", registrar.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	voter := testutil.CreateVoter(t, s.db, "S1001")
	token := s.token(voter.ID, models.RoleVoter)

	w := s.do(http.MethodPut, "/api/profile/change-password", token, gin.H{
		"currentPassword": "wrong-password",
		"newPassword":     "another-long-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPut, "/api/profile/change-password", token, gin.H{
		"currentPassword": testutil.TestPassword,
		"newPassword":     "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/profile/change-password", token, gin.H{
		"currentPassword": testutil.TestPassword,
		"newPassword":     "another-long-password",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/voter/login", "", gin.H{"identifier": "S1001", "password": "another-long-password"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPost, "/api/auth/voter/login", "", gin.H{"identifier": "S1001", "password": testutil.TestPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
