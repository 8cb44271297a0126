package voting

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"campusvote/models"
	"campusvote/testutil"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueCodes(result *models.BallotResult) []string {
	codes := make([]string, 0, len(result.Errors))
	for _, issue := range result.Errors {
		codes = append(codes, issue.Code)
	}
	return codes
}

func TestSubmitAcceptsBallot(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	f := newBallotFixture(t, Options{Metrics: metrics})
	ctx := context.Background()

	result, err := f.svc.Ballots.Submit(ctx, f.voter.ID, []models.BallotItem{
		f.item(f.senator, f.carol),
		f.item(f.president, f.alice),
		f.item(f.senator, f.dave),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.HasVoted)
	assert.Equal(t, 3, result.Accepted)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Positions, 2)
	senator := result.Positions[0]
	assert.Equal(t, f.senator.ID, senator.PositionID, "outcomes follow submission order")
	assert.Equal(t, models.OutcomeAccepted, senator.Status)
	assert.Equal(t, 2, senator.Submitted)
	assert.Equal(t, 0, senator.Remaining)
	president := result.Positions[1]
	assert.Equal(t, "President", president.PositionName)
	assert.Equal(t, 1, president.Submitted)

	assert.EqualValues(t, 3, testutil.CountVotes(t, f.conn, "voter_id = ?", f.voter.ID))

	var voter models.Voter
	require.NoError(t, f.conn.First(&voter, f.voter.ID).Error)
	assert.True(t, voter.HasVoted)

	var receipt models.BallotReceipt
	require.NoError(t, f.conn.Where("voter_id = ? AND election_id = ?", f.voter.ID, f.election.ID).First(&receipt).Error)
	assert.Equal(t, 1, receipt.Submissions)
	assert.True(t, receipt.FirstSubmittedAt.Equal(fixedNow))

	assert.Equal(t, 3.0, promtest.ToFloat64(metrics.votesCast))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.ballots.WithLabelValues("accepted")))
}

func TestSubmitAcrossBatches(t *testing.T) {
	f := newBallotFixture(t, Options{})
	ctx := context.Background()

	result, err := f.svc.Ballots.Submit(ctx, f.voter.ID, []models.BallotItem{f.item(f.senator, f.carol)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Positions[0].Remaining)

	result, err = f.svc.Ballots.Submit(ctx, f.voter.ID, []models.BallotItem{f.item(f.senator, f.dave)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Positions[0].PreviouslyCast)
	assert.Equal(t, 0, result.Positions[0].Remaining)

	result, err = f.svc.Ballots.Submit(ctx, f.voter.ID, []models.BallotItem{f.item(f.senator, f.erin)})
	require.ErrorIs(t, err, ErrBallotRejected)
	assert.Equal(t, []string{models.IssueVoteLimitExceeded}, issueCodes(result))
	assert.Equal(t, 2, result.Positions[0].PreviouslyCast)

	var receipt models.BallotReceipt
	require.NoError(t, f.conn.Where("voter_id = ?", f.voter.ID).First(&receipt).Error)
	assert.Equal(t, 2, receipt.Submissions)
	assert.EqualValues(t, 2, testutil.CountVotes(t, f.conn, "voter_id = ?", f.voter.ID))
}

func TestSubmitRejectsWholeBallot(t *testing.T) {
	f := newBallotFixture(t, Options{})
	other := testutil.CreateElection(t, f.conn, "Archived", models.StatusEnded, f.president)

	tests := []struct {
		name  string
		items func() []models.BallotItem
		codes []string
	}{
		{
			name: "vote limit exceeded marks every item of the position",
			items: func() []models.BallotItem {
				return []models.BallotItem{
					f.item(f.president, f.alice),
					f.item(f.senator, f.carol),
					f.item(f.senator, f.dave),
					f.item(f.senator, f.erin),
				}
			},
			codes: []string{
				models.IssueVoteLimitExceeded,
				models.IssueVoteLimitExceeded,
				models.IssueVoteLimitExceeded,
			},
		},
		{
			name: "duplicate within batch",
			items: func() []models.BallotItem {
				return []models.BallotItem{f.item(f.president, f.alice), f.item(f.president, f.alice)}
			},
			codes: []string{models.IssueDuplicateInBatch},
		},
		{
			name: "mixed elections",
			items: func() []models.BallotItem {
				return []models.BallotItem{
					f.item(f.president, f.alice),
					{ElectionID: other.ID, PositionID: f.president.ID, CandidateID: f.bob.ID},
				}
			},
			codes: []string{models.IssueMixedElection},
		},
		{
			name: "missing ids",
			items: func() []models.BallotItem {
				return []models.BallotItem{f.item(f.president, f.alice), {ElectionID: f.election.ID}}
			},
			codes: []string{models.IssueInvalidItem},
		},
		{
			name: "position not on ballot",
			items: func() []models.BallotItem {
				return []models.BallotItem{f.item(f.president, f.alice), f.item(f.treasurer, f.frank)}
			},
			codes: []string{models.IssuePositionNotOnBallot},
		},
		{
			name: "candidate runs for another position",
			items: func() []models.BallotItem {
				return []models.BallotItem{f.item(f.president, f.carol)}
			},
			codes: []string{models.IssueCandidateNotOnBallot},
		},
		{
			name: "unknown candidate",
			items: func() []models.BallotItem {
				return []models.BallotItem{{ElectionID: f.election.ID, PositionID: f.president.ID, CandidateID: 999}}
			},
			codes: []string{models.IssueCandidateNotOnBallot},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.svc.Ballots.Submit(context.Background(), f.voter.ID, tt.items())
			require.ErrorIs(t, err, ErrBallotRejected)
			require.NotNil(t, result)
			assert.False(t, result.Success)
			assert.Zero(t, result.Accepted)
			assert.Equal(t, tt.codes, issueCodes(result))
			assert.Zero(t, testutil.CountVotes(t, f.conn, ""), "a rejected ballot writes nothing")
		})
	}
}

func TestSubmitRejectedOutcomes(t *testing.T) {
	f := newBallotFixture(t, Options{})

	result, err := f.svc.Ballots.Submit(context.Background(), f.voter.ID, []models.BallotItem{
		f.item(f.president, f.alice),
		f.item(f.president, f.bob),
		f.item(f.senator, f.carol),
	})
	require.ErrorIs(t, err, ErrBallotRejected)
	require.Len(t, result.Positions, 2)

	president := result.Positions[0]
	assert.Equal(t, models.OutcomeRejected, president.Status)
	assert.Len(t, president.Errors, 2)
	assert.Equal(t, 1, president.Remaining)

	senator := result.Positions[1]
	assert.Equal(t, models.OutcomeAccepted, senator.Status)
	assert.Equal(t, 1, senator.Submitted)
	assert.Equal(t, 2, senator.Remaining, "nothing was written")

	assert.Equal(t, 0, result.Errors[0].Index)
	assert.Equal(t, 1, result.Errors[1].Index)
}

func TestSubmitAlreadyVoted(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	f := newBallotFixture(t, Options{Metrics: metrics})
	ctx := context.Background()
	items := []models.BallotItem{f.item(f.president, f.alice)}

	_, err := f.svc.Ballots.Submit(ctx, f.voter.ID, items)
	require.NoError(t, err)

	result, err := f.svc.Ballots.Submit(ctx, f.voter.ID, items)
	require.ErrorIs(t, err, ErrBallotRejected)
	assert.Equal(t, []string{models.IssueAlreadyVoted}, issueCodes(result))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.itemRejections.WithLabelValues(models.IssueAlreadyVoted)))

	// another voter is unaffected
	_, err = f.svc.Ballots.Submit(ctx, f.otherVoter.ID, items)
	require.NoError(t, err)
	assert.EqualValues(t, 2, testutil.CountVotes(t, f.conn, ""))
}

func TestSubmitPreconditions(t *testing.T) {
	f := newBallotFixture(t, Options{})
	ctx := context.Background()

	_, err := f.svc.Ballots.Submit(ctx, f.voter.ID, nil)
	assert.ErrorIs(t, err, ErrEmptyBallot)

	_, err = f.svc.Ballots.Submit(ctx, 999, []models.BallotItem{f.item(f.president, f.alice)})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Ballots.Submit(ctx, f.voter.ID, []models.BallotItem{{ElectionID: 999, PositionID: f.president.ID, CandidateID: f.alice.ID}})
	assert.ErrorIs(t, err, ErrNotFound)

	result, err := f.svc.Ballots.Submit(ctx, f.voter.ID, []models.BallotItem{{}})
	require.ErrorIs(t, err, ErrBallotRejected)
	assert.Equal(t, []string{models.IssueInvalidItem}, issueCodes(result))

	for _, action := range []models.ElectionAction{models.ActionPause, models.ActionStop} {
		_, err := f.svc.Elections.Apply(ctx, f.election.ID, action)
		require.NoError(t, err)
		_, err = f.svc.Ballots.Submit(ctx, f.voter.ID, []models.BallotItem{f.item(f.president, f.alice)})
		assert.ErrorIs(t, err, ErrElectionNotActive, "after %s", action)
	}
	assert.Zero(t, testutil.CountVotes(t, f.conn, ""))
}

func TestConcurrentDuplicateSubmissions(t *testing.T) {
	f := newBallotFixture(t, Options{})
	items := []models.BallotItem{f.item(f.president, f.bob), f.item(f.senator, f.erin)}

	const attempts = 8
	var accepted, refused atomic.Int32
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Ballots.Submit(context.Background(), f.voter.ID, items)
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, ErrBallotRejected), errors.Is(err, ErrConcurrentSubmission):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, accepted.Load(), "exactly one submission wins")
	assert.EqualValues(t, attempts-1, refused.Load())
	assert.EqualValues(t, 2, testutil.CountVotes(t, f.conn, "voter_id = ?", f.voter.ID))
}

func TestConcurrentVotersWithinLimits(t *testing.T) {
	f := newBallotFixture(t, Options{})
	voters := []models.Voter{f.voter, f.otherVoter}
	for _, id := range []string{"S1003", "S1004", "S1005", "S1006"} {
		voters = append(voters, testutil.CreateVoter(t, f.conn, id))
	}

	var wg sync.WaitGroup
	errs := make([]error, len(voters))
	for i, voter := range voters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Ballots.Submit(context.Background(), voter.ID, []models.BallotItem{
				f.item(f.president, f.alice),
				f.item(f.senator, f.carol),
				f.item(f.senator, f.dave),
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "voter %d", voters[i].ID)
	}
	assert.EqualValues(t, 3*len(voters), testutil.CountVotes(t, f.conn, "election_id = ?", f.election.ID))
}
