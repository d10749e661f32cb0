//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"refhub/internal/referral/store/postgres"
	id "refhub/pkg/domain"
	"refhub/pkg/platform/sentinel"
	"refhub/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "users")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) createUsers(ctx context.Context, ids ...id.UserID) {
	for _, userID := range ids {
		_, err := s.store.CreateIfAbsent(ctx, userID)
		s.Require().NoError(err)
	}
}

func (s *PostgresStoreSuite) TestCreateIfAbsentIsIdempotent() {
	ctx := context.Background()
	userID := id.UserID(100)

	created, err := s.store.CreateIfAbsent(ctx, userID)
	s.Require().NoError(err)
	s.True(created)
	before, err := s.store.Get(ctx, userID)
	s.Require().NoError(err)

	created, err = s.store.CreateIfAbsent(ctx, userID)
	s.Require().NoError(err)
	s.False(created)
	after, err := s.store.Get(ctx, userID)
	s.Require().NoError(err)

	s.Equal(before, after)
	s.Nil(after.InvitedBy)
	s.Zero(after.ReferralCount)
	s.False(after.GoalNotified)
}

func (s *PostgresStoreSuite) TestGetUnknownUser() {
	_, err := s.store.Get(context.Background(), id.UserID(404))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestClaimInvitedBy() {
	ctx := context.Background()
	newUser, inviter, other := id.UserID(1), id.UserID(2), id.UserID(3)
	s.createUsers(ctx, newUser, inviter, other)

	claimed, err := s.store.ClaimInvitedBy(ctx, newUser, inviter)
	s.Require().NoError(err)
	s.True(claimed)

	record, err := s.store.Get(ctx, newUser)
	s.Require().NoError(err)
	s.Require().NotNil(record.InvitedBy)
	s.Equal(inviter, *record.InvitedBy)

	count, err := s.store.GetCount(ctx, inviter)
	s.Require().NoError(err)
	s.Equal(1, count)

	// Re-attribution with a different inviter is rejected without mutation.
	claimed, err = s.store.ClaimInvitedBy(ctx, newUser, other)
	s.Require().NoError(err)
	s.False(claimed)

	record, err = s.store.Get(ctx, newUser)
	s.Require().NoError(err)
	s.Equal(inviter, *record.InvitedBy)

	count, err = s.store.GetCount(ctx, other)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *PostgresStoreSuite) TestClaimRejectsSelfReferralAtSchemaLevel() {
	ctx := context.Background()
	userID := id.UserID(7)
	s.createUsers(ctx, userID)

	claimed, err := s.store.ClaimInvitedBy(ctx, userID, userID)
	s.Require().NoError(err)
	s.False(claimed)

	record, err := s.store.Get(ctx, userID)
	s.Require().NoError(err)
	s.Nil(record.InvitedBy)
	s.Zero(record.ReferralCount)
}

func (s *PostgresStoreSuite) TestClaimMissingRecords() {
	ctx := context.Background()
	inviter := id.UserID(2)
	s.createUsers(ctx, inviter)

	_, err := s.store.ClaimInvitedBy(ctx, id.UserID(404), inviter)
	s.ErrorIs(err, sentinel.ErrNotFound)

	// Missing inviter rolls the pair back.
	newUser := id.UserID(1)
	s.createUsers(ctx, newUser)
	_, err = s.store.ClaimInvitedBy(ctx, newUser, id.UserID(405))
	s.ErrorIs(err, sentinel.ErrNotFound)

	record, err := s.store.Get(ctx, newUser)
	s.Require().NoError(err)
	s.Nil(record.InvitedBy, "failed pair must leave invited_by unset")
}

// TestConcurrentClaims verifies that concurrent attribution attempts for the
// same new user result in exactly one success, with the counter consistent
// for whichever inviter won.
func (s *PostgresStoreSuite) TestConcurrentClaims() {
	ctx := context.Background()
	newUser := id.UserID(10)
	s.createUsers(ctx, newUser)

	const goroutines = 20
	inviters := make([]id.UserID, goroutines)
	for i := range inviters {
		inviters[i] = id.UserID(1000 + i)
	}
	s.createUsers(ctx, inviters...)

	var wg sync.WaitGroup
	var successCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(inviter id.UserID) {
			defer wg.Done()
			claimed, err := s.store.ClaimInvitedBy(ctx, newUser, inviter)
			if err == nil && claimed {
				successCount.Add(1)
			}
		}(inviters[i])
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one claim should succeed")

	record, err := s.store.Get(ctx, newUser)
	s.Require().NoError(err)
	s.Require().NotNil(record.InvitedBy)

	var total int
	for _, inviter := range inviters {
		count, err := s.store.GetCount(ctx, inviter)
		s.Require().NoError(err)
		total += count
		if inviter == *record.InvitedBy {
			s.Equal(1, count)
		}
	}
	s.Equal(1, total)
}

func (s *PostgresStoreSuite) TestMarkGoalNotified() {
	ctx := context.Background()
	userID := id.UserID(55)
	s.createUsers(ctx, userID)

	applied, err := s.store.MarkGoalNotified(ctx, userID)
	s.Require().NoError(err)
	s.True(applied)

	applied, err = s.store.MarkGoalNotified(ctx, userID)
	s.Require().NoError(err)
	s.False(applied, "flag flips at most once")

	_, err = s.store.MarkGoalNotified(ctx, id.UserID(404))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestGetCountUnknownUser() {
	count, err := s.store.GetCount(context.Background(), id.UserID(404))
	s.Require().NoError(err)
	s.Zero(count)
}

// TestCountMatchesInvitedBySet verifies referral_count equals the number of
// records attributed to the inviter after a burst of claims.
func (s *PostgresStoreSuite) TestCountMatchesInvitedBySet() {
	ctx := context.Background()
	inviter := id.UserID(500)
	s.createUsers(ctx, inviter)

	const invited = 12
	for i := 0; i < invited; i++ {
		newUser := id.UserID(600 + i)
		s.createUsers(ctx, newUser)
		claimed, err := s.store.ClaimInvitedBy(ctx, newUser, inviter)
		s.Require().NoError(err)
		s.True(claimed)
	}

	count, err := s.store.GetCount(ctx, inviter)
	s.Require().NoError(err)
	s.Equal(invited, count)

	var attributed int
	err = s.postgres.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE invited_by = $1`, inviter.Int64(),
	).Scan(&attributed)
	s.Require().NoError(err)
	s.Equal(count, attributed)
}
