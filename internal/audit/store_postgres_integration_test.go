//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"refhub/internal/audit"
	id "refhub/pkg/domain"
	"refhub/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	store *audit.PostgresStore
	pg    *containers.PostgresContainer
	ctx   context.Context
}

func TestPostgresAuditSuite(t *testing.T) {
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = audit.NewPostgresStore(s.pg.DB)
}

func (s *PostgresAuditSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "audit_events"))
}

func (s *PostgresAuditSuite) TestAppendAndListRoundTrip() {
	userID := id.UserID(7)
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.Append(s.ctx, audit.Event{
		Timestamp:     now,
		Action:        audit.ActionReferralAttributed,
		UserID:        userID,
		InviterID:     id.UserID(3),
		ReferralCount: 1,
	}))
	s.Require().NoError(s.store.Append(s.ctx, audit.Event{
		Timestamp:     now.Add(time.Second),
		Action:        audit.ActionGoalReached,
		UserID:        userID,
		ReferralCount: 10,
	}))

	events, err := s.store.ListByUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)

	s.Equal(audit.ActionReferralAttributed, events[0].Action)
	s.Equal(id.UserID(3), events[0].InviterID)
	s.True(events[0].Timestamp.Equal(now))

	s.Equal(audit.ActionGoalReached, events[1].Action)
	s.True(events[1].InviterID.IsZero(), "goal events carry no inviter")
	s.Equal(10, events[1].ReferralCount)
}

func (s *PostgresAuditSuite) TestListUnknownUserIsEmpty() {
	events, err := s.store.ListByUser(s.ctx, id.UserID(404))
	s.Require().NoError(err)
	s.Empty(events)
}
