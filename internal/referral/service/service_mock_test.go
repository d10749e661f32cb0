package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"refhub/internal/referral/models"
	"refhub/internal/referral/ports/mocks"
	id "refhub/pkg/domain"
	dErrors "refhub/pkg/domain-errors"
	"refhub/pkg/platform/sentinel"
)

// =============================================================================
// Engine Mock Suite
// =============================================================================
// Justification for unit tests: these verify interaction ordering the memory
// suite cannot observe, notably that a failed delivery never touches the
// notified flag and that cache failures fall back to the store.

type EngineMockSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockStore    *mocks.MockStore
	mockNotifier *mocks.MockNotifier
	mockCache    *mocks.MockCountCache
	engine       *Engine
	ctx          context.Context
}

func TestEngineMockSuite(t *testing.T) {
	suite.Run(t, new(EngineMockSuite))
}

func (s *EngineMockSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockNotifier = mocks.NewMockNotifier(s.ctrl)
	s.mockCache = mocks.NewMockCountCache(s.ctrl)
	s.ctx = context.Background()

	var err error
	s.engine, err = New(s.mockStore, s.mockNotifier,
		WithLogger(discardLogger()),
		WithCountCache(s.mockCache),
		WithGoal(10),
	)
	s.Require().NoError(err)
}

func (s *EngineMockSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *EngineMockSuite) TestAttributeErrorMapping() {
	newUser, inviter := id.UserID(1), id.UserID(2)

	s.Run("missing record maps to invariant violation", func() {
		s.mockStore.EXPECT().ClaimInvitedBy(gomock.Any(), newUser, inviter).
			Return(false, sentinel.ErrNotFound)

		_, err := s.engine.Attribute(s.ctx, newUser, inviter)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("store failure maps to internal", func() {
		s.mockStore.EXPECT().ClaimInvitedBy(gomock.Any(), newUser, inviter).
			Return(false, errors.New("connection reset"))

		_, err := s.engine.Attribute(s.ctx, newUser, inviter)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *EngineMockSuite) TestAttributeInvalidatesCacheOnSuccess() {
	newUser, inviter := id.UserID(1), id.UserID(2)

	s.mockStore.EXPECT().ClaimInvitedBy(gomock.Any(), newUser, inviter).Return(true, nil)
	s.mockCache.EXPECT().Invalidate(gomock.Any(), inviter).Return(nil)

	ok, err := s.engine.Attribute(s.ctx, newUser, inviter)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *EngineMockSuite) TestAttributeSucceedsWhenInvalidationFails() {
	newUser, inviter := id.UserID(1), id.UserID(2)

	s.mockStore.EXPECT().ClaimInvitedBy(gomock.Any(), newUser, inviter).Return(true, nil)
	s.mockCache.EXPECT().Invalidate(gomock.Any(), inviter).Return(errors.New("redis down"))

	ok, err := s.engine.Attribute(s.ctx, newUser, inviter)
	s.Require().NoError(err)
	s.True(ok, "cache is advisory; invalidation failure does not undo the claim")
}

func (s *EngineMockSuite) TestAttributeRejectedSkipsCache() {
	newUser, inviter := id.UserID(1), id.UserID(2)

	s.mockStore.EXPECT().ClaimInvitedBy(gomock.Any(), newUser, inviter).Return(false, nil)

	ok, err := s.engine.Attribute(s.ctx, newUser, inviter)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *EngineMockSuite) TestEvaluateGoalFailedDeliveryLeavesFlagUnset() {
	inviter := id.UserID(2)
	record := &models.UserRecord{UserID: inviter, ReferralCount: 10}

	s.mockStore.EXPECT().Get(gomock.Any(), inviter).Return(record, nil)
	s.mockNotifier.EXPECT().Notify(gomock.Any(), inviter, 10, 10).
		Return(errors.New("send failed"))
	// No MarkGoalNotified expectation: the flag must not be written.

	s.Require().NoError(s.engine.EvaluateGoal(s.ctx, inviter))
}

func (s *EngineMockSuite) TestEvaluateGoalMarksFlagAfterDelivery() {
	inviter := id.UserID(2)
	record := &models.UserRecord{UserID: inviter, ReferralCount: 10}

	gomock.InOrder(
		s.mockStore.EXPECT().Get(gomock.Any(), inviter).Return(record, nil),
		s.mockNotifier.EXPECT().Notify(gomock.Any(), inviter, 10, 10).Return(nil),
		s.mockStore.EXPECT().MarkGoalNotified(gomock.Any(), inviter).Return(true, nil),
	)

	s.Require().NoError(s.engine.EvaluateGoal(s.ctx, inviter))
}

func (s *EngineMockSuite) TestEvaluateGoalSkipsWhenBelowGoalOrNotified() {
	inviter := id.UserID(2)

	s.Run("below goal", func() {
		s.mockStore.EXPECT().Get(gomock.Any(), inviter).
			Return(&models.UserRecord{UserID: inviter, ReferralCount: 9}, nil)

		s.Require().NoError(s.engine.EvaluateGoal(s.ctx, inviter))
	})

	s.Run("already notified", func() {
		s.mockStore.EXPECT().Get(gomock.Any(), inviter).
			Return(&models.UserRecord{UserID: inviter, ReferralCount: 12, GoalNotified: true}, nil)

		s.Require().NoError(s.engine.EvaluateGoal(s.ctx, inviter))
	})
}

func (s *EngineMockSuite) TestEvaluateGoalFlagWriteFailureIsInternal() {
	inviter := id.UserID(2)
	record := &models.UserRecord{UserID: inviter, ReferralCount: 10}

	s.mockStore.EXPECT().Get(gomock.Any(), inviter).Return(record, nil)
	s.mockNotifier.EXPECT().Notify(gomock.Any(), inviter, 10, 10).Return(nil)
	s.mockStore.EXPECT().MarkGoalNotified(gomock.Any(), inviter).
		Return(false, errors.New("write failed"))

	err := s.engine.EvaluateGoal(s.ctx, inviter)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *EngineMockSuite) TestReferralCountCacheHitSkipsStore() {
	userID := id.UserID(2)

	s.mockCache.EXPECT().GetCount(gomock.Any(), userID).Return(7, true, nil)

	count, err := s.engine.ReferralCount(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal(7, count)
}

func (s *EngineMockSuite) TestReferralCountCacheMissWritesBack() {
	userID := id.UserID(2)

	gomock.InOrder(
		s.mockCache.EXPECT().GetCount(gomock.Any(), userID).Return(0, false, nil),
		s.mockStore.EXPECT().GetCount(gomock.Any(), userID).Return(4, nil),
		s.mockCache.EXPECT().SetCount(gomock.Any(), userID, 4).Return(nil),
	)

	count, err := s.engine.ReferralCount(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal(4, count)
}

func (s *EngineMockSuite) TestReferralCountCacheFailureFallsBack() {
	userID := id.UserID(2)

	s.mockCache.EXPECT().GetCount(gomock.Any(), userID).Return(0, false, errors.New("redis down"))
	s.mockStore.EXPECT().GetCount(gomock.Any(), userID).Return(3, nil)
	s.mockCache.EXPECT().SetCount(gomock.Any(), userID, 3).Return(errors.New("redis down"))

	count, err := s.engine.ReferralCount(s.ctx, userID)
	s.Require().NoError(err)
	s.Equal(3, count)
}
