package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	jwttoken "refhub/internal/jwt_token"
	"refhub/internal/referral/service"
	"refhub/internal/referral/store/memory"
	id "refhub/pkg/domain"
	"refhub/pkg/platform/middleware/requestid"
)

type noopNotifier struct{}

func (noopNotifier) Notify(_ context.Context, _ id.UserID, _, _ int) error { return nil }

func newReferralRouter(t *testing.T) (chi.Router, *jwttoken.JWTService) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()

	registry, err := service.NewRegistry(store, service.WithRegistryLogger(logger))
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	engine, err := service.New(store, noopNotifier{}, service.WithLogger(logger), service.WithGoal(10))
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}

	jwtService := jwttoken.NewJWTService("test-signing-key", "refhub", "refhub-api")

	router := chi.NewRouter()
	router.Use(requestid.Middleware)
	h := New(registry, engine, logger, jwttoken.NewJWTServiceAdapter(jwtService))
	h.Register(router)
	return router, jwtService
}

func postArrival(t *testing.T, router chi.Router, payload map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/events/arrival", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestArrivalWithoutInviterRegistersUser(t *testing.T) {
	router, _ := newReferralRouter(t)

	rec := postArrival(t, router, map[string]any{"user_id": 100})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ArrivalResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Attributed {
		t.Fatalf("expected attributed=false for arrival without inviter")
	}
}

func TestArrivalAttributesOnce(t *testing.T) {
	router, _ := newReferralRouter(t)

	rec := postArrival(t, router, map[string]any{"user_id": 7, "inviter_id": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ArrivalResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Attributed {
		t.Fatalf("expected first arrival with inviter to attribute")
	}

	// A repeat arrival for the same user is a silent no-op.
	rec = postArrival(t, router, map[string]any{"user_id": 7, "inviter_id": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat arrival, got %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Attributed {
		t.Fatalf("expected repeat arrival to not attribute")
	}
}

func TestArrivalSelfReferralIsNoop(t *testing.T) {
	router, _ := newReferralRouter(t)

	rec := postArrival(t, router, map[string]any{"user_id": 5, "inviter_id": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ArrivalResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Attributed {
		t.Fatalf("expected self-referral to not attribute")
	}
}

func TestArrivalRejectsInvalidPayload(t *testing.T) {
	router, _ := newReferralRouter(t)

	for name, payload := range map[string]map[string]any{
		"missing user_id":     {"inviter_id": 1},
		"negative user_id":    {"user_id": -3},
		"negative inviter_id": {"user_id": 3, "inviter_id": -1},
	} {
		rec := postArrival(t, router, payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestProgressRequiresAuth(t *testing.T) {
	router, _ := newReferralRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/referrals/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestProgressReportsCount(t *testing.T) {
	router, jwtService := newReferralRouter(t)

	inviter := int64(1)
	for i := int64(0); i < 3; i++ {
		rec := postArrival(t, router, map[string]any{"user_id": 100 + i, "inviter_id": inviter})
		if rec.Code != http.StatusOK {
			t.Fatalf("arrival failed: %d", rec.Code)
		}
	}

	token, err := jwtService.GenerateAccessToken(id.UserID(inviter), time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/referrals/%d", inviter), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ProgressResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 3 || resp.Goal != 10 || resp.Remaining != 7 || resp.GoalReached {
		t.Fatalf("unexpected progress: %+v", resp)
	}
}

func TestProgressUnknownUserIsZero(t *testing.T) {
	router, jwtService := newReferralRouter(t)

	token, err := jwtService.GenerateAccessToken(id.UserID(999), time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/referrals/999", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp ProgressResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 0 || resp.Remaining != 10 {
		t.Fatalf("unexpected progress for unknown user: %+v", resp)
	}
}
