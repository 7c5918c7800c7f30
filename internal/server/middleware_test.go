package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MarcoPoloResearchLab/civic/backend/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubSessionVerifier struct {
	claims auth.SessionClaims
	err    error
}

func (s stubSessionVerifier) ValidateRequest(*http.Request) (auth.SessionClaims, error) {
	return s.claims, s.err
}

func (s stubSessionVerifier) CookieName() string {
	return "civic_session"
}

func runRequireSession(t *testing.T, verifier SessionVerifier) (*httptest.ResponseRecorder, *observer.ObservedLogs, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/proposals", http.NoBody)

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{sessions: verifier, logger: zap.New(core)}
	handler.requireSession(ctx)
	return recorder, logs, ctx
}

func TestRequireSessionLogsExpiredTokenAtInfoLevel(t *testing.T) {
	recorder, logs, _ := runRequireSession(t, stubSessionVerifier{err: auth.ErrExpiredSessionToken})

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), auth.ErrExpiredSessionToken) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
}

func TestRequireSessionLogsInvalidTokenAtWarnLevel(t *testing.T) {
	recorder, logs, _ := runRequireSession(t, stubSessionVerifier{err: auth.ErrInvalidSessionToken})

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d", recorder.Code)
	}
	entries := logs.FilterMessage("session validation failed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected a single warn entry, got %v", entries)
	}
}

func TestRequireSessionStoresClaims(t *testing.T) {
	claims := auth.SessionClaims{UserID: "user-1", UserRoles: []string{auth.RoleAdmin}}
	recorder, logs, ctx := runRequireSession(t, stubSessionVerifier{claims: claims})

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected request to proceed, got %d", recorder.Code)
	}
	if logs.Len() != 0 {
		t.Fatalf("expected no log entries, got %d", logs.Len())
	}
	stored, ok := sessionClaims(ctx)
	if !ok || stored.UserID != "user-1" {
		t.Fatalf("expected claims in context, got %+v", stored)
	}

	handler := &httpHandler{}
	handler.requireAdmin(ctx)
	if ctx.IsAborted() {
		t.Fatalf("expected admin claims to pass")
	}
}

func TestRequireAdminRejectsMissingRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodDelete, "/proposals/p-1", http.NoBody)
	ctx.Set(sessionClaimsContextKey, auth.SessionClaims{UserID: "user-1", UserRoles: []string{auth.RoleUser}})

	handler := &httpHandler{}
	handler.requireAdmin(ctx)

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", recorder.Code)
	}
}
