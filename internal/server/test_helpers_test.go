package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/civic/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/events"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/proposals"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSigningSecret = "test-signing-secret"

type testHarness struct {
	handler    http.Handler
	store      *proposals.Store
	tokens     *auth.TokenIssuer
	dispatcher *events.Dispatcher
}

type harnessOption func(*Dependencies)

func withRateLimit(requestsPerSecond float64, burst int) harnessOption {
	return func(deps *Dependencies) {
		deps.RateLimit = RateLimit{RequestsPerSecond: requestsPerSecond, Burst: burst}
		deps.Clock = func() time.Time {
			return time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
		}
	}
}

func newTestHarness(t *testing.T, options ...harnessOption) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.Identity{}); err != nil {
		t.Fatalf("failed to migrate identities: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build user service: %v", err)
	}

	store, err := proposals.NewStore(context.Background(), proposals.StoreConfig{
		IDProvider: proposals.NewUUIDProvider(),
		Users:      userService,
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}

	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    "civic_session",
	})
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}
	tokens := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		TokenTTL:      time.Hour,
	})
	dispatcher := events.NewDispatcher()

	deps := Dependencies{
		Store:             store,
		Sessions:          validator,
		Tokens:            tokens,
		Identities:        userService,
		Publisher:         dispatcher,
		Subscriber:        dispatcher,
		Logger:            zap.NewNop(),
		AllowedOrigins:    []string{"*"},
		AdminMarker:       "admin",
		RateLimit:         RateLimit{RequestsPerSecond: 1000, Burst: 1000},
		HeartbeatInterval: time.Hour,
	}
	for _, option := range options {
		option(&deps)
	}

	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &testHarness{handler: handler, store: store, tokens: tokens, dispatcher: dispatcher}
}

func (h *testHarness) token(t *testing.T, userID, name string, roles ...string) string {
	t.Helper()
	if len(roles) == 0 {
		roles = []string{auth.RoleUser}
	}
	token, _, err := h.tokens.IssueSessionToken(context.Background(), auth.Identity{
		UserID:      userID,
		Email:       userID + "@example.com",
		DisplayName: name,
		AvatarURL:   auth.DefaultAvatarURL(userID + "@example.com"),
		Roles:       roles,
	})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

func (h *testHarness) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.RemoteAddr = "192.0.2.10:40000"
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func (h *testHarness) createProposal(t *testing.T, token, title string) proposalPayload {
	t.Helper()
	recorder := h.do(t, http.MethodPost, "/proposals", token, createProposalRequest{
		Title:       title,
		Description: "A description long enough to explain " + title,
		Category:    "Environment",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating %q, got %d: %s", title, recorder.Code, recorder.Body.String())
	}
	var created proposalPayload
	decodeBody(t, recorder, &created)
	return created
}
