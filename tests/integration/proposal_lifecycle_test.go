package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/civic/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/database"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/events"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/proposals"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/server"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sessionSigningSecret = "integration-secret"
	sessionCookieName    = "civic_session"
	sessionIssuer        = "civic-api"
	adminUserID          = "admin-1"
	jsonContentType      = "application/json"
)

type apiStack struct {
	db      *gorm.DB
	store   *proposals.Store
	handler http.Handler
}

func openStack(testContext *testing.T, databaseURL string) apiStack {
	testContext.Helper()

	db, err := database.Open(databaseURL, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		testContext.Fatalf("failed to build user service: %v", err)
	}
	journal, err := proposals.NewGormJournal(db)
	if err != nil {
		testContext.Fatalf("failed to build journal: %v", err)
	}
	store, err := proposals.NewStore(context.Background(), proposals.StoreConfig{
		IDProvider: proposals.NewUUIDProvider(),
		Journal:    journal,
		Users:      userService,
		Logger:     zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build store: %v", err)
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(sessionSigningSecret),
		Issuer:        sessionIssuer,
		CookieName:    sessionCookieName,
	})
	if err != nil {
		testContext.Fatalf("failed to construct session validator: %v", err)
	}
	dispatcher := events.NewDispatcher()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Store:      store,
		Sessions:   sessionValidator,
		Tokens:     auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte(sessionSigningSecret), Issuer: sessionIssuer}),
		Identities: userService,
		Publisher:  events.NewFanout(zap.NewNop(), dispatcher),
		Subscriber: dispatcher,
		Logger:     zap.NewNop(),
		RateLimit:  server.RateLimit{RequestsPerSecond: 100, Burst: 100},
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}
	return apiStack{db: db, store: store, handler: handler}
}

func (s apiStack) close() {
	if sqlDB, err := s.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func postJSON(testContext *testing.T, client *http.Client, url string, cookie *http.Cookie, method string, body any) *http.Response {
	testContext.Helper()
	encoded, _ := json.Marshal(body)
	request, err := http.NewRequest(method, url, bytes.NewReader(encoded))
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	request.Header.Set("Content-Type", jsonContentType)
	if cookie != nil {
		request.AddCookie(cookie)
	}
	response, err := client.Do(request)
	if err != nil {
		testContext.Fatalf("%s %s failed: %v", method, url, err)
	}
	return response
}

func TestProposalLifecycleSurvivesRestart(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	databaseURL := "sqlite://" + filepath.Join(testContext.TempDir(), "civic.db")

	stack := openStack(testContext, databaseURL)
	testServer := httptest.NewServer(stack.handler)

	signInResp := postJSON(testContext, http.DefaultClient, testServer.URL+"/auth/session", nil, http.MethodPost, map[string]string{
		"name":  "Sarah Green",
		"email": "sarah@example.com",
	})
	if signInResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected sign-in status: %d", signInResp.StatusCode)
	}
	var sessionCookie *http.Cookie
	for _, cookie := range signInResp.Cookies() {
		if cookie.Name == sessionCookieName {
			sessionCookie = cookie
		}
	}
	_ = signInResp.Body.Close()
	if sessionCookie == nil {
		testContext.Fatalf("expected session cookie")
	}

	createResp := postJSON(testContext, http.DefaultClient, testServer.URL+"/proposals", sessionCookie, http.MethodPost, map[string]string{
		"title":       "Plant 1000 Trees Initiative",
		"description": "Plant 1000 trees across the city to improve air quality.",
		"category":    "environment",
		"image":       "https://example.com/trees.jpg",
	})
	if createResp.StatusCode != http.StatusCreated {
		testContext.Fatalf("unexpected create status: %d", createResp.StatusCode)
	}
	var created struct {
		ID       string `json:"id"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(createResp.Body).Decode(&created); err != nil {
		testContext.Fatalf("failed to decode create response: %v", err)
	}
	_ = createResp.Body.Close()
	if created.Category != "Environment" {
		testContext.Fatalf("expected canonical category, got %q", created.Category)
	}

	for _, direction := range []string{"up", "up", "down"} {
		voteResp := postJSON(testContext, http.DefaultClient, testServer.URL+"/proposals/"+created.ID+"/votes", sessionCookie, http.MethodPost, map[string]string{"direction": direction})
		_ = voteResp.Body.Close()
		if voteResp.StatusCode != http.StatusOK {
			testContext.Fatalf("unexpected vote status: %d", voteResp.StatusCode)
		}
	}
	for _, content := range []string{"Great idea!", "Count me in"} {
		commentResp := postJSON(testContext, http.DefaultClient, testServer.URL+"/proposals/"+created.ID+"/comments", sessionCookie, http.MethodPost, map[string]string{"content": content})
		_ = commentResp.Body.Close()
		if commentResp.StatusCode != http.StatusCreated {
			testContext.Fatalf("unexpected comment status: %d", commentResp.StatusCode)
		}
	}

	adminCookie := &http.Cookie{
		Name:  sessionCookieName,
		Value: mustMintSessionToken(testContext, sessionSigningSecret, adminUserID, time.Now()),
	}
	statusResp := postJSON(testContext, http.DefaultClient, testServer.URL+"/proposals/"+created.ID+"/status", adminCookie, http.MethodPatch, map[string]string{"status": "approved"})
	_ = statusResp.Body.Close()
	if statusResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected status update: %d", statusResp.StatusCode)
	}

	testServer.Close()
	stack.close()

	restarted := openStack(testContext, databaseURL)
	defer restarted.close()

	proposal, found := restarted.store.Get(created.ID)
	if !found {
		testContext.Fatalf("expected proposal to survive restart")
	}
	if proposal.Upvotes != 2 || proposal.Downvotes != 1 || proposal.Votes != 1 {
		testContext.Fatalf("unexpected counters after restart: %d/%d/%d", proposal.Upvotes, proposal.Downvotes, proposal.Votes)
	}
	if proposal.Status != proposals.StatusApproved {
		testContext.Fatalf("expected approved status, got %s", proposal.Status)
	}
	if proposal.ImageURL != "https://example.com/trees.jpg" {
		testContext.Fatalf("expected image url to persist, got %q", proposal.ImageURL)
	}
	if len(proposal.Comments) != 2 || proposal.Comments[0].Content != "Great idea!" || proposal.Comments[1].UserName != "Sarah Green" {
		testContext.Fatalf("unexpected comments after restart: %+v", proposal.Comments)
	}

	stats, err := restarted.store.Stats(context.Background())
	if err != nil {
		testContext.Fatalf("stats failed: %v", err)
	}
	if stats.TotalProposals != 1 || stats.TotalVotes != 3 || stats.TotalUsers != 1 {
		testContext.Fatalf("unexpected stats after restart: %+v", stats)
	}
}

func TestForeignIssuerIsRejected(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	stack := openStack(testContext, "sqlite://"+filepath.Join(testContext.TempDir(), "civic.db"))
	defer stack.close()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.SessionClaims{
		UserID:    "intruder",
		UserRoles: []string{auth.RoleAdmin},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "intruder",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(sessionSigningSecret))
	if err != nil {
		testContext.Fatalf("failed to sign token: %v", err)
	}

	request := httptest.NewRequest(http.MethodGet, "/auth/me", http.NoBody)
	request.AddCookie(&http.Cookie{Name: sessionCookieName, Value: signed})
	recorder := httptest.NewRecorder()
	stack.handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusUnauthorized {
		testContext.Fatalf("expected 401 for foreign issuer, got %d", recorder.Code)
	}
}

func mustMintSessionToken(testContext *testing.T, signingSecret, userID string, now time.Time) string {
	testContext.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.SessionClaims{
		UserID:          userID,
		UserDisplayName: "Moderator",
		UserRoles:       []string{auth.RoleAdmin},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(signingSecret))
	if err != nil {
		testContext.Fatalf("failed to sign session token: %v", err)
	}
	return signed
}
