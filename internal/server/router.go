package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/civic/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/events"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/proposals"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionClaimsContextKey  = "civic_session_claims"
	defaultHeartbeatInterval = 25 * time.Second
)

var (
	errMissingProposalStore   = errors.New("proposal store dependency required")
	errMissingSessionVerifier = errors.New("session validator dependency required")
	errMissingSessionIssuer   = errors.New("session issuer dependency required")
	errMissingIdentityStore   = errors.New("identity resolver dependency required")
)

// SessionVerifier authenticates requests from a session cookie or bearer token.
type SessionVerifier interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

// SessionIssuer mints session tokens for signed-in users.
type SessionIssuer interface {
	IssueSessionToken(ctx context.Context, identity auth.Identity) (string, time.Time, error)
}

// IdentityResolver maps a sign-in profile to a stable user identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, profile users.Profile) (users.Identity, error)
}

// EventSubscriber exposes live proposal changes to stream clients.
type EventSubscriber interface {
	Subscribe(ctx context.Context) (<-chan events.Event, func())
}

// RateLimit bounds write requests per client IP.
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// Dependencies wires the HTTP layer to the domain services.
type Dependencies struct {
	Store             *proposals.Store
	Sessions          SessionVerifier
	Tokens            SessionIssuer
	Identities        IdentityResolver
	Publisher         events.Publisher
	Subscriber        EventSubscriber
	Logger            *zap.Logger
	AllowedOrigins    []string
	AdminMarker       string
	RateLimit         RateLimit
	HeartbeatInterval time.Duration
	Clock             func() time.Time
}

// NewHTTPHandler builds the gin router serving the civic API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Store == nil {
		return nil, errMissingProposalStore
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionVerifier
	}
	if deps.Tokens == nil {
		return nil, errMissingSessionIssuer
	}
	if deps.Identities == nil {
		return nil, errMissingIdentityStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	handler := &httpHandler{
		store:       deps.Store,
		sessions:    deps.Sessions,
		tokens:      deps.Tokens,
		identities:  deps.Identities,
		publisher:   deps.Publisher,
		subscriber:  deps.Subscriber,
		logger:      logger,
		adminMarker: deps.AdminMarker,
		heartbeat:   heartbeat,
		now:         clock,
	}

	limiter := newIPRateLimiter(deps.RateLimit.RequestsPerSecond, deps.RateLimit.Burst, clock)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))
	router.Use(securityHeadersMiddleware())

	router.GET("/healthz", handler.handleHealth)
	router.GET("/stats", handler.handleStats)
	router.GET("/events", handler.handleEventStream)

	router.GET("/proposals", handler.handleListProposals)
	router.GET("/proposals/:id", handler.handleGetProposal)

	router.POST("/auth/session", limiter.middleware(), handler.handleCreateSession)
	router.DELETE("/auth/session", handler.handleDeleteSession)
	router.GET("/auth/me", handler.requireSession, handler.handleCurrentUser)

	members := router.Group("/proposals")
	members.Use(limiter.middleware(), handler.requireSession)
	members.POST("", handler.handleCreateProposal)
	members.POST("/:id/votes", handler.handleVote)
	members.POST("/:id/comments", handler.handleAddComment)

	admins := router.Group("/proposals")
	admins.Use(limiter.middleware(), handler.requireSession, handler.requireAdmin)
	admins.PATCH("/:id/status", handler.handleUpdateStatus)
	admins.DELETE("/:id", handler.handleDeleteProposal)

	return router, nil
}

type httpHandler struct {
	store       *proposals.Store
	sessions    SessionVerifier
	tokens      SessionIssuer
	identities  IdentityResolver
	publisher   events.Publisher
	subscriber  EventSubscriber
	logger      *zap.Logger
	adminMarker string
	heartbeat   time.Duration
	now         func() time.Time
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	origins := make([]string, 0, len(allowedOrigins))
	wildcard := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "*" {
			wildcard = true
			break
		}
		if trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if wildcard || len(origins) == 0 {
		// Echo the caller's origin so credentialed requests keep working.
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) publish(ctx context.Context, eventType events.Type, proposalID string) {
	if h.publisher == nil {
		return
	}
	event := events.Event{Type: eventType, ProposalID: proposalID, Timestamp: h.now().UTC()}
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Warn("event publish failed",
			zap.String("event_type", string(eventType)),
			zap.String("proposal_id", proposalID),
			zap.Error(err))
	}
}
