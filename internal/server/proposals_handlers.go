package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/civic/backend/internal/events"
	"github.com/MarcoPoloResearchLab/civic/backend/internal/proposals"
	"github.com/gin-gonic/gin"
)

const statusFilterAll = "all"

type proposalPayload struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	CreatorName string           `json:"creatorName"`
	CreatorID   string           `json:"creatorId"`
	Image       string           `json:"image,omitempty"`
	Upvotes     int64            `json:"upvotes"`
	Downvotes   int64            `json:"downvotes"`
	Votes       int64            `json:"votes"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	Comments    []commentPayload `json:"comments"`
}

type commentPayload struct {
	ID         string    `json:"id"`
	ProposalID string    `json:"proposalId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	UserAvatar string    `json:"userAvatar"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

type createProposalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Image       string `json:"image"`
}

type voteRequest struct {
	Direction string `json:"direction"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type statsPayload struct {
	TotalProposals int64 `json:"totalProposals"`
	TotalVotes     int64 `json:"totalVotes"`
	TotalUsers     int64 `json:"totalUsers"`
}

func newProposalPayload(proposal proposals.Proposal) proposalPayload {
	comments := make([]commentPayload, 0, len(proposal.Comments))
	for _, comment := range proposal.Comments {
		comments = append(comments, newCommentPayload(comment))
	}
	return proposalPayload{
		ID:          proposal.ID,
		Title:       proposal.Title,
		Description: proposal.Description,
		Category:    proposal.Category,
		CreatorName: proposal.CreatorName,
		CreatorID:   proposal.CreatorID,
		Image:       proposal.ImageURL,
		Upvotes:     proposal.Upvotes,
		Downvotes:   proposal.Downvotes,
		Votes:       proposal.Votes,
		Status:      string(proposal.Status),
		CreatedAt:   proposal.CreatedAt,
		Comments:    comments,
	}
}

func newCommentPayload(comment proposals.Comment) commentPayload {
	return commentPayload{
		ID:         comment.ID,
		ProposalID: comment.ProposalID,
		UserID:     comment.UserID,
		UserName:   comment.UserName,
		UserAvatar: comment.UserAvatar,
		Content:    comment.Content,
		CreatedAt:  comment.CreatedAt,
	}
}

func parseListQuery(c *gin.Context) (proposals.ListQuery, string, bool) {
	var query proposals.ListQuery

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" && !strings.EqualFold(rawStatus, statusFilterAll) {
		status, err := proposals.ParseStatus(rawStatus)
		if err != nil {
			return query, "request.invalid_status", false
		}
		query.Status = status
	}

	sortOrder, err := proposals.ParseSortOrder(c.Query("sort"))
	if err != nil {
		return query, "request.invalid_sort", false
	}
	query.Sort = sortOrder

	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 0 {
			return query, "request.invalid_limit", false
		}
		query.Limit = limit
	}
	return query, "", true
}

func (h *httpHandler) handleListProposals(c *gin.Context) {
	query, code, ok := parseListQuery(c)
	if !ok {
		badRequest(c, code)
		return
	}

	listed := h.store.List(query)
	response := make([]proposalPayload, 0, len(listed))
	for _, proposal := range listed {
		response = append(response, newProposalPayload(proposal))
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleGetProposal(c *gin.Context) {
	proposal, found := h.store.Get(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, newProposalPayload(proposal))
}

func (h *httpHandler) handleCreateProposal(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request createProposalRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "request.malformed_body")
		return
	}

	created, err := h.store.Create(c.Request.Context(), proposals.NewProposal{
		Title:       request.Title,
		Description: request.Description,
		Category:    request.Category,
		CreatorName: claims.UserDisplayName,
		CreatorID:   claims.UserID,
		ImageURL:    request.Image,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.publish(c.Request.Context(), events.TypeProposalCreated, created.ID)
	c.JSON(http.StatusCreated, newProposalPayload(created))
}

func (h *httpHandler) handleVote(c *gin.Context) {
	var request voteRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "request.malformed_body")
		return
	}

	direction := proposals.Direction(strings.ToLower(strings.TrimSpace(request.Direction)))
	updated, err := h.store.Vote(c.Request.Context(), c.Param("id"), direction)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.publish(c.Request.Context(), events.TypeProposalVoted, updated.ID)
	c.JSON(http.StatusOK, newProposalPayload(updated))
}

func (h *httpHandler) handleAddComment(c *gin.Context) {
	claims, ok := sessionClaims(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request commentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "request.malformed_body")
		return
	}

	proposalID := c.Param("id")
	comment, err := h.store.AddComment(c.Request.Context(), proposalID, proposals.NewComment{
		UserID:     claims.UserID,
		UserName:   claims.UserDisplayName,
		UserAvatar: claims.UserAvatarURL,
		Content:    request.Content,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.publish(c.Request.Context(), events.TypeCommentAdded, proposalID)
	c.JSON(http.StatusCreated, newCommentPayload(comment))
}

func (h *httpHandler) handleUpdateStatus(c *gin.Context) {
	var request statusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, "request.malformed_body")
		return
	}

	status, err := proposals.ParseStatus(request.Status)
	if err != nil {
		badRequest(c, "request.invalid_status")
		return
	}

	updated, err := h.store.UpdateStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.publish(c.Request.Context(), events.TypeProposalStatusChanged, updated.ID)
	c.JSON(http.StatusOK, newProposalPayload(updated))
}

func (h *httpHandler) handleDeleteProposal(c *gin.Context) {
	proposalID := c.Param("id")
	if err := h.store.Remove(c.Request.Context(), proposalID); err != nil {
		h.respondError(c, err)
		return
	}

	h.publish(c.Request.Context(), events.TypeProposalDeleted, proposalID)
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statsPayload{
		TotalProposals: stats.TotalProposals,
		TotalVotes:     stats.TotalVotes,
		TotalUsers:     stats.TotalUsers,
	})
}
