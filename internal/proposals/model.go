package proposals

import (
	"fmt"
	"strings"
	"time"
)

// Status enumerates the moderation states of a proposal.
type Status string

const (
	// StatusPending marks a proposal awaiting moderation.
	StatusPending Status = "pending"
	// StatusApproved marks a proposal accepted by a moderator.
	StatusApproved Status = "approved"
	// StatusRejected marks a proposal declined by a moderator.
	StatusRejected Status = "rejected"
)

// ParseStatus validates raw input and returns a Status.
func ParseStatus(rawInput string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(rawInput))) {
	case StatusPending:
		return StatusPending, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, rawInput)
	}
}

// Direction selects which counter a vote increments.
type Direction string

const (
	// DirectionUp increments the upvote counter.
	DirectionUp Direction = "up"
	// DirectionDown increments the downvote counter.
	DirectionDown Direction = "down"
)

// ParseDirection validates raw input and returns a Direction.
func ParseDirection(rawInput string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(rawInput))) {
	case DirectionUp:
		return DirectionUp, nil
	case DirectionDown:
		return DirectionDown, nil
	default:
		return "", fmt.Errorf("%w: unknown vote direction %q", ErrInvalidInput, rawInput)
	}
}

// SortOrder selects the ordering of List results.
type SortOrder string

const (
	// SortNone keeps the store order (newest insertion first).
	SortNone SortOrder = ""
	// SortLatest orders by creation time, newest first.
	SortLatest SortOrder = "latest"
	// SortVotes orders by net votes, highest first.
	SortVotes SortOrder = "votes"
)

// ParseSortOrder validates raw input and returns a SortOrder.
func ParseSortOrder(rawInput string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(rawInput))) {
	case SortNone:
		return SortNone, nil
	case SortLatest:
		return SortLatest, nil
	case SortVotes:
		return SortVotes, nil
	default:
		return "", fmt.Errorf("%w: unknown sort order %q", ErrInvalidInput, rawInput)
	}
}

// Categories lists the closed set of proposal categories in display order.
var Categories = []string{
	"Environment",
	"Technology",
	"Community",
	"Education",
	"Transportation",
	"Health",
	"Safety",
	"Infrastructure",
}

// CanonicalCategory matches raw input case-insensitively against Categories.
func CanonicalCategory(rawInput string) (string, bool) {
	trimmed := strings.TrimSpace(rawInput)
	for _, category := range Categories {
		if strings.EqualFold(category, trimmed) {
			return category, true
		}
	}
	return "", false
}

// Proposal is a community initiative subject to voting and moderation.
type Proposal struct {
	ID          string
	Title       string
	Description string
	Category    string
	CreatorName string
	CreatorID   string
	ImageURL    string
	Upvotes     int64
	Downvotes   int64
	Votes       int64
	Status      Status
	CreatedAt   time.Time
	Comments    []Comment
}

// TotalVotes counts every vote cast, regardless of direction.
func (p Proposal) TotalVotes() int64 {
	return p.Upvotes + p.Downvotes
}

func (p Proposal) clone() Proposal {
	copied := p
	if p.Comments != nil {
		copied.Comments = make([]Comment, len(p.Comments))
		copy(copied.Comments, p.Comments)
	}
	return copied
}

// Comment is an attributed note attached to a proposal.
type Comment struct {
	ID         string
	ProposalID string
	UserID     string
	UserName   string
	UserAvatar string
	Content    string
	CreatedAt  time.Time
}

// NewProposal carries the caller-supplied fields for Create.
type NewProposal struct {
	Title       string
	Description string
	Category    string
	CreatorName string
	CreatorID   string
	ImageURL    string
}

// NewComment carries the caller-supplied fields for AddComment.
type NewComment struct {
	UserID     string
	UserName   string
	UserAvatar string
	Content    string
}

// ListQuery filters and orders List results. Zero values mean no filter,
// store order and no limit.
type ListQuery struct {
	Status Status
	Sort   SortOrder
	Limit  int
}

// Stats aggregates store-wide counters.
type Stats struct {
	TotalProposals int64
	TotalVotes     int64
	TotalUsers     int64
}
