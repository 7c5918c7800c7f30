package proposals

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var errMissingDatabase = errors.New("database handle is required")

// ProposalRecord persists the scalar columns of a proposal.
type ProposalRecord struct {
	ProposalID  string    `gorm:"column:proposal_id;primaryKey;size:190;not null"`
	Title       string    `gorm:"column:title;size:400;not null"`
	Description string    `gorm:"column:description;type:text;not null"`
	Category    string    `gorm:"column:category;size:64;not null;index"`
	CreatorName string    `gorm:"column:creator_name;size:320;not null"`
	CreatorID   string    `gorm:"column:creator_id;size:190;not null;index"`
	ImageURL    string    `gorm:"column:image_url;size:512;not null;default:''"`
	Upvotes     int64     `gorm:"column:upvotes;not null;default:0"`
	Downvotes   int64     `gorm:"column:downvotes;not null;default:0"`
	Votes       int64     `gorm:"column:votes;not null;default:0"`
	Status      string    `gorm:"column:status;size:16;not null;index"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (ProposalRecord) TableName() string {
	return "proposals"
}

// CommentRecord persists one comment; Position preserves insertion order within a proposal.
type CommentRecord struct {
	CommentID  string    `gorm:"column:comment_id;primaryKey;size:190;not null"`
	ProposalID string    `gorm:"column:proposal_id;size:190;not null;index:idx_comments_proposal_position,priority:1"`
	Position   int       `gorm:"column:position;not null;index:idx_comments_proposal_position,priority:2"`
	UserID     string    `gorm:"column:user_id;size:190;not null"`
	UserName   string    `gorm:"column:user_name;size:320;not null"`
	UserAvatar string    `gorm:"column:user_avatar;size:512;not null;default:''"`
	Content    string    `gorm:"column:content;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (CommentRecord) TableName() string {
	return "proposal_comments"
}

// GormJournal is a Journal backed by a GORM database.
type GormJournal struct {
	db *gorm.DB
}

// NewGormJournal wraps the database handle. The schema is expected to be migrated.
func NewGormJournal(db *gorm.DB) (*GormJournal, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &GormJournal{db: db}, nil
}

// Load returns every persisted proposal, newest first, with comments in insertion order.
func (j *GormJournal) Load(ctx context.Context) ([]Proposal, error) {
	var proposalRecords []ProposalRecord
	if err := j.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&proposalRecords).Error; err != nil {
		return nil, err
	}

	var commentRecords []CommentRecord
	if err := j.db.WithContext(ctx).
		Order("proposal_id ASC").
		Order("position ASC").
		Find(&commentRecords).Error; err != nil {
		return nil, err
	}

	commentsByProposal := make(map[string][]Comment, len(proposalRecords))
	for _, record := range commentRecords {
		commentsByProposal[record.ProposalID] = append(commentsByProposal[record.ProposalID], Comment{
			ID:         record.CommentID,
			ProposalID: record.ProposalID,
			UserID:     record.UserID,
			UserName:   record.UserName,
			UserAvatar: record.UserAvatar,
			Content:    record.Content,
			CreatedAt:  record.CreatedAt.UTC(),
		})
	}

	loaded := make([]Proposal, 0, len(proposalRecords))
	for _, record := range proposalRecords {
		comments := commentsByProposal[record.ProposalID]
		if comments == nil {
			comments = []Comment{}
		}
		loaded = append(loaded, Proposal{
			ID:          record.ProposalID,
			Title:       record.Title,
			Description: record.Description,
			Category:    record.Category,
			CreatorName: record.CreatorName,
			CreatorID:   record.CreatorID,
			ImageURL:    record.ImageURL,
			Upvotes:     record.Upvotes,
			Downvotes:   record.Downvotes,
			Votes:       record.Upvotes - record.Downvotes,
			Status:      Status(record.Status),
			CreatedAt:   record.CreatedAt.UTC(),
			Comments:    comments,
		})
	}
	return loaded, nil
}

// SaveProposal upserts the proposal columns; comments are written by AppendComment.
func (j *GormJournal) SaveProposal(ctx context.Context, proposal Proposal) error {
	record := ProposalRecord{
		ProposalID:  proposal.ID,
		Title:       proposal.Title,
		Description: proposal.Description,
		Category:    proposal.Category,
		CreatorName: proposal.CreatorName,
		CreatorID:   proposal.CreatorID,
		ImageURL:    proposal.ImageURL,
		Upvotes:     proposal.Upvotes,
		Downvotes:   proposal.Downvotes,
		Votes:       proposal.Votes,
		Status:      string(proposal.Status),
		CreatedAt:   proposal.CreatedAt,
	}
	return j.db.WithContext(ctx).Save(&record).Error
}

// AppendComment inserts the comment at the given position.
func (j *GormJournal) AppendComment(ctx context.Context, comment Comment, position int) error {
	record := CommentRecord{
		CommentID:  comment.ID,
		ProposalID: comment.ProposalID,
		Position:   position,
		UserID:     comment.UserID,
		UserName:   comment.UserName,
		UserAvatar: comment.UserAvatar,
		Content:    comment.Content,
		CreatedAt:  comment.CreatedAt,
	}
	return j.db.WithContext(ctx).Create(&record).Error
}

// DeleteProposal removes the proposal and its comments in one transaction.
func (j *GormJournal) DeleteProposal(ctx context.Context, proposalID string) error {
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("proposal_id = ?", proposalID).Delete(&CommentRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("proposal_id = ?", proposalID).Delete(&ProposalRecord{}).Error
	})
}
