package proposals

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var noOpLogger = zap.NewNop()

// Journal mirrors committed store mutations to durable storage.
type Journal interface {
	Load(ctx context.Context) ([]Proposal, error)
	SaveProposal(ctx context.Context, proposal Proposal) error
	AppendComment(ctx context.Context, comment Comment, position int) error
	DeleteProposal(ctx context.Context, proposalID string) error
}

// UserCounter reports how many distinct users the identity registry knows.
type UserCounter interface {
	CountUsers(ctx context.Context) (int64, error)
}

// StoreConfig describes the dependencies of a Store.
type StoreConfig struct {
	Clock      func() time.Time
	IDProvider IDProvider
	Journal    Journal
	Users      UserCounter
	Logger     *zap.Logger
}

// Store is the sole owner of proposal state. Reads take a shared lock; every
// mutation holds the exclusive lock across validation, journaling and commit.
type Store struct {
	mu         sync.RWMutex
	order      []string
	byID       map[string]Proposal
	commentIDs map[string]string

	clock      func() time.Time
	idProvider IDProvider
	journal    Journal
	users      UserCounter
	logger     *zap.Logger
}

// NewStore constructs a store and hydrates it from the journal when one is configured.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.IDProvider == nil {
		return nil, newServiceError(opStoreNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	store := &Store{
		byID:       make(map[string]Proposal),
		commentIDs: make(map[string]string),
		clock:      clock,
		idProvider: cfg.IDProvider,
		journal:    cfg.Journal,
		users:      cfg.Users,
		logger:     logger,
	}

	if store.journal != nil {
		loaded, err := store.journal.Load(ctx)
		if err != nil {
			store.logError(opStoreNew, "journal_load_failed", err)
			return nil, newServiceError(opStoreNew, "journal_load_failed", err)
		}
		for _, proposal := range loaded {
			store.order = append(store.order, proposal.ID)
			store.byID[proposal.ID] = proposal.clone()
			for _, comment := range proposal.Comments {
				store.commentIDs[comment.ID] = proposal.ID
			}
		}
		logger.Info("proposal store hydrated", zap.Int("proposals", len(loaded)))
	}

	return store, nil
}

// List returns a snapshot of the proposals matching the query.
func (s *Store) List(query ListQuery) []Proposal {
	s.mu.RLock()
	result := make([]Proposal, 0, len(s.order))
	for _, id := range s.order {
		proposal := s.byID[id]
		if query.Status != "" && proposal.Status != query.Status {
			continue
		}
		result = append(result, proposal.clone())
	}
	s.mu.RUnlock()

	switch query.Sort {
	case SortLatest:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		})
	case SortVotes:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Votes > result[j].Votes
		})
	}

	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result
}

// Get returns a snapshot of the proposal and whether it exists.
func (s *Store) Get(id string) (Proposal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	proposal, ok := s.byID[id]
	if !ok {
		return Proposal{}, false
	}
	return proposal.clone(), true
}

// Create validates the input and inserts a pending proposal with zero votes.
func (s *Store) Create(ctx context.Context, input NewProposal) (Proposal, error) {
	normalized, err := normalizeNewProposal(input)
	if err != nil {
		return Proposal{}, newServiceError(opCreate, "invalid_input", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.nextID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Proposal{}, newServiceError(opCreate, "id_generation_failed", err)
	}

	proposal := Proposal{
		ID:          id,
		Title:       normalized.Title,
		Description: normalized.Description,
		Category:    normalized.Category,
		CreatorName: normalized.CreatorName,
		CreatorID:   normalized.CreatorID,
		ImageURL:    normalized.ImageURL,
		Status:      StatusPending,
		CreatedAt:   s.clock().UTC(),
		Comments:    []Comment{},
	}

	if s.journal != nil {
		if err := s.journal.SaveProposal(ctx, proposal); err != nil {
			s.logError(opCreate, "journal_write_failed", err, zap.String("proposal_id", id))
			return Proposal{}, newServiceError(opCreate, "journal_write_failed", err)
		}
	}

	s.order = append([]string{id}, s.order...)
	s.byID[id] = proposal
	return proposal.clone(), nil
}

// Vote increments one counter by exactly one and recomputes the net score.
func (s *Store) Vote(ctx context.Context, id string, direction Direction) (Proposal, error) {
	if direction != DirectionUp && direction != DirectionDown {
		return Proposal{}, newServiceError(opVote, "invalid_input", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok {
		return Proposal{}, newServiceError(opVote, "not_found", ErrNotFound)
	}

	updated := current.clone()
	if direction == DirectionUp {
		updated.Upvotes++
	} else {
		updated.Downvotes++
	}
	updated.Votes = updated.Upvotes - updated.Downvotes

	if err := s.commit(ctx, opVote, updated); err != nil {
		return Proposal{}, err
	}
	return updated.clone(), nil
}

// AddComment appends a comment to the proposal's comment sequence.
func (s *Store) AddComment(ctx context.Context, proposalID string, input NewComment) (Comment, error) {
	normalized, err := normalizeNewComment(input)
	if err != nil {
		return Comment{}, newServiceError(opAddComment, "invalid_input", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[proposalID]
	if !ok {
		return Comment{}, newServiceError(opAddComment, "not_found", ErrNotFound)
	}

	commentID, err := s.nextID()
	if err != nil {
		s.logError(opAddComment, "id_generation_failed", err, zap.String("proposal_id", proposalID))
		return Comment{}, newServiceError(opAddComment, "id_generation_failed", err)
	}

	comment := Comment{
		ID:         commentID,
		ProposalID: proposalID,
		UserID:     normalized.UserID,
		UserName:   normalized.UserName,
		UserAvatar: normalized.UserAvatar,
		Content:    normalized.Content,
		CreatedAt:  s.clock().UTC(),
	}

	if s.journal != nil {
		if err := s.journal.AppendComment(ctx, comment, len(current.Comments)); err != nil {
			s.logError(opAddComment, "journal_write_failed", err,
				zap.String("proposal_id", proposalID),
				zap.String("comment_id", commentID))
			return Comment{}, newServiceError(opAddComment, "journal_write_failed", err)
		}
	}

	updated := current.clone()
	updated.Comments = append(updated.Comments, comment)
	s.byID[proposalID] = updated
	s.commentIDs[commentID] = proposalID
	return comment, nil
}

// UpdateStatus overwrites the proposal status. Any valid status may follow any other.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) (Proposal, error) {
	if _, err := ParseStatus(string(status)); err != nil {
		return Proposal{}, newServiceError(opUpdateStatus, "invalid_input", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok {
		return Proposal{}, newServiceError(opUpdateStatus, "not_found", ErrNotFound)
	}

	updated := current.clone()
	updated.Status = status
	if err := s.commit(ctx, opUpdateStatus, updated); err != nil {
		return Proposal{}, err
	}
	return updated.clone(), nil
}

// Remove deletes the proposal together with its comments.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok {
		return newServiceError(opRemove, "not_found", ErrNotFound)
	}

	if s.journal != nil {
		if err := s.journal.DeleteProposal(ctx, id); err != nil {
			s.logError(opRemove, "journal_write_failed", err, zap.String("proposal_id", id))
			return newServiceError(opRemove, "journal_write_failed", err)
		}
	}

	for _, comment := range current.Comments {
		delete(s.commentIDs, comment.ID)
	}
	delete(s.byID, id)
	for index, candidate := range s.order {
		if candidate == id {
			s.order = append(s.order[:index:index], s.order[index+1:]...)
			break
		}
	}
	return nil
}

// Stats aggregates proposal and vote totals; the user total comes from the
// configured UserCounter and is zero without one.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	stats := Stats{TotalProposals: int64(len(s.order))}
	for _, proposal := range s.byID {
		stats.TotalVotes += proposal.TotalVotes()
	}
	s.mu.RUnlock()

	if s.users != nil {
		users, err := s.users.CountUsers(ctx)
		if err != nil {
			s.logError(opStats, "user_count_failed", err)
			return Stats{}, newServiceError(opStats, "user_count_failed", err)
		}
		stats.TotalUsers = users
	}
	return stats, nil
}

// commit journals the updated proposal and swaps it into memory. Caller holds s.mu.
func (s *Store) commit(ctx context.Context, operation string, updated Proposal) error {
	if s.journal != nil {
		if err := s.journal.SaveProposal(ctx, updated); err != nil {
			s.logError(operation, "journal_write_failed", err, zap.String("proposal_id", updated.ID))
			return newServiceError(operation, "journal_write_failed", err)
		}
	}
	s.byID[updated.ID] = updated
	return nil
}

// nextID issues an identifier unused by any live proposal or comment. Caller holds s.mu.
func (s *Store) nextID() (string, error) {
	id, err := s.idProvider.NewID()
	if err != nil {
		return "", err
	}
	if _, taken := s.byID[id]; taken {
		return "", errDuplicateID
	}
	if _, taken := s.commentIDs[id]; taken {
		return "", errDuplicateID
	}
	return id, nil
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("proposal store error", attrs...)
}
