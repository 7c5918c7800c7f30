package proposals

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
)

const day = 24 * time.Hour

// SeedProposal describes a proposal inserted with pre-existing counters and status.
type SeedProposal struct {
	NewProposal
	Upvotes   int64
	Downvotes int64
	Status    Status
	Age       time.Duration
}

// DemoProposals returns the demonstration data set shown on a fresh install.
func DemoProposals() []SeedProposal {
	return []SeedProposal{
		{
			NewProposal: NewProposal{
				Title:       "Plant 1000 Trees Initiative",
				Description: "A comprehensive tree planting program to increase urban green cover and combat climate change in our community.",
				Category:    "Environment",
				CreatorName: "Sarah Green",
				CreatorID:   "user1",
			},
			Upvotes: 245, Downvotes: 12, Status: StatusApproved, Age: 5 * day,
		},
		{
			NewProposal: NewProposal{
				Title:       "Free Community WiFi Zones",
				Description: "Establish free high-speed WiFi hotspots in public parks and community centers to bridge the digital divide.",
				Category:    "Technology",
				CreatorName: "Mike Chen",
				CreatorID:   "user2",
			},
			Upvotes: 189, Downvotes: 8, Status: StatusPending, Age: 3 * day,
		},
		{
			NewProposal: NewProposal{
				Title:       "Monthly Community Cleanup Days",
				Description: "Organize monthly volunteer events where residents come together to clean streets, parks, and public spaces.",
				Category:    "Community",
				CreatorName: "Emma Davis",
				CreatorID:   "user3",
			},
			Upvotes: 167, Downvotes: 5, Status: StatusApproved, Age: 2 * day,
		},
		{
			NewProposal: NewProposal{
				Title:       "Extended Library Hours",
				Description: "Keep public libraries open until 10 PM on weekdays to serve working families and students better.",
				Category:    "Education",
				CreatorName: "James Wilson",
				CreatorID:   "user4",
			},
			Upvotes: 143, Downvotes: 15, Status: StatusPending, Age: 1 * day,
		},
		{
			NewProposal: NewProposal{
				Title:       "Bike Lane Expansion Project",
				Description: "Build protected bike lanes on major streets to promote cycling as a safe, eco-friendly transportation option.",
				Category:    "Transportation",
				CreatorName: "Lisa Martinez",
				CreatorID:   "user5",
			},
			Upvotes: 201, Downvotes: 22, Status: StatusApproved, Age: 7 * day,
		},
		{
			NewProposal: NewProposal{
				Title:       "Youth Mentorship Program",
				Description: "Connect local professionals with young people for career guidance, skill development, and educational support.",
				Category:    "Education",
				CreatorName: "David Brown",
				CreatorID:   "user6",
			},
			Upvotes: 178, Downvotes: 9, Status: StatusPending, Age: 4 * day,
		},
	}
}

// Seed inserts the given proposals when the store is empty and reports how many were added.
// A non-empty store is left untouched.
func (s *Store) Seed(ctx context.Context, seeds []SeedProposal) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) > 0 {
		return 0, nil
	}

	now := s.clock().UTC()
	prepared := make([]Proposal, 0, len(seeds))
	issued := make(map[string]bool, len(seeds))
	for _, seed := range seeds {
		normalized, err := normalizeNewProposal(seed.NewProposal)
		if err != nil {
			return 0, newServiceError(opSeed, "invalid_input", err)
		}
		status := seed.Status
		if status == "" {
			status = StatusPending
		}
		if _, err := ParseStatus(string(status)); err != nil {
			return 0, newServiceError(opSeed, "invalid_input", err)
		}
		if seed.Upvotes < 0 || seed.Downvotes < 0 {
			return 0, newServiceError(opSeed, "invalid_input", ErrInvalidInput)
		}
		id, err := s.nextID()
		if err == nil && issued[id] {
			err = errDuplicateID
		}
		if err != nil {
			return 0, newServiceError(opSeed, "id_generation_failed", err)
		}
		issued[id] = true
		prepared = append(prepared, Proposal{
			ID:          id,
			Title:       normalized.Title,
			Description: normalized.Description,
			Category:    normalized.Category,
			CreatorName: normalized.CreatorName,
			CreatorID:   normalized.CreatorID,
			ImageURL:    normalized.ImageURL,
			Upvotes:     seed.Upvotes,
			Downvotes:   seed.Downvotes,
			Votes:       seed.Upvotes - seed.Downvotes,
			Status:      status,
			CreatedAt:   now.Add(-seed.Age),
			Comments:    []Comment{},
		})
	}

	sort.SliceStable(prepared, func(i, j int) bool {
		return prepared[i].CreatedAt.After(prepared[j].CreatedAt)
	})

	if s.journal != nil {
		for index, proposal := range prepared {
			if err := s.journal.SaveProposal(ctx, proposal); err != nil {
				s.logError(opSeed, "journal_write_failed", err, zap.String("proposal_id", proposal.ID))
				for _, written := range prepared[:index] {
					if rollbackErr := s.journal.DeleteProposal(ctx, written.ID); rollbackErr != nil {
						s.logError(opSeed, "journal_rollback_failed", rollbackErr, zap.String("proposal_id", written.ID))
					}
				}
				return 0, newServiceError(opSeed, "journal_write_failed", err)
			}
		}
	}

	for _, proposal := range prepared {
		s.order = append(s.order, proposal.ID)
		s.byID[proposal.ID] = proposal
	}
	s.logger.Info("proposal store seeded", zap.Int("proposals", len(prepared)))
	return len(prepared), nil
}
