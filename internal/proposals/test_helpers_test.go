package proposals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequentialIDProvider struct {
	prefix string
	next   int
}

func (p *sequentialIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("%s-%d", p.prefix, p.next), nil
}

type staticIDProvider struct {
	ids   []string
	index int
}

func (p *staticIDProvider) NewID() (string, error) {
	if p.index >= len(p.ids) {
		return "", errors.New("exhausted ids")
	}
	id := p.ids[p.index]
	p.index++
	return id, nil
}

// steppingClock advances by one second on every call.
type steppingClock struct {
	current time.Time
}

func (c *steppingClock) Now() time.Time {
	c.current = c.current.Add(time.Second)
	return c.current
}

type stubUserCounter struct {
	count int64
	err   error
}

func (s stubUserCounter) CountUsers(context.Context) (int64, error) {
	return s.count, s.err
}

type failingJournal struct {
	err error
}

func (j failingJournal) Load(context.Context) ([]Proposal, error) { return nil, nil }

func (j failingJournal) SaveProposal(context.Context, Proposal) error { return j.err }

func (j failingJournal) AppendComment(context.Context, Comment, int) error { return j.err }

func (j failingJournal) DeleteProposal(context.Context, string) error { return j.err }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	clock := &steppingClock{current: time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)}
	store, err := NewStore(context.Background(), StoreConfig{
		Clock:      clock.Now,
		IDProvider: &sequentialIDProvider{prefix: "id"},
	})
	if err != nil {
		t.Fatalf("failed to construct store: %v", err)
	}
	return store
}

func newTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&ProposalRecord{}, &CommentRecord{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func validNewProposal(title string) NewProposal {
	return NewProposal{
		Title:       title,
		Description: "Make the neighbourhood greener.",
		Category:    "Environment",
		CreatorName: "Sarah Green",
		CreatorID:   "user-1",
	}
}

func validNewComment(content string) NewComment {
	return NewComment{
		UserID:     "user-2",
		UserName:   "Mike Chen",
		UserAvatar: "https://api.dicebear.com/7.x/avataaars/svg?seed=mike@example.com",
		Content:    content,
	}
}

func mustCreate(t *testing.T, store *Store, input NewProposal) Proposal {
	t.Helper()
	proposal, err := store.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return proposal
}

func mustVote(t *testing.T, store *Store, id string, direction Direction) Proposal {
	t.Helper()
	proposal, err := store.Vote(context.Background(), id, direction)
	if err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	return proposal
}

func assertVoteInvariant(t *testing.T, proposal Proposal) {
	t.Helper()
	if proposal.Votes != proposal.Upvotes-proposal.Downvotes {
		t.Fatalf("votes %d != upvotes %d - downvotes %d", proposal.Votes, proposal.Upvotes, proposal.Downvotes)
	}
}
