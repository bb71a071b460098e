package client

import (
	"context"
	"sync"

	"memberhub/internal/latest"
	"memberhub/internal/members"
)

const searchScope = "members.search"

// Search keeps the result of the most recently started member search.
// A response that arrives after a newer search was started is dropped.
type Search struct {
	client *Client
	guard  *latest.Guard

	mu      sync.Mutex
	term    string
	results []members.Member
}

func NewSearch(c *Client) *Search {
	return &Search{client: c, guard: latest.NewGuard()}
}

// Run searches for term. applied is false when a newer search overtook
// this one; its results and errors are then discarded.
func (s *Search) Run(ctx context.Context, term string) (applied bool, err error) {
	t := s.guard.Issue(searchScope, term)
	ms, err := s.client.SearchMembers(ctx, term, "")
	if err != nil {
		if !s.guard.Current(t) {
			return false, nil
		}
		return false, err
	}
	return s.guard.Accept(t, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.term, s.results = term, ms
	}), nil
}

// Results returns the term and members of the last applied search.
func (s *Search) Results() (string, []members.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.term, s.results
}
