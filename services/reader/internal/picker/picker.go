// Package picker lists the cohorts a student joined and the ones still
// open to join.
package picker

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
)

// Client is the part of the API client the picker needs.
type Client interface {
	UserCohorts(ctx context.Context, userID int64) ([]domain.Cohort, error)
	ListCohorts(ctx context.Context) ([]domain.Cohort, error)
	JoinCohort(ctx context.Context, userID, cohortID int64) (domain.Membership, error)
}

// State holds both lists in backend order.
type State struct {
	Joined    []domain.Cohort
	Available []domain.Cohort
}

// Picker loads and joins cohorts for one user.
type Picker struct {
	client Client
	userID int64

	mu    sync.RWMutex
	state State
}

func New(client Client, userID int64) *Picker {
	return &Picker{client: client, userID: userID}
}

// Load fetches the joined and the global cohort lists concurrently. Either
// failure aborts the load and leaves the previous state in place.
func (p *Picker) Load(ctx context.Context) (State, error) {
	var joined, all []domain.Cohort
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		joined, err = p.client.UserCohorts(gctx, p.userID)
		return err
	})
	g.Go(func() error {
		var err error
		all, err = p.client.ListCohorts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return p.State(), fmt.Errorf("load cohorts: %w", err)
	}

	next := State{Joined: joined, Available: Partition(joined, all)}
	p.mu.Lock()
	p.state = next
	p.mu.Unlock()
	return next, nil
}

// Join creates the membership and reloads both lists. The lists are never
// patched locally.
func (p *Picker) Join(ctx context.Context, cohortID int64) (State, error) {
	if _, err := p.client.JoinCohort(ctx, p.userID, cohortID); err != nil {
		return p.State(), err
	}
	return p.Load(ctx)
}

// State returns the last successfully loaded lists.
func (p *Picker) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// JoinedCohort finds a joined cohort by id.
func (p *Picker) JoinedCohort(id int64) (domain.Cohort, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.state.Joined {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Cohort{}, false
}

// Partition returns the cohorts of all whose id is not in joined, keeping
// the order of all.
func Partition(joined, all []domain.Cohort) []domain.Cohort {
	member := make(map[int64]struct{}, len(joined))
	for _, c := range joined {
		member[c.ID] = struct{}{}
	}
	available := make([]domain.Cohort, 0, len(all))
	for _, c := range all {
		if _, ok := member[c.ID]; !ok {
			available = append(available, c)
		}
	}
	return available
}
