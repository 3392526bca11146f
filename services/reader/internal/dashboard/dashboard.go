// Package dashboard backs the admin home screen.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
)

var (
	// ErrUnavailable is the single error shown when the dashboard cannot load,
	// whatever the cause.
	ErrUnavailable  = errors.New("failed to load admin dashboard; you may not have admin privileges")
	ErrNameRequired = errors.New("please enter a cohort name")
)

// UploadError reports a cohort that was created but whose document upload
// failed. The cohort is kept.
type UploadError struct {
	Cohort domain.Cohort
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("cohort %q created but the document upload failed: %v", e.Cohort.Name, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Client is the part of the API client the dashboard needs.
type Client interface {
	AdminStats(ctx context.Context, userID int64) (domain.AdminStats, error)
	ListCohorts(ctx context.Context) ([]domain.Cohort, error)
	CreateCohort(ctx context.Context, req domain.CreateCohortRequest) (domain.Cohort, error)
	UploadDocument(ctx context.Context, cohortID int64, filename string, r io.Reader) (domain.UploadResult, error)
	CohortMembers(ctx context.Context, cohortID int64) ([]domain.User, error)
	CohortActivity(ctx context.Context, userID, cohortID int64) (domain.CohortActivity, error)
}

// State is what the dashboard shows.
type State struct {
	Stats   domain.AdminStats
	Cohorts []domain.Cohort
}

// Document is an optional file attached when creating a cohort.
type Document struct {
	Filename string
	Content  io.Reader
}

// Detail is the per-cohort view. It is fetched on every opening.
type Detail struct {
	Cohort   domain.Cohort
	Members  []domain.User
	Activity domain.CohortActivity
}

type Dashboard struct {
	client  Client
	adminID int64

	mu     sync.RWMutex
	state  State
	loaded bool
}

func New(client Client, adminID int64) *Dashboard {
	return &Dashboard{client: client, adminID: adminID}
}

// Load fetches stats and cohorts concurrently. Any failure yields
// ErrUnavailable and keeps the previous state.
func (d *Dashboard) Load(ctx context.Context) (State, error) {
	var next State
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		next.Stats, err = d.client.AdminStats(gctx, d.adminID)
		return err
	})
	g.Go(func() error {
		var err error
		next.Cohorts, err = d.client.ListCohorts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Error("dashboard load failed", "admin_id", d.adminID, "err", err)
		return d.State(), ErrUnavailable
	}

	d.mu.Lock()
	d.state = next
	d.loaded = true
	d.mu.Unlock()
	return next, nil
}

// State returns the last loaded state.
func (d *Dashboard) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Loaded reports whether a load has succeeded.
func (d *Dashboard) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// CreateCohort creates the cohort, uploads doc when given, then reloads the
// dashboard. A failed upload returns the created cohort with an *UploadError;
// nothing is rolled back.
func (d *Dashboard) CreateCohort(ctx context.Context, name, description string, doc *Document) (domain.Cohort, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Cohort{}, ErrNameRequired
	}
	cohort, err := d.client.CreateCohort(ctx, domain.CreateCohortRequest{
		Name:        name,
		Description: description,
		CreatedBy:   d.adminID,
	})
	if err != nil {
		return domain.Cohort{}, fmt.Errorf("create cohort: %w", err)
	}

	var uploadErr error
	if doc != nil {
		res, err := d.client.UploadDocument(ctx, cohort.ID, doc.Filename, doc.Content)
		if err != nil {
			slog.Warn("cohort created without document", "cohort_id", cohort.ID, "err", err)
			uploadErr = &UploadError{Cohort: cohort, Err: err}
		} else {
			filename, path := res.Filename, res.Path
			cohort.PDFFilename = &filename
			cohort.PDFPath = &path
		}
	}

	if _, err := d.Load(ctx); err != nil && uploadErr == nil {
		return cohort, err
	}
	return cohort, uploadErr
}

// ViewCohortDetail fetches members and activity counters concurrently.
func (d *Dashboard) ViewCohortDetail(ctx context.Context, cohort domain.Cohort) (Detail, error) {
	detail := Detail{Cohort: cohort}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail.Members, err = d.client.CohortMembers(gctx, cohort.ID)
		return err
	})
	g.Go(func() error {
		var err error
		detail.Activity, err = d.client.CohortActivity(gctx, d.adminID, cohort.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Detail{}, fmt.Errorf("load cohort detail: %w", err)
	}
	return detail, nil
}
