package tasks

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"

	"github.com/desertthunder/gmx/internal/check"
	"github.com/desertthunder/gmx/internal/fixture"
	"github.com/desertthunder/gmx/internal/models"
	"github.com/desertthunder/gmx/internal/retry"
	"github.com/desertthunder/gmx/internal/services"
	"github.com/desertthunder/gmx/internal/shared"
)

// TestSong is the uploaded song as the library reports it.
type TestSong struct {
	ID     string
	Title  string
	Artist string
	Album  string
}

// Tracker records remote resources as they are created and deleted.
//
// It is optional; the ledger's ResourceTracker implements it.
type Tracker interface {
	Track(ctx context.Context, runID string, kind models.ResourceKind, remoteID, name string) error
	Release(ctx context.Context, kind models.ResourceKind, remoteID string) error
}

// State is shared by the steps of one run.
//
// Steps write Song and PlaylistID when they create the resources and clear
// them once deleted, so later steps see only resources that still exist.
type State struct {
	Service     services.Service
	Credentials services.Credentials
	Policy      retry.Policy
	Tracker     Tracker
	Logger      *log.Logger

	RunID        string
	BaseURL      string
	PlaylistName string
	SampleDir    string // empty writes the sample to a temporary directory
	Sample       fixture.Sample
	SamplePath   string

	Song       *TestSong
	PlaylistID string

	step       string
	attempts   int
	retries    int
	sampleTemp string
	onRetry    func(RetryInfo)
}

// NewState builds the run state from configuration.
func NewState(svc services.Service, cfg *shared.Config) *State {
	return &State{
		Service: svc,
		Credentials: services.Credentials{
			Email:        cfg.Credentials.Email,
			Password:     cfg.Credentials.Password,
			AccessToken:  cfg.Credentials.AccessToken,
			ClientID:     cfg.Credentials.ClientID,
			ClientSecret: cfg.Credentials.ClientSecret,
			TokenURL:     cfg.Credentials.TokenURL,
		},
		Policy:       retry.FromConfig(cfg.Retry),
		RunID:        shared.GenerateID(),
		BaseURL:      cfg.Service.BaseURL,
		PlaylistName: cfg.Suite.PlaylistName,
		SampleDir:    cfg.Suite.SampleDir,
		Sample:       fixture.NewSample(cfg.Suite.UniqueTags),
	}
}

func (st *State) logger() *log.Logger {
	if st.Logger == nil {
		st.Logger = shared.NewLogger(io.Discard)
	}
	return st.Logger
}

// Poll retries op under the state's policy until it stops returning a [check.Failure].
//
// Every call counts toward the current step's attempts, every wait toward the run's retries.
func Poll[T any](ctx context.Context, st *State, op func(ctx context.Context) (T, error)) (T, error) {
	step := st.step
	p := st.Policy.WithOnRetry(func(attempt int, err error, wait time.Duration) {
		st.retries++
		st.logger().Debug("not converged", "step", step, "attempt", attempt, "wait", wait, "err", err)
		if st.onRetry != nil {
			st.onRetry(RetryInfo{Step: step, Attempt: attempt, Wait: wait, Err: err})
		}
	})

	return retry.Do(ctx, p, func(ctx context.Context) (T, error) {
		st.attempts++
		return op(ctx)
	})
}

// Until is [Poll] for checks without a value.
func (st *State) Until(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Poll(ctx, st, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// track records a created resource. Ledger errors are logged, never fatal to the step.
func (st *State) track(ctx context.Context, kind models.ResourceKind, remoteID, name string) {
	if st.Tracker == nil {
		return
	}
	if err := st.Tracker.Track(ctx, st.RunID, kind, remoteID, name); err != nil {
		st.logger().Warn("failed to track resource", "kind", kind, "id", remoteID, "err", err)
	}
}

func (st *State) release(ctx context.Context, kind models.ResourceKind, remoteID string) {
	if st.Tracker == nil {
		return
	}
	if err := st.Tracker.Release(ctx, kind, remoteID); err != nil {
		st.logger().Warn("failed to release resource", "kind", kind, "id", remoteID, "err", err)
	}
}

// login starts a session and checks that it took.
func (st *State) login(ctx context.Context, uploadAuth bool) error {
	if err := st.Service.Login(ctx, st.Credentials, uploadAuth); err != nil {
		return err
	}
	return check.True(st.Service.IsAuthenticated(), "session should be authenticated after login")
}

// logout ends the session and checks that one was ended.
func (st *State) logout(ctx context.Context) error {
	ended, err := st.Service.Logout(ctx)
	if err != nil {
		return err
	}
	return check.True(ended, "logout should end the session")
}

// removeSample deletes a sample written to a temporary directory.
func (st *State) removeSample() error {
	if st.sampleTemp == "" {
		return nil
	}
	dir := st.sampleTemp
	st.sampleTemp = ""
	return os.RemoveAll(dir)
}

func (g Group) setup() func(context.Context, *State) error {
	if g.Setup != nil {
		return g.Setup
	}
	uploadAuth := g.UploadAuth
	return func(ctx context.Context, st *State) error {
		return st.login(ctx, uploadAuth)
	}
}

func (g Group) teardown() func(context.Context, *State) error {
	if g.Teardown != nil {
		return g.Teardown
	}
	return func(ctx context.Context, st *State) error {
		return multierr.Combine(st.logout(ctx), st.removeSample())
	}
}
