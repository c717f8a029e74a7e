package reconciler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/adorable-dev/adorable/internal/ghsync"
	"github.com/adorable-dev/adorable/internal/project"
)

// Syncer pulls a project's branch when its head moved.
type Syncer interface {
	SyncIfChanged(ctx context.Context, p *project.Project) (*ghsync.Result, error)
}

// Recorder counts sync outcomes.
type Recorder interface {
	GitHubSync(source, outcome string)
}

// Reconciler polls sync-enabled projects and pulls branches whose head has
// moved since the last sync, recovering pushes whose webhook was missed.
type Reconciler struct {
	repo     project.Repository
	syncer   Syncer
	recorder Recorder
	interval time.Duration
}

// New creates a new Reconciler.
func New(repo project.Repository, syncer Syncer, recorder Recorder, interval time.Duration) *Reconciler {
	return &Reconciler{
		repo:     repo,
		syncer:   syncer,
		recorder: recorder,
		interval: interval,
	}
}

// Start begins the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	log := zap.S()
	log.Infow("reconciler started", "interval", r.interval.String())
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile runs one pass over every sync-enabled project.
func (r *Reconciler) Reconcile(ctx context.Context) {
	projects, err := r.repo.ListSyncEnabled(ctx)
	if err != nil {
		zap.S().Errorw("reconciler: failed to list sync-enabled projects", "error", err)
		return
	}

	for i := range projects {
		if ctx.Err() != nil {
			return
		}
		r.reconcileOne(ctx, &projects[i])
	}
}

func (r *Reconciler) reconcileOne(ctx context.Context, p *project.Project) {
	log := zap.S().With("project_id", p.ID)

	res, err := r.syncer.SyncIfChanged(ctx, p)
	if err != nil {
		r.record("error")
		log.Warnw("reconciler: github sync failed", "error", err)
		return
	}
	if res.Skipped {
		r.record("skipped")
		return
	}

	r.record("synced")
	log.Infow("reconciler: pulled missed push", "sha", res.SHA, "files", res.Files, "version", res.VersionSHA)
}

func (r *Reconciler) record(outcome string) {
	if r.recorder != nil {
		r.recorder.GitHubSync("poller", outcome)
	}
}
