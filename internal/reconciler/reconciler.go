package reconciler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/cascade/internal/common"
	"github.com/ternarybob/cascade/internal/gitlab"
	"github.com/ternarybob/cascade/internal/queue"
)

// Reconciler polls the configured projects for open merge requests and
// enqueues one reconcile job per merge request. Jobs for the same merge
// request coalesce in the queue, so rapid re-polls never pile up work.
type Reconciler struct {
	client   *gitlab.Client
	queue    *queue.JobQueue
	cron     *cron.Cron
	projects []string
	logger   arbor.ILogger
}

// New creates a reconciler over the given client and queue.
func New(client *gitlab.Client, q *queue.JobQueue, projects []string, logger arbor.ILogger) *Reconciler {
	return &Reconciler{
		client:   client,
		queue:    q,
		projects: projects,
		logger:   logger,
	}
}

// Start schedules polling on the given cron expression.
func (r *Reconciler) Start(schedule string) error {
	r.cron = cron.New()

	_, err := r.cron.AddFunc(schedule, func() {
		r.Poll(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid reconciler schedule %q: %w", schedule, err)
	}

	r.cron.Start()

	r.logger.Info().
		Str("schedule", schedule).
		Int("projects", len(r.projects)).
		Msg("Reconciler started")

	return nil
}

// Stop stops the poll schedule. In-flight jobs run to completion.
func (r *Reconciler) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}

// Poll lists open merge requests for every watched project and enqueues a
// reconcile job for each, keyed by project and IID.
func (r *Reconciler) Poll(ctx context.Context) {
	runID := common.NewRunID()
	log := r.logger

	for _, project := range r.projects {
		mrs, err := r.client.OpenMergeRequests(ctx, project)
		if err != nil {
			log.Warn().
				Err(err).
				Str("run_id", runID).
				Str("project", project).
				Msg("Failed to list open merge requests")
			continue
		}

		log.Debug().
			Str("run_id", runID).
			Str("project", project).
			Int("open", len(mrs)).
			Msg("Enqueuing reconcile jobs")

		for _, mr := range mrs {
			project, iid := project, mr.IID
			key := fmt.Sprintf("mr-%s-%d", project, iid)

			r.queue.Append(key, func(ctx context.Context) error {
				return r.reconcile(ctx, runID, project, iid)
			})
		}
	}
}

// reconcile drives one merge request one step closer to merged: skip drafts
// and unapproved requests, comment on a failed pipeline, rebase when GitLab
// reports the branch cannot be merged, accept when approved and green.
func (r *Reconciler) reconcile(ctx context.Context, runID, project string, iid int) error {
	log := r.logger

	mr, err := r.client.MergeRequest(ctx, project, iid)
	if err != nil {
		return fmt.Errorf("fetch merge request %s!%d: %w", project, iid, err)
	}

	if mr.State != "opened" || mr.Draft {
		log.Debug().
			Str("run_id", runID).
			Str("project", project).
			Int("iid", iid).
			Str("state", mr.State).
			Msg("Skipping merge request")
		return nil
	}

	approvals, err := r.client.Approvals(ctx, project, iid)
	if err != nil {
		return fmt.Errorf("fetch approvals %s!%d: %w", project, iid, err)
	}
	if !approvals.Approved || approvals.ApprovalsLeft > 0 {
		log.Debug().
			Str("run_id", runID).
			Str("project", project).
			Int("iid", iid).
			Int("approvals_left", approvals.ApprovalsLeft).
			Msg("Waiting for approvals")
		return nil
	}

	head, err := r.headPipeline(ctx, project, mr)
	if err != nil {
		return err
	}
	if head == nil {
		log.Debug().
			Str("run_id", runID).
			Str("project", project).
			Int("iid", iid).
			Msg("No pipeline for current head yet")
		return nil
	}

	switch head.Status {
	case "failed":
		body := fmt.Sprintf("Pipeline [%d](%s) failed for %s; not merging until it passes.",
			head.ID, mr.WebURL, mr.SHA)
		if _, err := r.client.CreateNote(ctx, project, iid, body); err != nil {
			return fmt.Errorf("comment on %s!%d: %w", project, iid, err)
		}
		log.Info().
			Str("run_id", runID).
			Str("project", project).
			Int("iid", iid).
			Int("pipeline", head.ID).
			Msg("Commented on failed pipeline")
		return nil

	case "success":
		if mr.MergeStatus == "cannot_be_merged" {
			if err := r.client.RebaseMergeRequest(ctx, project, iid); err != nil {
				return fmt.Errorf("rebase %s!%d: %w", project, iid, err)
			}
			log.Info().
				Str("run_id", runID).
				Str("project", project).
				Int("iid", iid).
				Msg("Requested rebase")
			return nil
		}
		if mr.MergeStatus != "can_be_merged" {
			// "checking" and friends resolve on a later poll.
			return nil
		}
		if _, err := r.client.AcceptMergeRequest(ctx, project, iid, mr.SHA); err != nil {
			return fmt.Errorf("accept %s!%d: %w", project, iid, err)
		}
		log.Info().
			Str("run_id", runID).
			Str("project", project).
			Int("iid", iid).
			Str("sha", mr.SHA).
			Msg("Merge request accepted")
		return nil

	default:
		// Pipeline still pending or running.
		return nil
	}
}

// headPipeline returns the newest pipeline matching the merge request's
// current head SHA, or nil when none exists yet.
func (r *Reconciler) headPipeline(ctx context.Context, project string, mr *gitlab.MergeRequest) (*gitlab.Pipeline, error) {
	pipelines, err := r.client.Pipelines(ctx, project, mr.SourceBranch)
	if err != nil {
		return nil, fmt.Errorf("fetch pipelines %s (%s): %w", project, mr.SourceBranch, err)
	}

	for i := range pipelines {
		if pipelines[i].SHA == mr.SHA {
			return &pipelines[i], nil
		}
	}
	return nil, nil
}
