package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ternarybob/arbor"
)

// Client exposes typed API operations over an Executor. Every call follows
// the same flow: send, validate the status, then shape-check the body.
type Client struct {
	exec   *Executor
	logger arbor.ILogger
}

// NewClient creates a typed API client over the given executor.
func NewClient(exec *Executor, logger arbor.ILogger) *Client {
	return &Client{
		exec:   exec,
		logger: logger,
	}
}

// CurrentUser returns the user the configured token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := c.exec.Send(ctx, Request{
		Method: http.MethodGet,
		Path:   "/user",
	})
	if err != nil {
		return nil, err
	}
	if err := Validate(resp); err != nil {
		return nil, err
	}

	var user User
	if err := resp.DecodeObject(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// MergeRequest fetches a single merge request by project and IID.
func (c *Client) MergeRequest(ctx context.Context, project string, iid int) (*MergeRequest, error) {
	resp, err := c.exec.Send(ctx, Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/projects/%s/merge_requests/%d", url.PathEscape(project), iid),
	})
	if err != nil {
		return nil, err
	}
	if err := Validate(resp); err != nil {
		return nil, err
	}

	var mr MergeRequest
	if err := resp.DecodeObject(&mr); err != nil {
		return nil, err
	}
	return &mr, nil
}

// OpenMergeRequests lists the open merge requests of a project.
func (c *Client) OpenMergeRequests(ctx context.Context, project string) ([]MergeRequest, error) {
	resp, err := c.exec.Send(ctx, Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/projects/%s/merge_requests", url.PathEscape(project)),
		Params: map[string]any{"state": "opened"},
	})
	if err != nil {
		return nil, err
	}
	if err := Validate(resp); err != nil {
		return nil, err
	}

	var mrs []MergeRequest
	if err := resp.DecodeList(&mrs); err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("project", project).
			Int("open", len(mrs)).
			Msg("Listed open merge requests")
	}

	return mrs, nil
}

// Approvals fetches the approval state of a merge request.
func (c *Client) Approvals(ctx context.Context, project string, iid int) (*Approvals, error) {
	resp, err := c.exec.Send(ctx, Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/projects/%s/merge_requests/%d/approvals", url.PathEscape(project), iid),
	})
	if err != nil {
		return nil, err
	}
	if err := Validate(resp); err != nil {
		return nil, err
	}

	var approvals Approvals
	if err := resp.DecodeObject(&approvals); err != nil {
		return nil, err
	}
	return &approvals, nil
}

// Pipelines lists the pipelines of a project for a given ref, newest first.
func (c *Client) Pipelines(ctx context.Context, project, ref string) ([]Pipeline, error) {
	resp, err := c.exec.Send(ctx, Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/projects/%s/pipelines", url.PathEscape(project)),
		Params: map[string]any{"ref": ref},
	})
	if err != nil {
		return nil, err
	}
	if err := Validate(resp); err != nil {
		return nil, err
	}

	var pipelines []Pipeline
	if err := resp.DecodeList(&pipelines); err != nil {
		return nil, err
	}
	return pipelines, nil
}

// AcceptMergeRequest merges a merge request. The sha guards against racing
// with new pushes: GitLab rejects the merge when the head moved.
func (c *Client) AcceptMergeRequest(ctx context.Context, project string, iid int, sha string) (*MergeRequest, error) {
	resp, err := c.exec.Send(ctx, Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/projects/%s/merge_requests/%d/merge", url.PathEscape(project), iid),
		Params: map[string]any{"sha": sha, "should_remove_source_branch": true},
	})
	if err != nil {
		return nil, err
	}
	if err := Validate(resp); err != nil {
		return nil, err
	}

	var mr MergeRequest
	if err := resp.DecodeObject(&mr); err != nil {
		return nil, err
	}
	return &mr, nil
}

// RebaseMergeRequest asks GitLab to rebase the source branch onto the
// target branch.
func (c *Client) RebaseMergeRequest(ctx context.Context, project string, iid int) error {
	resp, err := c.exec.Send(ctx, Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/projects/%s/merge_requests/%d/rebase", url.PathEscape(project), iid),
	})
	if err != nil {
		return err
	}
	return Validate(resp)
}

// CreateNote posts a comment on a merge request.
func (c *Client) CreateNote(ctx context.Context, project string, iid int, body string) (*Note, error) {
	resp, err := c.exec.Send(ctx, Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/projects/%s/merge_requests/%d/notes", url.PathEscape(project), iid),
		Params: map[string]any{"body": body},
	})
	if err != nil {
		return nil, err
	}
	if err := Validate(resp); err != nil {
		return nil, err
	}

	var note Note
	if err := resp.DecodeObject(&note); err != nil {
		return nil, err
	}
	return &note, nil
}
