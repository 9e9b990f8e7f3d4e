package gitlab

// Plain data-transfer shapes for the GitLab v4 REST API. No behavior here;
// decision logic lives in the reconciler.

// User represents a GitLab user
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// MergeRequest represents a GitLab merge request
type MergeRequest struct {
	IID          int    `json:"iid"`
	ProjectID    int    `json:"project_id"`
	Title        string `json:"title"`
	State        string `json:"state"` // "opened", "closed", "merged", "locked"
	TargetBranch string `json:"target_branch"`
	SourceBranch string `json:"source_branch"`
	SHA          string `json:"sha"`
	Draft        bool   `json:"draft"`
	MergeStatus  string `json:"merge_status"` // "can_be_merged", "cannot_be_merged", "checking"
	WebURL       string `json:"web_url"`
	Author       User   `json:"author"`
}

// Approvals represents the approval state of a merge request
type Approvals struct {
	Approved      bool         `json:"approved"`
	ApprovalsLeft int          `json:"approvals_left"`
	ApprovedBy    []ApprovedBy `json:"approved_by"`
}

// ApprovedBy wraps an approving user
type ApprovedBy struct {
	User User `json:"user"`
}

// Pipeline represents a CI pipeline
type Pipeline struct {
	ID     int    `json:"id"`
	SHA    string `json:"sha"`
	Ref    string `json:"ref"`
	Status string `json:"status"` // "pending", "running", "success", "failed", "canceled", "skipped"
}

// Note represents a comment on a merge request
type Note struct {
	ID     int    `json:"id"`
	Body   string `json:"body"`
	Author User   `json:"author"`
}
