package gitlab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	exec := NewExecutor(server.URL, "test-token",
		WithRetryConfig(RetryConfig{MaxAttempts: 1, Backoff: time.Millisecond, Timeout: 5 * time.Second}),
	)
	return NewClient(exec, nil)
}

func TestClient_CurrentUser(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/user", r.URL.Path)
		w.Write([]byte(`{"id": 12, "username": "cascade-bot", "name": "Cascade"}`))
	}))

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, user.ID)
	assert.Equal(t, "cascade-bot", user.Username)
}

func TestClient_CurrentUser_AuthFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.CurrentUser(context.Background())

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestClient_MergeRequest(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/group%2Fapp/merge_requests/42", r.URL.EscapedPath())
		w.Write([]byte(`{"iid": 42, "state": "opened", "sha": "abc123", "merge_status": "can_be_merged"}`))
	}))

	mr, err := client.MergeRequest(context.Background(), "group/app", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, mr.IID)
	assert.Equal(t, "opened", mr.State)
	assert.Equal(t, "abc123", mr.SHA)
}

func TestClient_MergeRequest_MalformedPayload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// An object endpoint answering with a list is a malformed payload.
		w.Write([]byte(`[{"iid": 42}]`))
	}))

	_, err := client.MergeRequest(context.Background(), "1", 42)

	var malformed *MalformedPayloadError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "object", malformed.Expected)
}

func TestClient_OpenMergeRequests(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/1/merge_requests", r.URL.Path)
		assert.Equal(t, "opened", r.URL.Query().Get("state"))
		w.Write([]byte(`[{"iid": 1}, {"iid": 2}, {"iid": 3}]`))
	}))

	mrs, err := client.OpenMergeRequests(context.Background(), "1")
	require.NoError(t, err)
	assert.Len(t, mrs, 3)
}

func TestClient_OpenMergeRequests_MalformedPayload(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": "not a list"}`))
	}))

	_, err := client.OpenMergeRequests(context.Background(), "1")

	var malformed *MalformedPayloadError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "list", malformed.Expected)
}

func TestClient_AcceptMergeRequest(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/projects/1/merge_requests/42/merge", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"iid": 42, "state": "merged"}`))
	}))

	mr, err := client.AcceptMergeRequest(context.Background(), "1", 42, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "merged", mr.State)
	assert.Equal(t, "abc123", gotBody["sha"])
}

func TestClient_AcceptMergeRequest_Conflict(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// GitLab answers 409 when the sha guard no longer matches the head.
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message": "SHA does not match HEAD of source branch"}`))
	}))

	_, err := client.AcceptMergeRequest(context.Background(), "1", 42, "stale")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestClient_RebaseMergeRequest(t *testing.T) {
	var called bool
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/projects/1/merge_requests/42/rebase", r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"rebase_in_progress": true}`))
	}))

	require.NoError(t, client.RebaseMergeRequest(context.Background(), "1", 42))
	assert.True(t, called)
}

func TestClient_CreateNote(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/projects/1/merge_requests/42/notes", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 99, "body": "pipeline failed"}`))
	}))

	note, err := client.CreateNote(context.Background(), "1", 42, "pipeline failed")
	require.NoError(t, err)
	assert.Equal(t, 99, note.ID)
	assert.Equal(t, "pipeline failed", gotBody["body"])
}

func TestClient_Approvals(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/1/merge_requests/42/approvals", r.URL.Path)
		w.Write([]byte(`{"approved": true, "approvals_left": 0, "approved_by": [{"user": {"id": 5, "username": "reviewer"}}]}`))
	}))

	approvals, err := client.Approvals(context.Background(), "1", 42)
	require.NoError(t, err)
	assert.True(t, approvals.Approved)
	assert.Equal(t, 0, approvals.ApprovalsLeft)
	require.Len(t, approvals.ApprovedBy, 1)
	assert.Equal(t, "reviewer", approvals.ApprovedBy[0].User.Username)
}

func TestClient_Pipelines(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects/1/pipelines", r.URL.Path)
		assert.Equal(t, "feature/login", r.URL.Query().Get("ref"))
		w.Write([]byte(`[{"id": 300, "sha": "abc123", "ref": "feature/login", "status": "success"}]`))
	}))

	pipelines, err := client.Pipelines(context.Background(), "1", "feature/login")
	require.NoError(t, err)
	require.Len(t, pipelines, 1)
	assert.Equal(t, "success", pipelines[0].Status)
}
