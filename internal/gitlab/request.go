package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes a single logical API call. Params are encoded into the
// query string for GET requests and into a JSON body for PUT/POST.
type Request struct {
	Method string // http.MethodGet, http.MethodPut or http.MethodPost
	Path   string // API path relative to the base URL, e.g. "/projects/42/merge_requests"
	Params map[string]any
}

// build constructs the outbound *http.Request against the given base URL.
func (r Request) build(ctx context.Context, baseURL string) (*http.Request, error) {
	switch r.Method {
	case http.MethodGet, http.MethodPut, http.MethodPost:
	default:
		return nil, fmt.Errorf("unsupported request method: %s", r.Method)
	}

	reqURL := baseURL + r.Path

	var body *bytes.Reader
	if r.Method == http.MethodGet {
		if len(r.Params) > 0 {
			values := url.Values{}
			for k, v := range r.Params {
				values.Set(k, fmt.Sprint(v))
			}
			reqURL += "?" + values.Encode()
		}
		body = bytes.NewReader(nil)
	} else {
		payload := r.Params
		if payload == nil {
			payload = map[string]any{}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	return req, nil
}
