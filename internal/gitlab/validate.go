package gitlab

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Outcome classifies an HTTP status code. Pure function of the code, so
// classifying the same response twice always yields the same result.
type Outcome int

const (
	// OutcomeSuccess covers [200, 300).
	OutcomeSuccess Outcome = iota
	// OutcomeAuthenticationFailure is a 401. Terminal, never retried.
	OutcomeAuthenticationFailure
	// OutcomeAuthorizationFailure is a 403. Terminal, never retried.
	OutcomeAuthorizationFailure
	// OutcomeFailure covers everything else, including 5xx that escaped the
	// executor's retry loop only because attempts were exhausted.
	OutcomeFailure
)

// Classify maps a status code to its outcome.
func Classify(statusCode int) Outcome {
	switch {
	case statusCode == http.StatusUnauthorized:
		return OutcomeAuthenticationFailure
	case statusCode == http.StatusForbidden:
		return OutcomeAuthorizationFailure
	case statusCode >= 200 && statusCode < 300:
		return OutcomeSuccess
	default:
		return OutcomeFailure
	}
}

// Validate turns a non-success response into its typed error. Returns nil
// for success; shape checks on the body happen afterwards via DecodeObject
// or DecodeList.
func Validate(resp *Response) error {
	switch Classify(resp.StatusCode) {
	case OutcomeSuccess:
		return nil
	case OutcomeAuthenticationFailure:
		return &AuthenticationError{}
	case OutcomeAuthorizationFailure:
		return &AuthorizationError{}
	default:
		return &APIError{StatusCode: resp.StatusCode, Message: string(resp.Body)}
	}
}

// DecodeObject decodes the body into v, failing with MalformedPayloadError
// when the payload is not a JSON object.
func (r *Response) DecodeObject(v any) error {
	if first := firstByte(r.Body); first != '{' {
		return &MalformedPayloadError{Expected: "object"}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &MalformedPayloadError{Expected: "object", Err: err}
	}
	return nil
}

// DecodeList decodes the body into v, failing with MalformedPayloadError
// when the payload is not a JSON array.
func (r *Response) DecodeList(v any) error {
	if first := firstByte(r.Body); first != '[' {
		return &MalformedPayloadError{Expected: "list"}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &MalformedPayloadError{Expected: "list", Err: err}
	}
	return nil
}

// firstByte returns the first non-whitespace byte of the body, or 0 when
// the body is empty.
func firstByte(body []byte) byte {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
