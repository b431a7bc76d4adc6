package common

import (
	"encoding/json"
	"fmt"
)

// Response represents a standard API response
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
	Meta    *Meta           `json:"meta,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
}

// Meta contains metadata for paginated responses
type Meta struct {
	Page       int   `json:"page,omitempty"`
	PerPage    int   `json:"per_page,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
}

// DecodeResponse unwraps the response envelope in body into data.
// A failed envelope is returned as an *AppError; an empty body or a nil
// data target is accepted.
func DecodeResponse(body []byte, data interface{}) (*Meta, error) {
	if len(body) == 0 {
		return nil, nil
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !resp.Success {
		return resp.Meta, ErrorFromInfo(resp.Error)
	}
	if data == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return resp.Meta, nil
	}
	if err := json.Unmarshal(resp.Data, data); err != nil {
		return resp.Meta, fmt.Errorf("failed to decode response data: %w", err)
	}
	return resp.Meta, nil
}

// DecodeErrorBody extracts the error envelope from a failed response body.
// ok is false when body is not an error envelope.
func DecodeErrorBody(body []byte) (*AppError, bool) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error == nil {
		return nil, false
	}
	return ErrorFromInfo(resp.Error), true
}
