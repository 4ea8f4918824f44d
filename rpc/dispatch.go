package rpc

import (
	"context"
	"encoding/json"
)

// MethodHandler invokes one RPC method with already-decoded params and
// returns a result to be marshaled, or an error to be mapped via
// FromDomainError.
type MethodHandler func(ctx context.Context, method string, params json.RawMessage) (interface{}, error)

// Dispatch parses the body as either a
// single request or a batch, invokes handle for each request (notifications
// included), and returns the response bytes to write (nil if nothing should
// be written, e.g. an all-notification batch or a single notification).
func Dispatch(ctx context.Context, body []byte, handle MethodHandler) []byte {
	var probe json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		resp := NewErrorResponse(nil, &Error{Code: CodeParseError, Message: "invalid JSON: " + err.Error()})
		return mustEncode(resp)
	}

	trimmed := skipWhitespace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var rawItems []json.RawMessage
		if err := json.Unmarshal(body, &rawItems); err != nil {
			resp := NewErrorResponse(nil, &Error{Code: CodeParseError, Message: "invalid batch: " + err.Error()})
			return mustEncode(resp)
		}
		if len(rawItems) == 0 {
			resp := NewErrorResponse(nil, &Error{Code: CodeInvalidRequest, Message: "batch must contain at least one request"})
			return mustEncode(resp)
		}

		var responses []*Response
		for _, raw := range rawItems {
			if resp := dispatchOne(ctx, raw, handle); resp != nil {
				responses = append(responses, resp)
			}
		}
		if len(responses) == 0 {
			return nil
		}
		return mustEncode(responses)
	}

	resp := dispatchOne(ctx, body, handle)
	if resp == nil {
		return nil
	}
	return mustEncode(resp)
}

// dispatchOne runs steps 3-6 for a single request object, returning nil
// when the request is a notification (no response body).
func dispatchOne(ctx context.Context, raw json.RawMessage, handle MethodHandler) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(nil, &Error{Code: CodeInvalidRequest, Message: "invalid request object: " + err.Error()})
	}

	result, err := handle(ctx, req.Method, req.Params)

	if req.IsNotification() {
		return nil
	}

	if err != nil {
		return NewErrorResponse(req.ID, FromDomainError(err))
	}

	resp, marshalErr := NewSuccessResponse(req.ID, result)
	if marshalErr != nil {
		return NewErrorResponse(req.ID, &Error{Code: CodeInternalError, Message: marshalErr.Error()})
	}
	return resp
}

func mustEncode(v interface{}) []byte {
	encoded, err := json.Marshal(v)
	if err != nil {
		fallback, _ := json.Marshal(NewErrorResponse(nil, &Error{Code: CodeInternalError, Message: "failed to encode response"}))
		return fallback
	}
	return encoded
}

func skipWhitespace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return b[i:]
		}
	}
	return b[i:]
}
