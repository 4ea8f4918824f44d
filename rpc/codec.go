// Package rpc implements the JSON-RPC 2.0 framing used by the A2A
// runtime: single requests, batches, notifications, and the fixed
// error-code table the handler's failures are mapped through.
package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/a2aruntime/a2a/a2a"
)

// ErrorCode is one of the fixed JSON-RPC/A2A error codes.
type ErrorCode int

const (
	CodeParseError      ErrorCode = -32700
	CodeInvalidRequest  ErrorCode = -32600
	CodeMethodNotFound  ErrorCode = -32601
	CodeInvalidParams   ErrorCode = -32602
	CodeInternalError   ErrorCode = -32603

	CodeServerError                         ErrorCode = -32000
	CodeTaskNotFound                        ErrorCode = -32001
	CodeTaskNotCancelable                   ErrorCode = -32002
	CodePushNotificationNotSupported        ErrorCode = -32003
	CodeUnsupportedOperation                ErrorCode = -32004
	CodeContentTypeNotSupported             ErrorCode = -32005
	CodeInvalidAgentResponse                ErrorCode = -32006
	CodeAuthenticatedExtendedCardNotConfigured ErrorCode = -32007
)

// IsServerErrorCode reports whether c falls in the reserved -32000..-32099
// server-error range.
func IsServerErrorCode(c ErrorCode) bool {
	return c <= -32000 && c >= -32099
}

// Request is a JSON-RPC 2.0 request object. A request with HasID == false
// (no "id" member at all) is a notification; a request with HasID == true
// and ID holding the raw bytes `null` represents the literal `"id": null`,
// which is NOT a notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	HasID   bool            `json:"-"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// UnmarshalJSON records whether "id" was present on the wire at all.
func (r *Request) UnmarshalJSON(raw []byte) error {
	type alias Request
	var a alias
	if err := json.Unmarshal(raw, &a); err != nil {
		return err
	}
	*r = Request(a)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return err
	}
	_, r.HasID = probe["id"]
	if r.JSONRPC == "" {
		r.JSONRPC = "2.0"
	}
	return nil
}

// IsNotification reports whether this request must produce no response.
func (r Request) IsNotification() bool {
	return !r.HasID
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode       `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Response is a JSON-RPC 2.0 response object: exactly one of Result/Error
// is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewSuccessResponse builds a response wrapping a successful result.
func NewSuccessResponse(id json.RawMessage, result interface{}) (*Response, error) {
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{JSONRPC: "2.0", ID: id, Result: encoded}, nil
}

// NewErrorResponse builds a response wrapping an error.
func NewErrorResponse(id json.RawMessage, rpcErr *Error) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: rpcErr}
}

// kindToCode maps the cross-cutting a2a.Kind taxonomy to a JSON-RPC error
// code. NotFound/NotCancelable/Unsupported/PushNotificationUnsupported carry
// their own dedicated codes; Validation, Protocol and Internal map to the
// standard invalid-params, invalid-request and internal-error codes;
// Authentication maps to -32007; any other kind falls back to the generic
// server error -32000.
func kindToCode(k a2a.Kind) ErrorCode {
	switch k {
	case a2a.KindNotFound:
		return CodeTaskNotFound
	case a2a.KindNotCancelable:
		return CodeTaskNotCancelable
	case a2a.KindPushNotificationUnsupported:
		return CodePushNotificationNotSupported
	case a2a.KindUnsupported:
		return CodeUnsupportedOperation
	case a2a.KindValidation:
		return CodeInvalidParams
	case a2a.KindProtocol:
		return CodeInvalidRequest
	case a2a.KindAuthentication:
		return CodeAuthenticatedExtendedCardNotConfigured
	case a2a.KindInternal:
		return CodeInternalError
	default:
		return CodeServerError
	}
}

// MethodNotFoundErr signals an unrecognized RPC method.
type MethodNotFoundErr struct {
	Method string
}

func (e *MethodNotFoundErr) Error() string {
	return fmt.Sprintf("method not found: %s", e.Method)
}

// InvalidParamsErr signals params that failed to decode into the method's
// request type.
type InvalidParamsErr struct {
	Method string
	Cause  error
}

func (e *InvalidParamsErr) Error() string {
	return fmt.Sprintf("invalid params for %s: %s", e.Method, e.Cause)
}

// FromDomainError maps an *a2a.Error (or any other error) to a JSON-RPC
// Error object.
func FromDomainError(err error) *Error {
	if notFound, ok := err.(*MethodNotFoundErr); ok {
		return &Error{Code: CodeMethodNotFound, Message: notFound.Error()}
	}
	if invalidParams, ok := err.(*InvalidParamsErr); ok {
		return &Error{Code: CodeInvalidParams, Message: invalidParams.Error()}
	}
	if domainErr, ok := err.(*a2a.Error); ok {
		var data json.RawMessage
		if domainErr.Data != nil {
			if encoded, marshalErr := json.Marshal(domainErr.Data); marshalErr == nil {
				data = encoded
			}
		}
		return &Error{Code: kindToCode(domainErr.Kind), Message: domainErr.Message, Data: data}
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}
