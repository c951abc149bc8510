// Package response defines the JSON envelope every tool returns. Success and
// failure share one shape so clients can branch on the ok flag alone.
package response

// Error codes carried in the envelope. Codes are stable strings; messages
// are free-form and may change.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeNotFound        = "NOT_FOUND"
	CodeEmpty           = "EMPTY"
	CodeConfirmExpired  = "CONFIRM_EXPIRED"
	CodeConfirmMismatch = "CONFIRM_MISMATCH"
	CodeBadHeader       = "BAD_HEADER"
	CodeSheetError      = "SHEET_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
)

// ErrorDetail is the failure half of the envelope.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Response is the tool result envelope. Data is present on success, Error on
// failure, never both.
type Response struct {
	OK    bool           `json:"ok"`
	Op    string         `json:"op"`
	Data  map[string]any `json:"data,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// OK builds a success envelope for the given operation.
func OK(op string, data map[string]any) Response {
	return Response{OK: true, Op: op, Data: data}
}

// Fail builds a failure envelope with the given code and message.
func Fail(op, code, message string) Response {
	return Response{OK: false, Op: op, Error: &ErrorDetail{Code: code, Message: message}}
}

// FailDetails builds a failure envelope carrying extra structured context,
// such as the headers that failed to resolve.
func FailDetails(op, code, message string, details map[string]any) Response {
	return Response{OK: false, Op: op, Error: &ErrorDetail{Code: code, Message: message, Details: details}}
}
