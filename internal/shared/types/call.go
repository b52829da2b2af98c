package types

// CallRequest is one decoded extension call: a capability plus its
// parameters. It is the unit that flows through the gate and the executors.
type CallRequest struct {
	ID         string                 `json:"id"`
	Capability Capability             `json:"capability"`
	Params     map[string]interface{} `json:"params,omitempty"`
}

// CallResult is the typed outcome returned to the extension. Exactly one of
// Data or Error is populated.
type CallResult struct {
	ID      string                 `json:"id"`
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   *CallError             `json:"error,omitempty"`
}

// CallError is the wire form of a typed failure.
type CallError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK builds a successful result.
func OK(id string, data map[string]interface{}) *CallResult {
	return &CallResult{ID: id, Success: true, Data: data}
}

// Fail builds a failed result from an error code and message.
func Fail(id, code, message string) *CallResult {
	return &CallResult{ID: id, Success: false, Error: &CallError{Code: code, Message: message}}
}
