package provisioning

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Operation statuses reported by the service.
const (
	statusAssigning = "assigning"
	statusAssigned  = "assigned"
)

// registerRequest is the body of the register call.
type registerRequest struct {
	RegistrationID string          `json:"registrationId"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// operationResponse covers both the register answer and each poll answer.
type operationResponse struct {
	OperationID       string             `json:"operationId"`
	Status            string             `json:"status"`
	ErrorCode         json.RawMessage    `json:"errorCode,omitempty"`
	Message           string             `json:"message,omitempty"`
	RegistrationState *registrationState `json:"registrationState,omitempty"`
}

// registrationState is present once the service has decided on a hub.
type registrationState struct {
	RegistrationID string `json:"registrationId"`
	AssignedHub    string `json:"assignedHub"`
	DeviceID       string `json:"deviceId"`
	Status         string `json:"status"`
}

// hasErrorCode reports whether the service set errorCode to anything but null.
func (r *operationResponse) hasErrorCode() bool {
	return len(r.ErrorCode) > 0 && !bytes.Equal(r.ErrorCode, []byte("null"))
}

// decodeOperation parses a response body. ok is false for anything that is
// not a JSON object.
func decodeOperation(body []byte) (resp operationResponse, ok bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return operationResponse{}, false
	}
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return operationResponse{}, false
	}
	return resp, true
}
