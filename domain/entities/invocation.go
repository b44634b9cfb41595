package entities

// InvocationRequest is the decoded request envelope sent by the host.
// An empty PackageID or CommandID is treated as a missing field.
type InvocationRequest struct {
	PackageID string
	CommandID string
	Arguments []byte
}

// Key returns the command key addressed by the request.
func (r InvocationRequest) Key() CommandKey {
	return CommandKey{PackageID: r.PackageID, CommandID: r.CommandID}
}

// InvocationResponse is the uniform response envelope returned to the host.
// ErrorMessage is set iff Success is false; Returns is empty on failure.
type InvocationResponse struct {
	ErrorMessage *string
	Returns      []byte
	Success      bool
}

// InvocationSuccess builds a successful response carrying the encoded result.
func InvocationSuccess(returns []byte) InvocationResponse {
	if returns == nil {
		returns = []byte{}
	}
	return InvocationResponse{Success: true, Returns: returns}
}

// InvocationFailure builds a failed response from an error message.
func InvocationFailure(message string) InvocationResponse {
	return InvocationResponse{
		Success:      false,
		Returns:      []byte{},
		ErrorMessage: &message,
	}
}

// Error returns the failure message, or "" for a successful response.
func (r InvocationResponse) Error() string {
	if r.ErrorMessage == nil {
		return ""
	}
	return *r.ErrorMessage
}
