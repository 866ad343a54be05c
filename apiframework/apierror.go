package apiframework

// APIError is the structured error returned by the HTTP layer and decoded
// by SDK clients. It wraps an underlying sentinel so errors.Is keeps
// working across the wire boundary on the server side.
type APIError struct {
	err       error
	message   string
	param     string
	errorType string
	errorCode string
}

func (e *APIError) Error() string {
	return e.message
}

func (e *APIError) Unwrap() error {
	return e.err
}

func (e *APIError) Message() string { return e.message }

func (e *APIError) Param() string { return e.param }

func (e *APIError) Type() string { return e.errorType }

func (e *APIError) Code() string { return e.errorCode }

// AboutServer is returned from GET /version; the SDK uses it for its
// compatibility handshake.
type AboutServer struct {
	Version        string `json:"version"`
	NodeInstanceID string `json:"nodeInstanceID"`
	Tenancy        string `json:"tenancy"`
}

// version is stamped at build time via -ldflags.
var version = "unknown"

func GetVersion() string {
	return version
}
