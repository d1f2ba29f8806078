package errors

const (
	HttpInternalError       = "internal_error"
	HttpDatabaseUnavailable = "database_unavailable"
	HttpRouteNotFound       = "route_not_found"
)

// ErrorResponse is the error body returned by the operations server.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
