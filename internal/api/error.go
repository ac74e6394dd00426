package api

type HTTPError struct {
	StatusCode int
	Message    string
	// Details is returned to the caller verbatim when set.
	Details  string
	ErrorLog error
}

func (e *HTTPError) Error() string {
	return e.Message
}

type ApiError struct {
	Error   string `json:"message"`
	Details string `json:"details,omitempty"`
}
