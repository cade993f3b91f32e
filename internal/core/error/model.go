package errx

import "net/http"

// WrapModel wraps a failure of the external model call. This is the only
// failure class that forces the request lifecycle into its Error state.
func WrapModel(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, ModelErrorMessage)
}
