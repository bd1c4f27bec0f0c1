package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// ReadBody reads the whole request body. A body cut short by
// MaxBytesMiddleware yields an *http.MaxBytesError.
func ReadBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return data, nil
}

// ReadBodyOrError reads the request body and writes an error response on
// failure. It returns false if an error was written.
func ReadBodyOrError(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := ReadBody(r)
	if err == nil {
		return data, true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteErrorMessage(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return nil, false
	}
	WriteBadRequest(w, err.Error())
	return nil, false
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, bool) {
	value, ok := mux.Vars(r)[key]
	return value, ok && value != ""
}

// ParseQueryBool extracts a boolean query parameter with a default value
func ParseQueryBool(r *http.Request, key string, defaultValue bool) bool {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
