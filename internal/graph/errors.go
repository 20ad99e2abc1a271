package graph

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingIdentifier means the root identity has no profile id to query with.
	ErrMissingIdentifier = errors.New("identity has no profile id")

	// ErrNoDataFound means the remote source answered 404 for the identity.
	ErrNoDataFound = errors.New("nothing here for this identity")

	// ErrEmptyResult means the fetch succeeded but yielded no relationships.
	ErrEmptyResult = errors.New("no relationships found")
)

// FetchError is any non-2xx response or transport failure from the remote source.
type FetchError struct {
	Status  int
	Message string
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("fetch failed: %s", e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("fetch failed: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("fetch failed: %d %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}
