package api

import "fmt"

// FetchError reports a failed page or catalog fetch. Recoverable: the user
// retries via refresh or load-more, and no in-memory state is lost.
type FetchError struct {
	Status  int
	Message string
}

func (e *FetchError) Error() string { return e.Message }

// PublishError reports a gateway rejection of a publish attempt. It is
// scoped to the part that submitted and never affects other parts.
type PublishError struct {
	Status  int
	Message string
}

func (e *PublishError) Error() string { return e.Message }

// DeleteError reports a gateway rejection of a media delete. The local part
// state is left unchanged when one is returned.
type DeleteError struct {
	Status  int
	Message string
}

func (e *DeleteError) Error() string { return e.Message }

func statusMessage(status int, message string) string {
	if message != "" {
		return message
	}
	return fmt.Sprintf("server returned status %d", status)
}
