package fetcher

import (
	"errors"
	"fmt"

	"ewintr.nl/shortscout/model"
)

var (
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrVideoNotFound = errors.New("video not found")
)

// TransientFetchError is a failure that may succeed when tried again, like
// a timeout, a 5xx or a rate limit response.
type TransientFetchError struct {
	Op  string
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

type MalformedMetadataError struct {
	VideoID model.YoutubeVideoID
	Field   string
	Err     error
}

func (e *MalformedMetadataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("video %s: malformed %s", e.VideoID, e.Field)
	}
	return fmt.Sprintf("video %s: malformed %s: %v", e.VideoID, e.Field, e.Err)
}

func (e *MalformedMetadataError) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var te *TransientFetchError
	return errors.As(err, &te)
}
