// CLAUDE:SUMMARY Sentinel errors for the veille service: invalid input, duplicate source, fetch failures.
package veille

import (
	"errors"

	"github.com/hazyhaar/veille/internal/connector"
)

// ErrInvalidInput is returned when service configuration fails validation.
var ErrInvalidInput = errors.New("veille: invalid input")

// ErrDuplicateSource is returned when two configured sources share a name.
var ErrDuplicateSource = errors.New("veille: duplicate source name")

// ErrFetchTimeout marks a source that did not answer within its budget.
var ErrFetchTimeout = connector.ErrFetchTimeout

// ErrFetch marks a transport or parse failure while collecting from a source.
var ErrFetch = connector.ErrFetch
