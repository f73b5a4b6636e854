package broker

import (
	"errors"

	"github.com/camspipe/bridge/internal/adapters/repository"
)

// ErrSourceClosed marks a fetch against a closed subscription.
var ErrSourceClosed = errors.New("source closed")

// isPermanent reports whether a persistence error cannot be helped by
// retrying. Unavailability is transient; constraint violations are not.
func isPermanent(err error) bool {
	return errors.Is(err, repository.ErrConstraint)
}
