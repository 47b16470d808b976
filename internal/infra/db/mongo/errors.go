package mongo

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"rentfleet/internal/app/uow"
)

var ErrDuplicateKey = errors.New("mongo: duplicate key")

const transientLabel = "TransientTransactionError"

// wrapWrite classifies write failures: transaction conflicts become
// uow.ErrRetryable, duplicate ids ErrDuplicateKey.
func wrapWrite(op string, err error) error {
	switch {
	case isTransient(err):
		return fmt.Errorf("mongo: %s: %w: %w", op, uow.ErrRetryable, err)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("mongo: %s: %w", op, ErrDuplicateKey)
	default:
		return fmt.Errorf("mongo: %s: %w", op, err)
	}
}

func isTransient(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorLabel(transientLabel)
}
