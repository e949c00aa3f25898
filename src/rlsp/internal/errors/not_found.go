package errors

import (
	stderr "errors"
	"fmt"

	"github.com/gofrs/uuid"
)

// UUIDNotFoundError reports an editor session or attachment id with no live entry.
type UUIDNotFoundError struct {
	UUID uuid.UUID
}

func (n *UUIDNotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", n.UUID)
}

// NotFoundUUID unwraps a UUIDNotFoundError from the chain and returns its id.
func NotFoundUUID(e error) (uuid.UUID, bool) {
	var nf *UUIDNotFoundError
	if stderr.As(e, &nf) {
		return nf.UUID, true
	}
	return uuid.Nil, false
}

// NoSessionFoundError is returned when a request context carries no session id.
type NoSessionFoundError struct{}

func (*NoSessionFoundError) Error() string {
	return "no session found in context"
}
