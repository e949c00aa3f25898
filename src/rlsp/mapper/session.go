// Package mapper converts between wire, entity and model representations.
package mapper

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/uber/rlsp/src/rlsp/entity"
	"github.com/uber/rlsp/src/rlsp/internal/errors"
	"github.com/uber/rlsp/src/rlsp/model"
	"go.lsp.dev/jsonrpc2"
)

// SessionToModel maps a Session entity to its model equivalent.
func SessionToModel(s *entity.Session) *model.Session {
	return &model.Session{
		UUID:             s.UUID,
		InitializeParams: s.InitializeParams,
		Conn:             s.Conn,
		ClientName:       string(s.ClientName),
	}
}

// ModelToSession maps a model Session to its entity equivalent.
func ModelToSession(m *model.Session) (*entity.Session, error) {
	return &entity.Session{
		UUID:             m.UUID,
		InitializeParams: m.InitializeParams,
		Conn:             m.Conn,
		ClientName:       entity.ClientName(m.ClientName),
	}, nil
}

// UUIDToSession initializes a new Session entity with the assigned uuid and connection.
func UUIDToSession(u uuid.UUID, conn jsonrpc2.Conn) *entity.Session {
	return &entity.Session{
		UUID: u,
		Conn: conn,
	}
}

// ContextToSessionUUID extracts the UUID from a context
func ContextToSessionUUID(ctx context.Context) (uuid.UUID, error) {
	s, ok := ctx.Value(entity.SessionContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, &errors.NoSessionFoundError{}
	}
	return s, nil
}

// SessionUUIDToContext returns a child of ctx carrying id.
func SessionUUIDToContext(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, entity.SessionContextKey, id)
}
