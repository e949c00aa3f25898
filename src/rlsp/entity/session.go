// Package entity contains the domain types for the rlsp daemon.
package entity

import (
	"github.com/gofrs/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

type keyType string

// SessionContextKey indicates the key to be used to identify the session UUID in the context.
const SessionContextKey keyType = "SessionUUID"

// Session entity representing a single editor connection.
type Session struct {
	UUID             uuid.UUID                  `json:"uuid" zap:"uuid"`
	InitializeParams *protocol.InitializeParams `json:"-" zap:"-"`
	Conn             jsonrpc2.Conn              `json:"-" zap:"-"`
	ClientName       ClientName                 `json:"clientName" zap:"clientName"`
}

// ClientName identifies the name that will be set in the initialization parameters for a given client.
type ClientName string

// Document is an open text document as last seen from the editor.
// URI is the editor facing (virtual) URI.
type Document struct {
	URI        protocol.DocumentURI
	LanguageID protocol.LanguageIdentifier
	Version    int32
	Text       string
}
