package rlspdaemon

import (
	"context"

	"github.com/uber/rlsp/src/rlsp/entity"
	"github.com/uber/rlsp/src/rlsp/mapper"
	"go.lsp.dev/protocol"
)

// DidOpen tracks the document. The first remote buffer of a session starts its server.
func (c *controller) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}
	doc := entity.Document{
		URI:        params.TextDocument.URI,
		LanguageID: params.TextDocument.LanguageID,
		Version:    params.TextDocument.Version,
		Text:       params.TextDocument.Text,
	}
	return c.onLoop(ctx, func() error { return c.lifecycle.DidOpen(id, doc) })
}

// DidChange records the full text sent by the editor.
func (c *controller) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}
	text, ok := mapper.LatestText(params.ContentChanges)
	if !ok {
		return nil
	}
	return c.onLoop(ctx, func() error {
		return c.lifecycle.DidChange(id, params.TextDocument.URI, params.TextDocument.Version, text)
	})
}

// DidClose stops tracking the document.
func (c *controller) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	id, err := sessionID(ctx)
	if err != nil {
		return err
	}
	return c.onLoop(ctx, func() error { return c.lifecycle.DidClose(id, params.TextDocument.URI) })
}
