package lifecycle

import (
	"context"
	"encoding/json"

	"github.com/gofrs/uuid"
	"github.com/uber/rlsp/src/rlsp/entity"
	"github.com/uber/rlsp/src/rlsp/internal/errors"
	"go.lsp.dev/protocol"
)

func (m *manager) DidOpen(id uuid.UUID, doc entity.Document) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	host, _, ok := m.translator.FromVirtual(string(doc.URI))
	if !ok {
		return nil
	}
	switch current := s.cfg.Settings().Host; {
	case current == "":
		s.cfg.SetHost(host)
	case current != host:
		m.logger.Debugw("ignoring buffer on another host", "session", s.id, "uri", doc.URI, "host", current)
		return nil
	}

	if _, tracked := s.docs[doc.URI]; !tracked {
		s.order = append(s.order, doc.URI)
	}
	d := doc
	s.docs[doc.URI] = &d
	s.lastBuffer = doc.URI

	switch s.state {
	case entity.LifecycleAttached:
		m.sendOpen(s, s.current, &d)
	case entity.LifecycleIdle, entity.LifecycleExitedClean, entity.LifecycleExitedAbnormal, entity.LifecycleReconnectPending:
		m.enable(s)
	}
	return nil
}

func (m *manager) DidChange(id uuid.UUID, uri protocol.DocumentURI, version int32, text string) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	doc, ok := s.docs[uri]
	if !ok {
		return nil
	}
	doc.Version = version
	doc.Text = text

	att := s.attached()
	if att == nil {
		return nil
	}
	native, ok := m.translator.VirtualToFileURI(string(uri))
	if !ok {
		return nil
	}
	// Full sync changes carry no range.
	m.send(s, att, protocol.MethodTextDocumentDidChange, map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": native, "version": version},
		"contentChanges": []map[string]string{
			{"text": text},
		},
	})
	return nil
}

func (m *manager) DidClose(id uuid.UUID, uri protocol.DocumentURI) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	if _, ok := s.docs[uri]; !ok {
		return nil
	}
	delete(s.docs, uri)
	for i, u := range s.order {
		if u == uri {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	att := s.attached()
	if att == nil {
		return nil
	}
	if native, ok := m.translator.VirtualToFileURI(string(uri)); ok {
		m.send(s, att, protocol.MethodTextDocumentDidClose, &protocol.DidCloseTextDocumentParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(native)},
		})
	}
	return nil
}

func (m *manager) Request(ctx context.Context, id uuid.UUID, method string, params json.RawMessage, reply func(json.RawMessage, error)) {
	s, err := m.session(id)
	if err != nil {
		reply(nil, err)
		return
	}
	att := s.attached()
	if att == nil {
		reply(nil, errors.NotAttachedError)
		return
	}

	params = m.rewriter.ToServer(method, params)
	// The write happens after every queued notification, the wait does not hold up the queue.
	att.outbox.Post(func() {
		go func() {
			result, err := att.client.Call(ctx, method, params)
			if err != nil {
				reply(nil, err)
				return
			}
			reply(m.rewriter.ToEditor(att.host, method, result), nil)
		}()
	})
}

func (m *manager) Notify(id uuid.UUID, method string, params json.RawMessage) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	att := s.attached()
	if att == nil {
		return errors.NotAttachedError
	}
	m.send(s, att, method, m.rewriter.ToServer(method, params))
	return nil
}

func (m *manager) sendOpen(s *session, att *attachment, doc *entity.Document) {
	native, ok := m.translator.VirtualToFileURI(string(doc.URI))
	if !ok {
		return
	}
	m.send(s, att, protocol.MethodTextDocumentDidOpen, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        protocol.DocumentURI(native),
			LanguageID: doc.LanguageID,
			Version:    doc.Version,
			Text:       doc.Text,
		},
	})
}
