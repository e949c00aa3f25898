package lifecycle

import (
	"github.com/gofrs/uuid"
	"github.com/uber/rlsp/src/rlsp/entity"
	"go.lsp.dev/protocol"
)

func (m *manager) Restart(id uuid.UUID) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	m.restart(s)
	return nil
}

func (m *manager) Stop(id uuid.UUID) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	m.halt(s)
	s.stopped = true
	m.logger.Infow("server stopped by user", "session", s.id)
	return nil
}

func (m *manager) SettingsChanged(id uuid.UUID) error {
	s, err := m.session(id)
	if err != nil {
		return err
	}
	if s.stopped {
		return nil
	}
	m.restart(s)
	return nil
}

// restart is a manual restart boundary: the reconnect allowance and the prompt guard are reset.
func (m *manager) restart(s *session) {
	m.halt(s)
	s.stopped = false
	s.attempted = false
	cache := s.cfg.Cache()
	cache.Reset()
	cache.Prompted = false
	m.forgetOtherHosts(s)

	if _, ok := s.docs[s.lastBuffer]; ok {
		m.enable(s)
	}
}

// halt kills the current server and drops any pending start or reconnect.
func (m *manager) halt(s *session) {
	m.cancelReconnect(s)
	m.detach(s)
	s.gen++
	s.state = entity.LifecycleIdle
}

// forgetOtherHosts drops documents that are not on the configured host. The editor reopens
// them through didOpen if the host is switched back.
func (m *manager) forgetOtherHosts(s *session) {
	host := s.cfg.Settings().Host
	kept := s.order[:0]
	for _, uri := range s.order {
		if m.onHost(uri, host) {
			kept = append(kept, uri)
			continue
		}
		delete(s.docs, uri)
	}
	s.order = kept

	if _, ok := s.docs[s.lastBuffer]; !ok {
		s.lastBuffer = ""
		if n := len(s.order); n > 0 {
			s.lastBuffer = s.order[n-1]
		}
	}
}

func (m *manager) onHost(uri protocol.DocumentURI, host string) bool {
	h, _, ok := m.translator.FromVirtual(string(uri))
	return ok && host != "" && h == host
}
