// Package rewriter translates the document URIs carried by protocol messages between the
// remote server's file:// namespace and the editor's virtual remote-path namespace.
package rewriter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/uber-go/tally"
	"github.com/uber/rlsp/src/rlsp/internal/remotepath"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const _configKeyScheme = "virtualPath.scheme"

// Module provides the Rewriter and the Translator it uses.
var Module = fx.Provide(New, NewTranslator)

var (
	// String fields that name a single document.
	_uriFields = map[string]bool{"uri": true, "targetUri": true, "oldUri": true, "newUri": true}
	// Strings naming a directory.
	_rootFields = map[string]bool{"rootUri": true, "scopeUri": true}
	// Objects keyed by document URI.
	_keyedFields = map[string]bool{"changes": true, "relatedDocuments": true}
	// Owned by the server and handed back verbatim.
	_opaqueFields = map[string]bool{"data": true}
)

// Rewriter rewrites raw payloads. Values it cannot translate are left as they are.
type Rewriter interface {
	// ToEditor rewrites native file URIs in a server payload into virtual URIs on host.
	ToEditor(host string, method string, payload json.RawMessage) json.RawMessage
	// ToServer rewrites virtual URIs in an editor payload into native file URIs.
	ToServer(method string, payload json.RawMessage) json.RawMessage
}

// Params are the dependencies of New.
type Params struct {
	fx.In

	Translator remotepath.Translator
	Logger     *zap.SugaredLogger
	Stats      tally.Scope
}

type rewriter struct {
	translator remotepath.Translator
	logger     *zap.SugaredLogger
	rewritten  tally.Counter
	failed     tally.Counter
}

// NewTranslator returns the Translator for the configured virtual path scheme.
func NewTranslator(cfg config.Provider) (remotepath.Translator, error) {
	var scheme string
	if err := cfg.Get(_configKeyScheme).Populate(&scheme); err != nil {
		return remotepath.Translator{}, fmt.Errorf("getting config field %q: %w", _configKeyScheme, err)
	}
	return remotepath.New(scheme), nil
}

// New creates a Rewriter.
func New(p Params) Rewriter {
	stats := p.Stats.SubScope("rewriter")
	return &rewriter{
		translator: p.Translator,
		logger:     p.Logger.With("plugin", "rewriter"),
		rewritten:  stats.Counter("rewritten"),
		failed:     stats.Counter("failed"),
	}
}

func (r *rewriter) ToEditor(host string, method string, payload json.RawMessage) json.RawMessage {
	p := &pass{
		r:      r,
		method: method,
		fields: mergeFields(_uriFields, _rootFields),
		convert: func(v string) (string, bool, error) {
			if !strings.HasPrefix(v, "file:") {
				return v, false, nil
			}
			out, err := r.translator.FileURIToVirtual(v, host)
			if err != nil {
				return v, false, err
			}
			return out, true, nil
		},
	}
	return p.rewrite(payload)
}

func (r *rewriter) ToServer(method string, payload json.RawMessage) json.RawMessage {
	prefix := r.translator.Scheme + "://"
	toFile := func(v string) (string, bool, error) {
		if !strings.HasPrefix(v, prefix) {
			return v, false, nil
		}
		out, ok := r.translator.VirtualToFileURI(v)
		if !ok {
			return v, false, fmt.Errorf("malformed virtual path %q", v)
		}
		return out, true, nil
	}
	p := &pass{
		r:       r,
		method:  method,
		fields:  mergeFields(_uriFields, _rootFields),
		convert: toFile,
		special: map[string]func(string) (string, bool, error){
			"rootPath": func(v string) (string, bool, error) {
				if !strings.HasPrefix(v, prefix) {
					return v, false, nil
				}
				_, path, ok := r.translator.FromVirtual(v)
				if !ok {
					return v, false, fmt.Errorf("malformed virtual path %q", v)
				}
				return path, true, nil
			},
		},
	}
	return p.rewrite(payload)
}

type edit struct {
	path string
	raw  []byte
}

// pass is one rewrite of a payload in a single direction.
type pass struct {
	r       *rewriter
	method  string
	fields  map[string]bool
	convert func(string) (string, bool, error)
	// special fields use their own conversion.
	special map[string]func(string) (string, bool, error)
}

func (p *pass) rewrite(payload json.RawMessage) json.RawMessage {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return payload
	}

	var edits []edit
	p.walk(gjson.ParseBytes(payload), "", &edits)
	if len(edits) == 0 {
		return payload
	}

	out := append([]byte(nil), payload...)
	for _, e := range edits {
		next, err := sjson.SetRawBytes(out, e.path, e.raw)
		if err != nil {
			p.fail(e.path, string(e.raw), err)
			continue
		}
		out = next
	}
	return out
}

func (p *pass) walk(node gjson.Result, path string, edits *[]edit) {
	switch {
	case node.IsObject():
		node.ForEach(func(k, v gjson.Result) bool {
			key := k.String()
			child := join(path, key)
			switch {
			case _opaqueFields[key]:
			case v.Type == gjson.String && p.special[key] != nil:
				p.value(child, v.Str, p.special[key], edits)
			case v.Type == gjson.String && p.fields[key]:
				p.value(child, v.Str, p.convert, edits)
			case v.IsObject() && _keyedFields[key]:
				p.keyed(child, v, edits)
			case v.IsArray() && key == "arguments":
				p.arguments(child, v, edits)
			default:
				p.walk(v, child, edits)
			}
			return true
		})
	case node.IsArray():
		i := 0
		node.ForEach(func(_, v gjson.Result) bool {
			p.walk(v, join(path, strconv.Itoa(i)), edits)
			i++
			return true
		})
	}
}

func (p *pass) value(path string, v string, convert func(string) (string, bool, error), edits *[]edit) {
	out, changed, err := convert(v)
	if err != nil {
		p.fail(path, v, err)
		return
	}
	if !changed {
		return
	}
	raw, _ := json.Marshal(out)
	*edits = append(*edits, edit{path: path, raw: raw})
	p.r.rewritten.Inc(1)
}

// keyed rebuilds an object keyed by document URI, keeping key order and rewriting each value.
func (p *pass) keyed(path string, obj gjson.Result, edits *[]edit) {
	var buf bytes.Buffer
	changed := false
	first := true
	buf.WriteByte('{')
	obj.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		out, ok, err := p.convert(key)
		switch {
		case err != nil:
			p.fail(path, key, err)
		case ok:
			key = out
			changed = true
			p.r.rewritten.Inc(1)
		}

		value := p.rewrite(json.RawMessage(v.Raw))
		if string(value) != v.Raw {
			changed = true
		}

		if !first {
			buf.WriteByte(',')
		}
		first = false
		quoted, _ := json.Marshal(key)
		buf.Write(quoted)
		buf.WriteByte(':')
		buf.Write(value)
		return true
	})
	buf.WriteByte('}')
	if changed {
		*edits = append(*edits, edit{path: path, raw: buf.Bytes()})
	}
}

// arguments rewrites bare URI strings among command arguments.
func (p *pass) arguments(path string, args gjson.Result, edits *[]edit) {
	i := 0
	args.ForEach(func(_, v gjson.Result) bool {
		child := join(path, strconv.Itoa(i))
		if v.Type == gjson.String {
			p.value(child, v.Str, p.convert, edits)
		} else {
			p.walk(v, child, edits)
		}
		i++
		return true
	})
}

func (p *pass) fail(path string, v string, err error) {
	p.r.failed.Inc(1)
	p.r.logger.Warnw("leaving location untranslated", "method", p.method, "path", path, "value", v, "error", err)
}

func join(path string, key string) string {
	key = escape(key)
	if path == "" {
		return key
	}
	return path + "." + key
}

// escape quotes the characters sjson treats as path syntax.
func escape(key string) string {
	if !strings.ContainsAny(key, `.*?\|#@`) {
		return key
	}
	var b strings.Builder
	for _, c := range key {
		switch c {
		case '.', '*', '?', '\\', '|', '#', '@':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func mergeFields(sets ...map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}
