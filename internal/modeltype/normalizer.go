// Package modeltype derives the "modelType" label stamped on outgoing requests
// from the selected model and applies it to payloads, JSON bodies, query
// strings and forms.
package modeltype

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/traylinx/modelgate/internal/constant"
	"github.com/traylinx/modelgate/internal/registry"
)

var providerLabels = map[string]string{
	constant.Claude:  constant.ClaudeLabel,
	constant.Mistral: constant.MistralLabel,
}

// LabelFor maps a provider family to its canonical label. ok is false for
// unknown families.
func LabelFor(provider string) (string, bool) {
	label, ok := providerLabels[strings.ToLower(provider)]
	return label, ok
}

// Selector exposes the currently selected model id.
type Selector interface {
	Current() string
}

// Normalizer resolves model ids to labels through a catalog. Unknown ids never
// fail: they resolve to the catalog default's label.
type Normalizer struct {
	catalog  *registry.Catalog
	selector Selector
}

// New returns a normalizer. selector may be nil, in which case the tagging
// helpers use the catalog default.
func New(catalog *registry.Catalog, selector Selector) *Normalizer {
	if catalog == nil {
		catalog = registry.Builtin()
	}
	return &Normalizer{catalog: catalog, selector: selector}
}

// TypeOf returns the label for id.
func (n *Normalizer) TypeOf(id string) string {
	d, err := n.catalog.Lookup(id)
	if err != nil {
		return n.defaultLabel()
	}
	if label, ok := LabelFor(d.Provider); ok {
		return label
	}
	return n.defaultLabel()
}

// Current returns the label of the selected model.
func (n *Normalizer) Current() string {
	if n.selector == nil {
		return n.defaultLabel()
	}
	return n.TypeOf(n.selector.Current())
}

func (n *Normalizer) defaultLabel() string {
	if label, ok := LabelFor(n.catalog.Default().Provider); ok {
		return label
	}
	return constant.ClaudeLabel
}

// TagPayload returns a shallow copy of payload with modelType set. The input map
// is not modified.
func (n *Normalizer) TagPayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out[constant.ModelTypeField] = n.Current()
	return out
}

// TagJSON stamps modelType on a raw JSON object body and returns a new slice.
// An empty body becomes an object holding only modelType.
func (n *Normalizer) TagJSON(body []byte) ([]byte, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, fmt.Errorf("modeltype: body is not a JSON object")
	}
	buf := make([]byte, len(body))
	copy(buf, body)
	out, err := sjson.SetBytes(buf, constant.ModelTypeField, n.Current())
	if err != nil {
		return nil, fmt.Errorf("modeltype: failed to tag body: %w", err)
	}
	return out, nil
}

// ReadTag returns the modelType stamped on a JSON body.
func ReadTag(body []byte) (string, bool) {
	res := gjson.GetBytes(body, constant.ModelTypeField)
	if !res.Exists() || res.Type != gjson.String {
		return "", false
	}
	return res.String(), true
}

// TagQuery appends modelType to rawURL, using "?" or "&" depending on whether a
// query string is present. An existing modelType parameter is replaced; the
// order of other parameters and any fragment are kept.
func (n *Normalizer) TagQuery(rawURL string) string {
	base, fragment := rawURL, ""
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base, fragment = base[:i], base[i:]
	}
	path, query := base, ""
	if i := strings.IndexByte(base, '?'); i >= 0 {
		path, query = base[:i], base[i+1:]
	}

	params := make([]string, 0, 4)
	for _, part := range strings.Split(query, "&") {
		if part == "" {
			continue
		}
		key := part
		if i := strings.IndexByte(part, '='); i >= 0 {
			key = part[:i]
		}
		if unescaped, err := url.QueryUnescape(key); err == nil && unescaped == constant.ModelTypeField {
			continue
		}
		params = append(params, part)
	}
	params = append(params, constant.ModelTypeField+"="+url.QueryEscape(n.Current()))

	return path + "?" + strings.Join(params, "&") + fragment
}

// TagForm sets modelType on form values in place and returns them. Form values
// are set, not merged, so mutating them is safe. A nil form is allocated.
func (n *Normalizer) TagForm(form url.Values) url.Values {
	if form == nil {
		form = url.Values{}
	}
	form.Set(constant.ModelTypeField, n.Current())
	return form
}
