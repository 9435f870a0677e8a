// Package alias defines the port-alias model shared by the client and the
// reconciliation engine: the declared Spec, the appliance-side Record, and the
// acknowledgement Result returned by mutating calls.
package alias

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"grimm.is/aliasync/internal/errors"
)

// TypePort is the only alias type aliasync manages.
const TypePort = "port"

// ErrNotFound is returned by a lookup that positively confirmed the alias
// does not exist. Any other lookup error means the state is unknown.
var ErrNotFound = errors.New("alias not found")

// successTokens are the result/status values the appliance uses to acknowledge a write.
var successTokens = map[string]bool{
	"ok":      true,
	"saved":   true,
	"deleted": true,
}

// Spec is the declared state of one alias.
type Spec struct {
	Name        string   `json:"name" yaml:"name"`
	Ports       []string `json:"ports" yaml:"ports"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
}

// Type always reports TypePort.
func (s Spec) Type() string { return TypePort }

// Content returns the port tokens in wire format (comma-joined).
func (s Spec) Content() string {
	tokens := make([]string, 0, len(s.Ports))
	for _, p := range s.Ports {
		if p = strings.TrimSpace(p); p != "" {
			tokens = append(tokens, p)
		}
	}
	return strings.Join(tokens, ",")
}

// Payload is the body of an add/set call. It carries the managed fields only;
// anything the appliance owns (categories, color, counters...) is left out so
// the appliance keeps its current value.
type Payload struct {
	Enabled     string `json:"enabled"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Description string `json:"description"`
}

// Payload builds the wire body for s.
func (s Spec) Payload() Payload {
	enabled := "0"
	if s.Enabled {
		enabled = "1"
	}
	return Payload{
		Enabled:     enabled,
		Name:        s.Name,
		Type:        TypePort,
		Content:     s.Content(),
		Description: s.Description,
	}
}

// Record is an alias as the appliance reports it.
type Record struct {
	UUID        string `json:"uuid,omitempty"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Content     string `json:"content"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	Categories  string `json:"categories,omitempty"`
	Color       string `json:"color,omitempty"`

	// Raw is the row exactly as received. Backups serialize this, not the
	// decoded fields, so unknown attributes survive.
	Raw json.RawMessage `json:"-"`
}

// Ports splits the record content into tokens. The appliance may separate
// entries with commas or newlines depending on the endpoint.
func (r Record) Ports() []string {
	return splitTokens(r.Content)
}

func splitTokens(content string) []string {
	fields := strings.FieldsFunc(content, func(c rune) bool {
		return c == ',' || c == '\n' || c == '\r'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Matches reports whether the managed fields of r already equal s.
func (r Record) Matches(s Spec) bool {
	if r.Description != s.Description || r.Enabled != s.Enabled {
		return false
	}
	if r.Type != "" && !isPortType(r.Type) {
		return false
	}
	got := r.Ports()
	want := splitTokens(s.Content())
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func isPortType(t string) bool {
	t = strings.ToLower(t)
	return t == TypePort || strings.HasPrefix(t, "port")
}

// ParseRecord decodes one appliance row, keeping the raw bytes.
// Field values are accepted as strings, numbers or booleans since the
// appliance is not consistent about it across endpoints.
func ParseRecord(raw json.RawMessage) (Record, error) {
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return Record{}, errors.Wrap(err, "decode alias row")
	}

	rec := Record{
		UUID:        text(row["uuid"]),
		Name:        text(row["name"]),
		Type:        text(row["type"]),
		Content:     text(row["content"]),
		Description: text(row["description"]),
		Enabled:     truthy(row["enabled"]),
		Categories:  text(row["categories"]),
		Color:       text(row["color"]),
		Raw:         append(json.RawMessage(nil), raw...),
	}
	if rec.Name == "" {
		return Record{}, errors.Newf("alias row without a name: %s", string(raw))
	}
	return rec, nil
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, text(e))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true
		}
	}
	return false
}

// Result is the acknowledgement of a mutating call or the reload signal.
type Result struct {
	Result      string         `json:"result,omitempty"`
	Status      string         `json:"status,omitempty"`
	UUID        string         `json:"uuid,omitempty"`
	Validations map[string]any `json:"validations,omitempty"`
}

// OK reports whether the appliance acknowledged success.
func (r *Result) OK() bool {
	if r == nil {
		return false
	}
	token := r.Result
	if token == "" {
		token = r.Status
	}
	return successTokens[strings.ToLower(strings.TrimSpace(token))]
}

// Reason describes a non-successful result for summaries and logs.
func (r *Result) Reason() string {
	if r == nil {
		return "no result"
	}
	token := r.Result
	if token == "" {
		token = r.Status
	}
	if token == "" {
		token = "empty"
	}
	msg := fmt.Sprintf("result %q", token)
	if len(r.Validations) == 0 {
		return msg
	}
	keys := make([]string, 0, len(r.Validations))
	for k := range r.Validations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, text(r.Validations[k])))
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}
