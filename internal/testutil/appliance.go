package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeAppliance is an in-memory implementation of the appliance alias API.
// Rows are kept in insertion order, which is the order searchItem returns.
type FakeAppliance struct {
	Server *httptest.Server
	Key    string
	Secret string

	mu     sync.Mutex
	rows   []map[string]any
	calls  []string
	nextID int

	// Failure injection. Keys are alias names.
	FailCreate map[string]string // result token returned by addItem
	FailUpdate map[string]string // result token returned by setItem
	FailLookup map[string]int    // HTTP status returned by getAliasUUID
	FailSearch int               // HTTP status returned by searchItem
	FailReload bool

	reloads int
}

// NewFakeAppliance starts a fake appliance that is closed with the test.
func NewFakeAppliance(t testing.TB) *FakeAppliance {
	t.Helper()
	f := &FakeAppliance{
		Key:        "key",
		Secret:     "secret",
		FailCreate: map[string]string{},
		FailUpdate: map[string]string{},
		FailLookup: map[string]int{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake.
func (f *FakeAppliance) URL() string { return f.Server.URL }

// Seed appends rows. A uuid is assigned when missing.
func (f *FakeAppliance) Seed(rows ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		row := copyRow(r)
		if _, ok := row["uuid"]; !ok {
			row["uuid"] = f.newUUID()
		}
		f.rows = append(f.rows, row)
	}
}

// Rows returns a copy of the current alias rows.
func (f *FakeAppliance) Rows() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.rows))
	for i, r := range f.rows {
		out[i] = copyRow(r)
	}
	return out
}

// Row returns a copy of the row called name.
func (f *FakeAppliance) Row(name string) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.indexByName(name); i >= 0 {
		return copyRow(f.rows[i]), true
	}
	return nil, false
}

// Calls returns "METHOD /path" for every request served.
func (f *FakeAppliance) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Mutations counts addItem and setItem calls.
func (f *FakeAppliance) Mutations() int {
	n := 0
	for _, c := range f.Calls() {
		if strings.Contains(c, "/addItem") || strings.Contains(c, "/setItem/") {
			n++
		}
	}
	return n
}

// Reloads counts successful reconfigure calls.
func (f *FakeAppliance) Reloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads
}

func (f *FakeAppliance) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	if f.Key != "" {
		key, secret, ok := r.BasicAuth()
		if !ok || key != f.Key || secret != f.Secret {
			http.Error(w, `{"status":401,"message":"Authentication Failed"}`, http.StatusUnauthorized)
			return
		}
	}

	const prefix = "/api/firewall/alias/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	action, arg, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, prefix), "/")

	switch {
	case action == "searchItem":
		if f.FailSearch != 0 {
			http.Error(w, "search failed", f.FailSearch)
			return
		}
		writeJSON(w, map[string]any{"rows": f.rows, "rowCount": len(f.rows), "total": len(f.rows), "current": 1})

	case action == "getAliasUUID" && r.Method == http.MethodGet:
		if status := f.FailLookup[arg]; status != 0 {
			http.Error(w, "lookup failed", status)
			return
		}
		if i := f.indexByName(arg); i >= 0 {
			writeJSON(w, map[string]any{"uuid": f.rows[i]["uuid"]})
			return
		}
		writeJSON(w, []any{})

	case action == "getItem" && r.Method == http.MethodGet:
		i := f.indexByUUID(arg)
		if i < 0 {
			writeJSON(w, []any{})
			return
		}
		writeJSON(w, map[string]any{"alias": itemView(f.rows[i])})

	case action == "addItem" && r.Method == http.MethodPost:
		fields, err := decodeItem(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		name, _ := fields["name"].(string)
		if tok, ok := f.FailCreate[name]; ok {
			writeJSON(w, map[string]any{"result": tok, "validations": map[string]any{"alias.name": "rejected by test"}})
			return
		}
		if name == "" || f.indexByName(name) >= 0 {
			writeJSON(w, map[string]any{"result": "failed", "validations": map[string]any{"alias.name": "An alias with this name already exists."}})
			return
		}
		row := map[string]any{"uuid": f.newUUID(), "categories": "", "color": "", "counters": "0"}
		for k, v := range fields {
			row[k] = v
		}
		f.rows = append(f.rows, row)
		writeJSON(w, map[string]any{"result": "saved", "uuid": row["uuid"]})

	case action == "setItem" && r.Method == http.MethodPost:
		i := f.indexByUUID(arg)
		if i < 0 {
			writeJSON(w, map[string]any{"result": "failed"})
			return
		}
		fields, err := decodeItem(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if tok, ok := f.FailUpdate[fmt.Sprint(f.rows[i]["name"])]; ok {
			writeJSON(w, map[string]any{"result": tok})
			return
		}
		for k, v := range fields {
			f.rows[i][k] = v
		}
		writeJSON(w, map[string]any{"result": "saved"})

	case action == "reconfigure" && r.Method == http.MethodPost:
		if f.FailReload {
			http.Error(w, "reconfigure failed", http.StatusInternalServerError)
			return
		}
		f.reloads++
		writeJSON(w, map[string]any{"status": "ok"})

	default:
		http.NotFound(w, r)
	}
}

func (f *FakeAppliance) newUUID() string {
	f.nextID++
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", f.nextID)
}

func (f *FakeAppliance) indexByName(name string) int {
	for i, r := range f.rows {
		if r["name"] == name {
			return i
		}
	}
	return -1
}

func (f *FakeAppliance) indexByUUID(uuid string) int {
	for i, r := range f.rows {
		if r["uuid"] == uuid {
			return i
		}
	}
	return -1
}

// itemView renders a row the way getItem does: select fields become option maps.
func itemView(row map[string]any) map[string]any {
	out := copyRow(row)
	delete(out, "uuid")
	typ := fmt.Sprint(row["type"])
	options := map[string]any{}
	for _, t := range []string{"host", "network", "port", "url"} {
		sel := 0
		if t == typ {
			sel = 1
		}
		options[t] = map[string]any{"value": t, "selected": sel}
	}
	out["type"] = options
	out["content"] = strings.ReplaceAll(fmt.Sprint(row["content"]), ",", "\n")
	return out
}

func decodeItem(r *http.Request) (map[string]any, error) {
	var body struct {
		Alias map[string]any `json:"alias"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Alias == nil {
		return nil, fmt.Errorf("missing alias object")
	}
	return body.Alias, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func copyRow(r map[string]any) map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
