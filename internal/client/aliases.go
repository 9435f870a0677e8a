package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"grimm.is/aliasync/internal/alias"
)

const aliasAPI = "/api/firewall/alias"

type searchRequest struct {
	Current      int    `json:"current"`
	RowCount     int    `json:"rowCount"`
	SearchPhrase string `json:"searchPhrase"`
}

type searchResponse struct {
	Rows     []json.RawMessage `json:"rows"`
	RowCount int               `json:"rowCount"`
	Total    int               `json:"total"`
}

type itemRequest struct {
	Alias alias.Payload `json:"alias"`
}

// Search lists every alias on the appliance, in the appliance's order.
func (c *HTTPClient) Search(ctx context.Context) ([]alias.Record, error) {
	var resp searchResponse
	req := searchRequest{Current: 1, RowCount: -1}
	if _, err := c.doRequest(ctx, http.MethodPost, aliasAPI+"/searchItem", req, &resp); err != nil {
		return nil, fmt.Errorf("search aliases: %w", err)
	}

	records := make([]alias.Record, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		rec, err := alias.ParseRecord(row)
		if err != nil {
			return nil, fmt.Errorf("search aliases: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Get fetches one alias by name. It returns alias.ErrNotFound only when the
// appliance answered and the name is unknown.
func (c *HTTPClient) Get(ctx context.Context, name string) (*alias.Record, error) {
	uuid, err := c.lookupUUID(ctx, name)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Alias map[string]any `json:"alias"`
	}
	if _, err := c.doRequest(ctx, http.MethodGet, aliasAPI+"/getItem/"+url.PathEscape(uuid), nil, &resp); err != nil {
		return nil, fmt.Errorf("get alias %q: %w", name, err)
	}
	if len(resp.Alias) == 0 {
		return nil, fmt.Errorf("get alias %q: empty item for uuid %s", name, uuid)
	}

	row := flattenItem(resp.Alias)
	row["uuid"] = uuid
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("get alias %q: %w", name, err)
	}
	rec, err := alias.ParseRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("get alias %q: %w", name, err)
	}
	return &rec, nil
}

// Create adds a new alias.
func (c *HTTPClient) Create(ctx context.Context, spec alias.Spec) (*alias.Result, error) {
	var res alias.Result
	if _, err := c.doRequest(ctx, http.MethodPost, aliasAPI+"/addItem", itemRequest{Alias: spec.Payload()}, &res); err != nil {
		return nil, fmt.Errorf("create alias %q: %w", spec.Name, err)
	}
	return &res, nil
}

// Update submits the managed fields of spec to the existing alias called name.
// Fields not in the payload are kept by the appliance.
func (c *HTTPClient) Update(ctx context.Context, name string, spec alias.Spec) (*alias.Result, error) {
	uuid, err := c.lookupUUID(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("update alias %q: %w", name, err)
	}

	var res alias.Result
	path := aliasAPI + "/setItem/" + url.PathEscape(uuid)
	if _, err := c.doRequest(ctx, http.MethodPost, path, itemRequest{Alias: spec.Payload()}, &res); err != nil {
		return nil, fmt.Errorf("update alias %q: %w", name, err)
	}
	return &res, nil
}

// Reload asks the appliance to apply pending alias configuration.
func (c *HTTPClient) Reload(ctx context.Context) (*alias.Result, error) {
	var res alias.Result
	if _, err := c.doRequest(ctx, http.MethodPost, aliasAPI+"/reconfigure", struct{}{}, &res); err != nil {
		return nil, fmt.Errorf("reconfigure: %w", err)
	}
	return &res, nil
}

// lookupUUID resolves a name. The appliance answers {"uuid": "..."} when the
// alias exists and an empty array or object when it does not.
func (c *HTTPClient) lookupUUID(ctx context.Context, name string) (string, error) {
	var raw json.RawMessage
	if _, err := c.doRequest(ctx, http.MethodGet, aliasAPI+"/getAliasUUID/"+url.PathEscape(name), nil, &raw); err != nil {
		return "", fmt.Errorf("lookup alias %q: %w", name, err)
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "[]" || trimmed == "{}" || trimmed == "null" {
		return "", alias.ErrNotFound
	}

	var resp struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("lookup alias %q: unexpected response %s: %w", name, trimmed, err)
	}
	if resp.UUID == "" {
		return "", alias.ErrNotFound
	}
	return resp.UUID, nil
}

// flattenItem turns getItem option maps ({"port": {"value": "Port(s)", "selected": 1}, ...})
// into the plain values search rows use. Multi-select fields become comma-joined keys.
func flattenItem(item map[string]any) map[string]any {
	out := make(map[string]any, len(item))
	for k, v := range item {
		out[k] = flattenValue(v)
	}
	return out
}

func flattenValue(v any) any {
	options, ok := v.(map[string]any)
	if !ok {
		return v
	}

	var selected []string
	isOptionMap := len(options) > 0
	for key, opt := range options {
		o, ok := opt.(map[string]any)
		if !ok {
			isOptionMap = false
			break
		}
		if _, has := o["selected"]; !has {
			isOptionMap = false
			break
		}
		if sel, _ := o["selected"].(float64); sel != 0 {
			selected = append(selected, key)
		} else if sel, _ := o["selected"].(bool); sel {
			selected = append(selected, key)
		}
	}
	if !isOptionMap {
		return v
	}
	sort.Strings(selected)
	return strings.Join(selected, ",")
}
