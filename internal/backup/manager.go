// Package backup snapshots the appliance's alias store before any mutation and
// keeps a bounded history of those snapshots.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"grimm.is/aliasync/internal/alias"
	"grimm.is/aliasync/internal/clock"
	"grimm.is/aliasync/internal/errors"
	"grimm.is/aliasync/internal/logging"
)

// DefaultRetain is the number of artifacts kept when no retention is configured.
const DefaultRetain = 20

const (
	namePrefix = "aliases-"
	nameSuffix = ".json"
	timeLayout = "20060102-150405"

	// maxSameSecond bounds the -N suffixes tried when runs share a second.
	maxSameSecond = 100
)

// Source lists the full remote alias inventory.
type Source interface {
	Search(ctx context.Context) ([]alias.Record, error)
}

// Artifact is one immutable snapshot of the remote alias store.
type Artifact struct {
	Name       string         `json:"name"`
	CapturedAt time.Time      `json:"captured_at"`
	RunID      string         `json:"run_id,omitempty"`
	Appliance  string         `json:"appliance,omitempty"`
	Count      int            `json:"count"`
	Size       int64          `json:"size"`
	Data       []byte         `json:"-"`
	Records    []alias.Record `json:"-"`
}

// envelope is the on-disk format. Aliases holds each row verbatim.
type envelope struct {
	CapturedAt time.Time         `json:"captured_at"`
	RunID      string            `json:"run_id,omitempty"`
	Appliance  string            `json:"appliance,omitempty"`
	Count      int               `json:"count"`
	Aliases    []json.RawMessage `json:"aliases"`
}

// Options tune a Manager.
type Options struct {
	Retain    int
	Appliance string
	Clock     clock.Clock
	Logger    *logging.Logger
}

// Manager creates snapshots and enforces retention. It is the only component
// that deletes artifacts.
type Manager struct {
	source    Source
	store     Store
	retain    int
	appliance string
	clock     clock.Clock
	logger    *logging.Logger
}

// NewManager creates a backup manager.
func NewManager(source Source, store Store, opts Options) *Manager {
	if opts.Retain <= 0 {
		opts.Retain = DefaultRetain
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("backup")
	}
	return &Manager{
		source:    source,
		store:     store,
		retain:    opts.Retain,
		appliance: opts.Appliance,
		clock:     clock.Or(opts.Clock),
		logger:    opts.Logger,
	}
}

// Retain returns the retention bound.
func (m *Manager) Retain() int { return m.retain }

// Snapshot fetches the full alias list and writes it as a new artifact.
// Any failure means no artifact exists and the caller must not mutate.
func (m *Manager) Snapshot(ctx context.Context, runID string) (*Artifact, error) {
	records, err := m.source.Search(ctx)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrap(err, "fetch aliases for backup"),
			"check the appliance URL and API credentials")
	}

	captured := m.clock.Now().UTC().Truncate(time.Second)
	env := envelope{
		CapturedAt: captured,
		RunID:      runID,
		Appliance:  m.appliance,
		Count:      len(records),
		Aliases:    make([]json.RawMessage, 0, len(records)),
	}
	for _, rec := range records {
		raw := rec.Raw
		if len(raw) == 0 {
			if raw, err = json.Marshal(rec); err != nil {
				return nil, errors.Wrapf(err, "serialize alias %q", rec.Name)
			}
		}
		env.Aliases = append(env.Aliases, raw)
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "serialize backup")
	}

	name, err := m.write(captured, data)
	if err != nil {
		return nil, errors.WithHint(err, "check that the backup directory exists and is writable")
	}

	art := &Artifact{
		Name:       name,
		CapturedAt: captured,
		RunID:      runID,
		Appliance:  m.appliance,
		Count:      len(records),
		Size:       int64(len(data)),
		Data:       data,
		Records:    records,
	}
	m.logger.Info("backup written", "artifact", name, "aliases", len(records), "bytes", len(data))

	if removed, err := m.prune(); err != nil {
		m.logger.Warn("backup retention incomplete", "error", err)
	} else if removed > 0 {
		m.logger.Info("old backups pruned", "removed", removed, "retain", m.retain)
	}

	return art, nil
}

// write stores data under the first free name for the capture second.
func (m *Manager) write(captured time.Time, data []byte) (string, error) {
	base := namePrefix + captured.Format(timeLayout)
	for seq := 1; seq <= maxSameSecond; seq++ {
		name := base + nameSuffix
		if seq > 1 {
			name = fmt.Sprintf("%s-%d%s", base, seq, nameSuffix)
		}
		err := m.store.Write(name, data)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, ErrExists) {
			return "", errors.Wrapf(err, "write backup %s", name)
		}
	}
	return "", errors.Newf("no free backup name for %s", base)
}

// Info describes a stored artifact without its payload.
type Info struct {
	Name       string
	CapturedAt time.Time
	Seq        int
	Size       int64
}

// List returns the artifacts this manager owns, newest first. Files that do
// not follow the naming scheme are ignored and never pruned.
func (m *Manager) List() ([]Info, error) {
	entries, err := m.store.List()
	if err != nil {
		return nil, errors.Wrap(err, "list backups")
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		ts, seq, ok := parseName(e.Name)
		if !ok {
			continue
		}
		infos = append(infos, Info{Name: e.Name, CapturedAt: ts, Seq: seq, Size: e.Size})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CapturedAt.Equal(infos[j].CapturedAt) {
			return infos[i].CapturedAt.After(infos[j].CapturedAt)
		}
		return infos[i].Seq > infos[j].Seq
	})
	return infos, nil
}

// prune deletes everything beyond the retain newest artifacts.
func (m *Manager) prune() (int, error) {
	infos, err := m.List()
	if err != nil {
		return 0, err
	}
	if len(infos) <= m.retain {
		return 0, nil
	}

	removed := 0
	var firstErr error
	for _, info := range infos[m.retain:] {
		if err := m.store.Delete(info.Name); err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "delete %s", info.Name)
			}
			continue
		}
		removed++
	}
	return removed, firstErr
}

// Load reads and decodes an artifact by name.
func (m *Manager) Load(name string) (*Artifact, error) {
	data, err := m.store.Read(name)
	if err != nil {
		return nil, errors.Wrapf(err, "read backup %s", name)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrapf(err, "decode backup %s", name)
	}

	records := make([]alias.Record, 0, len(env.Aliases))
	for _, raw := range env.Aliases {
		rec, err := alias.ParseRecord(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "decode backup %s", name)
		}
		records = append(records, rec)
	}

	return &Artifact{
		Name:       name,
		CapturedAt: env.CapturedAt,
		RunID:      env.RunID,
		Appliance:  env.Appliance,
		Count:      env.Count,
		Size:       int64(len(data)),
		Data:       data,
		Records:    records,
	}, nil
}

// Latest loads the newest artifact.
func (m *Manager) Latest() (*Artifact, error) {
	infos, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, errors.New("no backups found")
	}
	return m.Load(infos[0].Name)
}

// parseName extracts the capture time and same-second sequence from
// "aliases-20261018-120000.json" or "aliases-20261018-120000-2.json".
func parseName(name string) (time.Time, int, bool) {
	if !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, nameSuffix) {
		return time.Time{}, 0, false
	}
	stem := strings.TrimSuffix(strings.TrimPrefix(name, namePrefix), nameSuffix)
	if len(stem) < len(timeLayout) {
		return time.Time{}, 0, false
	}

	ts, err := time.Parse(timeLayout, stem[:len(timeLayout)])
	if err != nil {
		return time.Time{}, 0, false
	}

	seq := 1
	if rest := stem[len(timeLayout):]; rest != "" {
		if !strings.HasPrefix(rest, "-") {
			return time.Time{}, 0, false
		}
		n, err := strconv.Atoi(rest[1:])
		if err != nil || n < 2 {
			return time.Time{}, 0, false
		}
		seq = n
	}
	return ts, seq, true
}
