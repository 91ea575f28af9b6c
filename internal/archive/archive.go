// Package archive exports point-in-time JSON snapshots of the occupancy state
// to a blob store. Restore and scheduling belong to the backup tooling that
// consumes these snapshots.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"occupancy/internal/blob"
	"occupancy/pkg/domain"
	"strconv"
	"strings"
	"time"
)

// FormatVersion is bumped whenever the snapshot layout changes incompatibly.
const FormatVersion = 1

const (
	// DefaultPrefix is the key prefix snapshots are written under.
	DefaultPrefix = "snapshots/"
	contentType   = "application/json"
	keyTimeFormat = "20060102T150405.000000000Z"
)

// ErrNoSnapshot is returned by Latest when nothing has been exported yet.
var ErrNoSnapshot = errors.New("archive: no snapshot")

// Source is anything that can expose a committed read view, such as the
// coordinator or a persistent store.
type Source interface {
	View(ctx context.Context, fn func(domain.TransactionView) error) error
}

// Counts summarizes the size of a snapshot.
type Counts struct {
	Blocks   int `json:"blocks"`
	Entries  int `json:"entries"`
	Units    int `json:"units"`
	Persons  int `json:"persons"`
	Links    int `json:"links"`
	Vehicles int `json:"vehicles"`
}

// Snapshot is the exported document. Every table appears in the stable order
// of the read view.
type Snapshot struct {
	Version  int              `json:"version"`
	TakenAt  time.Time        `json:"taken_at"`
	Counts   Counts           `json:"counts"`
	Blocks   []domain.Block   `json:"blocks"`
	Entries  []domain.Entry   `json:"entries"`
	Units    []domain.Unit    `json:"units"`
	Persons  []domain.Person  `json:"persons"`
	Links    []domain.Link    `json:"links"`
	Vehicles []domain.Vehicle `json:"vehicles"`
}

// Exporter writes snapshots of source into store.
type Exporter struct {
	source Source
	store  blob.Store
	prefix string
	now    func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(e *Exporter) {
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		e.prefix = prefix
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExporter constructs an exporter.
func NewExporter(source Source, store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		source: source,
		store:  store,
		prefix: DefaultPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Capture reads one consistent view of every table.
func Capture(ctx context.Context, source Source, at time.Time) (Snapshot, error) {
	snap := Snapshot{Version: FormatVersion, TakenAt: at.UTC()}
	err := source.View(ctx, func(v domain.TransactionView) error {
		snap.Blocks = v.ListBlocks()
		snap.Entries = v.ListEntries()
		snap.Units = v.ListUnits()
		snap.Persons = v.ListPersons()
		snap.Links = v.ListLinks()
		snap.Vehicles = v.ListVehicles()
		return nil
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("capture snapshot: %w", err)
	}
	snap.Counts = Counts{
		Blocks:   len(snap.Blocks),
		Entries:  len(snap.Entries),
		Units:    len(snap.Units),
		Persons:  len(snap.Persons),
		Links:    len(snap.Links),
		Vehicles: len(snap.Vehicles),
	}
	return snap, nil
}

// Export captures a snapshot and stores it under a time-ordered key.
func (e *Exporter) Export(ctx context.Context) (blob.Info, Snapshot, error) {
	snap, err := Capture(ctx, e.source, e.now())
	if err != nil {
		return blob.Info{}, Snapshot{}, err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return blob.Info{}, Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := e.prefix + "snapshot-" + snap.TakenAt.Format(keyTimeFormat) + ".json"
	info, err := e.store.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"version": strconv.Itoa(snap.Version),
			"links":   strconv.Itoa(snap.Counts.Links),
			"persons": strconv.Itoa(snap.Counts.Persons),
		},
	})
	if err != nil {
		return blob.Info{}, Snapshot{}, fmt.Errorf("store snapshot: %w", err)
	}
	return info, snap, nil
}

// List returns the stored snapshots, oldest first.
func (e *Exporter) List(ctx context.Context) ([]blob.Info, error) {
	infos, err := e.store.List(ctx, e.prefix)
	if err != nil {
		return nil, err
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") {
			out = append(out, info)
		}
	}
	return out, nil
}

// Latest loads the most recent snapshot.
func (e *Exporter) Latest(ctx context.Context) (Snapshot, blob.Info, error) {
	infos, err := e.List(ctx)
	if err != nil {
		return Snapshot{}, blob.Info{}, err
	}
	if len(infos) == 0 {
		return Snapshot{}, blob.Info{}, ErrNoSnapshot
	}
	info, rc, err := e.store.Get(ctx, infos[len(infos)-1].Key)
	if err != nil {
		return Snapshot{}, blob.Info{}, err
	}
	defer func() { _ = rc.Close() }()
	snap, err := Decode(rc)
	return snap, info, err
}

// Decode parses a snapshot document and checks its version.
func Decode(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != FormatVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return snap, nil
}
