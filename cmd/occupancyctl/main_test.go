package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"occupancy/internal/archive"
	"occupancy/internal/config"
	"occupancy/internal/core"
	"occupancy/pkg/domain"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	vars map[string]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{vars: map[string]string{
		"OCCUPANCY_STORAGE_DRIVER": "sqlite",
		"OCCUPANCY_SQLITE_PATH":    filepath.Join(dir, "occupancy.db"),
		"OCCUPANCY_BLOB_DRIVER":    "fs",
		"OCCUPANCY_BLOB_FS_ROOT":   filepath.Join(dir, "blobs"),
		"OCCUPANCY_LOG_LEVEL":      "debug",
	}}
}

func (h *harness) cli(out io.Writer) *cli {
	c := newCLI(out)
	c.logOut = io.Discard
	c.loadConfig = func([]string) (*config.Config, error) { return config.FromMap(h.vars) }
	return c
}

func (h *harness) run(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	err := execute(context.Background(), h.cli(&out), args)
	return out.Bytes(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) []byte {
	t.Helper()
	out, err := h.run(t, args...)
	require.NoError(t, err, string(out))
	return out
}

func decodeResult(t *testing.T, raw []byte) core.CommandResult {
	t.Helper()
	var res core.CommandResult
	require.NoError(t, json.Unmarshal(raw, &res), string(raw))
	return res
}

func TestCommandsShareStateAcrossRuns(t *testing.T) {
	h := newHarness(t)
	require.True(t, decodeResult(t, h.mustRun(t, "bootstrap")).Success)

	out, err := h.run(t, "bootstrap")
	require.Error(t, err)
	assert.Equal(t, domain.KindAlreadyInitialized, decodeResult(t, out).Kind)

	var tree []core.BlockNode
	require.NoError(t, json.Unmarshal(h.mustRun(t, "hierarchy"), &tree))
	require.NotEmpty(t, tree)
	unitID := tree[0].Entries[0].Units[0].ID

	var units []domain.Unit
	require.NoError(t, json.Unmarshal(h.mustRun(t, "units", tree[0].Entries[0].ID), &units))
	assert.Len(t, units, len(tree[0].Entries[0].Units))

	res := decodeResult(t, h.mustRun(t, "person", "resolve",
		"--name", "Ana Souza", "--primary-id", "123.456.789-00",
		"--unit", unitID, "--category", "owner-resident"))
	require.True(t, res.Success)

	var links []domain.Link
	require.NoError(t, json.Unmarshal(h.mustRun(t, "link", "list", "--unit", unitID), &links))
	require.Len(t, links, 1)
	assert.Equal(t, domain.CategoryOwnerResident, links[0].Category)

	out, err = h.run(t, "person", "resolve", "--name", "Bruno", "--primary-id", "98765432100", "--unit", unitID, "--category", "owner")
	require.Error(t, err)
	assert.Equal(t, domain.InvariantOwner, decodeResult(t, out).Invariant)

	var matches []core.PersonMatch
	require.NoError(t, json.Unmarshal(h.mustRun(t, "person", "search", "Ana"), &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, res.PersonID, matches[0].Person.ID)

	h.mustRun(t, "person", "update", res.PersonID, "--email", "ana@example.com")
	var person domain.Person
	require.NoError(t, json.Unmarshal(h.mustRun(t, "person", "get", res.PersonID), &person))
	assert.Equal(t, "ana@example.com", person.Email)
	assert.Equal(t, "Ana Souza", person.FullName)

	h.mustRun(t, "link", "deactivate", res.LinkID)
	purged := decodeResult(t, h.mustRun(t, "link", "purge", res.PersonID))
	assert.Equal(t, 1, purged.Count)
}

func TestCommandArgumentErrors(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "link", "create", "--person", "p", "--unit", "u", "--category", "landlord")
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = h.run(t, "link", "list")
	require.Error(t, err)

	_, err = h.run(t, "person", "vehicle", "someone")
	require.Error(t, err, "missing --plate")

	h.vars["OCCUPANCY_STORAGE_DRIVER"] = "oracle"
	_, err = h.run(t, "hierarchy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestSnapshotCommands(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "snapshot", "latest")
	require.ErrorIs(t, err, archive.ErrNoSnapshot)

	h.mustRun(t, "bootstrap")
	var exported struct {
		Key    string         `json:"key"`
		Counts archive.Counts `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(h.mustRun(t, "snapshot", "export"), &exported))
	assert.NotEmpty(t, exported.Key)
	assert.Positive(t, exported.Counts.Units)

	var snap archive.Snapshot
	require.NoError(t, json.Unmarshal(h.mustRun(t, "snapshot", "latest"), &snap))
	assert.Equal(t, exported.Counts, snap.Counts)
	assert.Equal(t, archive.FormatVersion, snap.Version)
}

func TestServeStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	cfg, err := config.FromMap(h.vars)
	require.NoError(t, err)
	a, err := buildApp(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, a, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post("http://"+ln.Addr().String()+"/bootstrap", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get("http://" + ln.Addr().String() + cfg.HTTP.MetricsPath)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `operation="bootstrap"`)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
