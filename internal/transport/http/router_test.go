package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"occupancy/internal/archive"
	"occupancy/internal/blob"
	"occupancy/internal/core"
	"occupancy/internal/infra/blob/memory"
	"occupancy/internal/platform/metrics"
	"occupancy/internal/platform/tracing"
	"occupancy/pkg/domain"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server *httptest.Server
	svc    *core.Service
	blobs  *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := metrics.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	require.NoError(t, err)
	svc := core.NewInMemoryService(core.WithMetricsRecorder(rec))
	blobs := memory.New()
	router := NewRouter(svc, Options{
		Metrics:    metrics.Handler(reg),
		Exporter:   archive.NewExporter(svc.Coordinator(), blobs),
		Propagator: tracing.Propagator(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &fixture{server: srv, svc: svc, blobs: blobs}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.server.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (f *fixture) result(t *testing.T, method, path string, body any, wantStatus int) core.CommandResult {
	t.Helper()
	resp, raw := f.do(t, method, path, body)
	require.Equal(t, wantStatus, resp.StatusCode, string(raw))
	var res core.CommandResult
	require.NoError(t, json.Unmarshal(raw, &res))
	return res
}

func (f *fixture) bootstrap(t *testing.T) []core.BlockNode {
	t.Helper()
	res := f.result(t, http.MethodPost, "/bootstrap", nil, http.StatusCreated)
	require.True(t, res.Success)
	resp, raw := f.do(t, http.MethodGet, "/hierarchy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tree []core.BlockNode
	require.NoError(t, json.Unmarshal(raw, &tree))
	require.NotEmpty(t, tree)
	return tree
}

func TestBootstrapAndHierarchy(t *testing.T) {
	f := newFixture(t)
	tree := f.bootstrap(t)

	again := f.result(t, http.MethodPost, "/bootstrap", nil, http.StatusConflict)
	assert.False(t, again.Success)
	assert.Equal(t, domain.KindAlreadyInitialized, again.Kind)

	block := tree[0]
	resp, raw := f.do(t, http.MethodGet, "/blocks/"+block.ID+"/entries", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []domain.Entry
	require.NoError(t, json.Unmarshal(raw, &entries))
	require.Len(t, entries, len(block.Entries))

	resp, raw = f.do(t, http.MethodGet, "/entries/"+entries[0].ID+"/units", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var units []domain.Unit
	require.NoError(t, json.Unmarshal(raw, &units))
	assert.Len(t, units, len(block.Entries[0].Units))
}

func TestResolveLinkAndConflicts(t *testing.T) {
	f := newFixture(t)
	tree := f.bootstrap(t)
	unitID := tree[0].Entries[0].Units[0].ID

	owner := f.result(t, http.MethodPost, "/persons/resolve-and-link", map[string]any{
		"person":   map[string]string{"full_name": "Ana Souza", "primary_id": "123.456.789"},
		"unit_id":  unitID,
		"category": "owner",
	}, http.StatusCreated)
	require.True(t, owner.Success)
	require.NotEmpty(t, owner.PersonID)
	require.NotEmpty(t, owner.LinkID)

	second := f.result(t, http.MethodPost, "/persons/resolve-and-link", map[string]any{
		"person":   map[string]string{"full_name": "Bruno Lima", "primary_id": "987654321"},
		"unit_id":  unitID,
		"category": "OwnerResident",
	}, http.StatusConflict)
	assert.Equal(t, domain.KindConflict, second.Kind)
	assert.Equal(t, domain.InvariantOwner, second.Invariant)

	resp, raw := f.do(t, http.MethodGet, "/units/"+unitID+"/links", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var links []domain.Link
	require.NoError(t, json.Unmarshal(raw, &links))
	require.Len(t, links, 1)
	assert.Equal(t, owner.PersonID, links[0].PersonID)

	resp, raw = f.do(t, http.MethodGet, "/persons?q=123456", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var matches []core.PersonMatch
	require.NoError(t, json.Unmarshal(raw, &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "Ana Souza", matches[0].Person.FullName)

	resp, raw = f.do(t, http.MethodGet, "/persons/"+owner.PersonID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var person domain.Person
	require.NoError(t, json.Unmarshal(raw, &person))
	assert.Equal(t, "123456789", person.PrimaryID)
}

func TestLinkLifecycle(t *testing.T) {
	f := newFixture(t)
	tree := f.bootstrap(t)
	units := tree[0].Entries[0].Units
	require.GreaterOrEqual(t, len(units), 2)

	created := f.result(t, http.MethodPost, "/persons/resolve-and-link", map[string]any{
		"person":   map[string]string{"full_name": "Carla Dias", "primary_id": "11122233344"},
		"unit_id":  units[0].ID,
		"category": "tenant",
	}, http.StatusCreated)

	updated := f.result(t, http.MethodPatch, "/links/"+created.LinkID, map[string]string{"category": "resident"}, http.StatusOK)
	assert.True(t, updated.Success)

	moved := f.result(t, http.MethodPost, "/links/"+created.LinkID+"/transfer", map[string]string{
		"person_id":   created.PersonID,
		"new_unit_id": units[1].ID,
		"category":    "tenant",
	}, http.StatusCreated)
	require.True(t, moved.Success, moved.Message)
	require.NotEmpty(t, moved.LinkID)

	resp, raw := f.do(t, http.MethodGet, "/persons/"+created.PersonID+"/links", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var links []domain.Link
	require.NoError(t, json.Unmarshal(raw, &links))
	require.Len(t, links, 2)

	f.result(t, http.MethodPost, "/links/"+moved.LinkID+"/deactivate", nil, http.StatusOK)
	purged := f.result(t, http.MethodPost, "/persons/"+created.PersonID+"/purge-inactive", nil, http.StatusOK)
	assert.Equal(t, 2, purged.Count)

	missing := f.result(t, http.MethodDelete, "/links/"+created.LinkID, nil, http.StatusNotFound)
	assert.Equal(t, domain.KindNotFound, missing.Kind)

	vehicle := f.result(t, http.MethodPost, "/persons/"+created.PersonID+"/vehicles", map[string]string{"plate": "ABC1D23", "model": "Fiat Uno"}, http.StatusCreated)
	assert.NotEmpty(t, vehicle.VehicleID)

	renamed := f.result(t, http.MethodPatch, "/persons/"+created.PersonID, map[string]string{"full_name": "Carla Dias Souza"}, http.StatusOK)
	assert.True(t, renamed.Success)

	f.result(t, http.MethodDelete, "/persons/"+created.PersonID, nil, http.StatusOK)
	f.result(t, http.MethodGet, "/persons/"+created.PersonID, nil, http.StatusNotFound)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)
	tree := f.bootstrap(t)
	unitID := tree[0].Entries[0].Units[0].ID

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		field  string
	}{
		{"unknown category", http.MethodPost, "/links", map[string]string{"person_id": "p", "unit_id": unitID, "category": "landlord"}, "category"},
		{"malformed body", http.MethodPost, "/links", `{"person_id":`, "body"},
		{"unknown field", http.MethodPost, "/links", map[string]string{"person": "p"}, "body"},
		{"negative limit", http.MethodGet, "/persons?q=a&limit=-1", nil, "limit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.result(t, tc.method, tc.path, tc.body, http.StatusBadRequest)
			assert.False(t, res.Success)
			assert.Equal(t, domain.KindValidation, res.Kind)
			assert.Equal(t, tc.field, res.Field)
		})
	}

	resp, raw := f.do(t, http.MethodGet, "/persons?q=", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestHealthMetricsAndSnapshots(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(t)

	resp, raw := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))

	resp, raw = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "occupancy_operations_total")

	resp, raw = f.do(t, http.MethodPost, "/snapshots", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var snap snapshotResponse
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.True(t, strings.HasPrefix(snap.Key, archive.DefaultPrefix))

	stored, err := f.blobs.List(context.Background(), archive.DefaultPrefix)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, snap.Key, stored[0].Key)
}

type failingExporter struct{}

func (failingExporter) Export(context.Context) (blob.Info, archive.Snapshot, error) {
	return blob.Info{}, archive.Snapshot{}, errors.New("bucket unavailable")
}

func TestSnapshotFailureAndOptionalRoutes(t *testing.T) {
	svc := core.NewInMemoryService()
	srv := httptest.NewServer(NewRouter(svc, Options{Exporter: failingExporter{}}))
	t.Cleanup(srv.Close)

	resp, err := srv.Client().Post(srv.URL+"/snapshots", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	bare := httptest.NewServer(NewRouter(svc, Options{}))
	t.Cleanup(bare.Close)
	resp, err = bare.Client().Post(bare.URL+"/snapshots", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(domain.KindValidation))
	assert.Equal(t, http.StatusConflict, StatusFor(domain.KindConflict))
	assert.Equal(t, http.StatusConflict, StatusFor(domain.KindAlreadyInitialized))
	assert.Equal(t, http.StatusNotFound, StatusFor(domain.KindNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(domain.KindPersistence))
}

func TestWriteErrorUsesCommandResultMapping(t *testing.T) {
	h := &Handler{logger: core.NopLogger{}}
	cases := []struct {
		err       error
		status    int
		kind      domain.ErrorKind
		field     string
		invariant string
	}{
		{domain.ValidationError{Field: "limit", Message: "limit must be positive"}, http.StatusBadRequest, domain.KindValidation, "limit", ""},
		{domain.ConflictError{Invariant: domain.InvariantOwner, Message: "unit already has an owner"}, http.StatusConflict, domain.KindConflict, "", domain.InvariantOwner},
		{errors.New("socket closed"), http.StatusInternalServerError, domain.KindPersistence, "", ""},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.writeError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())

		var res core.CommandResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
		assert.Equal(t, core.ResultFromError(tc.err), res)
		assert.Equal(t, tc.kind, res.Kind)
		assert.Equal(t, tc.field, res.Field)
		assert.Equal(t, tc.invariant, res.Invariant)
	}
}

func TestRequestsCarryNoDeadline(t *testing.T) {
	mux, ok := NewRouter(core.NewInMemoryService(), Options{}).(chi.Router)
	require.True(t, ok)
	mux.Get("/deadline", func(w http.ResponseWriter, r *http.Request) {
		_, has := r.Context().Deadline()
		writeJSON(w, http.StatusOK, map[string]bool{"deadline": has})
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deadline", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body["deadline"])
}
