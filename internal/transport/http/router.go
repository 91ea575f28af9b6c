// Package httptransport exposes the occupancy command interface over HTTP/JSON.
// Handlers decode requests, call the service and map result kinds to status
// codes; no business rule lives here.
package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"occupancy/internal/archive"
	"occupancy/internal/blob"
	"occupancy/internal/core"
	"occupancy/pkg/domain"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/propagation"
)

// Service is the command interface the handlers drive.
type Service interface {
	ResolveAndLinkPerson(ctx context.Context, candidate core.PersonCandidate, unitID string, category domain.Category) core.CommandResult
	CreateLink(ctx context.Context, personID, unitID string, category domain.Category) core.CommandResult
	TransferPerson(ctx context.Context, personID, oldLinkID, newUnitID string, category domain.Category) core.CommandResult
	UpdateLinkCategory(ctx context.Context, linkID string, category domain.Category) core.CommandResult
	DeactivateLink(ctx context.Context, linkID string) core.CommandResult
	DeleteLink(ctx context.Context, linkID string) core.CommandResult
	PurgeInactiveLinks(ctx context.Context, personID string) core.CommandResult
	UpdatePerson(ctx context.Context, personID string, update core.PersonUpdate) core.CommandResult
	DeletePerson(ctx context.Context, personID string) core.CommandResult
	AttachVehicle(ctx context.Context, personID, plate, model string) core.CommandResult
	Bootstrap(ctx context.Context) core.CommandResult

	ListActiveLinksForUnit(ctx context.Context, unitID string) ([]domain.Link, error)
	ListLinksForPerson(ctx context.Context, personID string) ([]domain.Link, error)
	Hierarchy(ctx context.Context) ([]core.BlockNode, error)
	EntriesForBlock(ctx context.Context, blockID string) ([]domain.Entry, error)
	UnitsForEntry(ctx context.Context, entryID string) ([]domain.Unit, error)
	GetPerson(ctx context.Context, personID string) (domain.Person, error)
	SearchPersons(ctx context.Context, query string, limit int) ([]core.PersonMatch, error)
}

// Exporter writes archive snapshots.
type Exporter interface {
	Export(ctx context.Context) (blob.Info, archive.Snapshot, error)
}

// Options configures the router. Zero values disable the optional routes.
type Options struct {
	Logger      core.Logger
	Metrics     http.Handler
	MetricsPath string
	Exporter    Exporter
	Propagator  propagation.TextMapPropagator
}

// Handler serves the occupancy API.
type Handler struct {
	svc      Service
	exporter Exporter
	logger   core.Logger
}

// NewRouter wires every route on a chi router.
func NewRouter(svc Service, opts Options) http.Handler {
	h := &Handler{svc: svc, exporter: opts.Exporter, logger: opts.Logger}
	if h.logger == nil {
		h.logger = core.NopLogger{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if opts.Propagator != nil {
		r.Use(extractTrace(opts.Propagator))
	}
	r.Use(h.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, opts.Metrics)
	}

	r.Post("/bootstrap", h.handleBootstrap)
	r.Get("/hierarchy", h.handleHierarchy)
	r.Get("/blocks/{blockID}/entries", h.handleEntriesForBlock)
	r.Get("/entries/{entryID}/units", h.handleUnitsForEntry)
	r.Get("/units/{unitID}/links", h.handleActiveLinksForUnit)

	r.Route("/links", func(r chi.Router) {
		r.Post("/", h.handleCreateLink)
		r.Patch("/{linkID}", h.handleUpdateLinkCategory)
		r.Delete("/{linkID}", h.handleDeleteLink)
		r.Post("/{linkID}/transfer", h.handleTransfer)
		r.Post("/{linkID}/deactivate", h.handleDeactivate)
	})

	r.Route("/persons", func(r chi.Router) {
		r.Get("/", h.handleSearchPersons)
		r.Post("/resolve-and-link", h.handleResolveAndLink)
		r.Get("/{personID}", h.handleGetPerson)
		r.Patch("/{personID}", h.handleUpdatePerson)
		r.Delete("/{personID}", h.handleDeletePerson)
		r.Get("/{personID}/links", h.handleLinksForPerson)
		r.Post("/{personID}/purge-inactive", h.handlePurge)
		r.Post("/{personID}/vehicles", h.handleAttachVehicle)
	})

	if h.exporter != nil {
		r.Post("/snapshots", h.handleSnapshot)
	}
	return r
}

func extractTrace(p propagation.TextMapPropagator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := p.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict, domain.KindAlreadyInitialized:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeResult(w http.ResponseWriter, successStatus int, res core.CommandResult) {
	if res.Success {
		writeJSON(w, successStatus, res)
		return
	}
	writeJSON(w, StatusFor(res.Kind), res)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	res := core.ResultFromError(err)
	if res.Kind == domain.KindPersistence {
		h.logger.Error("query failed", "error", err)
	}
	writeJSON(w, StatusFor(res.Kind), res)
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ValidationError{Field: "body", Message: "invalid request body: " + err.Error()}
	}
	return nil
}
