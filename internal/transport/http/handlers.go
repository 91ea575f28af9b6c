package httptransport

import (
	"net/http"
	"occupancy/internal/core"
	"occupancy/pkg/domain"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type linkRequest struct {
	PersonID string `json:"person_id"`
	UnitID   string `json:"unit_id"`
	Category string `json:"category"`
}

type transferRequest struct {
	PersonID  string `json:"person_id"`
	NewUnitID string `json:"new_unit_id"`
	Category  string `json:"category"`
}

type categoryRequest struct {
	Category string `json:"category"`
}

type resolveRequest struct {
	Person   core.PersonCandidate `json:"person"`
	UnitID   string               `json:"unit_id"`
	Category string               `json:"category"`
}

type vehicleRequest struct {
	Plate string `json:"plate"`
	Model string `json:"model"`
}

type snapshotResponse struct {
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	ETag   string `json:"etag,omitempty"`
	Links  int    `json:"links"`
	People int    `json:"persons"`
}

func (h *Handler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusCreated, h.svc.Bootstrap(r.Context()))
}

func (h *Handler) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.Hierarchy(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) handleEntriesForBlock(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.EntriesForBlock(r.Context(), chi.URLParam(r, "blockID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleUnitsForEntry(w http.ResponseWriter, r *http.Request) {
	units, err := h.svc.UnitsForEntry(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, units)
}

func (h *Handler) handleActiveLinksForUnit(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.ListActiveLinksForUnit(r.Context(), chi.URLParam(r, "unitID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func (h *Handler) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, http.StatusCreated, h.svc.CreateLink(r.Context(), req.PersonID, req.UnitID, category))
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		h.writeError(w, err)
		return
	}
	res := h.svc.TransferPerson(r.Context(), req.PersonID, chi.URLParam(r, "linkID"), req.NewUnitID, category)
	writeResult(w, http.StatusCreated, res)
}

func (h *Handler) handleUpdateLinkCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, http.StatusOK, h.svc.UpdateLinkCategory(r.Context(), chi.URLParam(r, "linkID"), category))
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, h.svc.DeactivateLink(r.Context(), chi.URLParam(r, "linkID")))
}

func (h *Handler) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, h.svc.DeleteLink(r.Context(), chi.URLParam(r, "linkID")))
}

func (h *Handler) handleResolveAndLink(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	category, err := domain.ParseCategory(req.Category)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, http.StatusCreated, h.svc.ResolveAndLinkPerson(r.Context(), req.Person, req.UnitID, category))
}

func (h *Handler) handleSearchPersons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, domain.ValidationError{Field: "limit", Message: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	matches, err := h.svc.SearchPersons(r.Context(), q.Get("q"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if matches == nil {
		matches = []core.PersonMatch{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *Handler) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPerson(r.Context(), chi.URLParam(r, "personID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	var req core.PersonUpdate
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, http.StatusOK, h.svc.UpdatePerson(r.Context(), chi.URLParam(r, "personID"), req))
}

func (h *Handler) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, h.svc.DeletePerson(r.Context(), chi.URLParam(r, "personID")))
}

func (h *Handler) handleLinksForPerson(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.ListLinksForPerson(r.Context(), chi.URLParam(r, "personID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, h.svc.PurgeInactiveLinks(r.Context(), chi.URLParam(r, "personID")))
}

func (h *Handler) handleAttachVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, http.StatusCreated, h.svc.AttachVehicle(r.Context(), chi.URLParam(r, "personID"), req.Plate, req.Model))
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	info, snap, err := h.exporter.Export(r.Context())
	if err != nil {
		h.logger.Error("snapshot export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, core.CommandResult{Message: err.Error(), Kind: domain.KindPersistence})
		return
	}
	writeJSON(w, http.StatusCreated, snapshotResponse{
		Key:    info.Key,
		Size:   info.Size,
		ETag:   info.ETag,
		Links:  snap.Counts.Links,
		People: snap.Counts.Persons,
	})
}
