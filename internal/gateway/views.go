package gateway

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/schema"
	"github.com/zeebo/blake3"

	"atelier/internal/catalog/presenter"
	"atelier/pkg/model"
)

// maxLimit caps the visible count a query may ask for.
const maxLimit = 1000

type viewQuery struct {
	Query    string `schema:"q"`
	Category string `schema:"category"`
	Sort     string `schema:"sort"`
	Limit    int    `schema:"limit"`
}

// ViewSummary describes a view in the view listing.
type ViewSummary struct {
	Name       string `json:"name"`
	Collection string `json:"collection"`
	PageSize   int    `json:"pageSize"`
	Admin      bool   `json:"admin"`
	Loaded     bool   `json:"loaded"`
	Degraded   bool   `json:"degraded"`
	Items      int    `json:"items"`
}

// handleListViews handles GET /api/v1/views. Admin views are listed for
// admins only.
func (h *Handler) handleListViews(w http.ResponseWriter, r *http.Request) {
	admin := h.isAdmin(r)
	out := make([]ViewSummary, 0, len(h.order))
	for _, name := range h.order {
		v := h.views[name]
		if v.Config.Admin && !admin {
			continue
		}
		snap, st := v.Mirror.State()
		out = append(out, ViewSummary{
			Name:       name,
			Collection: v.Config.Collection,
			PageSize:   v.Config.PageSize,
			Admin:      v.Config.Admin,
			Loaded:     st.Loaded,
			Degraded:   st.Degraded,
			Items:      snap.Len(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"views": out})
}

// lookupView resolves the {view} path value and checks access. It writes
// the error response itself.
func (h *Handler) lookupView(w http.ResponseWriter, r *http.Request) (View, bool) {
	name := r.PathValue("view")
	v, ok := h.views[name]
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("%v: %s", model.ErrUnknownView, name))
		return View{}, false
	}
	if v.Config.Admin && !h.isAdmin(r) {
		// Admin views do not reveal their existence to anyone else.
		writeError(w, http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("%v: %s", model.ErrUnknownView, name))
		return View{}, false
	}
	return v, true
}

// parseViewQuery builds a filter state from the query string.
func parseViewQuery(r *http.Request, pageSize int) (model.FilterState, error) {
	var q viewQuery
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	if err := decoder.Decode(&q, r.URL.Query()); err != nil {
		return model.FilterState{}, errors.New("invalid query parameters")
	}

	fs := model.DefaultFilterState(pageSize)
	fs.Query = q.Query
	if q.Category != "" {
		fs.Category = q.Category
	}
	mode, err := model.ParseSortMode(q.Sort)
	if err != nil {
		return model.FilterState{}, err
	}
	fs.SortMode = mode
	switch {
	case q.Limit < 0:
		return model.FilterState{}, errors.New("limit cannot be negative")
	case q.Limit > 0:
		fs.VisibleCount = min(q.Limit, maxLimit)
	}
	return fs, nil
}

// handleGetView handles GET /api/v1/views/{view}.
func (h *Handler) handleGetView(w http.ResponseWriter, r *http.Request) {
	v, ok := h.lookupView(w, r)
	if !ok {
		return
	}
	fs, err := parseViewQuery(r, v.Config.PageSize)
	if err != nil {
		slog.Warn("View query: invalid parameters", "view", v.Config.Name, "error", err)
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	snap, st := v.Mirror.State()
	view := presenter.Build(v.Config.Name, snap, st, fs)
	view.Revision = st.Revision

	body, err := json.Marshal(view)
	if err != nil {
		writeInternalError(w, err, "Failed to encode view")
		return
	}
	etag := viewETag(body)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Warn("Failed to write view response", "error", err)
	}
}

// viewETag fingerprints an encoded view.
func viewETag(body []byte) string {
	sum := blake3.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// etagMatches implements the weak comparison of If-None-Match.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}
