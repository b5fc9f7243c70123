package gateway

import "net/http"

type viewHealth struct {
	Loaded   bool   `json:"loaded"`
	Degraded bool   `json:"degraded"`
	Items    int    `json:"items"`
	Error    string `json:"error,omitempty"`
}

// handleHealth reports "ok" when every mirror is loaded and healthy,
// "loading" while any waits for its first snapshot, and "degraded" when any
// is serving stale data. The status code stays 200 in all three cases.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	views := make(map[string]viewHealth, len(h.views))
	for name, v := range h.views {
		snap, st := v.Mirror.State()
		vh := viewHealth{Loaded: st.Loaded, Degraded: st.Degraded, Items: snap.Len()}
		if st.LastError != nil {
			vh.Error = st.LastError.Error()
		}
		views[name] = vh

		switch {
		case st.Degraded:
			status = "degraded"
		case !st.Loaded && status == "ok":
			status = "loading"
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": status, "views": views})
}
