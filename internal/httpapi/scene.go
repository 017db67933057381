package httpapi

import (
	"net/http"
	"strconv"

	"fc_explorer/core-go/internal/collectibles"
	"fc_explorer/core-go/internal/navigation"
	"fc_explorer/core-go/internal/store"
)

const sceneMaxItems = 120

type sceneLayout struct {
	Path          collectibles.Path `json:"path"`
	Guidance      *string           `json:"guidance,omitempty"`
	Items         []sceneItem       `json:"items"`
	Trail         *navigation.Trail `json:"trail,omitempty"`
	Progress      float64           `json:"progress"`
	FocusIndex    int               `json:"focusIndex"`
	ReachedEnd    bool              `json:"reachedEnd"`
	UsingFallback bool              `json:"usingFallback"`
	HasMore       bool              `json:"hasMore"`
	Truncation    sceneTruncation   `json:"truncation"`
}

type sceneItem struct {
	collectibles.Item
	Position navigation.Vec3 `json:"position"`
	Reached  bool            `json:"reached"`
}

type sceneTruncation struct {
	Returned  int  `json:"returned"`
	Limit     int  `json:"limit"`
	Truncated bool `json:"truncated"`
	Total     int  `json:"total"`
}

func (h *Handler) handleSceneLayout(w http.ResponseWriter, r *http.Request) {
	path := collectibles.PathRecent
	if raw := queryParam(r, "path"); raw != "" {
		p, err := collectibles.ParsePath(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		path = p
	}

	progress := 0.0
	if raw := queryParam(r, "progress"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "progress must be a number")
			return
		}
		progress = v
	}

	var loader store.Loader
	if h.deps.LoaderFor != nil {
		loader = h.deps.LoaderFor(r)
	}
	st := store.New(h.log, loader, store.Options{})
	if err := st.SelectPath(r.Context(), path); err != nil {
		h.log.Debug().Err(err).Str("path", string(path)).Msg("scene layout served from placeholder items")
	}
	st.SetProgress(progress)

	h.writeJSON(w, http.StatusOK, buildSceneLayout(st.Snapshot()))
}

func buildSceneLayout(snap store.Snapshot) sceneLayout {
	items := snap.Items()
	total := len(items)
	if len(items) > sceneMaxItems {
		items = items[:sceneMaxItems]
	}
	progress := snap.Navigation.Progress
	positions := navigation.SpiralLayout(len(items))
	focus := navigation.FocusIndex(progress, len(items))

	out := sceneLayout{
		Path:          snap.Path,
		Items:         make([]sceneItem, 0, len(items)),
		Progress:      progress,
		FocusIndex:    focus,
		ReachedEnd:    len(items) > 0 && focus >= len(items)-1,
		UsingFallback: snap.UsingFallback,
		HasMore:       snap.Path == collectibles.PathRecent && snap.RecentCursor != "",
		Truncation: sceneTruncation{
			Returned:  len(items),
			Limit:     sceneMaxItems,
			Truncated: total > len(items),
			Total:     total,
		},
	}
	for i, it := range items {
		out.Items = append(out.Items, sceneItem{
			Item:     it,
			Position: positions[i],
			Reached:  navigation.MarkerReached(i, len(items), progress),
		})
	}
	if trail, ok := navigation.BuildTrail(positions, progress); ok {
		out.Trail = &trail
	}
	if out.Truncation.Truncated {
		guidance := "Scene truncated: only the first " + strconv.Itoa(sceneMaxItems) + " items are laid out."
		out.Guidance = &guidance
	}
	return out
}
