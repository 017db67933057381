package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"fc_explorer/core-go/internal/chain"
	"fc_explorer/core-go/internal/collectibles"
	"fc_explorer/core-go/internal/farcaster"
	"fc_explorer/core-go/internal/upstream"
)

func queryParam(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// parseSocialID accepts a positive base-10 account id.
func parseSocialID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil && id > 0
}

// writeUpstreamError maps a data-access failure onto the error envelope. An
// upstream HTTP status is passed through; anything else is a 500.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, upstream.ErrNotConfigured) {
		h.writeError(w, http.StatusInternalServerError, "API key not configured")
		return
	}
	status := upstream.StatusOf(err)
	if status == 0 {
		status = http.StatusInternalServerError
	}
	h.log.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg(msg)
	h.writeError(w, status, msg)
}

func (h *Handler) profiles(w http.ResponseWriter) bool {
	if h.deps.Profiles == nil {
		h.writeError(w, http.StatusInternalServerError, "API key not configured")
		return false
	}
	return true
}

func (h *Handler) handleProfileByAddress(w http.ResponseWriter, r *http.Request) {
	address := queryParam(r, "address")
	if address == "" {
		h.writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	if !h.profiles(w) {
		return
	}
	p, err := h.deps.Profiles.ProfileByAddress(r.Context(), address)
	if err != nil {
		h.writeUpstreamError(w, r, err, "failed to fetch profile")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleProfileByFID(w http.ResponseWriter, r *http.Request) {
	raw := queryParam(r, "fid")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "fid is required")
		return
	}
	id, ok := parseSocialID(raw)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "fid must be a positive integer")
		return
	}
	if !h.profiles(w) {
		return
	}
	p, err := h.deps.Profiles.ProfileByID(r.Context(), id)
	if err != nil {
		h.writeUpstreamError(w, r, err, "failed to fetch profile")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleProfileByUsername(w http.ResponseWriter, r *http.Request) {
	username := queryParam(r, "username")
	if err := farcaster.ValidateUsername(username); err != nil {
		h.writeError(w, http.StatusBadRequest, "valid username is required")
		return
	}
	if !h.profiles(w) {
		return
	}
	p, err := h.deps.Profiles.ProfileByUsername(r.Context(), username)
	if err != nil {
		h.writeUpstreamError(w, r, err, "failed to fetch profile")
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) handleAddresses(w http.ResponseWriter, r *http.Request) {
	raw := queryParam(r, "fid")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "fid is required")
		return
	}
	id, ok := parseSocialID(raw)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "fid must be a positive integer")
		return
	}
	if !h.profiles(w) {
		return
	}
	addrs, err := h.deps.Profiles.AddressesByID(r.Context(), id)
	if err != nil {
		h.writeUpstreamError(w, r, err, "failed to fetch user data")
		return
	}
	if addrs == nil {
		h.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	h.writeJSON(w, http.StatusOK, addrs)
}

type tokenOwners struct {
	Success         bool     `json:"success"`
	TokenID         string   `json:"tokenId"`
	ContractAddress string   `json:"contractAddress"`
	Owners          []string `json:"owners"`
}

func (h *Handler) handleTokenOwner(w http.ResponseWriter, r *http.Request) {
	raw := queryParam(r, "tokenId")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "tokenId parameter is required")
		return
	}
	tokenID, err := chain.NormalizeTokenID(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.deps.Tokens == nil {
		h.writeError(w, http.StatusInternalServerError, "API key not configured")
		return
	}
	owners, err := h.deps.Tokens.OwnersForToken(r.Context(), tokenID)
	if err != nil {
		if errors.Is(err, upstream.ErrNotConfigured) {
			h.writeError(w, http.StatusInternalServerError, "API key not configured")
			return
		}
		h.log.Error().Err(err).Str("token_id", tokenID).Msg("fetch token owner failed")
		h.writeError(w, http.StatusInternalServerError, "failed to fetch token owner")
		return
	}
	h.writeJSON(w, http.StatusOK, tokenOwners{
		Success:         true,
		TokenID:         tokenID,
		ContractAddress: h.deps.Tokens.Contract(),
		Owners:          owners,
	})
}

type fidResponse struct {
	TokenID string `json:"tokenId"`
	FID     string `json:"fid,omitempty"`
	Success bool   `json:"success"`
	Method  string `json:"method"`
}

func (h *Handler) handleFID(w http.ResponseWriter, r *http.Request) {
	raw := queryParam(r, "tokenId")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "tokenId parameter is required")
		return
	}
	tokenID, err := chain.NormalizeTokenID(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.deps.FID == nil {
		h.writeError(w, http.StatusInternalServerError, "fid extraction not configured")
		return
	}
	contract := chain.DefaultContract
	if h.deps.Tokens != nil {
		contract = h.deps.Tokens.Contract()
	}
	res := h.deps.FID.Resolve(r.Context(), tokenID, contract, queryParam(r, "txHash"))
	h.writeJSON(w, http.StatusOK, fidResponse{
		TokenID: tokenID,
		FID:     res.ID,
		Success: res.Success,
		Method:  res.Method,
	})
}

func (h *Handler) handleRecentCollectibles(w http.ResponseWriter, r *http.Request) {
	if h.deps.Collectibles == nil {
		h.writeError(w, http.StatusInternalServerError, "API key not configured")
		return
	}
	page, err := h.deps.Collectibles.Recent(r.Context(), queryParam(r, "cursor"))
	if err != nil {
		h.writeUpstreamError(w, r, err, "failed to fetch recent collectibles")
		return
	}
	h.writeJSON(w, http.StatusOK, page)
}

func (h *Handler) handleUserCollectibles(w http.ResponseWriter, r *http.Request) {
	addresses := r.URL.Query()["address"]
	rawID := queryParam(r, "fid")
	if len(addresses) == 0 && rawID == "" {
		h.writeError(w, http.StatusBadRequest, "address or fid is required")
		return
	}
	if h.deps.Collectibles == nil {
		h.writeError(w, http.StatusInternalServerError, "API key not configured")
		return
	}

	var (
		page collectibles.Page
		err  error
	)
	if len(addresses) > 0 {
		page, err = h.deps.Collectibles.Owned(r.Context(), addresses)
	} else {
		id, ok := parseSocialID(rawID)
		if !ok {
			h.writeError(w, http.StatusBadRequest, "fid must be a positive integer")
			return
		}
		page, err = h.deps.Collectibles.OwnedBySocialID(r.Context(), id)
	}

	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, page)
	case errors.Is(err, collectibles.ErrNoAddresses):
		h.writeError(w, http.StatusBadRequest, "address or fid is required")
	case errors.Is(err, collectibles.ErrUnknownAccount):
		h.writeError(w, http.StatusNotFound, "user not found")
	default:
		h.writeUpstreamError(w, r, err, "failed to fetch user collectibles")
	}
}
