package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/rocketscienceinc/tictactoe-lobby/internal/apperror"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

type handlers struct {
	logger    *slog.Logger
	uGame     uGame
	publicURL string
}

func (that *handlers) healthz(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	that.writeJSON(w, http.StatusOK, that.uGame.Stats())
}

func (that *handlers) getGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	record, err := that.uGame.GetGame(r.Context(), ps.ByName("id"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, record)
}

func (that *handlers) getPlayer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	player, err := that.uGame.GetPlayer(r.Context(), ps.ByName("id"))
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, player)
}

func (that *handlers) playerGames(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var limit int64

	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := that.uGame.PlayerGames(r.Context(), ps.ByName("id"), limit)
	if err != nil {
		that.writeError(w, err)
		return
	}

	that.writeJSON(w, http.StatusOK, records)
}

// qr - PNG invite pointing at the public URL of the lobby.
func (that *handlers) qr(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	png, err := qrcode.Encode(that.publicURL, qrcode.Medium, qrSize)
	if err != nil {
		that.logger.Error("failed to generate qr code", "error", err)
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (that *handlers) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperror.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	that.logger.Error("request failed", "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func (that *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
