package handler

import (
	"log/slog"
	"net/http"

	"github.com/dsampson94/community-recruit/internal/service"
)

// LeaderboardHandler serves the computed ranking.
type LeaderboardHandler struct {
	board  *service.LeaderboardService
	logger *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(board *service.LeaderboardService, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, logger: logger}
}

// HandleGet returns the leaderboard, recomputing it if any profile changed
// since the last read.
//
// HTTP: GET /api/leaderboard → 200 with {entries: [{userId, username,
// rank, total}], computedAt}. An empty community yields entries: [].
func (h *LeaderboardHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	board, err := h.board.Board(r.Context())
	if err != nil {
		h.logger.Error("leaderboard computation failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
