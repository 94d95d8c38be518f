package service

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dsampson94/community-recruit/internal/rank"
	"github.com/dsampson94/community-recruit/internal/repository"
	"github.com/dsampson94/community-recruit/internal/score"
)

// LeaderboardService owns the computed board. Writes mark it dirty through
// Invalidate; reads recompute lazily from a fresh metrics snapshot.
//
// Recomputation is coalesced with a singleflight group: at most one pass
// runs at a time and concurrent readers share its result, which is sound
// because the board is a pure function of the snapshot.
type LeaderboardService struct {
	users   repository.UserRepository
	weights score.Weights
	logger  *slog.Logger

	group singleflight.Group

	mu    sync.RWMutex
	dirty bool
	board *rank.Board
}

// NewLeaderboardService creates a LeaderboardService. The board starts
// dirty so the first read computes it.
func NewLeaderboardService(users repository.UserRepository, weights score.Weights, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{
		users:   users,
		weights: weights,
		logger:  logger,
		dirty:   true,
	}
}

// Invalidate marks the cached board stale. Called by the user service after
// every write that can change metrics.
func (s *LeaderboardService) Invalidate() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Board returns the current leaderboard, recomputing if the store changed
// since the last pass.
func (s *LeaderboardService) Board(ctx context.Context) (*rank.Board, error) {
	s.mu.RLock()
	if !s.dirty && s.board != nil {
		board := s.board
		s.mu.RUnlock()
		return board, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.group.Do("board", func() (any, error) {
		return s.recompute(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*rank.Board), nil
}

// recompute takes a point-in-time snapshot, aggregates each row under the
// configured weights, sorts, and persists the resulting ranks.
func (s *LeaderboardService) recompute(ctx context.Context) (*rank.Board, error) {
	// Clear the flag before reading: a write landing mid-pass re-marks it
	// and the next read picks the change up.
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()

	snapshot, err := s.users.MetricsSnapshot(ctx)
	if err != nil {
		s.Invalidate()
		return nil, err
	}

	rows := make([]rank.Row, len(snapshot))
	for i, r := range snapshot {
		rows[i] = rank.Row{
			UserID:    r.UserID,
			Username:  r.Username,
			CreatedAt: r.CreatedAt,
			Metrics:   score.FromCounters(r.GitContributions, r.HoursWorked, r.Breadth, s.weights),
		}
	}

	board := rank.Compute(rows)

	ranks := make(map[string]int, len(board.Entries))
	for _, e := range board.Entries {
		ranks[e.UserID] = e.Rank
	}
	if err := s.users.SaveRanks(ctx, ranks); err != nil {
		s.Invalidate()
		return nil, err
	}

	s.mu.Lock()
	s.board = board
	s.mu.Unlock()

	s.logger.Debug("leaderboard recomputed",
		slog.Int("users", len(snapshot)),
		slog.Int("ranked", len(board.Entries)),
	)
	return board, nil
}
