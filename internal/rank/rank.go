// Package rank computes the leaderboard: a deterministic total order over
// users' aggregated metrics with contiguous ranks starting at 1.
package rank

import (
	"sort"
	"time"

	"github.com/dsampson94/community-recruit/internal/score"
)

// Row is one user's input to a ranking pass: identity plus the metrics the
// aggregator derived from a consistent snapshot of the store.
type Row struct {
	UserID    string
	Username  string
	CreatedAt time.Time
	Metrics   score.Metrics
}

// Entry is one leaderboard position in the computed board.
type Entry struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	Rank     int     `json:"rank"`
	Total    float64 `json:"total"`
}

// Board is the result of one ranking pass over a snapshot.
type Board struct {
	Entries    []Entry   `json:"entries"`
	ComputedAt time.Time `json:"computedAt"`
}

// Compute orders the rows by descending total and assigns ranks 1..N.
//
// Users without a single scored contribution are excluded, so the rank set
// is a permutation of 1..N over scored users only. Ties on total break by
// earlier CreatedAt (earlier registration ranks higher), then by ascending
// UserID, which makes every comparison decisive: no two entries ever share
// a rank. Zero input rows yield an empty board, not an error — an empty
// community is not abnormal.
//
// The pass is always a full sort over the snapshot. A single user's metric
// change can displace any number of others, so incremental patching of a
// previous board is never attempted.
func Compute(rows []Row) *Board {
	scored := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Metrics.Scored() {
			scored = append(scored, r)
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Metrics.Total != b.Metrics.Total {
			return a.Metrics.Total > b.Metrics.Total
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.UserID < b.UserID
	})

	board := &Board{
		Entries:    make([]Entry, len(scored)),
		ComputedAt: time.Now(),
	}
	for i, r := range scored {
		board.Entries[i] = Entry{
			UserID:   r.UserID,
			Username: r.Username,
			Rank:     i + 1,
			Total:    r.Metrics.Total,
		}
	}
	return board
}
