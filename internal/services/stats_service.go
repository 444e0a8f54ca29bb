package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// StatsService computes the admin dashboard aggregates and the per-user
// balance summary. All reads, no stored state; the dashboard payload is
// cached in Redis for a short window since it touches every table.
type StatsService struct {
	db    *sql.DB
	redis *redis.Client
}

const (
	statsCacheKey = "admin:dashboard_stats"
	statsCacheTTL = 30 * time.Second
)

func NewStatsService(db *sql.DB, redisClient *redis.Client) *StatsService {
	return &StatsService{db: db, redis: redisClient}
}

// DashboardStats carries the admin dashboard aggregates. Box balances are
// reported from both sources of truth: BoxBalances reads the transactionally
// maintained balance rows (canonical), LedgerBoxBalances recomputes the same
// figure from the activity log so drift between the two is visible.
type DashboardStats struct {
	TotalMembers      int                        `json:"total_members"`
	PendingRequests   map[string]int             `json:"pending_requests"`
	BoxBalances       map[string]decimal.Decimal `json:"box_balances"`
	LedgerBoxBalances map[string]decimal.Decimal `json:"ledger_box_balances"`
}

// BalanceSummary is the per-user total across boxes.
type BalanceSummary struct {
	Balances map[string]decimal.Decimal `json:"balances"`
	Total    decimal.Decimal            `json:"total"`
}

// GetDashboardStats returns the admin dashboard aggregates
// @Summary Admin dashboard statistics
// @Description Member count, pending request counts per box, and per-box balances from both the balance table and the recomputed ledger
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} DashboardStats
// @Router /admin/stats [get]
func (s *StatsService) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, statsCacheKey).Result(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(cached))
			return
		}
	}

	stats, err := s.computeDashboardStats(ctx)
	if err != nil {
		log.Printf("[STATS] Failed to compute dashboard stats: %v", err)
		SendErrorResponse(w, "Failed to compute statistics", http.StatusInternalServerError, nil)
		return
	}

	payload, err := json.Marshal(stats)
	if err != nil {
		SendErrorResponse(w, "Failed to compute statistics", http.StatusInternalServerError, nil)
		return
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, statsCacheKey, string(payload), statsCacheTTL).Err(); err != nil {
			log.Printf("[STATS] Failed to cache dashboard stats: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func (s *StatsService) computeDashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{
		PendingRequests:   map[string]int{},
		BoxBalances:       map[string]decimal.Decimal{},
		LedgerBoxBalances: map[string]decimal.Decimal{},
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = 'member'`).Scan(&stats.TotalMembers)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT box_id, COUNT(*) FROM transfer_requests
		WHERE status = 'pending'
		GROUP BY box_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var boxID string
		var count int
		if err := rows.Scan(&boxID, &count); err != nil {
			return nil, err
		}
		stats.PendingRequests[boxID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	balanceRows, err := s.db.QueryContext(ctx, `
		SELECT box_id, COALESCE(SUM(balance), 0) FROM balances
		GROUP BY box_id`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()
	for balanceRows.Next() {
		var boxID string
		var total decimal.Decimal
		if err := balanceRows.Scan(&boxID, &total); err != nil {
			return nil, err
		}
		stats.BoxBalances[boxID] = total
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	ledgerRows, err := s.db.QueryContext(ctx, `
		SELECT box_id, COALESCE(SUM(CASE WHEN type = 'deposit' THEN amount ELSE -amount END), 0)
		FROM account_activities
		GROUP BY box_id`)
	if err != nil {
		return nil, err
	}
	defer ledgerRows.Close()
	for ledgerRows.Next() {
		var boxID string
		var total decimal.Decimal
		if err := ledgerRows.Scan(&boxID, &total); err != nil {
			return nil, err
		}
		stats.LedgerBoxBalances[boxID] = total
	}
	return stats, ledgerRows.Err()
}

// GetBalanceSummary returns the caller's balances and their total
// @Summary Own balance summary
// @Tags balances
// @Produce json
// @Security BearerAuth
// @Success 200 {object} BalanceSummary
// @Router /balances/summary [get]
func (s *StatsService) GetBalanceSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`SELECT box_id, balance FROM balances WHERE user_id = $1`, userID)
	if err != nil {
		SendErrorResponse(w, "Failed to fetch balances", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	summary := BalanceSummary{Balances: map[string]decimal.Decimal{}, Total: decimal.Zero}
	for rows.Next() {
		var boxID string
		var balance decimal.Decimal
		if err := rows.Scan(&boxID, &balance); err != nil {
			SendErrorResponse(w, "Failed to fetch balances", http.StatusInternalServerError, nil)
			return
		}
		summary.Balances[boxID] = balance
		summary.Total = summary.Total.Add(balance)
	}
	if err := rows.Err(); err != nil {
		SendErrorResponse(w, "Failed to fetch balances", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}
