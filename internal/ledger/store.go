package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/radieske/inhouse-points/internal/shared/db"
)

// Balance is a row of the cache as exposed to readers
type Balance struct {
	DiscordID int64 `db:"discord_id" json:"discord_id"`
	Balance   int64 `db:"current_balance" json:"balance"`
}

// Drift is a user whose cached balance disagrees with the sum of their entries
type Drift struct {
	DiscordID int64 `db:"discord_id" json:"discord_id"`
	LedgerSum int64 `db:"ledger_sum" json:"ledger_sum"`
	Cached    int64 `db:"cached" json:"cached"`
}

// Store serves the read side of the ledger and the operator and user adjustments
type Store struct{ db *sqlx.DB }

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// Balance reads the cached balance; users without entries have 0
func (s *Store) Balance(ctx context.Context, discordID int64) (int64, error) {
	var b int64
	err := s.db.GetContext(ctx, &b,
		`SELECT COALESCE((SELECT current_balance FROM point_balances WHERE discord_id = $1), 0)`, discordID)
	return b, err
}

// History returns the most recent entries of a user, newest first
func (s *Store) History(ctx context.Context, discordID int64, limit int) ([]Entry, error) {
	var out []Entry
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, discord_id, change_value, created_at, category, reason, event_source, event_source_id
		FROM points
		WHERE discord_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, discordID, limit)
	return out, err
}

// Leaderboard reads the cache instead of summing the ledger
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]Balance, error) {
	var out []Balance
	err := s.db.SelectContext(ctx, &out, `
		SELECT discord_id, current_balance
		FROM point_balances
		ORDER BY current_balance DESC, discord_id
		LIMIT $1`, limit)
	return out, err
}

// Reward appends an operator adjustment and returns the new balance
func (s *Store) Reward(ctx context.Context, discordID, amount int64, reason string) (int64, error) {
	if err := ValidateReward(amount, reason); err != nil {
		return 0, err
	}
	var balance int64
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		current, err := LockBalance(ctx, tx, discordID)
		if err != nil {
			return err
		}
		if _, err := Append(ctx, tx, Entry{
			DiscordID:   discordID,
			Change:      amount,
			Category:    CategoryAdmin,
			Reason:      strings.TrimSpace(reason),
			EventSource: SourceAdmin,
		}); err != nil {
			return err
		}
		balance = current + amount
		return nil
	})
	return balance, err
}

// Transfer moves amount from one user to another. Both balance rows are locked in id
// order so two opposite transfers cannot deadlock.
func (s *Store) Transfer(ctx context.Context, from, to, amount int64) (fromBalance, toBalance int64, err error) {
	if err := ValidateTransfer(from, to, amount); err != nil {
		return 0, 0, err
	}
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		first, second := from, to
		if second < first {
			first, second = second, first
		}
		balances := map[int64]int64{}
		for _, id := range []int64{first, second} {
			b, err := LockBalance(ctx, tx, id)
			if err != nil {
				return err
			}
			balances[id] = b
		}
		if balances[from] < amount {
			return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, balances[from], amount)
		}

		if _, err := Append(ctx, tx, Entry{
			DiscordID:     from,
			Change:        -amount,
			Category:      CategoryTransfer,
			Reason:        fmt.Sprintf("Gave points to %d", to),
			EventSource:   SourceTransfer,
			EventSourceID: SourceID(to),
		}); err != nil {
			return err
		}
		if _, err := Append(ctx, tx, Entry{
			DiscordID:     to,
			Change:        amount,
			Category:      CategoryTransfer,
			Reason:        fmt.Sprintf("Received points from %d", from),
			EventSource:   SourceTransfer,
			EventSourceID: SourceID(from),
		}); err != nil {
			return err
		}
		fromBalance = balances[from] - amount
		toBalance = balances[to] + amount
		return nil
	})
	return fromBalance, toBalance, err
}

// Reconcile lists users whose cache differs from their ledger sum; empty means consistent
func (s *Store) Reconcile(ctx context.Context) ([]Drift, error) {
	var out []Drift
	err := s.db.SelectContext(ctx, &out, `
		SELECT COALESCE(l.discord_id, b.discord_id) AS discord_id,
		       COALESCE(l.total, 0) AS ledger_sum,
		       COALESCE(b.current_balance, 0) AS cached
		FROM (SELECT discord_id, SUM(change_value)::BIGINT AS total FROM points GROUP BY discord_id) l
		FULL OUTER JOIN point_balances b ON b.discord_id = l.discord_id
		WHERE COALESCE(l.total, 0) <> COALESCE(b.current_balance, 0)
		ORDER BY 1`)
	return out, err
}
