// Package ledger is the append-only points ledger and its balance cache.
//
// Every insert into points goes through Append, which folds the change into
// point_balances in the same transaction. Entries are never updated or deleted, so the
// sum of a user's entries is always their true balance and the cache can be rebuilt.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
)

const (
	CategoryCS2       = "cs2"
	CategoryBet       = "bet"
	CategoryBetPayout = "bet_payout"
	CategoryBetRefund = "bet_refund"
	CategoryAdmin     = "admin"
	CategoryTransfer  = "transfer"
)

// Event sources double as processed_events keys
const (
	SourceMatches  = "matches"
	SourceBets     = "bets"
	SourceAdmin    = "admin"
	SourceTransfer = "transfer"
)

const (
	MaxAdjustment = 100000
	MaxReasonLen  = 255
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidReason       = errors.New("invalid reason")
	ErrSelfTransfer        = errors.New("cannot transfer points to yourself")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Entry is one row of the points ledger
type Entry struct {
	ID            int64     `db:"id" json:"id"`
	DiscordID     int64     `db:"discord_id" json:"discord_id"`
	Change        int64     `db:"change_value" json:"change_value"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	Category      string    `db:"category" json:"category"`
	Reason        string    `db:"reason" json:"reason"`
	EventSource   string    `db:"event_source" json:"event_source"`
	EventSourceID *int64    `db:"event_source_id" json:"event_source_id,omitempty"`
}

// SourceID is a convenience for building entries
func SourceID(id int64) *int64 { return &id }

// Append inserts e and folds it into the recipient's cached balance. A zero CreatedAt
// means now. It returns the new ledger entry id.
func Append(ctx context.Context, tx *sqlx.Tx, e Entry) (int64, error) {
	if e.DiscordID <= 0 {
		return 0, fmt.Errorf("ledger entry without recipient: %d", e.DiscordID)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	var id int64
	if err := tx.QueryRowxContext(ctx, `
		INSERT INTO points (discord_id, change_value, created_at, category, reason, event_source, event_source_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.DiscordID, e.Change, created, e.Category, e.Reason, e.EventSource, e.EventSourceID,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert ledger entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO point_balances (discord_id, current_balance, last_point_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (discord_id) DO UPDATE SET
			current_balance = point_balances.current_balance + EXCLUDED.current_balance,
			last_point_id = GREATEST(point_balances.last_point_id, EXCLUDED.last_point_id),
			updated_at = NOW()`,
		e.DiscordID, e.Change, id,
	); err != nil {
		return 0, fmt.Errorf("update balance %d: %w", e.DiscordID, err)
	}
	return id, nil
}

// LockBalance row-locks the recipient's balance until tx ends and returns it.
// Concurrent writers for the same user queue here.
func LockBalance(ctx context.Context, tx *sqlx.Tx, discordID int64) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO point_balances (discord_id, current_balance, last_point_id)
		VALUES ($1, 0, 0)
		ON CONFLICT (discord_id) DO NOTHING`, discordID); err != nil {
		return 0, fmt.Errorf("ensure balance %d: %w", discordID, err)
	}
	var balance int64
	if err := tx.GetContext(ctx, &balance,
		`SELECT current_balance FROM point_balances WHERE discord_id = $1 FOR UPDATE`, discordID); err != nil {
		return 0, fmt.Errorf("lock balance %d: %w", discordID, err)
	}
	return balance, nil
}

// MarkProcessed records (source, id) as applied. It returns false when the marker already
// existed, in which case the caller must roll back: someone else applied the event.
func MarkProcessed(ctx context.Context, tx *sqlx.Tx, source string, id int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO processed_events (event_source, event_source_id)
		VALUES ($1, $2)
		ON CONFLICT (event_source, event_source_id) DO NOTHING`, source, id)
	if err != nil {
		return false, fmt.Errorf("mark %s/%d processed: %w", source, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ValidateReward checks an operator adjustment
func ValidateReward(amount int64, reason string) error {
	if amount == 0 || amount > MaxAdjustment || amount < -MaxAdjustment {
		return fmt.Errorf("%w: must be between -%d and %d and not zero", ErrInvalidAmount, MaxAdjustment, MaxAdjustment)
	}
	if strings.TrimSpace(reason) == "" || utf8.RuneCountInString(reason) > MaxReasonLen {
		return fmt.Errorf("%w: must be 1 to %d characters", ErrInvalidReason, MaxReasonLen)
	}
	return nil
}

// ValidateTransfer checks a user to user gift before any balance is read
func ValidateTransfer(from, to, amount int64) error {
	if amount <= 0 || amount > MaxAdjustment {
		return fmt.Errorf("%w: must be between 1 and %d", ErrInvalidAmount, MaxAdjustment)
	}
	if from == to {
		return ErrSelfTransfer
	}
	return nil
}
