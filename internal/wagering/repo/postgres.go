package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/radieske/inhouse-points/internal/ledger"
	"github.com/radieske/inhouse-points/internal/shared/db"
	"github.com/radieske/inhouse-points/internal/wagering"
)

// Postgres keeps bets next to the ledger so escrow, payout, and refund share a
// transaction with the bet row they belong to
type Postgres struct{ db *sqlx.DB }

func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

// PlaceBet locks the bettor's balance row for the whole check-then-debit, so two
// concurrent bets from the same user are serialized and the second sees the debit
func (p *Postgres) PlaceBet(ctx context.Context, b wagering.Bet) (int64, error) {
	var id int64
	err := db.WithTx(ctx, p.db, func(tx *sqlx.Tx) error {
		balance, err := ledger.LockBalance(ctx, tx, b.DiscordID)
		if err != nil {
			return err
		}
		if balance < b.Amount {
			return fmt.Errorf("%w: have %d, need %d", wagering.ErrInsufficientBalance, balance, b.Amount)
		}

		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO bets (match_id, discord_id, amount, team_name, odds, payout, active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			RETURNING id`,
			b.MatchID, b.DiscordID, b.Amount, b.TeamName, b.Odds, b.Payout,
		).Scan(&id); err != nil {
			return fmt.Errorf("insert bet: %w", err)
		}

		_, err = ledger.Append(ctx, tx, ledger.Entry{
			DiscordID:     b.DiscordID,
			Change:        -b.Amount,
			Category:      ledger.CategoryBet,
			Reason:        fmt.Sprintf("Bet on %s", b.TeamName),
			EventSource:   ledger.SourceBets,
			EventSourceID: ledger.SourceID(id),
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Settle flips and pays in one transaction. The active flag is re-checked by the
// UPDATE itself, so a bet is paid only by the statement that closed it.
func (p *Postgres) Settle(ctx context.Context, matchID int64, winningTeam string) (wagering.SettleResult, error) {
	var res wagering.SettleResult
	err := db.WithTx(ctx, p.db, func(tx *sqlx.Tx) error {
		res = wagering.SettleResult{}
		bets, err := lockMatchBets(ctx, tx, matchID)
		if err != nil {
			return err
		}
		for _, b := range bets {
			if !b.Active {
				res.AlreadyInactive = append(res.AlreadyInactive, b.ID)
				continue
			}
			closed, err := closeBet(ctx, tx, b.ID)
			if err != nil {
				return err
			}
			if !closed {
				res.Anomalies = append(res.Anomalies, b.ID)
				continue
			}
			res.Settled++

			if b.TeamName != winningTeam {
				res.Lost++
				continue
			}
			if _, err := ledger.Append(ctx, tx, ledger.Entry{
				DiscordID:     b.DiscordID,
				Change:        b.Payout,
				Category:      ledger.CategoryBetPayout,
				Reason:        fmt.Sprintf("Won bet on %s", b.TeamName),
				EventSource:   ledger.SourceBets,
				EventSourceID: ledger.SourceID(b.ID),
			}); err != nil {
				return err
			}
			res.Won++
			res.PaidOut += b.Payout
		}
		return nil
	})
	return res, err
}

// Refund returns every active stake of the match and closes the bets
func (p *Postgres) Refund(ctx context.Context, matchID int64, reason string) (wagering.SettleResult, error) {
	var res wagering.SettleResult
	err := db.WithTx(ctx, p.db, func(tx *sqlx.Tx) error {
		res = wagering.SettleResult{}
		bets, err := lockMatchBets(ctx, tx, matchID)
		if err != nil {
			return err
		}
		for _, b := range bets {
			if !b.Active {
				continue
			}
			closed, err := closeBet(ctx, tx, b.ID)
			if err != nil {
				return err
			}
			if !closed {
				res.Anomalies = append(res.Anomalies, b.ID)
				continue
			}
			if _, err := ledger.Append(ctx, tx, ledger.Entry{
				DiscordID:     b.DiscordID,
				Change:        b.Amount,
				Category:      ledger.CategoryBetRefund,
				Reason:        reason,
				EventSource:   ledger.SourceBets,
				EventSourceID: ledger.SourceID(b.ID),
			}); err != nil {
				return err
			}
			res.Settled++
			res.PaidOut += b.Amount
		}
		return nil
	})
	return res, err
}

func (p *Postgres) MatchBets(ctx context.Context, matchID int64) ([]wagering.Bet, error) {
	var out []wagering.Bet
	err := p.db.SelectContext(ctx, &out, `
		SELECT id, match_id, discord_id, amount, team_name, odds, payout, active, created_at, settled_at
		FROM bets
		WHERE match_id = $1
		ORDER BY id`, matchID)
	return out, err
}

func lockMatchBets(ctx context.Context, tx *sqlx.Tx, matchID int64) ([]wagering.Bet, error) {
	var bets []wagering.Bet
	if err := tx.SelectContext(ctx, &bets, `
		SELECT id, match_id, discord_id, amount, team_name, odds, payout, active, created_at, settled_at
		FROM bets
		WHERE match_id = $1
		ORDER BY id
		FOR UPDATE`, matchID); err != nil {
		return nil, fmt.Errorf("lock bets of match %d: %w", matchID, err)
	}
	return bets, nil
}

func closeBet(ctx context.Context, tx *sqlx.Tx, id int64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bets SET active = FALSE, settled_at = NOW() WHERE id = $1 AND active`, id)
	if err != nil {
		return false, fmt.Errorf("close bet %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
