package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/inhouse-points/internal/api/dto"
	"github.com/radieske/inhouse-points/internal/ledger"
	"github.com/radieske/inhouse-points/internal/live"
	"github.com/radieske/inhouse-points/internal/users"
)

func (a *API) getLive(w http.ResponseWriter, r *http.Request) {
	u, ok := a.Live.Market()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no live match"})
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) announce(w http.ResponseWriter, r *http.Request) {
	var req live.AnnounceRequest
	if err := decode(r, &req, true); err != nil {
		a.writeError(w, r, err)
		return
	}
	u, err := a.Live.Announce(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := decode(r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}
	id, matchID, err := a.Live.PlaceBet(r.Context(), req.UserID, strings.TrimSpace(req.TeamName), req.Amount)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{BetID: id, MatchID: matchID, Status: "ACTIVE"})
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 10, 100)
	var rows []ledger.Balance
	err := a.cached(r.Context(), "leaderboard:"+strconv.Itoa(limit), leaderboardCacheTTL, &rows, func() (err error) {
		rows, err = a.Ledger.Leaderboard(r.Context(), limit)
		return err
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *API) transfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if err := decode(r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}
	fromBalance, toBalance, err := a.Ledger.Transfer(r.Context(), req.From, req.To, req.Amount)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.Log.Info("points transferred", zap.Int64("from", req.From), zap.Int64("to", req.To), zap.Int64("amount", req.Amount))
	writeJSON(w, http.StatusOK, dto.TransferResponse{
		From:        req.From,
		To:          req.To,
		Amount:      req.Amount,
		FromBalance: fromBalance,
		ToBalance:   toBalance,
	})
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := a.Users.List(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	u, err := a.Users.ByDiscordID(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) userPoints(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	balance, err := a.Ledger.Balance(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	history, err := a.Ledger.History(r.Context(), id, queryLimit(r, 20, 200))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PointsResponse{UserID: id, Balance: balance, History: history})
}

func (a *API) getMatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var resp dto.MatchResponse
	err = a.cached(r.Context(), "match:"+strconv.FormatInt(id, 10), matchCacheTTL, &resp, func() error {
		m, err := a.Matches.Match(r.Context(), id)
		if err != nil {
			return err
		}
		players, err := a.Matches.Players(r.Context(), id)
		if err != nil {
			return err
		}
		resp = dto.NewMatchResponse(m, players)
		return nil
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) matchBets(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	bets, err := a.Wagering.MatchBets(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bets)
}

func (a *API) reward(w http.ResponseWriter, r *http.Request) {
	var req dto.RewardRequest
	if err := decode(r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}
	balance, err := a.Ledger.Reward(r.Context(), req.UserID, req.Amount, req.Reason)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.Log.Info("points adjusted", zap.Int64("user", req.UserID), zap.Int64("amount", req.Amount), zap.String("reason", req.Reason))
	writeJSON(w, http.StatusOK, dto.BalanceResponse{UserID: req.UserID, Balance: balance})
}

func (a *API) upsertUser(w http.ResponseWriter, r *http.Request) {
	var req dto.UpsertUserRequest
	if err := decode(r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}
	u, err := users.NewUser(req.DiscordID, req.DiscordUsername, req.SteamID64)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	created, err := a.Users.Upsert(r.Context(), u)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, u)
}

func (a *API) settle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req dto.SettleRequest
	if err := decode(r, &req, false); err != nil {
		a.writeError(w, r, err)
		return
	}
	winner := strings.TrimSpace(req.Winner)
	if winner == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "winner is required"})
		return
	}
	n, err := a.Wagering.SettleMatchBets(r.Context(), id, winner)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MatchBetsResult{MatchID: id, Bets: n})
}

func (a *API) refund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req dto.RefundRequest
	if err := decode(r, &req, true); err != nil {
		a.writeError(w, r, err)
		return
	}
	n, err := a.Wagering.RefundMatchBets(r.Context(), id, req.Reason)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MatchBetsResult{MatchID: id, Bets: n})
}

func (a *API) reconcile(w http.ResponseWriter, r *http.Request) {
	drift, err := a.Ledger.Reconcile(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if drift == nil {
		drift = []ledger.Drift{}
	}
	writeJSON(w, http.StatusOK, dto.ReconcileResponse{Consistent: len(drift) == 0, Drift: drift})
}
