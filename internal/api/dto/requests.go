package dto

type PlaceBetRequest struct {
	UserID   int64  `json:"user_id"`
	TeamName string `json:"team_name"`
	Amount   int64  `json:"amount"`
}

type TransferRequest struct {
	From   int64 `json:"from"`
	To     int64 `json:"to"`
	Amount int64 `json:"amount"`
}

// RewardRequest is an operator adjustment; negative amounts are penalties
type RewardRequest struct {
	UserID int64  `json:"user_id"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type RefundRequest struct {
	Reason string `json:"reason"`
}

type SettleRequest struct {
	Winner string `json:"winner"`
}

type UpsertUserRequest struct {
	DiscordID       int64  `json:"discord_id"`
	DiscordUsername string `json:"discord_username"`
	SteamID64       *int64 `json:"steamid64"`
}
