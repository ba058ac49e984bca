package topics

const (
	// Matches
	MatchReplicated = "match_replicated"

	// Points
	PointsAwarded = "points_awarded"

	// Bets
	BetPlaced   = "bet_placed"
	BetsSettled = "bets_settled"

	// Redis pub/sub channel for the live scoreboard
	LiveMatchChannel = "live_match_updates"
)
