package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

var ErrTeamsConfig = errors.New("teams config unavailable")

// TeamConfig is one side of a MatchZy match config; players are keyed by steamid64
type TeamConfig struct {
	Name    string            `json:"name"`
	Players map[string]string `json:"players"`
}

// MatchConfig is the subset of the MatchZy match config JSON the tracker needs
type MatchConfig struct {
	MapList  []string   `json:"maplist"`
	MapSides []string   `json:"map_sides"`
	Team1    TeamConfig `json:"team1"`
	Team2    TeamConfig `json:"team2"`
}

func (c MatchConfig) MapName() string { return first(c.MapList, "Unknown") }
func (c MatchConfig) MapSide() string { return first(c.MapSides, "Unknown") }

func (c MatchConfig) Validate() error {
	if c.Team1.Name == "" || c.Team2.Name == "" {
		return fmt.Errorf("%w: missing team names", ErrTeamsConfig)
	}
	if c.Team1.Name == c.Team2.Name {
		return fmt.Errorf("%w: both teams are named %q", ErrTeamsConfig, c.Team1.Name)
	}
	return nil
}

// Roster returns the sorted steamid64s of a team, skipping malformed keys
func (t TeamConfig) Roster() []int64 {
	out := make([]int64, 0, len(t.Players))
	for k := range t.Players {
		if id, err := strconv.ParseInt(k, 10, 64); err == nil && id > 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func first(xs []string, def string) string {
	if len(xs) == 0 || xs[0] == "" {
		return def
	}
	return xs[0]
}

// TeamsClient fetches the match config published by the match orchestrator
type TeamsClient struct {
	URL     string
	HTTP    *http.Client
	Limiter *rate.Limiter
}

func NewTeamsClient(url string) *TeamsClient {
	return &TeamsClient{
		URL:     url,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
		Limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

func (c *TeamsClient) Fetch(ctx context.Context) (MatchConfig, error) {
	if c.URL == "" {
		return MatchConfig{}, fmt.Errorf("%w: no url configured", ErrTeamsConfig)
	}
	if err := c.Limiter.Wait(ctx); err != nil {
		return MatchConfig{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return MatchConfig{}, err
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return MatchConfig{}, fmt.Errorf("%w: %w", ErrTeamsConfig, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return MatchConfig{}, fmt.Errorf("%w: http %d", ErrTeamsConfig, res.StatusCode)
	}

	var cfg MatchConfig
	if err := json.NewDecoder(res.Body).Decode(&cfg); err != nil {
		return MatchConfig{}, fmt.Errorf("%w: decode: %w", ErrTeamsConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return MatchConfig{}, err
	}
	return cfg, nil
}
