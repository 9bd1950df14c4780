// Package round resolves the current round number from the AFL API.
package round

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aaron/footyhub/internal/apiclient"
)

type matchesResponse struct {
	Matches []struct {
		CompSeason *struct {
			CurrentRoundNumber *int `json:"currentRoundNumber"`
		} `json:"compSeason"`
	} `json:"matches"`
}

// Resolver asks the AFL schedule endpoint for the current round. It makes
// exactly one request per call and never retries.
type Resolver struct {
	api          *apiclient.Client
	compSeasonID int
}

// NewResolver creates a resolver for the given competition season.
func NewResolver(api *apiclient.Client, compSeasonID int) *Resolver {
	return &Resolver{api: api, compSeasonID: compSeasonID}
}

func (r *Resolver) path() string {
	return fmt.Sprintf("/afl/v2/matches?competitionId=1&compSeasonId=%d&pageSize=1", r.compSeasonID)
}

// Resolve returns the current round number. Transport failures, timeouts,
// bad statuses and payloads without the round field all come back as a
// *apiclient.NetworkError.
func (r *Resolver) Resolve(ctx context.Context) (int, error) {
	path := r.path()
	url := r.api.BaseURL() + path

	var resp matchesResponse
	if err := r.api.GetJSON(ctx, path, &resp); err != nil {
		var netErr *apiclient.NetworkError
		if errors.As(err, &netErr) {
			return 0, netErr
		}
		return 0, &apiclient.NetworkError{URL: url, Err: err}
	}
	if len(resp.Matches) == 0 || resp.Matches[0].CompSeason == nil || resp.Matches[0].CompSeason.CurrentRoundNumber == nil {
		return 0, &apiclient.NetworkError{
			URL: url,
			Err: &apiclient.MalformedResponseError{URL: url, Field: "matches[0].compSeason.currentRoundNumber"},
		}
	}
	round := *resp.Matches[0].CompSeason.CurrentRoundNumber
	log.Printf("round: current round is %d", round)
	return round, nil
}
