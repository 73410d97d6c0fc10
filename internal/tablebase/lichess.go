package tablebase

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hailam/chesscore/internal/board"
)

// DefaultLichessEndpoint is the public standard chess tablebase API.
const DefaultLichessEndpoint = "https://tablebase.lichess.ovh/standard"

// ErrUnknownPosition is returned when the remote tablebase has no verdict.
var ErrUnknownPosition = errors.New("tablebase: position unknown")

// Remote failures are logged a few at a time so an unreachable server
// does not flood the log from inside the search.
var failureSampler = &zerolog.BurstSampler{Burst: 3, Period: time.Minute}

// LichessProber queries the lichess tablebase over HTTP. It covers up to
// seven pieces. Every probe is a network round trip, so wrap it in a
// CachedProber before handing it to the search.
type LichessProber struct {
	client    *http.Client
	endpoint  string
	maxPieces int
}

// NewLichessProber creates a prober for endpoint, or for the public
// server when endpoint is empty.
func NewLichessProber(endpoint string, timeout time.Duration) *LichessProber {
	if endpoint == "" {
		endpoint = DefaultLichessEndpoint
	}
	return &LichessProber{
		client:    &http.Client{Timeout: timeout},
		endpoint:  endpoint,
		maxPieces: 7,
	}
}

// lichessResponse is the subset of the API answer the prober reads.
// Category is one of win, syzygy-win, maybe-win, cursed-win, draw,
// blessed-loss, maybe-loss, syzygy-loss, loss or unknown.
type lichessResponse struct {
	Category string `json:"category"`
	DTZ      *int   `json:"dtz"`
}

// Lookup fetches the verdict for pos in a single request.
func (lp *LichessProber) Lookup(pos *board.Position) (WDL, int, error) {
	if CountPieces(pos) > lp.maxPieces {
		return WDLDraw, 0, fmt.Errorf("%w: %d pieces", ErrUnknownPosition, CountPieces(pos))
	}

	u := lp.endpoint + "?" + url.Values{"fen": {pos.FEN()}}.Encode()
	resp, err := lp.client.Get(u)
	if err != nil {
		return WDLDraw, 0, fmt.Errorf("tablebase request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return WDLDraw, 0, fmt.Errorf("tablebase request: status %s", resp.Status)
	}

	var result lichessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return WDLDraw, 0, fmt.Errorf("decode tablebase response: %w", err)
	}

	wdl, ok := categoryToWDL(result.Category)
	if !ok {
		return WDLDraw, 0, fmt.Errorf("%w: category %q", ErrUnknownPosition, result.Category)
	}
	dtz := 0
	if result.DTZ != nil {
		dtz = *result.DTZ
	}
	return wdl, dtz, nil
}

func (lp *LichessProber) probe(pos *board.Position) (WDL, int, bool) {
	wdl, dtz, err := lp.Lookup(pos)
	if err != nil {
		if !errors.Is(err, ErrUnknownPosition) {
			l := log.Logger.Sample(failureSampler)
			l.Warn().Err(err).Msg("remote tablebase probe failed")
		}
		return WDLDraw, 0, false
	}
	return wdl, dtz, true
}

func (lp *LichessProber) ProbeWDL(pos *board.Position) (WDL, bool) {
	wdl, _, ok := lp.probe(pos)
	return wdl, ok
}

func (lp *LichessProber) ProbeDTZ(pos *board.Position) (int, bool) {
	_, dtz, ok := lp.probe(pos)
	return dtz, ok
}

func (lp *LichessProber) MaxPieces() int {
	return lp.maxPieces
}

func categoryToWDL(category string) (WDL, bool) {
	switch category {
	case "win", "syzygy-win", "maybe-win":
		return WDLWin, true
	case "cursed-win":
		return WDLCursedWin, true
	case "draw":
		return WDLDraw, true
	case "blessed-loss":
		return WDLBlessedLoss, true
	case "loss", "syzygy-loss", "maybe-loss":
		return WDLLoss, true
	}
	return WDLDraw, false
}
