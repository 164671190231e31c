package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"token-alert-bot/internal/types"
)

const (
	DefaultBaseURL = "https://api.dexscreener.com"
	DefaultTimeout = 10 * time.Second

	// token responses list at most a few dozen pairs
	maxBodyBytes = 2 << 20
)

var errNoPairs = errors.New("provider has no trading pairs for token")

type dexPair struct {
	ChainID   string `json:"chainId"`
	PairAddr  string `json:"pairAddress"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD    string `json:"priceUsd"`
	PriceChange *struct {
		H24 *float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

type dexResponse struct {
	Pairs []dexPair `json:"pairs"`
}

// DexScreener fetches token snapshots from the DexScreener token endpoint.
type DexScreener struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func NewDexScreener(baseURL string, timeout time.Duration) *DexScreener {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &DexScreener{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Fetch returns the snapshot of the most liquid pair trading the token.
func (d *DexScreener) Fetch(ctx context.Context, tokenAddress string) FetchResult {
	if !types.ValidTokenAddress(tokenAddress) {
		return NotFound(types.ErrInvalidAddress)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/latest/dex/tokens/%s", d.baseURL, tokenAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Transient(errors.Wrap(err, "create request failed"))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return Transient(errors.Wrap(err, "request failed"))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return NotFound(errors.Errorf("provider returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return Transient(errors.Errorf("unexpected status: %d", resp.StatusCode))
	}

	var body dexResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return Transient(errors.Wrap(err, "decode failed"))
	}

	pair, ok := bestPair(tokenAddress, body.Pairs)
	if !ok {
		return NotFound(errNoPairs)
	}

	if log.IsLevelEnabled(log.TraceLevel) {
		log.Tracef("Selected pair for %s: %s", tokenAddress, spew.Sdump(pair))
	}

	return Found(toSnapshot(tokenAddress, pair))
}

// bestPair picks the pair with the deepest USD liquidity whose base token is the one asked for.
func bestPair(tokenAddress string, pairs []dexPair) (dexPair, bool) {
	var (
		best  dexPair
		found bool
	)
	for _, p := range pairs {
		if p.BaseToken.Address != tokenAddress {
			continue
		}
		if !found || liquidity(p) > liquidity(best) {
			best, found = p, true
		}
	}
	return best, found
}

func liquidity(p dexPair) float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

func toSnapshot(tokenAddress string, p dexPair) types.TokenSnapshot {
	s := types.TokenSnapshot{
		Address:   tokenAddress,
		Symbol:    p.BaseToken.Symbol,
		Name:      p.BaseToken.Name,
		FetchedAt: time.Now().UTC(),
	}

	if v, err := strconv.ParseFloat(p.PriceUSD, 64); err == nil && v >= 0 && !math.IsInf(v, 0) {
		s.PriceUSD = &v
	} else if p.PriceUSD != "" {
		log.WithField("token", tokenAddress).Debugf("Ignoring unparseable price %q", p.PriceUSD)
	}

	if p.PriceChange != nil && p.PriceChange.H24 != nil {
		change := *p.PriceChange.H24
		s.Change24hPct = &change
	}

	return s
}
