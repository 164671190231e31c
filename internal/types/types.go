package types

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Condition is the direction an alert watches the price in
type Condition string

const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

// ParseCondition accepts "above" or "below" in any case
func ParseCondition(s string) (Condition, error) {
	switch c := Condition(strings.ToLower(strings.TrimSpace(s))); c {
	case ConditionAbove, ConditionBelow:
		return c, nil
	}
	return "", ErrInvalidCondition
}

func (c Condition) Valid() bool {
	return c == ConditionAbove || c == ConditionBelow
}

type Alert struct {
	ID           string     `json:"id"`
	Owner        string     `json:"owner"`
	TokenAddress string     `json:"token_address"`
	TokenSymbol  string     `json:"token_symbol"`
	Condition    Condition  `json:"condition"`
	TargetValue  float64    `json:"target_value"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	TriggeredAt  *time.Time `json:"triggered_at,omitempty"`
}

type WatchEntry struct {
	OwnerID      string    `json:"owner_id"`
	TokenAddress string    `json:"token_address"`
	TokenSymbol  string    `json:"token_symbol"`
	AddedAt      time.Time `json:"added_at"`
}

// TokenSnapshot is a point-in-time market reading. PriceUSD and Change24hPct are nil
// when the provider does not report them.
type TokenSnapshot struct {
	Address      string
	Symbol       string
	Name         string
	PriceUSD     *float64
	Change24hPct *float64
	FetchedAt    time.Time
}

// alertNamespace scopes the name-based alert ids
var alertNamespace = uuid.MustParse("6f1c1d8e-3b5a-5c7e-9a2f-4d0b8e6a1c37")

// DeriveAlertID returns the same id for the same (owner, token, condition, target) tuple.
func DeriveAlertID(owner, tokenAddress string, condition Condition, target float64) string {
	return DeriveAlertIDGen(owner, tokenAddress, condition, target, 0)
}

// DeriveAlertIDGen is DeriveAlertID for the generation'th alert on the same tuple.
// Generation 0 is DeriveAlertID itself.
func DeriveAlertIDGen(owner, tokenAddress string, condition Condition, target float64, generation int) string {
	parts := []string{
		owner,
		tokenAddress,
		string(condition),
		strconv.FormatFloat(target, 'g', -1, 64),
	}
	if generation > 0 {
		parts = append(parts, strconv.Itoa(generation))
	}
	return uuid.NewSHA1(alertNamespace, []byte(strings.Join(parts, "|"))).String()
}
