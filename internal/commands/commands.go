package commands

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"token-alert-bot/internal/price"
	"token-alert-bot/internal/store"
	"token-alert-bot/internal/types"
	"token-alert-bot/lib/helpers"
	"token-alert-bot/lib/translation"
)

const (
	CallbackAlertCancel = "alert_cancel"
	CallbackUnwatch     = "unwatch"

	defaultFetchTimeout = 10 * time.Second
)

var (
	ErrTokenNotFound       = errors.New("token not found")
	ErrProviderUnavailable = errors.New("price provider unavailable")
)

// Button is an inline button attached to a reply
type Button struct {
	Label string
	Data  string
}

// Reply is the text of a command answer, in Telegram HTML, plus optional buttons
type Reply struct {
	Text    string
	Buttons []Button
}

type usageError struct {
	usage string
}

func (e *usageError) Error() string {
	return "usage: " + e.usage
}

// Service runs chat commands against the stores and the snapshot fetcher.
type Service struct {
	Alerts       *store.AlertStore
	Watches      *store.WatchStore
	Fetcher      price.Fetcher
	FetchTimeout time.Duration
}

func New(alerts *store.AlertStore, watches *store.WatchStore, fetcher price.Fetcher, fetchTimeout time.Duration) *Service {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Service{
		Alerts:       alerts,
		Watches:      watches,
		Fetcher:      fetcher,
		FetchTimeout: fetchTimeout,
	}
}

// CallbackData encodes an inline button payload as "action|argument"
func CallbackData(action, argument string) string {
	return action + "|" + argument
}

// ParseCallback splits callback data produced by CallbackData
func ParseCallback(data string) (action, argument string, ok bool) {
	action, argument, ok = strings.Cut(data, "|")
	if !ok || action == "" || argument == "" {
		return "", "", false
	}
	return action, argument, true
}

func CommandHelp() string {
	return translation.Translate("Command help message")
}

// ErrorText maps a command error to the text shown to the user
func ErrorText(err error) string {
	var usage *usageError
	switch {
	case errors.As(err, &usage):
		return helpers.EscapeHTML(translation.Translate(usage.usage))
	case errors.Is(err, types.ErrInvalidAddress):
		return translation.Translate("Invalid token address. Send the mint address of a Solana token.")
	case errors.Is(err, types.ErrInvalidCondition):
		return translation.Translate("The condition must be <b>above</b> or <b>below</b>.")
	case errors.Is(err, types.ErrInvalidTarget):
		return translation.Translate("The target price must be a positive number.")
	case errors.Is(err, ErrTokenNotFound):
		return translation.Translate("Token not found.")
	case errors.Is(err, ErrProviderUnavailable):
		return translation.Translate("The price provider is not responding, please try again later.")
	case errors.Is(err, store.ErrAlertNotFound):
		return translation.Translate("Alert not found.")
	default:
		return translation.Translate("Something went wrong, please try again later.")
	}
}

// lookup fetches the current snapshot of a token. The address is validated before any
// request is made.
func (s *Service) lookup(ctx context.Context, tokenAddress string) (types.TokenSnapshot, error) {
	if !types.ValidTokenAddress(tokenAddress) {
		return types.TokenSnapshot{}, types.ErrInvalidAddress
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.FetchTimeout)
	defer cancel()

	res := s.Fetcher.Fetch(fetchCtx, tokenAddress)
	switch res.Outcome {
	case price.OutcomeFound:
		return res.Snapshot, nil
	case price.OutcomeNotFound:
		if errors.Is(res.Err, types.ErrInvalidAddress) {
			return types.TokenSnapshot{}, types.ErrInvalidAddress
		}
		return types.TokenSnapshot{}, ErrTokenNotFound
	default:
		log.WithField("token", tokenAddress).Warnf("Price lookup failed: %v", res.Err)
		return types.TokenSnapshot{}, ErrProviderUnavailable
	}
}

func (s *Service) persistAlerts(ctx context.Context) {
	if err := s.Alerts.Persist(ctx); err != nil {
		log.Errorf("❌ Failed to persist alerts: %v", err)
	}
}

func (s *Service) persistWatches(ctx context.Context) {
	if err := s.Watches.Persist(ctx); err != nil {
		log.Errorf("❌ Failed to persist watchlist: %v", err)
	}
}

func displaySymbol(symbol, address string) string {
	if symbol != "" {
		return symbol
	}
	return address
}
