package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"token-alert-bot/internal/store"
	"token-alert-bot/internal/types"
	"token-alert-bot/lib/helpers"
	"token-alert-bot/lib/translation"
)

const alertUsage = "Usage: /alert <token address> <above|below> <price>"

// CommandAlert creates a price alert. Arguments are validated before the token is looked
// up, and the store is persisted once the alert exists.
func (s *Service) CommandAlert(ctx context.Context, owner, args string) (Reply, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return Reply{}, &usageError{usage: alertUsage}
	}

	address := fields[0]
	if !types.ValidTokenAddress(address) {
		return Reply{}, errors.Wrap(types.ErrInvalidAddress, "command /alert")
	}
	condition, err := types.ParseCondition(fields[1])
	if err != nil {
		return Reply{}, errors.Wrap(err, "command /alert")
	}
	target, err := parseTarget(fields[2])
	if err != nil {
		return Reply{}, errors.Wrap(err, "command /alert")
	}

	snap, err := s.lookup(ctx, address)
	if err != nil {
		return Reply{}, errors.Wrap(err, "command /alert")
	}

	alert, err := s.Alerts.Create(owner, address, snap.Symbol, condition, target)
	exists := errors.Is(err, store.ErrAlertExists)
	if err != nil && !exists {
		return Reply{}, errors.Wrap(err, "command /alert")
	}
	if !exists {
		s.persistAlerts(ctx)
		log.WithFields(log.Fields{"owner": owner, "alert": alert.ID}).Info("🔔 Alert created")
	}

	symbol := helpers.EscapeHTML(displaySymbol(alert.TokenSymbol, address))
	var text string
	switch {
	case exists:
		text = translation.Translate("You already have this alert for <b>%s</b>.", symbol)
	case condition == types.ConditionBelow:
		text = translation.Translate("✅ Alert set: <b>%s</b> at or below <b>$%s</b>", symbol, helpers.FormatPriceUS(target))
	default:
		text = translation.Translate("✅ Alert set: <b>%s</b> at or above <b>$%s</b>", symbol, helpers.FormatPriceUS(target))
	}
	if snap.PriceUSD != nil {
		text += "\n" + translation.Translate("Current price: <b>%s</b>", "$"+helpers.FormatPriceUS(*snap.PriceUSD))
	}

	return Reply{
		Text: text,
		Buttons: []Button{{
			Label: translation.Translate("Cancel alert"),
			Data:  CallbackData(CallbackAlertCancel, alert.ID),
		}},
	}, nil
}

// CommandAlerts lists the caller's active alerts
func (s *Service) CommandAlerts(owner string) Reply {
	alerts := s.Alerts.ListByOwner(owner)
	if len(alerts) == 0 {
		return Reply{Text: translation.Translate("You have no active alerts.")}
	}

	rows := make([][]string, 0, len(alerts))
	buttons := make([]Button, 0, len(alerts))
	for i, a := range alerts {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			displaySymbol(a.TokenSymbol, helpers.ShortAddress(a.TokenAddress)),
			string(a.Condition),
			"$" + helpers.FormatPriceUS(a.TargetValue),
			helpers.FormatAge(a.CreatedAt),
		})
		buttons = append(buttons, Button{
			Label: translation.Translate("Cancel #%d", i+1),
			Data:  CallbackData(CallbackAlertCancel, a.ID),
		})
	}

	header := translation.Translate("<b>Your active alerts:</b>")
	table := renderTable([]string{"#", "Token", "When", "Target", "Created"}, rows)
	return Reply{Text: header + "\n" + table, Buttons: buttons}
}

// CancelAlert removes one of the caller's alerts
func (s *Service) CancelAlert(ctx context.Context, owner, id string) (string, error) {
	alert, ok := s.Alerts.Get(owner, id)
	if !ok {
		return "", errors.Wrap(store.ErrAlertNotFound, "cancel alert")
	}
	if err := s.Alerts.Remove(owner, id); err != nil {
		return "", errors.Wrap(err, "cancel alert")
	}
	s.persistAlerts(ctx)

	return translation.Translate("Alert for <b>%s</b> cancelled.",
		helpers.EscapeHTML(displaySymbol(alert.TokenSymbol, alert.TokenAddress))), nil
}
