package commands

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"token-alert-bot/lib/helpers"
	"token-alert-bot/lib/translation"
)

func (s *Service) CommandPrice(ctx context.Context, argument string) (Reply, error) {
	log.Debugf("processing command /p with argument: %s", argument)

	address := strings.TrimSpace(argument)
	if address == "" {
		return Reply{}, &usageError{usage: "Usage: /p <token address>"}
	}

	snap, err := s.lookup(ctx, address)
	if err != nil {
		return Reply{}, errors.Wrap(err, "command /p")
	}

	name := displaySymbol(snap.Symbol, address)
	if snap.Name != "" {
		name = snap.Name + " (" + displaySymbol(snap.Symbol, address) + ")"
	}

	lines := []string{translation.Translate("<b>%s price:</b>", helpers.EscapeHTML(name)), ""}
	if snap.PriceUSD == nil {
		lines = append(lines, translation.Translate("This token has no current price."))
	} else {
		lines = append(lines, "▫️ "+helpers.Code("$"+helpers.FormatPriceUS(*snap.PriceUSD)))
	}
	if snap.Change24hPct != nil {
		lines = append(lines, translation.Translate("▫️ 24h: <b>%s</b>", helpers.FormatPercent(*snap.Change24hPct)))
	}
	lines = append(lines, "", helpers.Code(address))

	return Reply{Text: strings.Join(lines, "\n")}, nil
}
