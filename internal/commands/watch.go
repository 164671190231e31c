package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"token-alert-bot/internal/store"
	"token-alert-bot/internal/types"
	"token-alert-bot/lib/helpers"
	"token-alert-bot/lib/translation"
)

func (s *Service) CommandWatch(ctx context.Context, owner, args string) (Reply, error) {
	address := strings.TrimSpace(args)
	if address == "" {
		return Reply{}, &usageError{usage: "Usage: /watch <token address>"}
	}
	if !types.ValidTokenAddress(address) {
		return Reply{}, errors.Wrap(types.ErrInvalidAddress, "command /watch")
	}

	snap, err := s.lookup(ctx, address)
	if err != nil {
		return Reply{}, errors.Wrap(err, "command /watch")
	}

	res, err := s.Watches.Add(owner, address, snap.Symbol)
	if err != nil {
		return Reply{}, errors.Wrap(err, "command /watch")
	}

	symbol := helpers.EscapeHTML(displaySymbol(snap.Symbol, address))
	if res == store.AlreadyPresent {
		return Reply{Text: translation.Translate("<b>%s</b> is already on your watchlist.", symbol)}, nil
	}

	s.persistWatches(ctx)
	return Reply{
		Text: translation.Translate("👀 Watching <b>%s</b>. You will be notified of large 24h moves.", symbol),
		Buttons: []Button{{
			Label: translation.Translate("Stop watching"),
			Data:  CallbackData(CallbackUnwatch, address),
		}},
	}, nil
}

func (s *Service) CommandWatchlist(owner string) Reply {
	entries := s.Watches.ListByOwner(owner)
	if len(entries) == 0 {
		return Reply{Text: translation.Translate("Your watchlist is empty.")}
	}

	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			displaySymbol(e.TokenSymbol, "?"),
			helpers.ShortAddress(e.TokenAddress),
			helpers.FormatAge(e.AddedAt),
		})
	}

	header := translation.Translate("<b>Your watchlist:</b>")
	return Reply{Text: header + "\n" + renderTable([]string{"#", "Token", "Address", "Added"}, rows)}
}

// CommandUnwatch removes a token from the caller's watchlist
func (s *Service) CommandUnwatch(ctx context.Context, owner, args string) (Reply, error) {
	address := strings.TrimSpace(args)
	if address == "" {
		return Reply{}, &usageError{usage: "Usage: /unwatch <token address>"}
	}
	if !types.ValidTokenAddress(address) {
		return Reply{}, errors.Wrap(types.ErrInvalidAddress, "command /unwatch")
	}

	if !s.Watches.Remove(owner, address) {
		return Reply{Text: translation.Translate("%s is not on your watchlist.", helpers.Code(address))}, nil
	}
	s.persistWatches(ctx)
	return Reply{Text: translation.Translate("Stopped watching %s.", helpers.Code(address))}, nil
}
