package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-alert-bot/internal/commands"
	"token-alert-bot/internal/price"
	"token-alert-bot/internal/store"
	"token-alert-bot/internal/types"
)

const tokenA = "So11111111111111111111111111111111111111112"

func newService() *commands.Service {
	backend := store.NewMemoryBackend()
	fetcher := price.FetcherFunc(func(_ context.Context, token string) price.FetchResult {
		v := 1.25
		return price.Found(types.TokenSnapshot{Address: token, Symbol: "SOL", PriceUSD: &v})
	})
	return commands.New(store.NewAlertStore(backend), store.NewWatchStore(backend), fetcher, 0)
}

func TestOwner(t *testing.T) {
	assert.Equal(t, "-100123", Owner(-100123))
}

func TestDispatch(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	owner := Owner(42)

	help := Dispatch(ctx, svc, owner, "start", "")
	assert.Equal(t, commands.CommandHelp(), help.Text)
	assert.Equal(t, help, Dispatch(ctx, svc, owner, "unknown", ""))

	reply := Dispatch(ctx, svc, owner, "alert", tokenA+" above 2")
	require.Len(t, reply.Buttons, 1)
	assert.Len(t, svc.Alerts.ListByOwner(owner), 1)

	failed := Dispatch(ctx, svc, owner, "alert", "bad above 2")
	assert.Equal(t, commands.ErrorText(types.ErrInvalidAddress), failed.Text)
	assert.Empty(t, failed.Buttons)

	Dispatch(ctx, svc, owner, "watch", tokenA)
	assert.Len(t, svc.Watches.ListByOwner(owner), 1)
	assert.Contains(t, Dispatch(ctx, svc, owner, "watchlist", "").Text, "SOL")
}

func TestCallback(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	owner := Owner(42)

	reply := Dispatch(ctx, svc, owner, "alert", tokenA+" below 1")
	require.Len(t, reply.Buttons, 1)

	// another chat cannot cancel it
	_, err := Callback(ctx, svc, Owner(7), reply.Buttons[0].Data)
	assert.ErrorIs(t, err, store.ErrAlertNotFound)

	text, err := Callback(ctx, svc, owner, reply.Buttons[0].Data)
	require.NoError(t, err)
	assert.Contains(t, text, "cancelled")
	assert.Empty(t, svc.Alerts.ListByOwner(owner))

	watch := Dispatch(ctx, svc, owner, "watch", tokenA)
	require.Len(t, watch.Buttons, 1)
	_, err = Callback(ctx, svc, owner, watch.Buttons[0].Data)
	require.NoError(t, err)
	assert.Empty(t, svc.Watches.ListByOwner(owner))

	_, err = Callback(ctx, svc, owner, "alert_select|x")
	assert.ErrorIs(t, err, errUnknownAction)
	_, err = Callback(ctx, svc, owner, "garbage")
	assert.ErrorIs(t, err, errUnknownAction)
}

func TestKeyboard(t *testing.T) {
	kb := keyboard([]commands.Button{{Label: "Cancel", Data: "alert_cancel|1"}, {Label: "Stop", Data: "unwatch|x"}})
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "Cancel", kb.InlineKeyboard[0][0].Text)
	require.NotNil(t, kb.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "unwatch|x", *kb.InlineKeyboard[1][0].CallbackData)
}
