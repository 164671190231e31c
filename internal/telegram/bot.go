package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"token-alert-bot/internal/commands"
	"token-alert-bot/lib/translation"
)

// NewBot creates new telegram bot
func NewBot(c BotConfig, svc *commands.Service) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	return &Bot{
		Bot:      bot,
		Config:   c,
		commands: svc,
	}, nil
}

// GetUpdatesChannel gets new updates updates
func (b *Bot) GetUpdatesChannel() tgbotapi.UpdatesChannel {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig)
}

// StopUpdates stops long polling and closes the updates channel
func (b *Bot) StopUpdates() {
	b.Bot.StopReceivingUpdates()
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = tgbotapi.ModeHTML
	if len(m.Buttons) > 0 {
		msg.ReplyMarkup = keyboard(m.Buttons)
	}
	_, err := b.Bot.Send(msg)
	return errors.Wrapf(err, "could not send message to %d", m.ChatID)
}

// Notify delivers an engine notification to the chat named by recipientID
func (b *Bot) Notify(ctx context.Context, recipientID, text string) error {
	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid recipient %q", recipientID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.SendMessage(Message{ChatID: chatID, Text: text})
}

func keyboard(buttons []commands.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, btn := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Owner is the store owner id of a chat; notifications go back to the same chat
func Owner(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// HandleUpdate processes a command message and returns the reply to send
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) Message {
	log.Debugf("received command: %s", u.Message.Command())

	reply := Dispatch(ctx, b.commands, Owner(u.Message.Chat.ID), u.Message.Command(), u.Message.CommandArguments())
	return Message{
		ChatID:    u.Message.Chat.ID,
		MessageID: u.Message.MessageID,
		Text:      reply.Text,
		Buttons:   reply.Buttons,
	}
}

// Dispatch runs a chat command for owner. Unknown commands get the help text.
func Dispatch(ctx context.Context, svc *commands.Service, owner, command, args string) commands.Reply {
	var (
		reply commands.Reply
		err   error
	)

	switch command {
	case "p":
		reply, err = svc.CommandPrice(ctx, args)
	case "alert":
		reply, err = svc.CommandAlert(ctx, owner, args)
	case "alerts":
		reply = svc.CommandAlerts(owner)
	case "watch":
		reply, err = svc.CommandWatch(ctx, owner, args)
	case "watchlist":
		reply = svc.CommandWatchlist(owner)
	case "unwatch":
		reply, err = svc.CommandUnwatch(ctx, owner, args)
	default:
		reply = commands.Reply{Text: commands.CommandHelp()}
	}

	if err != nil {
		log.WithField("owner", owner).Debugf("command /%s failed: %v", command, err)
		return commands.Reply{Text: commands.ErrorText(err)}
	}
	return reply
}

func (b *Bot) HandleCallbackQuery(ctx context.Context, callbackQuery *tgbotapi.CallbackQuery) {
	if callbackQuery.Message == nil {
		b.answer(callbackQuery.ID, translation.Translate("Unknown action. Please try again."))
		return
	}
	chatID := callbackQuery.Message.Chat.ID

	text, err := Callback(ctx, b.commands, Owner(chatID), callbackQuery.Data)
	if err != nil {
		log.WithField("chat", chatID).Debugf("callback %q failed: %v", callbackQuery.Data, err)
		b.answer(callbackQuery.ID, commands.ErrorText(err))
		return
	}

	b.answer(callbackQuery.ID, translation.Translate("Done."))
	if err := b.SendMessage(Message{ChatID: chatID, Text: text}); err != nil {
		log.Error(err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.Bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Errorf("Failed to answer callback: %v", err)
	}
}

var errUnknownAction = errors.New("unknown callback action")

// Callback runs an inline button action for owner and returns the confirmation text
func Callback(ctx context.Context, svc *commands.Service, owner, data string) (string, error) {
	action, argument, ok := commands.ParseCallback(data)
	if !ok {
		return "", errUnknownAction
	}

	switch action {
	case commands.CallbackAlertCancel:
		return svc.CancelAlert(ctx, owner, argument)
	case commands.CallbackUnwatch:
		reply, err := svc.CommandUnwatch(ctx, owner, argument)
		return reply.Text, err
	default:
		return "", errUnknownAction
	}
}
