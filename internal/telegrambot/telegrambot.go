// Package telegrambot implements the chat-command admin channel: a
// Telegram bot mapping /bots, /startbot, /stopbot, /pause, /resume,
// /emergency, /startall, /stopall, /status 1:1 onto BotManager's
// operations (/help and /start print the command list), with an
// inline-keyboard confirmation for /emergency.
package telegrambot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/fluxtrade/perpbot/internal/botengine"
	"github.com/fluxtrade/perpbot/internal/botmanager"
)

// Bot handles Telegram interactions for the bot keeper's admin surface.
type Bot struct {
	api     *tgbotapi.BotAPI
	manager *botmanager.BotManager
	chatID  int64
	stopCh  chan struct{}
}

// New connects to the Telegram Bot API and wires the manager's callbacks
// to send chat alerts on trades and errors.
func New(token string, chatID int64, manager *botmanager.BotManager) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegrambot: failed to create bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("telegram bot connected")

	b := &Bot{api: api, manager: manager, chatID: chatID, stopCh: make(chan struct{})}

	if chatID != 0 {
		manager.SetOnTradeCallback(func(evt botengine.OnTradeEvent) { b.sendTradeAlert(evt) })
		manager.SetOnErrorCallback(func(botID string, err error) { b.sendErrorAlert(botID, err) })
	}

	return b, nil
}

// Start begins the command listener and, if a chat ID is configured,
// announces startup.
func (b *Bot) Start() {
	go b.listenForCommands()
	if b.chatID != 0 {
		b.sendText(b.chatID, "Bot keeper online. Use /help for commands.")
	}
}

// Stop stops the command listener.
func (b *Bot) Stop() {
	close(b.stopCh)
}

func (b *Bot) listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				go b.handleMessage(update.Message)
			}
			if update.CallbackQuery != nil {
				go b.handleCallback(update.CallbackQuery)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "help", "start":
		b.cmdHelp(chatID)
	case "bots":
		b.cmdBots(chatID)
	case "status":
		b.cmdStatus(chatID, args)
	case "startbot":
		b.cmdStartBot(chatID, args)
	case "stopbot":
		b.cmdStopBot(chatID, args)
	case "pause":
		b.cmdPause(chatID, args)
	case "resume":
		b.cmdResume(chatID, args)
	case "emergency":
		b.confirmEmergency(chatID, args)
	case "startall":
		b.cmdStartAll(chatID)
	case "stopall":
		b.cmdStopAll(chatID)
	default:
		b.sendText(chatID, "Unknown command. Use /help for available commands.")
	}
}

func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	b.api.Request(tgbotapi.NewCallback(cb.ID, ""))

	const emergencyPrefix = "emergency_confirm:"
	if strings.HasPrefix(cb.Data, emergencyPrefix) {
		b.cmdEmergency(chatID, strings.TrimPrefix(cb.Data, emergencyPrefix))
		return
	}
	if cb.Data == "emergency_cancel" {
		b.sendText(chatID, "Cancelled.")
	}
}

func (b *Bot) cmdHelp(chatID int64) {
	b.sendText(chatID, `Commands:
/bots - list registered bots
/status <name> - bot status
/startbot <name> - start a bot
/stopbot <name> - stop a bot
/pause <name> - pause entries
/resume <name> - resume entries
/emergency <name> - close position immediately
/startall - start every bot
/stopall - stop every bot`)
}

func (b *Bot) cmdBots(chatID int64) {
	summary := b.manager.GetSummary()
	if summary.Total == 0 {
		b.sendText(chatID, "No bots registered.")
		return
	}
	var lines []string
	for _, bot := range summary.Bots {
		state := "stopped"
		if bot.IsRunning {
			state = "running"
		}
		if bot.IsPaused {
			state += ", paused"
		}
		lines = append(lines, fmt.Sprintf("%s (%s): %s", bot.Name, bot.Symbol, state))
	}
	b.sendText(chatID, fmt.Sprintf("%d bots (%d running, %d paused):\n%s",
		summary.Total, summary.Running, summary.Paused, strings.Join(lines, "\n")))
}

func (b *Bot) cmdStatus(chatID int64, name string) {
	if name == "" {
		b.sendText(chatID, "Usage: /status <name>")
		return
	}
	instance := b.manager.GetBot(name)
	if instance == nil {
		b.sendText(chatID, fmt.Sprintf("No such bot: %s", name))
		return
	}
	snap := instance.Snapshot()
	text := fmt.Sprintf("%s\nRunning: %v\nPaused: %v\nLast signal: %s\nLoop count: %d\nCurrent price: %s",
		name, snap.IsRunning, snap.IsPaused, snap.LastSignal, snap.LoopCount, snap.CurrentPrice.String())
	if snap.Position != nil {
		text += fmt.Sprintf("\nPosition: %s %s @ %s", snap.Position.Side, snap.Position.Quantity.String(), snap.Position.EntryPrice.String())
	}
	b.sendText(chatID, text)
}

func (b *Bot) cmdStartBot(chatID int64, name string) {
	if err := b.manager.StartBot(context.Background(), name); err != nil {
		b.sendText(chatID, fmt.Sprintf("Failed to start %s: %s", name, err))
		return
	}
	b.sendText(chatID, fmt.Sprintf("%s started.", name))
}

func (b *Bot) cmdStopBot(chatID int64, name string) {
	if err := b.manager.StopBot(context.Background(), name); err != nil {
		b.sendText(chatID, fmt.Sprintf("Failed to stop %s: %s", name, err))
		return
	}
	b.sendText(chatID, fmt.Sprintf("%s stopped.", name))
}

func (b *Bot) cmdPause(chatID int64, name string) {
	if err := b.manager.PauseBot(name); err != nil {
		b.sendText(chatID, fmt.Sprintf("Failed to pause %s: %s", name, err))
		return
	}
	b.sendText(chatID, fmt.Sprintf("%s paused.", name))
}

func (b *Bot) cmdResume(chatID int64, name string) {
	if err := b.manager.ResumeBot(name); err != nil {
		b.sendText(chatID, fmt.Sprintf("Failed to resume %s: %s", name, err))
		return
	}
	b.sendText(chatID, fmt.Sprintf("%s resumed.", name))
}

// confirmEmergency asks for confirmation before closing a position,
// since emergency-close is destructive and irreversible.
func (b *Bot) confirmEmergency(chatID int64, name string) {
	if name == "" || b.manager.GetBot(name) == nil {
		b.sendText(chatID, fmt.Sprintf("No such bot: %s", name))
		return
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Emergency-close %s? This closes any open position immediately.", name))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Confirm", "emergency_confirm:"+name),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "emergency_cancel"),
		),
	)
	b.api.Send(msg)
}

func (b *Bot) cmdEmergency(chatID int64, name string) {
	instance := b.manager.GetBot(name)
	if instance == nil {
		b.sendText(chatID, fmt.Sprintf("No such bot: %s", name))
		return
	}
	instance.EmergencyClose()
	b.sendText(chatID, fmt.Sprintf("Emergency close requested for %s.", name))
}

func (b *Bot) cmdStartAll(chatID int64) {
	b.manager.StartAll(context.Background())
	b.sendText(chatID, "All bots started.")
}

func (b *Bot) cmdStopAll(chatID int64) {
	b.manager.StopAll(context.Background())
	b.sendText(chatID, "All bots stopped.")
}

func (b *Bot) sendTradeAlert(evt botengine.OnTradeEvent) {
	if b.chatID == 0 {
		return
	}
	text := fmt.Sprintf("%s %s %s @ %s qty %s", evt.Kind, evt.BotID, evt.Side, evt.Price.String(), evt.Quantity.String())
	if evt.Kind == "CLOSE" {
		text += fmt.Sprintf(" pnl %s (%s)", evt.PnL.String(), evt.ExitReason)
	}
	b.sendText(b.chatID, text)
}

func (b *Bot) sendErrorAlert(botID string, err error) {
	if b.chatID == 0 {
		return
	}
	b.sendText(b.chatID, fmt.Sprintf("%s error: %s", botID, err))
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("telegrambot: send failed")
	}
}
