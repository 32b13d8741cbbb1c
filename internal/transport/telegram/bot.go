// Package telegram exposes the command dispatcher over the Telegram Bot API.
package telegram

import (
	"context"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/rsibot/internal/command"
	"github.com/vadiminshakov/rsibot/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	updateTimeout = 60
	// chatQueueSize bounds pending commands per chat before Run blocks.
	chatQueueSize = 16
)

type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

type handler interface {
	HandleText(ctx context.Context, session, text string) string
}

// Config controls access and pacing.
type Config struct {
	// AllowedChatID restricts commands to one chat when non-zero.
	AllowedChatID     int64
	MessagesPerSecond float64
}

// Bot long-polls for updates and replies with the dispatcher's output.
type Bot struct {
	api     botAPI
	handler handler
	chats   *Chats
	allowed int64
	limiter *rate.Limiter
	l       *zap.Logger
	wg      sync.WaitGroup

	// sendMu keeps the chunks of one message contiguous.
	sendMu sync.Mutex
}

// Dial connects to the Bot API with token.
func Dial(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "connect to telegram")
	}
	return api, nil
}

// New creates a bot. chats receives notification targets and may be shared with the dispatcher.
func New(l *zap.Logger, api botAPI, h handler, chats *Chats, cfg Config) *Bot {
	if l == nil {
		l = zap.NewNop()
	}
	if chats == nil {
		chats = NewChats()
	}
	perSecond := cfg.MessagesPerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Bot{
		api:     api,
		handler: h,
		chats:   chats,
		allowed: cfg.AllowedChatID,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		l:       l.With(zap.String("transport", "telegram")),
	}
}

// Run processes updates until ctx is cancelled. Commands from one chat are handled
// in arrival order; different chats proceed independently. Queued commands finish before it returns.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeout
	updates := b.api.GetUpdatesChan(u)

	b.l.Info("telegram bot started")

	queues := make(map[int64]chan string)
	defer func() {
		for _, q := range queues {
			close(q)
		}
		b.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.l.Info("telegram bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			msg := update.Message
			if b.allowed != 0 && msg.Chat.ID != b.allowed {
				b.l.Warn("ignoring message from unauthorized chat", zap.Int64("chat_id", msg.Chat.ID))
				continue
			}

			q, ok := queues[msg.Chat.ID]
			if !ok {
				q = make(chan string, chatQueueSize)
				queues[msg.Chat.ID] = q
				b.wg.Add(1)
				go b.serve(ctx, msg.Chat.ID, q)
			}
			select {
			case q <- msg.Text:
			case <-ctx.Done():
			}
		}
	}
}

func (b *Bot) serve(ctx context.Context, chatID int64, q <-chan string) {
	defer b.wg.Done()
	for text := range q {
		b.handle(ctx, chatID, text)
	}
}

func (b *Bot) handle(ctx context.Context, chatID int64, text string) {
	reply := b.handler.HandleText(ctx, strconv.FormatInt(chatID, 10), text)
	b.send(ctx, chatID, reply)
}

// send delivers msg in ordered chunks. A failed chunk is logged and the rest are still sent.
func (b *Bot) send(ctx context.Context, chatID int64, msg string) {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	for _, chunk := range command.Chunk(msg, command.MaxMessageLength) {
		if err := b.limiter.Wait(ctx); err != nil {
			return
		}
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			b.l.Error("failed to send message chunk", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}

// Notify forwards every transaction from txs to the remembered chats until ctx ends or txs closes.
func (b *Bot) Notify(ctx context.Context, txs <-chan domain.Transaction) {
	for {
		select {
		case <-ctx.Done():
			return
		case tx, ok := <-txs:
			if !ok {
				return
			}
			text := tx.Strategy + ": " + tx.String()
			for _, id := range b.chats.IDs() {
				b.send(ctx, id, text)
			}
		}
	}
}
