// Package telegram pushes formatted reports to a single fixed chat via
// the Bot API, splitting oversized text into chunks the endpoint will
// accept and retrying each chunk with exponential backoff.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/dr4g00n/TG-monitor/internal/config"
	"github.com/dr4g00n/TG-monitor/internal/metrics"
	"github.com/dr4g00n/TG-monitor/internal/report"
)

// DeliveryError reports a chunk that could not be sent within the
// retry budget. Chunks sent before it stay delivered; the endpoint has
// no transactional semantics to roll them back.
type DeliveryError struct {
	ReportID string
	Chunk    int
	Chunks   int
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver report %s: chunk %d/%d failed after %d attempts: %v",
		e.ReportID, e.Chunk, e.Chunks, e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Sender is the slice of the bot API the client needs; it keeps the
// real bot out of tests.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory creates Sender instances.
type BotFactory func(token string, client *http.Client) (Sender, error)

var defaultBotFactory BotFactory = func(token string, client *http.Client) (Sender, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

type Client struct {
	targetChat  int64
	chunkLimit  int
	maxAttempts int
	baseDelay   time.Duration
	bot         Sender
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

func NewClient(cfg config.TelegramConfig, logger *zap.Logger) (*Client, error) {
	return NewClientWithFactory(cfg, logger, defaultBotFactory)
}

// NewClientWithFactory creates a Client with a custom bot factory for
// testing.
func NewClientWithFactory(cfg config.TelegramConfig, logger *zap.Logger, factory BotFactory) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if cfg.TargetChat == 0 {
		return nil, fmt.Errorf("telegram target chat is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	bot, err := factory(cfg.BotToken, httpClient)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Client{
		targetChat:  cfg.TargetChat,
		chunkLimit:  cfg.ChunkLimit,
		maxAttempts: cfg.MaxRetries,
		baseDelay:   time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		bot:         bot,
		logger:      logger.Named("telegram"),
		metrics:     metrics.New(),
	}, nil
}

// Deliver sends the report, chunked to the configured limit. Chunks go
// out in order; the first chunk to exhaust its retry budget aborts the
// rest and surfaces a DeliveryError.
func (c *Client) Deliver(ctx context.Context, rep report.Summary) error {
	chunks := SplitChunks(rep.FormattedText, c.chunkLimit)
	c.logger.Info("delivering report",
		zap.String("report_id", rep.ID),
		zap.Int("chunks", len(chunks)),
		zap.Int("text_len", len(rep.FormattedText)),
	)

	for i, chunk := range chunks {
		if err := c.sendChunk(ctx, chunk); err != nil {
			c.metrics.DeliveryFailures.Inc()
			return &DeliveryError{
				ReportID: rep.ID,
				Chunk:    i + 1,
				Chunks:   len(chunks),
				Attempts: c.maxAttempts,
				Err:      err,
			}
		}
	}
	return nil
}

func (c *Client) sendChunk(ctx context.Context, chunk string) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.baseDelay
	expo.Multiplier = 2
	expo.RandomizationFactor = 0

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		c.metrics.DeliveryAttempts.Inc()

		msg := tgbotapi.NewMessage(c.targetChat, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdown
		_, err := c.bot.Send(msg)
		if err != nil {
			// Model-supplied text can break Markdown parsing, and a
			// parse rejection never heals on retry. Resend the chunk
			// as plain text before spending a backoff attempt.
			msg.ParseMode = ""
			if _, perr := c.bot.Send(msg); perr == nil {
				c.logger.Warn("chunk sent as plain text after parse-mode failure",
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				return struct{}{}, nil
			}
			c.logger.Warn("chunk send failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(c.maxAttempts)),
	)
	return err
}

// SplitChunks splits text into pieces no longer than limit bytes,
// preferring paragraph breaks, then line breaks, over a hard cut.
func SplitChunks(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= limit {
			chunks = append(chunks, text)
			break
		}

		cut := limit
		window := text[:limit]
		if idx := lastBoundary(window, "\n\n"); idx > 0 {
			cut = idx
		} else if idx := lastBoundary(window, "\n"); idx > 0 {
			cut = idx
		} else {
			// Hard cut: back up so a multi-byte rune is never split,
			// or every chunk of a long CJK line comes out invalid.
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				_, size := utf8.DecodeRuneInString(text)
				cut = size
			}
		}

		chunks = append(chunks, text[:cut])
		text = trimLeadingNewlines(text[cut:])
	}
	return chunks
}

// lastBoundary returns the index of the final occurrence of sep, or -1
// when sep is absent or would produce an empty chunk.
func lastBoundary(window, sep string) int {
	idx := strings.LastIndex(window, sep)
	if idx <= 0 {
		return -1
	}
	return idx
}

func trimLeadingNewlines(s string) string {
	return strings.TrimLeft(s, "\r\n")
}
