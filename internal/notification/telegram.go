package notification

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/olegiv/logtriage-go/internal/analyzer"
	internalerrors "github.com/olegiv/logtriage-go/internal/errors"
	"github.com/olegiv/logtriage-go/internal/triage"
)

const (
	maxMessageLength = 4096
	// minMessageInterval is the minimum time between messages to the same channel
	// to stay under Telegram rate limits
	minMessageInterval = 1 * time.Second
	// maxRetries is the maximum number of retry attempts for sending messages
	maxRetries = 3
	// baseRetryDelay is the initial delay between retries (doubles each attempt)
	baseRetryDelay = 2 * time.Second

	// maxClustersShown caps the clusters listed in one report
	maxClustersShown = 5
	// maxExampleRunes truncates raw examples before escaping
	maxExampleRunes = 300
	// httpTimeout bounds a single Bot API request
	httpTimeout = 30 * time.Second
	// alertErrorRatio is the error-ish share of all lines that triggers an alert
	alertErrorRatio = 0.05
)

// sender is the part of the bot API used for delivery.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramClient handles Telegram notifications
type TelegramClient struct {
	bot             sender
	botName         string
	archiveChannel  int64
	alertsChannel   int64
	hostname        string
	lastMessageTime time.Time
	minInterval     time.Duration
	retryDelay      time.Duration
	stop            func()
}

// NewTelegramClient creates a new Telegram client. alertsChannel may be 0;
// proxyURL, when set, routes Bot API requests through an HTTP proxy.
func NewTelegramClient(botToken string, archiveChannel, alertsChannel int64, proxyURL string) (*TelegramClient, error) {
	httpClient := &http.Client{Timeout: httpTimeout}
	if proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			return nil, internalerrors.Wrapf(err, "invalid proxy URL")
		}
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxy)}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(botToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		// The API error can echo the request URL, which embeds the token.
		return nil, internalerrors.Wrapf(err, "failed to create Telegram bot")
	}

	client := newClient(bot, archiveChannel, alertsChannel)
	client.botName = bot.Self.UserName
	client.stop = bot.StopReceivingUpdates
	return client, nil
}

func newClient(bot sender, archiveChannel, alertsChannel int64) *TelegramClient {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &TelegramClient{
		bot:            bot,
		archiveChannel: archiveChannel,
		alertsChannel:  alertsChannel,
		hostname:       hostname,
		minInterval:    minMessageInterval,
		retryDelay:     baseRetryDelay,
	}
}

// ShouldAlert reports whether a triage result is bad enough for the alerts
// channel: any FATAL line, or error-ish lines above alertErrorRatio.
func ShouldAlert(rep *analyzer.TriageReport) bool {
	if rep == nil || rep.Levels == nil {
		return false
	}
	if rep.Levels.LevelCounts[triage.LevelFatal] > 0 {
		return true
	}
	if rep.Clusters == nil || rep.Levels.TotalLines == 0 {
		return false
	}
	return float64(rep.Clusters.ExtractedErrorish)/float64(rep.Levels.TotalLines) >= alertErrorRatio
}

// SendTriageReport sends a triage summary to the archive channel, and to the
// alerts channel when ShouldAlert holds.
func (t *TelegramClient) SendTriageReport(rep *analyzer.TriageReport) error {
	if rep == nil || rep.Levels == nil || rep.Clusters == nil {
		return fmt.Errorf("incomplete triage report")
	}

	message := t.formatMessage(rep)

	if err := t.sendToChannel(t.archiveChannel, message); err != nil {
		return fmt.Errorf("failed to send to archive channel: %w", err)
	}

	if t.alertsChannel != 0 && ShouldAlert(rep) {
		if err := t.sendToChannel(t.alertsChannel, message); err != nil {
			return fmt.Errorf("failed to send to alerts channel: %w", err)
		}
	}

	return nil
}

// formatMessage formats a triage report into a MarkdownV2 message
func (t *TelegramClient) formatMessage(rep *analyzer.TriageReport) string {
	levels, clusters := rep.Levels, rep.Clusters

	var msg strings.Builder

	status := "🟢"
	if ShouldAlert(rep) {
		status = "🔴"
	}

	// Header
	msg.WriteString(fmt.Sprintf("%s *Log Triage Report*\n", status))
	msg.WriteString(fmt.Sprintf("🖥 Host\\: %s\n", escapeMarkdown(t.hostname)))
	msg.WriteString(fmt.Sprintf("📄 File\\: %s\n", escapeMarkdown(rep.LogPath)))
	msg.WriteString(fmt.Sprintf("📅 Date\\: %s\n\n", escapeMarkdown(time.Now().Format("2006-01-02 15:04:05"))))

	msg.WriteString("📋 *Lines*\n")
	msg.WriteString(fmt.Sprintf("• Total\\: %d\n", levels.TotalLines))
	msg.WriteString(fmt.Sprintf("• Error\\-ish\\: %d\n", clusters.ExtractedErrorish))
	msg.WriteString(fmt.Sprintf("• Clusters\\: %d\n\n", len(clusters.Clusters)))

	msg.WriteString("📊 *Levels*\n")
	ordered := triage.OrderedLevels(levels.LevelCounts)
	if len(ordered) == 0 {
		msg.WriteString("No level tags found\n")
	}
	for _, lvl := range ordered {
		msg.WriteString(fmt.Sprintf("• %s\\: %d\n", escapeMarkdown(string(lvl)), levels.LevelCounts[lvl]))
	}
	msg.WriteString("\n")

	if busiest := triage.TopBins(levels.TimeBins, 3); len(busiest) > 0 {
		msg.WriteString(fmt.Sprintf("⏱ *Busiest %d\\-minute bins*\n", levels.BinMinutes))
		for _, bin := range busiest {
			msg.WriteString(fmt.Sprintf("• %s\\: %d\n", escapeMarkdown(bin.Start), bin.Count))
		}
		msg.WriteString("\n")
	}

	if len(clusters.Clusters) > 0 {
		shown := clusters.Clusters
		if len(shown) > maxClustersShown {
			shown = shown[:maxClustersShown]
		}
		msg.WriteString(fmt.Sprintf("🔴 *Top Clusters* \\(%d\\)\n", len(shown)))
		for i, c := range shown {
			rep := internalerrors.SanitizeString(c.Rep)
			msg.WriteString(fmt.Sprintf("%d\\. ×%d %s\n", i+1, c.Count, escapeMarkdown(truncateRunes(rep, maxExampleRunes))))
			if len(c.Examples) > 0 {
				example := internalerrors.SanitizeString(c.Examples[0])
				msg.WriteString(fmt.Sprintf("   ↳ %s\n", escapeMarkdown(truncateRunes(example, maxExampleRunes))))
			}
		}
	}

	return msg.String()
}

// sendToChannel sends a message to a Telegram channel with rate limiting
func (t *TelegramClient) sendToChannel(channelID int64, message string) error {
	// Split message if it exceeds Telegram's limit
	messages := t.splitMessage(message)

	for _, msg := range messages {
		t.waitForRateLimit()

		msgConfig := tgbotapi.NewMessage(channelID, msg)
		msgConfig.ParseMode = tgbotapi.ModeMarkdownV2

		if err := t.sendWithRetry(msgConfig); err != nil {
			return err
		}

		t.lastMessageTime = time.Now()
	}

	return nil
}

// waitForRateLimit ensures minimum interval between messages
func (t *TelegramClient) waitForRateLimit() {
	if t.lastMessageTime.IsZero() {
		return
	}

	elapsed := time.Since(t.lastMessageTime)
	if elapsed < t.minInterval {
		time.Sleep(t.minInterval - elapsed)
	}
}

// sendWithRetry sends a message with exponential backoff retry
func (t *TelegramClient) sendWithRetry(msgConfig tgbotapi.MessageConfig) error {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		_, err := t.bot.Send(msgConfig)
		if err == nil {
			return nil
		}

		lastErr = err

		if isRateLimitError(err) && attempt < maxRetries {
			time.Sleep(time.Duration(extractRetryAfter(err)) * time.Second)
			continue
		}

		if attempt < maxRetries {
			delay := t.retryDelay * time.Duration(1<<(attempt-1)) // 2s, 4s, 8s...
			time.Sleep(delay)
		}
	}

	return internalerrors.Wrapf(lastErr, "failed to send message after %d retries", maxRetries)
}

// isRateLimitError checks if the error is a Telegram rate limit error (429)
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests")
}

// extractRetryAfter extracts the retry_after value from a rate limit error
func extractRetryAfter(err error) int {
	if err == nil {
		return 0
	}

	// Example: "Too Many Requests: retry after 30"
	errStr := err.Error()

	if idx := strings.Index(strings.ToLower(errStr), "retry after "); idx != -1 {
		remaining := errStr[idx+len("retry after "):]
		var seconds int
		if _, err := fmt.Sscanf(remaining, "%d", &seconds); err == nil && seconds >= 0 {
			return seconds
		}
	}

	// Conservative default when the value is missing
	return 30
}

// splitMessage splits a long message into multiple messages on line
// boundaries. Lines longer than the limit are cut on rune boundaries, never
// between a backslash and the character it escapes.
func (t *TelegramClient) splitMessage(message string) []string {
	if len(message) <= maxMessageLength {
		return []string{message}
	}

	var messages []string
	lines := strings.Split(message, "\n")
	var currentMsg strings.Builder

	for _, line := range lines {
		if currentMsg.Len()+len(line)+1 > maxMessageLength {
			if currentMsg.Len() > 0 {
				messages = append(messages, currentMsg.String())
				currentMsg.Reset()
			}

			if len(line) > maxMessageLength {
				messages = append(messages, splitLine(line, maxMessageLength)...)
				continue
			}
		}

		currentMsg.WriteString(line)
		currentMsg.WriteString("\n")
	}

	if currentMsg.Len() > 0 {
		messages = append(messages, currentMsg.String())
	}

	return messages
}

func splitLine(line string, limit int) []string {
	var parts []string
	for len(line) > limit {
		end := limit
		for end > 0 && !utf8.RuneStart(line[end]) {
			end--
		}
		// An odd run of backslashes ends in an unfinished escape.
		run := 0
		for run < end && line[end-1-run] == '\\' {
			run++
		}
		if run%2 == 1 {
			end--
		}
		if end == 0 {
			end = limit
		}
		parts = append(parts, line[:end])
		line = line[end:]
	}
	if line != "" {
		parts = append(parts, line)
	}
	return parts
}

// markdownEscaper escapes special characters for Telegram MarkdownV2.
// See: https://core.telegram.org/bots/api#markdownv2-style
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`, ":", `\:`,
)

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}

// GetBotInfo returns information about the bot
func (t *TelegramClient) GetBotInfo() map[string]interface{} {
	return map[string]interface{}{
		"username":        t.botName,
		"archive_channel": t.archiveChannel,
		"alerts_channel":  t.alertsChannel,
		"hostname":        t.hostname,
	}
}

// Close closes the Telegram client
func (t *TelegramClient) Close() error {
	if t.stop != nil {
		t.stop()
	}
	return nil
}
