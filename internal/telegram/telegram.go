// Package telegram bridges the dashboard to a Telegram chat: an
// operator can query agent status, look up the master session, forward
// free text to it, and toggle a watchdog that nudges live sessions on
// an interval. Modeled on the teacher's chatops long-polling bot, but
// authorized by a single bound chat id instead of an OIDC-backed
// binding table, and retargeted at the orchestration bus's own
// session/status stores instead of a REST API client.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/marcus-qen/orchestra/internal/agentstatus"
	"github.com/marcus-qen/orchestra/internal/bridge"
	"github.com/marcus-qen/orchestra/internal/config"
	"github.com/marcus-qen/orchestra/internal/registry"
)

const masterAgentID = "master"

const (
	minPollTimeoutSec = 1
	maxPollTimeoutSec = 60
	minWatchdogSec    = 30
)

// Bot runs the long-poll loop and the watchdog nudge schedule.
type Bot struct {
	bridge bridge.Bridge
	status *agentstatus.Store
	roster *registry.Store
	logger *zap.Logger

	httpClient *http.Client
	apiBase    string

	cfgPath string
	mu      sync.Mutex // guards cfg (ChatID/WatchdogEnabled are mutated at runtime and persisted)
	cfg     config.Config

	offset int64
	cron   *cron.Cron
}

// New returns a Bot. cfgPath may be empty, in which case chat-id
// binding and /watchdog toggles are not persisted across restarts.
func New(cfg config.Config, cfgPath string, br bridge.Bridge, status *agentstatus.Store, roster *registry.Store, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		bridge:     br,
		status:     status,
		roster:     roster,
		logger:     logger,
		httpClient: &http.Client{Timeout: time.Duration(clampPollTimeout(cfg.Telegram.PollTimeoutSec)+10) * time.Second},
		apiBase:    "https://api.telegram.org/bot" + cfg.Telegram.BotToken,
		cfgPath:    cfgPath,
		cfg:        cfg,
	}
}

func clampPollTimeout(sec int) int {
	if sec < minPollTimeoutSec {
		return minPollTimeoutSec
	}
	if sec > maxPollTimeoutSec {
		return maxPollTimeoutSec
	}
	return sec
}

func clampWatchdogSec(sec int) int {
	if sec < minWatchdogSec {
		return minWatchdogSec
	}
	return sec
}

// Run starts the long-poll loop and, if enabled, the watchdog cron
// schedule. It blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.cron = cron.New()
	b.reconcileWatchdog()
	b.cron.Start()
	defer func() { <-b.cron.Stop().Done() }()

	b.logger.Info("telegram bridge started")
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := b.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("telegram poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// reconcileWatchdog (re)registers the cron entry matching the current
// WatchdogEnabled/WatchdogSecs config, replacing any prior entry.
func (b *Bot) reconcileWatchdog() {
	b.mu.Lock()
	enabled := b.cfg.Telegram.WatchdogEnabled
	secs := clampWatchdogSec(b.cfg.Telegram.WatchdogSecs)
	b.mu.Unlock()

	for _, e := range b.cron.Entries() {
		b.cron.Remove(e.ID)
	}
	if !enabled {
		return
	}
	_, err := b.cron.AddFunc(fmt.Sprintf("@every %ds", secs), func() {
		b.runWatchdog(context.Background())
	})
	if err != nil {
		b.logger.Error("telegram watchdog schedule failed", zap.Error(err))
	}
}

// WatchdogResult summarizes one nudge sweep.
type WatchdogResult struct {
	Sent    int
	Skipped int
}

// runWatchdog sends the configured nudge to the master session (when
// WatchdogIncludeMaster) and every registered worker session.
func (b *Bot) runWatchdog(ctx context.Context) WatchdogResult {
	b.mu.Lock()
	includeMaster := b.cfg.Telegram.WatchdogIncludeMaster
	nudge := b.cfg.Telegram.WatchdogNudge
	b.mu.Unlock()
	if nudge == "" {
		nudge = "watchdog: still there?"
	}

	result := WatchdogResult{}
	sessions, err := b.bridge.ListSessions(ctx)
	if err != nil || !sessions.OK {
		b.logger.Warn("watchdog: list_sessions failed", zap.Error(err))
		return result
	}

	for _, sess := range sessions.Sessions {
		isMaster := strings.EqualFold(sess.AgentID, masterAgentID)
		if isMaster && !includeMaster {
			result.Skipped++
			continue
		}
		res, err := b.bridge.SendInput(ctx, sess.AgentID, nudge, true, 0, 0)
		if err != nil || !res.OK {
			result.Skipped++
			continue
		}
		result.Sent++
	}

	b.logger.Info("watchdog sweep complete", zap.Int("sent", result.Sent), zap.Int("skipped", result.Skipped))
	return result
}

// isAuthorized reports whether chatID may issue commands. An unbound
// chat (ChatID == 0) authorizes nobody but /start, which claims it.
func (b *Bot) isAuthorized(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg.Telegram.ChatID != 0 && b.cfg.Telegram.ChatID == chatID
}

func (b *Bot) bindChat(chatID int64) error {
	b.mu.Lock()
	b.cfg.Telegram.ChatID = chatID
	cfg := b.cfg
	b.mu.Unlock()
	return b.persist(cfg)
}

func (b *Bot) toggleWatchdog() (bool, error) {
	b.mu.Lock()
	b.cfg.Telegram.WatchdogEnabled = !b.cfg.Telegram.WatchdogEnabled
	enabled := b.cfg.Telegram.WatchdogEnabled
	cfg := b.cfg
	b.mu.Unlock()
	if err := b.persist(cfg); err != nil {
		return enabled, err
	}
	b.reconcileWatchdog()
	return enabled, nil
}

func (b *Bot) persist(cfg config.Config) error {
	if b.cfgPath == "" {
		return nil
	}
	return cfg.Save(b.cfgPath)
}

// --- Telegram Bot API wire types ---

type telegramResponse struct {
	OK          bool              `json:"ok"`
	Description string            `json:"description"`
	Result      []telegramUpdate  `json:"result"`
}

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64         `json:"message_id"`
	Text      string        `json:"text"`
	Chat      telegramChat  `json:"chat"`
}

type telegramChat struct {
	ID int64 `json:"id"`
}

func (b *Bot) telegramEndpoint(method string) string {
	return b.apiBase + "/" + method
}

func (b *Bot) pollOnce(ctx context.Context) error {
	b.mu.Lock()
	timeoutSec := clampPollTimeout(b.cfg.Telegram.PollTimeoutSec)
	b.mu.Unlock()

	q := url.Values{}
	q.Set("timeout", strconv.Itoa(timeoutSec))
	q.Set("offset", strconv.FormatInt(b.offset, 10))

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec+10)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.telegramEndpoint("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var parsed telegramResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("telegram: decode getUpdates response: %w", err)
	}
	if !parsed.OK {
		return fmt.Errorf("telegram: getUpdates failed: %s", parsed.Description)
	}

	for _, upd := range parsed.Result {
		if upd.UpdateID >= b.offset {
			b.offset = upd.UpdateID + 1
		}
		b.handleUpdate(ctx, upd)
	}
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, upd telegramUpdate) {
	if upd.Message == nil {
		return
	}
	chatID := upd.Message.Chat.ID
	text := strings.TrimSpace(upd.Message.Text)
	if text == "" {
		return
	}

	if cmd, args, ok := parseCommand(text); ok {
		b.processCommand(ctx, chatID, cmd, args)
		return
	}

	if !b.isAuthorized(chatID) {
		b.reply(ctx, chatID, "unauthorized: use /start to bind this chat")
		return
	}
	b.forwardToMaster(ctx, chatID, text)
}

// parseCommand splits "/cmd arg1 arg2" into its command and args. ok is
// false for any text that is not a slash command.
func parseCommand(text string) (cmd string, args []string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}
	cmd = strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	return cmd, fields[1:], true
}

func (b *Bot) processCommand(ctx context.Context, chatID int64, cmd string, args []string) {
	if cmd == "start" {
		b.handleStart(ctx, chatID)
		return
	}
	if !b.isAuthorized(chatID) {
		b.reply(ctx, chatID, "unauthorized: use /start to bind this chat")
		return
	}
	switch cmd {
	case "id":
		b.reply(ctx, chatID, fmt.Sprintf("chat id: %d", chatID))
	case "wake":
		b.handleWake(ctx, chatID)
	case "status":
		b.handleStatus(ctx, chatID)
	case "watchdog":
		b.handleWatchdogToggle(ctx, chatID)
	default:
		b.reply(ctx, chatID, "unknown command; try /id, /wake, /status, /watchdog")
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	b.mu.Lock()
	bound := b.cfg.Telegram.ChatID
	b.mu.Unlock()

	if bound == 0 {
		if err := b.bindChat(chatID); err != nil {
			b.logger.Error("telegram: bind chat failed", zap.Error(err))
			b.reply(ctx, chatID, "bound, but failed to persist: "+err.Error())
			return
		}
		b.reply(ctx, chatID, "this chat is now bound to the bus. Try /status or /wake.")
		return
	}
	if bound != chatID {
		b.reply(ctx, chatID, "this bot is already bound to another chat")
		return
	}
	b.reply(ctx, chatID, "already bound. Try /status or /wake.")
}

func (b *Bot) handleWake(ctx context.Context, chatID int64) {
	if b.bridge != nil {
		sessions, err := b.bridge.ListSessions(ctx)
		if err == nil && sessions.OK {
			for _, sess := range sessions.Sessions {
				if strings.EqualFold(sess.AgentID, masterAgentID) {
					b.reply(ctx, chatID, fmt.Sprintf("master is live (session %s)", sess.SessionID))
					return
				}
			}
		}
	}
	if b.roster != nil {
		entries, err := b.roster.Roster(ctx)
		if err == nil {
			for _, e := range entries {
				if strings.EqualFold(e.AgentID, masterAgentID) {
					if e.Online {
						b.reply(ctx, chatID, "master is registered and online")
					} else {
						b.reply(ctx, chatID, "master is registered but has no live session")
					}
					return
				}
			}
		}
	}
	b.reply(ctx, chatID, "master session not found")
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	if b.status == nil {
		b.reply(ctx, chatID, "status store unavailable")
		return
	}
	snaps, err := b.status.Query(ctx, agentstatus.Filter{Limit: 200})
	if err != nil {
		b.reply(ctx, chatID, "status query failed: "+err.Error())
		return
	}
	sum := agentstatus.Summarize(snaps)
	b.reply(ctx, chatID, fmt.Sprintf(
		"total=%d healthy=%d unhealthy=%d\nrunning=%d idle=%d stuck=%d error=%d disconnected=%d unknown=%d",
		sum.Total, sum.Healthy, sum.Unhealthy, sum.Running, sum.Idle, sum.Stuck, sum.Error, sum.Disconnected, sum.Unknown))
}

func (b *Bot) handleWatchdogToggle(ctx context.Context, chatID int64) {
	enabled, err := b.toggleWatchdog()
	if err != nil {
		b.reply(ctx, chatID, "watchdog toggle failed: "+err.Error())
		return
	}
	if enabled {
		b.reply(ctx, chatID, "watchdog enabled")
	} else {
		b.reply(ctx, chatID, "watchdog disabled")
	}
}

const forwardWaitSec = 3.0
const forwardTailLines = 40

func (b *Bot) forwardToMaster(ctx context.Context, chatID int64, text string) {
	if b.bridge == nil {
		b.reply(ctx, chatID, "bridge unavailable")
		return
	}
	res, err := b.bridge.SendInput(ctx, masterAgentID, text, true, forwardWaitSec, forwardTailLines)
	if err != nil {
		b.reply(ctx, chatID, "forward failed: "+err.Error())
		return
	}
	if !res.OK || len(res.Results) == 0 {
		msg := res.Error
		if msg == "" {
			msg = "master did not respond"
		}
		b.reply(ctx, chatID, msg)
		return
	}
	r := res.Results[0]
	if r.Error != "" {
		b.reply(ctx, chatID, "master error: "+r.Error)
		return
	}
	if len(r.Output) == 0 {
		b.reply(ctx, chatID, "sent (no output yet)")
		return
	}
	b.reply(ctx, chatID, strings.Join(r.Output, "\n"))
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.sendMessage(ctx, chatID, text); err != nil {
		b.logger.Warn("telegram: sendMessage failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(map[string]any{"chat_id": chatID, "text": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.telegramEndpoint("sendMessage"), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram: sendMessage http %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
