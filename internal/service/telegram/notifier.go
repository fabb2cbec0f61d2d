package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/revolis/allpremarkets/internal/domain/models"
	"github.com/revolis/allpremarkets/internal/domain/service"
	"github.com/revolis/allpremarkets/internal/service/ratelimit"
	"github.com/revolis/allpremarkets/pkg/cache"
	"github.com/revolis/allpremarkets/pkg/logger"
)

const (
	// MuteAll mutes every symbol.
	MuteAll = "ALL"

	mutedKey = "telegram:muted"
)

// Config configures a Notifier.
type Config struct {
	ChatID        string
	AlertPrefix   string
	DryRun        bool
	PollTimeout   time.Duration
	RatePerMinute int
	// StaleAfter is the max quote age /status treats as fresh.
	StaleAfter    time.Duration
	VenueLinks    map[models.Venue]string
}

// Notifier delivers alerts to one Telegram chat and answers commands from
// it. It is an alert sink.
type Notifier struct {
	api     BotAPI
	cfg     Config
	engine  service.EngineStatus
	limiter *ratelimit.Limiter
	cache   cache.Service
	log     *logger.Logger

	mu        sync.Mutex
	muted     map[string]struct{}
	lastAlert time.Time
}

type Option func(*Notifier)

// WithCache mirrors the mute set into c.
func WithCache(c cache.Service) Option {
	return func(n *Notifier) { n.cache = c }
}

// WithLimiter replaces the per-chat rate limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(n *Notifier) { n.limiter = l }
}

func WithLogger(l *logger.Logger) Option {
	return func(n *Notifier) { n.log = l }
}

// NewNotifier creates a notifier. api may be nil in dry-run mode.
func NewNotifier(api BotAPI, cfg Config, engine service.EngineStatus, opts ...Option) *Notifier {
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 20
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Second
	}
	if cfg.VenueLinks == nil {
		cfg.VenueLinks = DefaultVenueLinks
	}
	n := &Notifier{
		api:    api,
		cfg:    cfg,
		engine: engine,
		log:    logger.Nop(),
		muted:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.limiter == nil {
		n.limiter = ratelimit.PerMinute(cfg.RatePerMinute)
	}
	return n
}

// SetEngine attaches the engine the status commands read from. It must be
// called before Run.
func (n *Notifier) SetEngine(engine service.EngineStatus) {
	n.engine = engine
}

func (n *Notifier) Name() string { return "telegram" }

// Deliver sends ev unless its symbol is muted. It waits for the chat's
// rate limit within ctx.
func (n *Notifier) Deliver(ctx context.Context, ev models.AlertEvent) error {
	if n.IsMuted(ev.Symbol) {
		n.log.Debug("telegram alert muted", logger.String("symbol", ev.Symbol), logger.Uint64("seq", ev.Seq))
		return nil
	}
	n.mu.Lock()
	if ev.CreatedAt.After(n.lastAlert) {
		n.lastAlert = ev.CreatedAt
	}
	n.mu.Unlock()

	return n.send(ctx, FormatAlert(ev, n.cfg.AlertPrefix, n.cfg.VenueLinks))
}

func (n *Notifier) send(ctx context.Context, text string) error {
	if n.cfg.DryRun || n.api == nil {
		n.log.Info("telegram dry-run", logger.String("chat_id", n.cfg.ChatID), logger.String("text", text))
		return nil
	}
	if err := n.limiter.Wait(ctx, n.cfg.ChatID); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}
	return n.api.SendMessage(ctx, n.cfg.ChatID, text)
}

func (n *Notifier) Close() error { return nil }

func normalise(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// IsMuted reports whether alerts for symbol are suppressed.
func (n *Notifier) IsMuted(symbol string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.muted[MuteAll]; ok {
		return true
	}
	_, ok := n.muted[normalise(symbol)]
	return ok
}

// Mute suppresses token, or everything for MuteAll. It returns false if
// token was already muted.
func (n *Notifier) Mute(ctx context.Context, token string) bool {
	token = normalise(token)
	n.mu.Lock()
	_, had := n.muted[token]
	n.muted[token] = struct{}{}
	n.mu.Unlock()

	if n.cache != nil && !had {
		if err := n.cache.SetAdd(ctx, mutedKey, token); err != nil {
			n.log.Warn("persist mute failed", logger.String("token", token), logger.Error(err))
		}
	}
	return !had
}

// Unmute lifts a mute. MuteAll clears every mute. It returns false if
// nothing was muted.
func (n *Notifier) Unmute(ctx context.Context, token string) bool {
	token = normalise(token)
	n.mu.Lock()
	var removed []string
	if token == MuteAll {
		for t := range n.muted {
			removed = append(removed, t)
		}
		n.muted = make(map[string]struct{})
	} else if _, ok := n.muted[token]; ok {
		delete(n.muted, token)
		removed = append(removed, token)
	}
	n.mu.Unlock()

	if n.cache != nil && len(removed) > 0 {
		if err := n.cache.SetRemove(ctx, mutedKey, removed...); err != nil {
			n.log.Warn("persist unmute failed", logger.String("token", token), logger.Error(err))
		}
	}
	return len(removed) > 0
}

// Muted returns the muted tokens sorted.
func (n *Notifier) Muted() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.muted))
	for t := range n.muted {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// LoadMutes restores the mute set from the cache.
func (n *Notifier) LoadMutes(ctx context.Context) error {
	if n.cache == nil {
		return nil
	}
	members, err := n.cache.SetMembers(ctx, mutedKey)
	if err != nil {
		return fmt.Errorf("load mutes: %w", err)
	}
	n.mu.Lock()
	for _, m := range members {
		n.muted[normalise(m)] = struct{}{}
	}
	n.mu.Unlock()
	return nil
}

// Run polls for commands until ctx is done. In dry-run mode it returns
// immediately.
func (n *Notifier) Run(ctx context.Context) error {
	if n.cfg.DryRun || n.api == nil {
		n.log.Info("telegram command loop disabled in dry-run mode")
		return nil
	}
	n.log.Info("telegram command loop started", logger.String("chat_id", n.cfg.ChatID))

	var offset int64
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := n.api.GetUpdates(ctx, offset, n.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n.log.Warn("telegram poll failed", logger.Error(err), logger.Duration("retry_in_ms", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			n.handleUpdate(ctx, u)
		}
	}
}

func (n *Notifier) handleUpdate(ctx context.Context, u Update) {
	if u.Message == nil || !strings.HasPrefix(u.Message.Text, "/") {
		return
	}
	if strconv.FormatInt(u.Message.Chat.ID, 10) != n.cfg.ChatID {
		n.log.Debug("telegram command from unauthorised chat", logger.Int64("chat_id", u.Message.Chat.ID))
		return
	}
	reply := n.HandleCommand(ctx, u.Message.Text)
	if reply == "" {
		return
	}
	if err := n.send(ctx, reply); err != nil {
		n.log.Warn("telegram reply failed", logger.Error(err))
	}
}

// HandleCommand executes a chat command and returns the reply.
func (n *Notifier) HandleCommand(ctx context.Context, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	// Group chats address commands as /cmd@botname.
	cmd := strings.ToLower(strings.SplitN(fields[0], "@", 2)[0])
	arg := ""
	if len(fields) > 1 {
		arg = normalise(fields[1])
	}

	switch cmd {
	case "/status":
		n.mu.Lock()
		last := n.lastAlert
		n.mu.Unlock()
		return FormatStatus(n.engine.Venues(n.cfg.StaleAfter), n.Muted(), last)
	case "/last5":
		if arg == "" {
			return FormatRecent("", n.engine.RecentAlerts(5))
		}
		return FormatRecent(arg, n.engine.AlertsForSymbol(arg, 5))
	case "/mute":
		if arg == "" {
			return "Usage: /mute <token|all>"
		}
		if n.Mute(ctx, arg) {
			return "Muted " + arg
		}
		return arg + " already muted"
	case "/unmute":
		if arg == "" {
			return "Usage: /unmute <token|all>"
		}
		if n.Unmute(ctx, arg) {
			return "Unmuted " + arg
		}
		return arg + " was not muted"
	case "/help", "/start":
		return strings.Join([]string{
			"/status - venue freshness and mutes",
			"/last5 [token] - recent alerts",
			"/mute <token|all> - stop alerts",
			"/unmute <token|all> - resume alerts",
		}, "\n")
	default:
		return "Unknown command. Try /help"
	}
}
