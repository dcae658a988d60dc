package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/xp"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON XP AWARDED HANDLER
//
// The store books XP in its in-memory ledger; this handler makes the award
// durable:
// 1. Appends the entry to the ledger repository
// 2. Refreshes the cached total and level
//
// The persisted history is what Ledger.Replay rebuilds the in-memory
// ledger from on the next session.
// ═══════════════════════════════════════════════════════════════════════════

// XPCache caches the user's live total for cheap reads. Implemented by the
// Redis progress cache.
type XPCache interface {
	SetXP(ctx context.Context, userID string, total shared.XP, level int) error
}

// OnXPAwardedHandler persists XP awards and level-ups.
type OnXPAwardedHandler struct {
	ledger xp.Repository
	cache  XPCache
	curve  xp.Curve
	logger *slog.Logger
	config XPAwardedConfig
}

// XPAwardedConfig contains configuration for the handler.
type XPAwardedConfig struct {
	// Timeout bounds each storage call.
	Timeout time.Duration
}

// DefaultXPAwardedConfig returns the default configuration.
func DefaultXPAwardedConfig() XPAwardedConfig {
	return XPAwardedConfig{Timeout: 5 * time.Second}
}

// NewOnXPAwardedHandler creates the handler. A nil curve falls back to the
// quadratic default so cached levels match the store's.
func NewOnXPAwardedHandler(
	ledger xp.Repository,
	cache XPCache,
	curve xp.Curve,
	logger *slog.Logger,
	config XPAwardedConfig,
) *OnXPAwardedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if curve == nil {
		curve = xp.QuadraticCurve{}
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &OnXPAwardedHandler{
		ledger: ledger,
		cache:  cache,
		curve:  curve,
		logger: logger.With("handler", "on_xp_awarded"),
		config: config,
	}
}

// Handle implements shared.EventHandler.
func (h *OnXPAwardedHandler) Handle(event shared.Event) error {
	awardEvent, ok := event.(shared.XPAwardedEvent)
	if !ok {
		h.logger.Warn("received non-XPAwardedEvent", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if h.ledger != nil {
		entry := xp.Entry{
			SourceID:   awardEvent.SourceID,
			SourceKind: xp.SourceKind(awardEvent.SourceKind),
			Amount:     shared.XP(awardEvent.Amount),
			AwardedAt:  awardEvent.OccurredAt(),
		}
		if err := h.ledger.Append(ctx, awardEvent.UserID, entry); err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
	}

	if h.cache != nil {
		total := shared.XP(awardEvent.NewTotal)
		if err := h.cache.SetXP(ctx, awardEvent.UserID, total, h.curve.LevelFor(total)); err != nil {
			h.logger.Error("failed to refresh xp cache",
				"user_id", awardEvent.UserID,
				"error", err,
			)
		}
	}

	h.logger.Debug("xp award persisted",
		"user_id", awardEvent.UserID,
		"source_kind", awardEvent.SourceKind,
		"amount", awardEvent.Amount,
		"new_total", awardEvent.NewTotal,
	)

	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// ═══════════════════════════════════════════════════════════════════════════

// OnLevelUpHandler records level transitions. Kept separate from the XP
// handler so level-up side effects can grow without touching the ledger
// write path.
type OnLevelUpHandler struct {
	logger *slog.Logger
}

// NewOnLevelUpHandler creates the handler.
func NewOnLevelUpHandler(logger *slog.Logger) *OnLevelUpHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnLevelUpHandler{logger: logger.With("handler", "on_level_up")}
}

// Handle implements shared.EventHandler.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	levelEvent, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("received non-LevelUpEvent", "event_type", event.EventType())
		return nil
	}

	h.logger.Info("level up",
		"user_id", levelEvent.UserID,
		"old_level", levelEvent.OldLevel,
		"new_level", levelEvent.NewLevel,
		"title", xp.TitleFor(levelEvent.NewLevel),
		"total_xp", levelEvent.TotalXP,
	)
	return nil
}
