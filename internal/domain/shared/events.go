// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Cycle events
	EventCycleCreated   EventType = "cycle.created"
	EventCycleActivated EventType = "cycle.activated"
	EventCycleArchived  EventType = "cycle.archived"
	EventCycleRolledUp  EventType = "cycle.rolled_up"

	// Goal events
	EventGoalUpdated       EventType = "goal.updated"
	EventGoalCompleted     EventType = "goal.completed"
	EventGoalUpdateFailed  EventType = "goal.update_failed"
	EventGoalSyncConfirmed EventType = "goal.sync_confirmed"

	// Competency events
	EventEvidenceAdded     EventType = "competency.evidence_added"
	EventCompetencyLevelUp EventType = "competency.level_up"

	// Activity events
	EventActivityLogged  EventType = "activity.logged"
	EventActivityRemoved EventType = "activity.removed"

	// XP events
	EventXPAwarded EventType = "xp.awarded"
	EventLevelUp   EventType = "xp.level_up"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Goal Events
// ═══════════════════════════════════════════════════════════════════════════

// GoalUpdatedEvent is emitted when a goal's progress fields change locally.
type GoalUpdatedEvent struct {
	BaseEvent
	CycleID      string  `json:"cycle_id"`
	GoalID       string  `json:"goal_id"`
	Progress     float64 `json:"progress"`
	Completed    bool    `json:"completed"`
	LocalVersion uint64  `json:"local_version"`
}

// Payload implements Event interface.
func (e GoalUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"cycle_id":      e.CycleID,
		"goal_id":       e.GoalID,
		"progress":      e.Progress,
		"completed":     e.Completed,
		"local_version": e.LocalVersion,
	}
}

// NewGoalUpdatedEvent creates a new GoalUpdatedEvent.
func NewGoalUpdatedEvent(cycleID, goalID string, progress float64, completed bool, version uint64) GoalUpdatedEvent {
	return GoalUpdatedEvent{
		BaseEvent:    NewBaseEvent(EventGoalUpdated, goalID),
		CycleID:      cycleID,
		GoalID:       goalID,
		Progress:     progress,
		Completed:    completed,
		LocalVersion: version,
	}
}

// GoalCompletedEvent is emitted when a goal transitions to complete.
type GoalCompletedEvent struct {
	BaseEvent
	CycleID string `json:"cycle_id"`
	GoalID  string `json:"goal_id"`
	Title   string `json:"title"`
}

// Payload implements Event interface.
func (e GoalCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"cycle_id": e.CycleID,
		"goal_id":  e.GoalID,
		"title":    e.Title,
	}
}

// NewGoalCompletedEvent creates a new GoalCompletedEvent.
func NewGoalCompletedEvent(cycleID, goalID, title string) GoalCompletedEvent {
	return GoalCompletedEvent{
		BaseEvent: NewBaseEvent(EventGoalCompleted, goalID),
		CycleID:   cycleID,
		GoalID:    goalID,
		Title:     title,
	}
}

// GoalUpdateFailedEvent is emitted when a remote goal patch fails or times out.
// The local state keeps the optimistic patch; the sync state is marked failed.
type GoalUpdateFailedEvent struct {
	BaseEvent
	CycleID string `json:"cycle_id"`
	GoalID  string `json:"goal_id"`
	Reason  string `json:"reason"`
}

// Payload implements Event interface.
func (e GoalUpdateFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"cycle_id": e.CycleID,
		"goal_id":  e.GoalID,
		"reason":   e.Reason,
	}
}

// NewGoalUpdateFailedEvent creates a new GoalUpdateFailedEvent.
func NewGoalUpdateFailedEvent(cycleID, goalID, reason string) GoalUpdateFailedEvent {
	return GoalUpdateFailedEvent{
		BaseEvent: NewBaseEvent(EventGoalUpdateFailed, goalID),
		CycleID:   cycleID,
		GoalID:    goalID,
		Reason:    reason,
	}
}

// GoalSyncConfirmedEvent is emitted when the remote service acknowledges a
// goal patch and the authoritative state is adopted locally.
type GoalSyncConfirmedEvent struct {
	BaseEvent
	CycleID string `json:"cycle_id"`
	GoalID  string `json:"goal_id"`
	Version uint64 `json:"version"`
}

// Payload implements Event interface.
func (e GoalSyncConfirmedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"cycle_id": e.CycleID,
		"goal_id":  e.GoalID,
		"version":  e.Version,
	}
}

// NewGoalSyncConfirmedEvent creates a new GoalSyncConfirmedEvent.
func NewGoalSyncConfirmedEvent(cycleID, goalID string, version uint64) GoalSyncConfirmedEvent {
	return GoalSyncConfirmedEvent{
		BaseEvent: NewBaseEvent(EventGoalSyncConfirmed, goalID),
		CycleID:   cycleID,
		GoalID:    goalID,
		Version:   version,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Competency Events
// ═══════════════════════════════════════════════════════════════════════════

// EvidenceAddedEvent is emitted when evidence is appended to a competency progression.
type EvidenceAddedEvent struct {
	BaseEvent
	CompetencyID string `json:"competency_id"`
	EvidenceID   string `json:"evidence_id"`
	EvidenceType string `json:"evidence_type"`
	XPAwarded    int    `json:"xp_awarded"`
	NewProgress  int    `json:"new_progress"`
}

// Payload implements Event interface.
func (e EvidenceAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"competency_id": e.CompetencyID,
		"evidence_id":   e.EvidenceID,
		"evidence_type": e.EvidenceType,
		"xp_awarded":    e.XPAwarded,
		"new_progress":  e.NewProgress,
	}
}

// NewEvidenceAddedEvent creates a new EvidenceAddedEvent.
func NewEvidenceAddedEvent(competencyID, evidenceID, evidenceType string, xpAwarded, newProgress int) EvidenceAddedEvent {
	return EvidenceAddedEvent{
		BaseEvent:    NewBaseEvent(EventEvidenceAdded, competencyID),
		CompetencyID: competencyID,
		EvidenceID:   evidenceID,
		EvidenceType: evidenceType,
		XPAwarded:    xpAwarded,
		NewProgress:  newProgress,
	}
}

// CompetencyLevelUpEvent is emitted on the explicit level-up transition.
type CompetencyLevelUpEvent struct {
	BaseEvent
	CompetencyID string `json:"competency_id"`
	OldLevel     int    `json:"old_level"`
	NewLevel     int    `json:"new_level"`
	TargetLevel  int    `json:"target_level"`
}

// Payload implements Event interface.
func (e CompetencyLevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"competency_id": e.CompetencyID,
		"old_level":     e.OldLevel,
		"new_level":     e.NewLevel,
		"target_level":  e.TargetLevel,
	}
}

// NewCompetencyLevelUpEvent creates a new CompetencyLevelUpEvent.
func NewCompetencyLevelUpEvent(competencyID string, oldLevel, newLevel, targetLevel int) CompetencyLevelUpEvent {
	return CompetencyLevelUpEvent{
		BaseEvent:    NewBaseEvent(EventCompetencyLevelUp, competencyID),
		CompetencyID: competencyID,
		OldLevel:     oldLevel,
		NewLevel:     newLevel,
		TargetLevel:  targetLevel,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Activity Events
// ═══════════════════════════════════════════════════════════════════════════

// ActivityLoggedEvent is emitted when an activity is recorded against a cycle.
type ActivityLoggedEvent struct {
	BaseEvent
	CycleID      string `json:"cycle_id"`
	ActivityID   string `json:"activity_id"`
	ActivityType string `json:"activity_type"`
	XPAwarded    int    `json:"xp_awarded"`
}

// Payload implements Event interface.
func (e ActivityLoggedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"cycle_id":      e.CycleID,
		"activity_id":   e.ActivityID,
		"activity_type": e.ActivityType,
		"xp_awarded":    e.XPAwarded,
	}
}

// NewActivityLoggedEvent creates a new ActivityLoggedEvent.
func NewActivityLoggedEvent(cycleID, activityID, activityType string, xpAwarded int) ActivityLoggedEvent {
	return ActivityLoggedEvent{
		BaseEvent:    NewBaseEvent(EventActivityLogged, activityID),
		CycleID:      cycleID,
		ActivityID:   activityID,
		ActivityType: activityType,
		XPAwarded:    xpAwarded,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted when XP is appended to the ledger.
type XPAwardedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	SourceID   string `json:"source_id"`
	SourceKind string `json:"source_kind"`
	Amount     int    `json:"amount"`
	NewTotal   int    `json:"new_total"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"source_id":   e.SourceID,
		"source_kind": e.SourceKind,
		"amount":      e.Amount,
		"new_total":   e.NewTotal,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent.
func NewXPAwardedEvent(userID, sourceID, sourceKind string, amount, newTotal int) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent:  NewBaseEvent(EventXPAwarded, userID),
		UserID:     userID,
		SourceID:   sourceID,
		SourceKind: sourceKind,
		Amount:     amount,
		NewTotal:   newTotal,
	}
}

// LevelUpEvent is emitted when total XP crosses a level threshold.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	TotalXP  int    `json:"total_xp"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"total_xp":  e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel, totalXP int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Cycle Events
// ═══════════════════════════════════════════════════════════════════════════

// CycleRolledUpEvent is emitted after the cycle aggregate is recomputed.
type CycleRolledUpEvent struct {
	BaseEvent
	CycleID            string `json:"cycle_id"`
	ProgressPercentage int    `json:"progress_percentage"`
	CompletedGoals     int    `json:"completed_goals"`
	TotalGoals         int    `json:"total_goals"`
	DaysRemaining      int    `json:"days_remaining"`
}

// Payload implements Event interface.
func (e CycleRolledUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"cycle_id":            e.CycleID,
		"progress_percentage": e.ProgressPercentage,
		"completed_goals":     e.CompletedGoals,
		"total_goals":         e.TotalGoals,
		"days_remaining":      e.DaysRemaining,
	}
}

// NewCycleRolledUpEvent creates a new CycleRolledUpEvent.
func NewCycleRolledUpEvent(cycleID string, progress, completed, total, daysRemaining int) CycleRolledUpEvent {
	return CycleRolledUpEvent{
		BaseEvent:          NewBaseEvent(EventCycleRolledUp, cycleID),
		CycleID:            cycleID,
		ProgressPercentage: progress,
		CompletedGoals:     completed,
		TotalGoals:         total,
		DaysRemaining:      daysRemaining,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Payload     json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
