package store

import (
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/goal"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UI STATE
// ══════════════════════════════════════════════════════════════════════════════

// ModalKind identifies the single modal that may be open at a time. Modal
// exclusivity is structural: the state holds one kind, not one flag per
// modal, so two modals can never be open together.
type ModalKind string

const (
	ModalNone         ModalKind = ""
	ModalCycleWizard  ModalKind = "cycle_wizard"
	ModalGoalEditor   ModalKind = "goal_editor"
	ModalActivityLog  ModalKind = "activity_log"
	ModalEvidenceForm ModalKind = "evidence_form"
	ModalCelebration  ModalKind = "celebration"
)

// IsValid reports whether the kind is a known modal.
func (m ModalKind) IsValid() bool {
	switch m {
	case ModalNone, ModalCycleWizard, ModalGoalEditor, ModalActivityLog,
		ModalEvidenceForm, ModalCelebration:
		return true
	}
	return false
}

// Filters narrows the goal and activity views. Zero value shows everything.
type Filters struct {
	GoalKinds     []goal.Kind
	ActivityTypes []activity.Type
	HideCompleted bool
}

// UIState is the client-side presentation state kept alongside the domain
// snapshot. It is reset whenever the current cycle changes.
type UIState struct {
	ActiveModal    ModalKind
	SelectedGoalID string
	Filters        Filters
}

func (u *UIState) reset() {
	*u = UIState{}
}

// ══════════════════════════════════════════════════════════════════════════════
// UI INTENTS
// ══════════════════════════════════════════════════════════════════════════════

// OpenModal opens the given modal, replacing any open one. A non-empty
// selectedID preselects that goal for the modal; it must exist. Unknown
// kinds are rejected.
func (s *Store) OpenModal(kind ModalKind, selectedID string) error {
	if !kind.IsValid() {
		return shared.ErrUnknownVariant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if selectedID != "" {
		if _, ok := s.goals[selectedID]; !ok {
			return shared.ErrGoalNotFound
		}
		s.ui.SelectedGoalID = selectedID
	}
	s.ui.ActiveModal = kind
	return nil
}

// CloseModal closes the active modal, if any.
func (s *Store) CloseModal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ui.ActiveModal = ModalNone
}

// CloseAll closes the active modal and drops the goal selection.
func (s *Store) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ui.ActiveModal = ModalNone
	s.ui.SelectedGoalID = ""
}

// SelectGoal marks a goal as selected for detail views. The goal must exist
// in the loaded cycle.
func (s *Store) SelectGoal(goalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.goals[goalID]; !ok {
		return shared.ErrGoalNotFound
	}
	s.ui.SelectedGoalID = goalID
	return nil
}

// ClearSelection drops the selected goal.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ui.SelectedGoalID = ""
}

// SetFilters replaces the view filters.
func (s *Store) SetFilters(f Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ui.Filters = f
}

// ResetUI clears the whole presentation state: modal, selection, filters.
func (s *Store) ResetUI() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ui.reset()
}

// UI returns a copy of the current presentation state.
func (s *Store) UI() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ui
}
