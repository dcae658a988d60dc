package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/activity"
	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
)

// ActivityRepository implements activity.Repository using PostgreSQL.
// The variant payload is stored as a JSONB column keyed by the activity
// type; rows with a payload that fails to decode still load, the read
// path substitutes placeholders during normalization.
type ActivityRepository struct {
	conn *Connection
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(conn *Connection) *ActivityRepository {
	return &ActivityRepository{conn: conn}
}

// Save inserts or replaces an activity.
func (r *ActivityRepository) Save(ctx context.Context, act *activity.Activity) error {
	details, err := marshalDetails(act)
	if err != nil {
		return fmt.Errorf("failed to encode activity details: %w", err)
	}

	query := `
		INSERT INTO activities (id, cycle_id, type, title, description, details, xp_awarded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			details = EXCLUDED.details,
			xp_awarded = EXCLUDED.xp_awarded
	`

	_, err = r.conn.Exec(ctx, query,
		act.ID,
		act.CycleID,
		string(act.Type),
		act.Title,
		act.Description,
		details,
		int(act.XPAwarded),
		act.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save activity: %w", err)
	}
	return nil
}

// GetByID fetches a single activity.
func (r *ActivityRepository) GetByID(ctx context.Context, id string) (*activity.Activity, error) {
	query := `
		SELECT id, cycle_id, type, title, description, details, xp_awarded, created_at
		FROM activities
		WHERE id = $1
	`

	act, err := r.scanActivity(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrActivityNotFound
		}
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return act, nil
}

// ListByCycle returns the activities of a cycle, oldest first.
func (r *ActivityRepository) ListByCycle(ctx context.Context, cycleID string) ([]*activity.Activity, error) {
	query := `
		SELECT id, cycle_id, type, title, description, details, xp_awarded, created_at
		FROM activities
		WHERE cycle_id = $1
		ORDER BY created_at ASC, id ASC
	`
	return r.listActivities(ctx, query, cycleID)
}

// ListByCycleSince returns the activities of a cycle created at or after
// the given time, oldest first.
func (r *ActivityRepository) ListByCycleSince(ctx context.Context, cycleID string, since time.Time) ([]*activity.Activity, error) {
	query := `
		SELECT id, cycle_id, type, title, description, details, xp_awarded, created_at
		FROM activities
		WHERE cycle_id = $1 AND created_at >= $2
		ORDER BY created_at ASC, id ASC
	`
	return r.listActivities(ctx, query, cycleID, since)
}

// Delete removes an activity.
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrActivityNotFound
	}
	return nil
}

func (r *ActivityRepository) listActivities(ctx context.Context, query string, args ...any) ([]*activity.Activity, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []*activity.Activity
	for rows.Next() {
		act, err := r.scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}
	return activities, nil
}

func (r *ActivityRepository) scanActivity(row pgx.Row) (*activity.Activity, error) {
	var (
		act       activity.Activity
		rawType   string
		details   []byte
		xpAwarded int
	)

	err := row.Scan(
		&act.ID,
		&act.CycleID,
		&rawType,
		&act.Title,
		&act.Description,
		&details,
		&xpAwarded,
		&act.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	act.XPAwarded = shared.XP(xpAwarded)

	parsed, err := activity.ParseType(rawType)
	if err != nil {
		// Unknown variant tag in storage, degrade to generic
		parsed = activity.TypeGeneric
	}
	act.Type = parsed

	unmarshalDetails(&act, details)
	return &act, nil
}

func marshalDetails(act *activity.Activity) ([]byte, error) {
	switch act.Type {
	case activity.TypeOneOnOne:
		if act.OneOnOne != nil {
			return json.Marshal(act.OneOnOne)
		}
	case activity.TypeMentoring:
		if act.Mentoring != nil {
			return json.Marshal(act.Mentoring)
		}
	case activity.TypeCertification:
		if act.Certification != nil {
			return json.Marshal(act.Certification)
		}
	}
	return []byte(`{}`), nil
}

func unmarshalDetails(act *activity.Activity, details []byte) {
	if len(details) == 0 {
		return
	}
	switch act.Type {
	case activity.TypeOneOnOne:
		var d activity.OneOnOneDetails
		if json.Unmarshal(details, &d) == nil {
			act.OneOnOne = &d
		}
	case activity.TypeMentoring:
		var d activity.MentoringDetails
		if json.Unmarshal(details, &d) == nil {
			act.Mentoring = &d
		}
	case activity.TypeCertification:
		var d activity.CertificationDetails
		if json.Unmarshal(details, &d) == nil {
			act.Certification = &d
		}
	}
}
