// Package activity models logged interactions (1:1s, mentoring sessions,
// certifications) recorded against a cycle, the uniform timeline record they
// normalize into, and the calendar buckets used to group them.
package activity

import (
	"strings"
	"time"

	"github.com/cycle-hub/cycle-progress-hub/internal/domain/shared"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// VARIANT TAGS
// ══════════════════════════════════════════════════════════════════════════════

// Type is the variant tag of an activity.
type Type string

const (
	TypeOneOnOne      Type = "one_on_one"
	TypeMentoring     Type = "mentoring"
	TypeCertification Type = "certification"
	TypeGeneric       Type = "generic"
)

// IsValid checks that the type is one of the closed set.
func (t Type) IsValid() bool {
	switch t {
	case TypeOneOnOne, TypeMentoring, TypeCertification, TypeGeneric:
		return true
	default:
		return false
	}
}

// ParseType parses a raw activity type tag, accepting the remote service's
// upper-snake spellings. Unknown tags are rejected; read paths that prefer
// degrading should fall back to TypeGeneric themselves.
func ParseType(raw string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "one_on_one", "1on1", "oneonone":
		return TypeOneOnOne, nil
	case "mentoring":
		return TypeMentoring, nil
	case "certification":
		return TypeCertification, nil
	case "generic", "milestone":
		return TypeGeneric, nil
	default:
		return "", shared.ErrInvalidActivityVariant
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// VARIANT PAYLOADS
// ══════════════════════════════════════════════════════════════════════════════

// OneOnOneDetails is the payload of a 1:1 session.
type OneOnOneDetails struct {
	ParticipantName   string
	WorkingOn         []string
	GeneralNotes      string
	PositivePoints    []string
	ImprovementPoints []string
}

// MentoringDetails is the payload of a mentoring session.
type MentoringDetails struct {
	MentorName string
	Topics     []string
	NextSteps  []string
	Rating     int
}

// CertificationDetails is the payload of an earned certification.
type CertificationDetails struct {
	Platform       string
	Skills         []string
	CertificateURL string
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ACTIVITY
// ══════════════════════════════════════════════════════════════════════════════

// Activity is one logged interaction. Immutable once created except for
// deletion; the payload matching the Type tag is populated, the others nil.
type Activity struct {
	ID          string
	CycleID     string
	Type        Type
	Title       string
	Description string

	OneOnOne      *OneOnOneDetails
	Mentoring     *MentoringDetails
	Certification *CertificationDetails

	XPAwarded shared.XP
	CreatedAt time.Time
}

// NewActivity creates a draft activity for the write path. The variant
// payload is attached by the caller after construction; writes with an
// unknown type tag are rejected here, before any remote call. An empty
// cycleID means "the current cycle", resolved by the store.
func NewActivity(cycleID string, typ Type, title string) (*Activity, error) {
	if !typ.IsValid() {
		return nil, shared.ErrInvalidActivityVariant
	}
	if strings.TrimSpace(title) == "" {
		return nil, shared.NewDomainError("activity", "NewActivity", shared.ErrEmptyValue, "activity title is required")
	}

	return &Activity{
		ID:        uuid.New().String(),
		CycleID:   cycleID,
		Type:      typ,
		Title:     strings.TrimSpace(title),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Placeholder values substituted when a variant payload is missing on the
// read path.
const (
	UnknownParticipant = "Unknown participant"
	UnknownMentor      = "Unknown mentor"
	UnknownPlatform    = "Unknown platform"
)

// Normalized is the uniform timeline record every activity flattens into,
// regardless of variant. Malformed inputs normalize with placeholders
// rather than failing.
type Normalized struct {
	ID      string
	Type    Type
	Title   string
	Person  string
	Topics  []string
	Outcome string
	Rating  int

	XPAwarded shared.XP
	Timestamp time.Time
}

// Normalize flattens the activity into the uniform record, substituting
// placeholders for missing payloads.
func (a *Activity) Normalize() Normalized {
	n := Normalized{
		ID:        a.ID,
		Type:      a.Type,
		Title:     a.Title,
		Topics:    []string{},
		XPAwarded: a.XPAwarded,
		Timestamp: a.CreatedAt,
	}

	switch a.Type {
	case TypeOneOnOne:
		n.Person = UnknownParticipant
		if d := a.OneOnOne; d != nil {
			if d.ParticipantName != "" {
				n.Person = d.ParticipantName
			}
			if d.WorkingOn != nil {
				n.Topics = d.WorkingOn
			}
			if d.GeneralNotes != "" {
				n.Outcome = d.GeneralNotes
			} else {
				n.Outcome = a.Description
			}
		}
	case TypeMentoring:
		n.Person = UnknownMentor
		if d := a.Mentoring; d != nil {
			if d.MentorName != "" {
				n.Person = d.MentorName
			}
			if d.Topics != nil {
				n.Topics = d.Topics
			}
			n.Outcome = strings.Join(d.NextSteps, ", ")
			n.Rating = d.Rating
		}
	case TypeCertification:
		n.Person = UnknownPlatform
		if d := a.Certification; d != nil {
			if d.Platform != "" {
				n.Person = d.Platform
			}
			if d.Skills != nil {
				n.Topics = d.Skills
			}
			if d.CertificateURL != "" {
				n.Outcome = "Certificate: " + d.CertificateURL
			}
		}
	default:
		n.Outcome = a.Description
	}

	return n
}
