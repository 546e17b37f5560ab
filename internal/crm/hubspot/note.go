package hubspot

import (
	"fmt"
	"strings"
	"time"

	"github.com/nytrohq/interview-screener/internal/evaluation"

	"go.uber.org/zap"
)

// noteAssociationContact is the HubSpot-defined association type for
// note-to-contact links.
const noteAssociationContact = 202

// CreateNote attaches a note to a contact.
func (c *Client) CreateNote(contactID, body string) error {
	payload := map[string]interface{}{
		"properties": map[string]string{
			"hs_timestamp": fmt.Sprintf("%d", time.Now().UnixMilli()),
			"hs_note_body": body,
		},
		"associations": []map[string]interface{}{{
			"to": map[string]string{"id": contactID},
			"types": []map[string]interface{}{{
				"associationCategory": "HUBSPOT_DEFINED",
				"associationTypeId":   noteAssociationContact,
			}},
		}},
	}

	if err := c.postJSON("/crm/v3/objects/notes", payload, nil); err != nil {
		return fmt.Errorf("create note: %w", err)
	}

	return nil
}

// SyncEvaluation pushes an evaluation result into the CRM: find or create
// the candidate contact, then attach the formatted evaluation note.
func (c *Client) SyncEvaluation(result *evaluation.Result) error {
	email := result.Profile.Email
	if email == "" {
		return fmt.Errorf("candidate email is required for crm sync")
	}

	contact, err := c.SearchContactByEmail(email)
	if err != nil {
		return err
	}

	if contact == nil {
		contact, err = c.CreateContact(result.Profile.Name, email, result.Profile.Location)
		if err != nil {
			return err
		}
		c.logger.Info("created crm contact", zap.String("contact_id", contact.ID))
	}

	if err := c.CreateNote(contact.ID, FormatNote(result)); err != nil {
		return err
	}

	c.logger.Info("evaluation synced to crm",
		zap.String("contact_id", contact.ID),
		zap.String("session_id", result.SessionID),
	)

	return nil
}

// FormatNote renders the evaluation as an HTML note body.
func FormatNote(result *evaluation.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<h2>AI Interview - %s</h2>\n", result.Profile.Name)
	fmt.Fprintf(&b, "<p><strong>Date:</strong> %s</p>\n", result.EvaluatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "<p><strong>Recommendation:</strong> %s</p>\n", result.Tier.Label)
	fmt.Fprintf(&b, "<p><strong>Score:</strong> %.1f/5.0</p>\n", result.Composite)

	if result.Profile.EmailFlagged {
		b.WriteString("<p><em>Candidate email did not validate; verify before outreach.</em></p>\n")
	}

	b.WriteString("<h3>Skill Scores</h3>\n<ul>\n")
	for _, score := range result.Scores {
		fmt.Fprintf(&b, "<li><strong>%s:</strong> %d/5", score.SkillName, score.Rating)
		if score.LowConfidence {
			b.WriteString(" (low confidence)")
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ul>\n")

	if result.Degraded {
		b.WriteString("<p><em>Automatic scoring was unavailable; scores are rubric midpoints.</em></p>\n")
	}

	return b.String()
}
