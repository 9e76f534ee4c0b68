package pipeline

import (
	"fmt"
	"strings"

	"astro/internal/models"
	"astro/internal/rag/schema"
)

// NoteRef builds the entity reference for a note.
func NoteRef(note *models.Note) schema.EntityRef {
	return schema.EntityRef{
		Type:       models.EntityNote,
		ID:         int64(note.ID),
		UniverseID: note.UniverseID,
		Source:     fmt.Sprintf("note: %s", note.Title),
	}
}

// NoteText renders a note into the text that gets chunked and embedded.
func NoteText(note *models.Note) string {
	return note.Title + "\n\n" + note.Body
}

// ActionItemRef builds the entity reference for an action item.
func ActionItemRef(item *models.ActionItem) schema.EntityRef {
	return schema.EntityRef{
		Type:       models.EntityActionItem,
		ID:         int64(item.ID),
		UniverseID: item.UniverseID,
		Source:     fmt.Sprintf("action-item: %s", item.Title),
	}
}

// ActionItemText renders an action item, carrying its status and metadata
// so retrieval can answer questions about open tasks and deadlines.
func ActionItemText(item *models.ActionItem, categoryName string) string {
	status := "OPEN"
	if item.Completed {
		status = "COMPLETED"
	}
	parts := []string{fmt.Sprintf("ACTION ITEM (%s): %s", status, item.Title)}
	if item.Hot {
		parts = append(parts, "Priority: HOT / urgent")
	}
	if item.DueDate != nil {
		parts = append(parts, fmt.Sprintf("Due date: %s", item.DueDate.Format("2006-01-02")))
	}
	if categoryName != "" {
		parts = append(parts, fmt.Sprintf("Category: %s", categoryName))
	}
	return strings.Join(parts, "\n")
}

// MemberRef builds the entity reference for a team member profile.
func MemberRef(member *models.TeamMember) schema.EntityRef {
	return schema.EntityRef{
		Type:   models.EntityMember,
		ID:     int64(member.ID),
		Source: fmt.Sprintf("member: %s", member.Name),
	}
}

// MemberText renders a team member profile for the knowledge base.
func MemberText(member *models.TeamMember) string {
	parts := []string{fmt.Sprintf("VIRTUAL AGENT: %s", member.Name)}
	if member.Title != "" {
		parts = append(parts, fmt.Sprintf("Role: %s", member.Title))
	}
	if member.Profile != "" {
		parts = append(parts, member.Profile)
	}
	return strings.Join(parts, "\n")
}

// DocumentRef builds the entity reference for an uploaded document.
func DocumentRef(doc *models.Document) schema.EntityRef {
	return schema.EntityRef{
		Type:       models.EntityDocument,
		ID:         int64(doc.ID),
		UniverseID: doc.UniverseID,
		Source:     fmt.Sprintf("document: %s", doc.Path),
	}
}

// FeedArtifactRef builds the entity reference for a feed artifact.
func FeedArtifactRef(artifact *models.FeedArtifact, universeID uint) schema.EntityRef {
	return schema.EntityRef{
		Type:       models.EntityFeed,
		ID:         int64(artifact.ID),
		UniverseID: universeID,
		Source:     fmt.Sprintf("feed: %s", artifact.Title),
	}
}
