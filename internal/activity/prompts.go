package activity

import (
	"fmt"
	"strings"

	"astro/internal/models"
	"astro/internal/rag/schema"
)

// progressEntry 是任务提示中展示的一步历史产出。
type progressEntry struct {
	MemberName  string
	MemberTitle string
	Instruction string
	Response    string
}

// formatRunContext 把共享检索结果渲染成成员系统提示中的知识库区块。
func formatRunContext(docs []*schema.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		source, _ := d.Metadata[schema.MetadataKeySource].(string)
		if source == "" {
			source = "unknown"
		}
		parts = append(parts, fmt.Sprintf("[%s]\n%s", source, d.Text))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// buildMemberSystemPrompt 构造赋予虚拟成员身份和知识库上下文的系统提示。
func buildMemberSystemPrompt(member *models.TeamMember, ragContext string) string {
	parts := []string{
		fmt.Sprintf("You are %s, a virtual team member.", member.Name),
	}
	if member.Title != "" {
		parts = append(parts, fmt.Sprintf("Your role: %s", member.Title))
	}
	if member.Profile != "" {
		parts = append(parts, fmt.Sprintf("Your expertise and background:\n%s", member.Profile))
	}
	parts = append(parts,
		"\nYou have access to the following knowledge base context to help you with your work:",
		ragContext,
		"Provide a thorough, well-reasoned response based on your expertise and the available context. "+
			"Be specific and actionable.",
	)
	return strings.Join(parts, "\n\n")
}

// buildTaskPrompt 构造任务的用户提示，包含此前全部任务的完整进展。
func buildTaskPrompt(activity *models.Activity, task models.ActivityTask, progression []progressEntry) string {
	var parts []string

	if activity.Prompt != "" {
		parts = append(parts, fmt.Sprintf("Activity: %s\nContext: %s\n", activity.Name, activity.Prompt))
	}

	if len(progression) > 0 {
		parts = append(parts, "--- Activity progression so far ---\n")
		for _, entry := range progression {
			title := entry.MemberTitle
			if title == "" {
				title = "Team Member"
			}
			label := ""
			if entry.Instruction != "" {
				label = fmt.Sprintf(" — %s", entry.Instruction)
			}
			parts = append(parts, fmt.Sprintf("**%s** (%s)%s:\n%s\n", entry.MemberName, title, label, entry.Response))
		}
		parts = append(parts, "---\n")
	}

	parts = append(parts, fmt.Sprintf("Your task: %s", task.Instruction))
	return strings.Join(parts, "\n")
}
