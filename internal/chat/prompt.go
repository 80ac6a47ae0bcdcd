package chat

import (
	"strings"

	"github.com/suPer8Hu/ai-studio/internal/models"
)

const basePrompt = `You are an expert software engineer working inside AI Studio, a browser based workspace where the user edits files and previews HTML, CSS and JavaScript.
Answer in Markdown. When you change a file, give its path and then its complete new content in one fenced code block.`

// FileContextHeading opens the file section of the system prompt. It is only
// present when the project has files.
const FileContextHeading = "## Project files"

// BuildSystemPrompt embeds every file path and content verbatim, in the order given.
func BuildSystemPrompt(p *models.Project, files []models.File) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\nProject: ")
	b.WriteString(p.Name)
	if p.Description != nil && *p.Description != "" {
		b.WriteString("\nDescription: ")
		b.WriteString(*p.Description)
	}

	if len(files) == 0 {
		return b.String()
	}

	b.WriteString("\n\n")
	b.WriteString(FileContextHeading)
	b.WriteString("\n")
	for _, f := range files {
		b.WriteString("\n### ")
		b.WriteString(f.Path)
		b.WriteString("\n```")
		b.WriteString(f.Language)
		b.WriteString("\n")
		b.WriteString(f.Content)
		if !strings.HasSuffix(f.Content, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}
	return b.String()
}
