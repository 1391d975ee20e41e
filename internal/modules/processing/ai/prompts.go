package ai

import (
	"strings"

	"github.com/mx-space/tldr/internal/config"
)

const systemPrompt = "You are a professional content summarizer. Create concise, accurate summaries that capture the key points and main ideas."

var lengthInstructions = map[string]string{
	config.LengthShort:   "Create a single sentence summary (approximately 15-25 words) that captures the main point.",
	config.LengthMedium:  "Create a concise summary in 2-3 sentences that covers the key points and main ideas.",
	config.LengthBullets: "Create a bullet-point summary with 4-6 key points, each as a brief, clear statement.",
}

var toneInstructions = map[string]string{
	config.ToneNeutral:   "Use a neutral, informative tone suitable for general audiences.",
	config.ToneExecutive: "Use a professional, executive tone focusing on key insights and actionable information.",
	config.ToneCasual:    "Use a conversational, accessible tone that's easy to understand.",
}

// buildPrompt assembles the user message. Unknown length or tone fall back to medium and neutral.
func buildPrompt(content, length, tone string) string {
	lengthText, ok := lengthInstructions[length]
	if !ok {
		lengthText = lengthInstructions[config.LengthMedium]
	}
	toneText, ok := toneInstructions[tone]
	if !ok {
		toneText = toneInstructions[config.ToneNeutral]
	}

	var b strings.Builder
	b.WriteString("Please summarize the following content:\n\n")
	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("- " + lengthText + "\n")
	b.WriteString("- " + toneText + "\n")
	b.WriteString("- Focus on the most important information and key takeaways.\n")
	b.WriteString("- Be accurate and avoid adding information not present in the original content.\n\n")
	b.WriteString("CONTENT TO SUMMARIZE:\n")
	b.WriteString(content)
	return b.String()
}
