package enhance

import (
	"fmt"
	"strings"

	"github.com/MrWong99/scribe/internal/enhance/tools"
)

const (
	transcriptStart = "=== TRANSCRIPT START ==="
	transcriptEnd   = "=== TRANSCRIPT END ==="
)

const systemPrompt = `You are a transcript editor. You receive raw speech-to-text transcripts of work conversations and return the same transcript with transcription errors fixed.

Speech recognition often mangles names of people, project names and technical terms. Use these tools to resolve them:
- lookup_person: check a person's name against the known people.
- lookup_project: check a project name or technical term against the known projects and terms.
- verify_spelling: check an unusual word that is neither a person nor a project.
- route_note: decide where the finished note is filed.
- store_context: suggest remembering new information.

Rules:
- Look up every name and unusual term before correcting it. Apply the suggestion a tool returns.
- If a tool reports that the user was asked, use the user's answer.
- Never summarize, shorten, reorder or add content. Keep every sentence.
- Fix only transcription errors, punctuation and capitalisation.
- When you have no more tool calls to make, reply with the complete corrected transcript and nothing else.`

func initialPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Enhance this transcript. Preserve all content; do not summarize.\n\n")
	writeTranscript(&b, text)
	b.WriteString("\nLook up names, projects and unusual terms with the tools first. Then reply with the full corrected transcript.")
	return b.String()
}

func continuationPrompt(text string, corrections []tools.Correction) string {
	var b strings.Builder
	b.WriteString("Continue with the transcript below.\n\n")
	writeTranscript(&b, text)
	b.WriteString("\n")
	writeCorrections(&b, corrections)
	b.WriteString("\nCall more tools if anything is still unresolved. Otherwise reply with the complete corrected transcript. Do not summarize.")
	return b.String()
}

func forcePrompt(text string, corrections []tools.Correction) string {
	var b strings.Builder
	b.WriteString("Reply now with the complete corrected transcript and nothing else. Do not call tools. Do not summarize or leave anything out.\n\n")
	writeTranscript(&b, text)
	b.WriteString("\n")
	writeCorrections(&b, corrections)
	return b.String()
}

func writeTranscript(b *strings.Builder, text string) {
	b.WriteString(transcriptStart)
	b.WriteString("\n")
	b.WriteString(text)
	b.WriteString("\n")
	b.WriteString(transcriptEnd)
	b.WriteString("\n")
}

func writeCorrections(b *strings.Builder, corrections []tools.Correction) {
	if len(corrections) == 0 {
		b.WriteString("Corrections so far: none.\n")
		return
	}
	b.WriteString("Corrections so far:\n")
	for _, c := range corrections {
		fmt.Fprintf(b, "- %q -> %q\n", c.Heard, c.Resolved)
	}
}
