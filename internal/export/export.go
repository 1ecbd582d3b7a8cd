package export

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/skypro1111/transcript-diarizer/internal/diarize"
)

// Format is an output format name
type Format string

const (
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
)

// ParseFormat resolves a format name; the empty string selects JSON
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown export format %q (expected json, text or markdown)", name)
	}
}

// ContentType returns the HTTP content type for the format
func (f Format) ContentType() string {
	switch f {
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "application/json"
	}
}

// Extension returns the file extension for the format, including the dot
func (f Format) Extension() string {
	switch f {
	case FormatText:
		return ".txt"
	case FormatMarkdown:
		return ".md"
	default:
		return ".json"
	}
}

// Metadata is optional header information for Markdown output
type Metadata struct {
	Title  string
	Source string
	Model  string
}

// Write renders t in the given format to w
func Write(w io.Writer, format Format, meta Metadata, t *diarize.Transcription) error {
	var err error
	switch format {
	case FormatText:
		_, err = io.WriteString(w, Text(t))
	case FormatMarkdown:
		_, err = io.WriteString(w, Markdown(meta, t))
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(t)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}

	if err != nil {
		return fmt.Errorf("failed to write %s output: %w", format, err)
	}
	return nil
}

// Text renders one "[MM:SS - MM:SS] Speaker N: text" line per segment
func Text(t *diarize.Transcription) string {
	lines := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		lines = append(lines, fmt.Sprintf("[%s - %s] %s: %s", FormatTime(s.Start), FormatTime(s.End), s.Speaker, s.Text))
	}
	return strings.Join(lines, "\n")
}

// Markdown renders a titled document with a speaker summary and the transcript body
func Markdown(meta Metadata, t *diarize.Transcription) string {
	var b strings.Builder

	// Header
	if meta.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", meta.Title)
	} else {
		b.WriteString("# Transcript\n\n")
	}
	if meta.Source != "" {
		fmt.Fprintf(&b, "- Source: `%s`\n", meta.Source)
	}
	if meta.Model != "" {
		fmt.Fprintf(&b, "- Model: `%s`\n", meta.Model)
	}
	if t.Language != "" {
		fmt.Fprintf(&b, "- Language: %s\n", t.Language)
	}
	if t.Duration > 0 {
		fmt.Fprintf(&b, "- Duration: %s\n", FormatTime(t.Duration))
	}

	totals := t.SpeakingTime()
	for _, speaker := range diarize.SortedSpeakers(totals) {
		fmt.Fprintf(&b, "- %s: %s\n", speaker, FormatTime(totals[speaker]))
	}
	b.WriteString("\n---\n\n")

	// Body
	for _, s := range t.Segments {
		fmt.Fprintf(&b, "**%s** [%s - %s]: %s\n\n", s.Speaker, FormatTime(s.Start), FormatTime(s.End), strings.TrimSpace(s.Text))
	}
	return b.String()
}

// FormatTime renders seconds as zero-padded MM:SS; minutes are not wrapped into hours
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	mins := int(math.Floor(seconds / 60))
	secs := int(math.Floor(math.Mod(seconds, 60)))
	return fmt.Sprintf("%02d:%02d", mins, secs)
}
