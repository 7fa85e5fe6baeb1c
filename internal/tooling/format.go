package tooling

import "strings"

const (
	noOutputText  = "Script executed successfully with no output."
	genericOKText = "Operation completed successfully."
	truncatedNote = "\n(output truncated)"
)

// Format renders a Result as the text a completion provider sees. The first
// populated field wins: content, then script output, then a listing, then
// the message.
func Format(r Result) FormattedResult {
	if !r.Success {
		return FormattedResult{Type: "text", Text: "Error: " + r.Error, IsError: true}
	}
	switch {
	case r.Content != nil:
		return FormattedResult{Type: "text", Text: *r.Content}
	case r.Stdout != nil || r.Stderr != nil:
		return FormattedResult{Type: "text", Text: formatOutput(r)}
	case r.Listing != nil:
		return FormattedResult{Type: "text", Text: formatListing(r.Path, r.Listing)}
	case r.Message != "":
		return FormattedResult{Type: "text", Text: r.Message}
	default:
		return FormattedResult{Type: "text", Text: genericOKText}
	}
}

func formatOutput(r Result) string {
	var b strings.Builder
	if r.Stdout != nil && *r.Stdout != "" {
		b.WriteString("Output:\n")
		b.WriteString(*r.Stdout)
	}
	if r.Stderr != nil && *r.Stderr != "" {
		b.WriteString("\nErrors/Warnings:\n")
		b.WriteString(*r.Stderr)
	}
	if b.Len() == 0 {
		b.WriteString(noOutputText)
	}
	if r.Truncated {
		b.WriteString(truncatedNote)
	}
	return b.String()
}

func formatListing(path string, l *Listing) string {
	var b strings.Builder
	b.WriteString("Files in " + path + ":\n")
	if len(l.Directories) > 0 {
		b.WriteString("\nDirectories:\n")
		for _, dir := range l.Directories {
			b.WriteString("  📁 " + dir + "/\n")
		}
	}
	if len(l.Files) > 0 {
		b.WriteString("\nFiles:\n")
		for _, file := range l.Files {
			b.WriteString("  📄 " + file + "\n")
		}
	}
	if len(l.Files) == 0 && len(l.Directories) == 0 {
		b.WriteString("  (empty)\n")
	}
	return b.String()
}
