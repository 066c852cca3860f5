package domain

import "time"

// MessageOrigin identifies who produced a transcript entry.
type MessageOrigin string

const (
	OriginUser   MessageOrigin = "user"
	OriginSystem MessageOrigin = "system"
)

// MessageEntry is one immutable line of the conversation transcript.
type MessageEntry struct {
	ID     string        `json:"id"`
	Text   string        `json:"text"`
	Origin MessageOrigin `json:"origin"`
	At     time.Time     `json:"at"`
}

// CommandIntent is the classification of a submitted utterance.
type CommandIntent string

const (
	IntentNone            CommandIntent = "none"
	IntentGenerateWebsite CommandIntent = "generate_website"
)

// GeneratedArtifact is the result of a successful website generation.
type GeneratedArtifact struct {
	URL string `json:"url"`
}

// SiteContent carries the pieces of a generated website before they are
// written to disk.
type SiteContent struct {
	HTML string `json:"htmlContent"`
	CSS  string `json:"cssContent,omitempty"`
	JS   string `json:"jsContent,omitempty"`
}

// Snapshot is the read-only view of controller state handed to the UI.
type Snapshot struct {
	Transcript  []MessageEntry `json:"transcript"`
	Listening   bool           `json:"listening"`
	ArtifactURL string         `json:"artifactUrl,omitempty"`
}

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup      ErrorCode = "startup"
	ErrorCodeCaptureStart ErrorCode = "capture_start"
	ErrorCodeCapture      ErrorCode = "capture"
	ErrorCodeGeneration   ErrorCode = "generation"
	ErrorCodeClipboard    ErrorCode = "clipboard"
)
