package ports

import (
	"context"
	"errors"
	"io"

	"sitespeak/internal/domain"
)

// ErrCaptureUnsupported is returned by SpeechRecognizer.Probe when voice
// input cannot work on this machine. Voice stays disabled; everything else
// keeps running.
var ErrCaptureUnsupported = errors.New("speech capture unsupported")

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live microphone capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Probe() error
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// RecognitionSession is an active speech-to-text session. Utterances yields
// complete recognized phrases and is closed when the session ends; Wait
// reports the terminal error, if any.
type RecognitionSession interface {
	Utterances() <-chan string
	Wait() error
	Close() error
}

// SpeechRecognizer turns microphone input into text utterances. Probe is
// called once at startup; ErrCaptureUnsupported means the capability is
// absent rather than broken.
type SpeechRecognizer interface {
	Probe(ctx context.Context) error
	Start(ctx context.Context) (RecognitionSession, error)
}

// SiteGenerator runs the website-generation action for one request and
// resolves with the artifact URL.
type SiteGenerator interface {
	Generate(ctx context.Context, request string) (domain.GeneratedArtifact, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	ListeningChanged(listening bool)
	EntryAppended(entry domain.MessageEntry)
	ArtifactReady(url string)
	ConversationError(code domain.ErrorCode, detail string)
}
