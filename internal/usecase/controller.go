package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sitespeak/internal/domain"
	"sitespeak/internal/intent"
	"sitespeak/internal/ports"
)

const closeGrace = 2 * time.Second

// ConversationController orchestrates submitted text: it appends entries to
// the transcript, classifies commands, runs at most one website generation
// at a time, and owns the speech-capture lifecycle. All failures are logged
// and converted into safe state transitions; Submit never returns an error.
type ConversationController struct {
	transcript *TranscriptStore
	capture    *CaptureLifecycle
	generator  ports.SiteGenerator
	clipboard  ports.Clipboard
	events     ports.EventSink
	log        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	processing  bool
	artifactURL string
	closed      bool
	taskDone    chan struct{}
}

func NewConversationController(
	recognizer ports.SpeechRecognizer,
	generator ports.SiteGenerator,
	clipboard ports.Clipboard,
	events ports.EventSink,
	log *slog.Logger,
) *ConversationController {
	ctx, cancel := context.WithCancel(context.Background())
	c := &ConversationController{
		transcript: NewTranscriptStore(),
		generator:  generator,
		clipboard:  clipboard,
		events:     events,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
	c.capture = NewCaptureLifecycle(
		recognizer,
		func(text string) { c.Submit(text) },
		c.emitListening,
		events,
		log,
	)
	return c
}

// Initialize probes the speech capability once. Capture stays idle until
// ToggleListening is called.
func (c *ConversationController) Initialize(ctx context.Context) {
	c.capture.Initialize(ctx)
}

// Submit records one user utterance and, when it is a generation command,
// starts the generation task. It always resolves: errors end up in the log
// and the event sink, never in a return value.
func (c *ConversationController) Submit(text string) domain.Snapshot {
	text = strings.TrimSpace(text)
	if text == "" {
		return c.Snapshot()
	}

	c.appendEntry(domain.OriginUser, text)

	if intent.Classify(text) != domain.IntentGenerateWebsite {
		return c.Snapshot()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.Snapshot()
	}
	if c.processing {
		c.mu.Unlock()
		c.log.Warn("generation already in flight; request ignored", "request", text)
		return c.Snapshot()
	}
	c.processing = true
	done := make(chan struct{})
	c.taskDone = done
	c.mu.Unlock()

	c.emitListening()
	go c.runGeneration(text, done)

	return c.Snapshot()
}

// runGeneration executes one generation task. The busy flag is cleared on
// every exit path.
func (c *ConversationController) runGeneration(request string, done chan struct{}) {
	defer close(done)
	defer c.finishTask()

	artifact, err := c.generator.Generate(c.ctx, request)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.Error("website generation failed", "request", request, "error", err)
		c.events.ConversationError(domain.ErrorCodeGeneration, err.Error())
		c.appendEntry(domain.OriginSystem, "Website generation failed.")
		return
	}

	c.mu.Lock()
	if c.closed {
		// Late result after Close: discard.
		c.mu.Unlock()
		return
	}
	c.artifactURL = artifact.URL
	c.mu.Unlock()

	c.appendEntry(domain.OriginSystem, "Website ready: "+artifact.URL)
	c.events.ArtifactReady(artifact.URL)

	if c.clipboard != nil {
		if err := c.clipboard.SetText(c.ctx, artifact.URL); err != nil {
			c.log.Warn("failed to copy website URL to clipboard", "error", err)
			c.events.ConversationError(domain.ErrorCodeClipboard, err.Error())
		}
	}
}

func (c *ConversationController) finishTask() {
	c.mu.Lock()
	c.processing = false
	c.taskDone = nil
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		c.emitListening()
	}
}

// ToggleListening starts or stops voice capture. It never touches an
// in-flight generation task.
func (c *ConversationController) ToggleListening() domain.Snapshot {
	if c.capture.Active() {
		c.capture.Stop()
	} else {
		c.capture.Start(c.ctx)
	}
	return c.Snapshot()
}

// Snapshot returns the read-only view state. The listening indicator is on
// while either voice capture is active or a generation task is in flight.
func (c *ConversationController) Snapshot() domain.Snapshot {
	c.mu.Lock()
	processing := c.processing
	url := c.artifactURL
	c.mu.Unlock()

	return domain.Snapshot{
		Transcript:  c.transcript.Snapshot(),
		Listening:   processing || c.capture.Active(),
		ArtifactURL: url,
	}
}

// Close releases the capture session, cancels any in-flight generation and
// marks the controller disposed. Late task results are discarded.
func (c *ConversationController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	done := c.taskDone
	c.mu.Unlock()

	c.capture.Stop()
	c.cancel()

	if done != nil {
		select {
		case <-done:
		case <-time.After(closeGrace):
			c.log.Warn("generation task did not finish before shutdown")
		}
	}
}

func (c *ConversationController) appendEntry(origin domain.MessageOrigin, text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	entry := domain.MessageEntry{
		ID:     uuid.NewString(),
		Text:   text,
		Origin: origin,
		At:     time.Now(),
	}
	c.transcript.Append(entry)
	c.mu.Unlock()

	c.events.EntryAppended(entry)
}

func (c *ConversationController) emitListening() {
	c.mu.Lock()
	processing := c.processing
	c.mu.Unlock()
	c.events.ListeningChanged(processing || c.capture.Active())
}
