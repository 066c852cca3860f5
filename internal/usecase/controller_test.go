package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"sitespeak/internal/domain"
	"sitespeak/internal/ports"
)

func newTestController(t *testing.T, recognizer ports.SpeechRecognizer, generator ports.SiteGenerator, sink ports.EventSink) *ConversationController {
	t.Helper()
	controller := NewConversationController(recognizer, generator, &fakeClipboard{}, sink, discardLogger())
	controller.Initialize(context.Background())
	t.Cleanup(controller.Close)
	return controller
}

func unsupportedRecognizer() *fakeRecognizer {
	return &fakeRecognizer{probeErr: ports.ErrCaptureUnsupported}
}

func TestSubmitNonCommandAppendsUserEntryOnly(t *testing.T) {
	t.Parallel()

	generator := newFakeGenerator("/websites/x/index.html")
	controller := newTestController(t, unsupportedRecognizer(), generator, &recordingSink{})

	snapshot := controller.Submit("hello")

	if len(snapshot.Transcript) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(snapshot.Transcript))
	}
	entry := snapshot.Transcript[0]
	if entry.Origin != domain.OriginUser || entry.Text != "hello" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.ID == "" {
		t.Fatalf("expected a generated entry id")
	}
	if snapshot.Listening {
		t.Fatalf("listening must stay off for non-commands")
	}
	if generator.calls() != 0 {
		t.Fatalf("generator must not run for non-commands")
	}
}

func TestSubmitBlankTextIsIgnored(t *testing.T) {
	t.Parallel()

	controller := newTestController(t, unsupportedRecognizer(), newFakeGenerator("u"), &recordingSink{})

	snapshot := controller.Submit("   ")
	if len(snapshot.Transcript) != 0 {
		t.Fatalf("expected no entries for blank input, got %d", len(snapshot.Transcript))
	}
}

func TestSubmitCommandRunsGenerationAndPublishesArtifact(t *testing.T) {
	t.Parallel()

	generator := newFakeGenerator("/websites/abc/index.html")
	generator.block()
	sink := &recordingSink{}
	controller := newTestController(t, unsupportedRecognizer(), generator, sink)

	snapshot := controller.Submit("please create website for me")
	if !snapshot.Listening {
		t.Fatalf("expected busy indicator while generation is in flight")
	}
	if snapshot.ArtifactURL != "" {
		t.Fatalf("artifact must not be set before the task resolves")
	}

	generator.release()
	waitForCondition(t, 2*time.Second, func() bool { return !controller.Snapshot().Listening })

	final := controller.Snapshot()
	if final.ArtifactURL != "/websites/abc/index.html" {
		t.Fatalf("unexpected artifact url: %q", final.ArtifactURL)
	}

	var systemEntries []domain.MessageEntry
	for _, entry := range final.Transcript {
		if entry.Origin == domain.OriginSystem {
			systemEntries = append(systemEntries, entry)
		}
	}
	if len(systemEntries) != 1 {
		t.Fatalf("expected exactly one system entry, got %d", len(systemEntries))
	}
	if !strings.Contains(systemEntries[0].Text, "/websites/abc/index.html") {
		t.Fatalf("system entry must reference the artifact url: %q", systemEntries[0].Text)
	}

	artifacts := sink.snapshotArtifacts()
	if len(artifacts) != 1 || artifacts[0] != "/websites/abc/index.html" {
		t.Fatalf("expected one artifact event, got %v", artifacts)
	}
}

func TestSubmitRejectsSecondCommandWhileProcessing(t *testing.T) {
	t.Parallel()

	generator := newFakeGenerator("/websites/one/index.html")
	generator.block()
	controller := newTestController(t, unsupportedRecognizer(), generator, &recordingSink{})

	controller.Submit("build website please")
	snapshot := controller.Submit("generate website again")

	// The second utterance still lands in the transcript.
	if len(snapshot.Transcript) != 2 {
		t.Fatalf("expected 2 user entries, got %d", len(snapshot.Transcript))
	}

	generator.release()
	waitForCondition(t, 2*time.Second, func() bool { return !controller.Snapshot().Listening })

	if got := generator.calls(); got != 1 {
		t.Fatalf("expected a single generation run, got %d", got)
	}
}

func TestSubmitCommandWorksWithoutSpeechCapability(t *testing.T) {
	t.Parallel()

	generator := newFakeGenerator("/websites/voice-free/index.html")
	controller := newTestController(t, unsupportedRecognizer(), generator, &recordingSink{})

	// Voice toggle is a no-op when the capability is absent.
	snapshot := controller.ToggleListening()
	if snapshot.Listening {
		t.Fatalf("toggle must be a no-op without capture capability")
	}

	controller.Submit("generate website")
	waitForCondition(t, 2*time.Second, func() bool { return controller.Snapshot().ArtifactURL != "" })

	if got := generator.calls(); got != 1 {
		t.Fatalf("generation must run independently of voice, got %d calls", got)
	}
}

func TestGenerationFailureClearsBusyAndKeepsArtifact(t *testing.T) {
	t.Parallel()

	generator := newFakeGenerator("/websites/keep/index.html")
	sink := &recordingSink{}
	controller := newTestController(t, unsupportedRecognizer(), generator, sink)

	controller.Submit("create website")
	waitForCondition(t, 2*time.Second, func() bool { return controller.Snapshot().ArtifactURL != "" })

	generator.failWith(errors.New("backend down"))
	controller.Submit("create website once more")
	waitForCondition(t, 2*time.Second, func() bool {
		errs := sink.snapshotErrors()
		return len(errs) > 0 && errs[len(errs)-1].code == domain.ErrorCodeGeneration
	})
	waitForCondition(t, 2*time.Second, func() bool { return !controller.Snapshot().Listening })

	snapshot := controller.Snapshot()
	if snapshot.Listening {
		t.Fatalf("busy indicator must clear after a failure")
	}
	if snapshot.ArtifactURL != "/websites/keep/index.html" {
		t.Fatalf("failure must not touch the previous artifact, got %q", snapshot.ArtifactURL)
	}

	var generationErrors int
	for _, e := range sink.snapshotErrors() {
		if e.code == domain.ErrorCodeGeneration {
			generationErrors++
		}
	}
	if generationErrors != 1 {
		t.Fatalf("expected exactly one generation error event, got %d", generationErrors)
	}

	last := snapshot.Transcript[len(snapshot.Transcript)-1]
	if last.Origin != domain.OriginSystem || !strings.Contains(last.Text, "failed") {
		t.Fatalf("expected a system failure notice, got %+v", last)
	}
}

func TestCloseDiscardsLateResult(t *testing.T) {
	t.Parallel()

	generator := newFakeGenerator("/websites/late/index.html")
	generator.block()
	sink := &recordingSink{}
	controller := NewConversationController(unsupportedRecognizer(), generator, &fakeClipboard{}, sink, discardLogger())
	controller.Initialize(context.Background())

	controller.Submit("create website")

	go func() {
		time.Sleep(20 * time.Millisecond)
		generator.release()
	}()
	controller.Close()

	snapshot := controller.Snapshot()
	if snapshot.ArtifactURL != "" {
		t.Fatalf("late result must be discarded after close, got %q", snapshot.ArtifactURL)
	}
	for _, entry := range snapshot.Transcript {
		if entry.Origin == domain.OriginSystem {
			t.Fatalf("no system entry may be appended after close: %+v", entry)
		}
	}
	if artifacts := sink.snapshotArtifacts(); len(artifacts) != 0 {
		t.Fatalf("no artifact event may fire after close, got %v", artifacts)
	}
}

func TestToggleListeningStartsAndStopsCapture(t *testing.T) {
	t.Parallel()

	session := newFakeRecognitionSession()
	recognizer := &fakeRecognizer{sessions: []*fakeRecognitionSession{session}}
	controller := newTestController(t, recognizer, newFakeGenerator("u"), &recordingSink{})

	snapshot := controller.ToggleListening()
	if !snapshot.Listening {
		t.Fatalf("expected listening after first toggle")
	}

	snapshot = controller.ToggleListening()
	if snapshot.Listening {
		t.Fatalf("expected idle after second toggle")
	}
	if session.closeCalls == 0 {
		t.Fatalf("expected capture session close on toggle off")
	}
}

func TestVoiceUtteranceFlowsIntoSubmit(t *testing.T) {
	t.Parallel()

	session := newFakeRecognitionSession()
	recognizer := &fakeRecognizer{sessions: []*fakeRecognitionSession{session}}
	generator := newFakeGenerator("/websites/spoken/index.html")
	controller := newTestController(t, recognizer, generator, &recordingSink{})

	controller.ToggleListening()
	session.utterances <- "generate website about cats"

	waitForCondition(t, 2*time.Second, func() bool { return controller.Snapshot().ArtifactURL != "" })

	snapshot := controller.Snapshot()
	if snapshot.Transcript[0].Origin != domain.OriginUser || snapshot.Transcript[0].Text != "generate website about cats" {
		t.Fatalf("expected spoken utterance as user entry, got %+v", snapshot.Transcript[0])
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	controller := NewConversationController(unsupportedRecognizer(), newFakeGenerator("u"), &fakeClipboard{}, &recordingSink{}, discardLogger())
	controller.Initialize(context.Background())
	controller.Close()
	controller.Close()

	if snapshot := controller.Submit("create website"); len(snapshot.Transcript) != 0 {
		t.Fatalf("submit after close must not append entries")
	}
}

type fakeGenerator struct {
	mu      sync.Mutex
	url     string
	err     error
	count   int
	blockCh chan struct{}
}

func newFakeGenerator(url string) *fakeGenerator {
	return &fakeGenerator{url: url}
}

// block makes subsequent Generate calls wait until release.
func (f *fakeGenerator) block() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockCh = make(chan struct{})
}

func (f *fakeGenerator) release() {
	f.mu.Lock()
	ch := f.blockCh
	f.blockCh = nil
	f.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

func (f *fakeGenerator) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *fakeGenerator) Generate(ctx context.Context, _ string) (domain.GeneratedArtifact, error) {
	f.mu.Lock()
	f.count++
	ch := f.blockCh
	err := f.err
	url := f.url
	f.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return domain.GeneratedArtifact{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.GeneratedArtifact{}, err
	}
	return domain.GeneratedArtifact{URL: url}, nil
}

type fakeClipboard struct {
	mu       sync.Mutex
	lastText string
	err      error
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastText = text
	return f.err
}
