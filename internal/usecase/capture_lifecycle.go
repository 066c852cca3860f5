package usecase

import (
	"context"
	"log/slog"
	"sync"

	"sitespeak/internal/domain"
	"sitespeak/internal/ports"
)

// CaptureLifecycle owns start/stop of the speech recognizer. The capability
// is probed once at startup; when it is absent every listening operation is
// a no-op and the rest of the app keeps working.
type CaptureLifecycle struct {
	recognizer  ports.SpeechRecognizer
	onUtterance func(text string)
	onChange    func()
	events      ports.EventSink
	log         *slog.Logger

	mu          sync.Mutex
	unsupported bool
	session     ports.RecognitionSession
	sessionDone chan struct{}
}

// NewCaptureLifecycle wires a recognizer to an utterance handler. onChange
// is invoked after every listening-state transition so the owner can emit a
// fresh indicator value.
func NewCaptureLifecycle(
	recognizer ports.SpeechRecognizer,
	onUtterance func(text string),
	onChange func(),
	events ports.EventSink,
	log *slog.Logger,
) *CaptureLifecycle {
	if onUtterance == nil {
		onUtterance = func(string) {}
	}
	if onChange == nil {
		onChange = func() {}
	}
	return &CaptureLifecycle{
		recognizer:  recognizer,
		onUtterance: onUtterance,
		onChange:    onChange,
		events:      events,
		log:         log,
	}
}

// Initialize probes the capability. Absence is logged once and is not
// retried; it is not an error.
func (l *CaptureLifecycle) Initialize(ctx context.Context) {
	if err := l.recognizer.Probe(ctx); err != nil {
		l.mu.Lock()
		l.unsupported = true
		l.mu.Unlock()
		l.log.Warn("speech capture unavailable; voice input disabled", "error", err)
	}
}

// Start opens a recognition session. No-op when unsupported or already
// listening.
func (l *CaptureLifecycle) Start(ctx context.Context) {
	l.mu.Lock()
	if l.unsupported || l.session != nil {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	session, err := l.recognizer.Start(ctx)
	if err != nil {
		l.log.Error("failed to start speech capture", "error", err)
		l.events.ConversationError(domain.ErrorCodeCaptureStart, err.Error())
		return
	}

	done := make(chan struct{})
	l.mu.Lock()
	if l.session != nil {
		// Lost the race against a concurrent Start.
		l.mu.Unlock()
		_ = session.Close()
		return
	}
	l.session = session
	l.sessionDone = done
	l.mu.Unlock()

	go l.consume(session, done)
	l.onChange()
}

// Stop halts capture. Idempotent; safe to call when already idle.
func (l *CaptureLifecycle) Stop() {
	l.mu.Lock()
	session := l.session
	done := l.sessionDone
	l.session = nil
	l.sessionDone = nil
	l.mu.Unlock()

	if session == nil {
		return
	}
	_ = session.Close()
	if done != nil {
		<-done
	}
	l.onChange()
}

// Active reports whether capture is currently listening.
func (l *CaptureLifecycle) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session != nil
}

// Supported reports whether the capability probe succeeded.
func (l *CaptureLifecycle) Supported() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.unsupported
}

// consume forwards recognized utterances until the session ends. A
// mid-session failure forces the lifecycle back to idle and is reported
// exactly once.
func (l *CaptureLifecycle) consume(session ports.RecognitionSession, done chan struct{}) {
	defer close(done)

	for text := range session.Utterances() {
		l.onUtterance(text)
	}
	err := session.Wait()

	l.mu.Lock()
	wasActive := l.session == session
	if wasActive {
		l.session = nil
		l.sessionDone = nil
	}
	l.mu.Unlock()

	if !wasActive {
		// Stop or a restart already detached this session.
		return
	}
	if err != nil {
		l.log.Error("speech capture failed", "error", err)
		l.events.ConversationError(domain.ErrorCodeCapture, err.Error())
	}
	l.onChange()
}
