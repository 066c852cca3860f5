package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"sitespeak/internal/bootstrap"
	"sitespeak/internal/config"
	"sitespeak/internal/domain"
	"sitespeak/internal/usecase"
)

const (
	eventTranscript = "sitespeak:transcript"
	eventListening  = "sitespeak:listening"
	eventArtifact   = "sitespeak:artifact"
	eventError      = "sitespeak:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *usecase.ConversationController
	cfg        config.Config
	bootErr    error
	log        *slog.Logger
}

func NewApp(log *slog.Logger) *App {
	return &App{log: log}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsClipboard{}, a.log)
	if err != nil {
		a.bootErr = err
		a.ConversationError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.controller = services.Controller
	a.controller.Initialize(ctx)
	a.ListeningChanged(false)
}

func (a *App) shutdown(_ context.Context) {
	if a.controller != nil {
		a.controller.Close()
	}
}

// Submit records one typed or spoken utterance and kicks off generation when
// it is a website command. It never fails; errors surface as events.
func (a *App) Submit(text string) domain.Snapshot {
	if err := a.requireReady(); err != nil {
		return domain.Snapshot{}
	}
	return a.controller.Submit(text)
}

// ToggleListening starts or stops voice capture.
func (a *App) ToggleListening() domain.Snapshot {
	if err := a.requireReady(); err != nil {
		return domain.Snapshot{}
	}
	return a.controller.ToggleListening()
}

// GetSnapshot returns the current conversation view state.
func (a *App) GetSnapshot() domain.Snapshot {
	if err := a.requireReady(); err != nil {
		return domain.Snapshot{}
	}
	return a.controller.Snapshot()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"speechProvider":   "Deepgram",
		"speechModel":      a.cfg.Deepgram.Model,
		"generationModel":  a.cfg.LLM.Model,
		"generationServer": a.cfg.LLM.BaseURL,
		"sitesDir":         a.cfg.Sites.Dir,
		"audioInput":       a.cfg.Audio.InputDevice,
		"sampleRate":       strconv.Itoa(a.cfg.Audio.SampleRate),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// ListeningChanged emits the busy/listening indicator to the frontend.
func (a *App) ListeningChanged(listening bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventListening, map[string]bool{"listening": listening})
}

// EntryAppended emits a new transcript entry to the frontend.
func (a *App) EntryAppended(entry domain.MessageEntry) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranscript, entry)
}

// ArtifactReady emits the URL of a freshly generated website.
func (a *App) ArtifactReady(url string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventArtifact, map[string]string{"url": url})
}

// ConversationError emits backend errors to the UI.
func (a *App) ConversationError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCaptureStart:
		return "Could not start voice capture"
	case domain.ErrorCodeCapture:
		return "Voice capture stopped unexpectedly"
	case domain.ErrorCodeGeneration:
		return "Website generation failed"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
