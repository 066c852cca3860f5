package bootstrap

import (
	"log/slog"

	"sitespeak/internal/audio"
	"sitespeak/internal/config"
	"sitespeak/internal/ports"
	"sitespeak/internal/providers/deepgram"
	"sitespeak/internal/providers/llm"
	"sitespeak/internal/sitewriter"
	"sitespeak/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.ConversationController
	Config     config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(events ports.EventSink, clipboard ports.Clipboard, log *slog.Logger) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	writer := sitewriter.New(cfg.Sites.Dir, cfg.Sites.PublicBase)
	generator := llm.NewGenerator(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	}, writer, log)

	recognizer := deepgram.NewRecognizer(
		deepgram.Config{
			APIKey:     cfg.Deepgram.APIKey,
			APIBaseURL: cfg.Deepgram.APIBaseURL,
			Model:      cfg.Deepgram.Model,
			Language:   cfg.Deepgram.Language,
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
		},
		audio.NewFFmpegCapture(cfg.Audio.RecorderCommand),
		ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
	)

	controller := usecase.NewConversationController(recognizer, generator, clipboard, events, log)

	return Services{Controller: controller, Config: cfg}, nil
}
