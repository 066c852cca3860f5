// Package deepgram streams microphone audio to the Deepgram websocket API
// and yields complete recognized utterances.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"sitespeak/internal/ports"
)

const audioChunkSize = 4096

// Config controls the Deepgram websocket connection.
type Config struct {
	APIKey     string
	APIBaseURL string
	Model      string
	Language   string
	SampleRate int
	Channels   int
}

// Recognizer implements ports.SpeechRecognizer: it owns the microphone
// capture and the websocket session and assembles final transcript segments
// into utterances.
type Recognizer struct {
	cfg      Config
	audio    ports.AudioCapture
	audioCfg ports.AudioConfig
}

func NewRecognizer(cfg Config, audio ports.AudioCapture, audioCfg ports.AudioConfig) *Recognizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	return &Recognizer{cfg: cfg, audio: audio, audioCfg: audioCfg}
}

// Probe reports ErrCaptureUnsupported when either the API key or the
// recorder binary is missing, so the app can disable voice input instead of
// failing at startup.
func (r *Recognizer) Probe(_ context.Context) error {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return fmt.Errorf("%w: DEEPGRAM_API_KEY is not set", ports.ErrCaptureUnsupported)
	}
	if err := r.audio.Probe(); err != nil {
		return fmt.Errorf("%w: %v", ports.ErrCaptureUnsupported, err)
	}
	return nil
}

func (r *Recognizer) Start(ctx context.Context) (ports.RecognitionSession, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildListenURL(r.cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}

	audioSession, err := r.audio.Start(ctx, r.audioCfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	session := &recognitionSession{
		conn:       conn,
		audio:      audioSession,
		utterances: make(chan string, 16),
		done:       make(chan struct{}),
	}

	go session.readLoop()
	go session.pumpLoop()
	go func() {
		<-ctx.Done()
		_ = session.Close()
	}()

	return session, nil
}

type recognitionSession struct {
	conn  *websocket.Conn
	audio ports.AudioSession

	utterances chan string
	done       chan struct{}

	writeMu sync.Mutex

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func (s *recognitionSession) Utterances() <-chan string {
	return s.utterances
}

func (s *recognitionSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *recognitionSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.audio.Stop()
		_ = s.writeMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

// pumpLoop streams microphone chunks into the websocket until the audio
// session ends.
func (s *recognitionSession) pumpLoop() {
	buf := make([]byte, audioChunkSize)
	for {
		n, err := s.audio.Read(buf)
		if n > 0 {
			if werr := s.writeMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				s.setErr(fmt.Errorf("failed to stream audio: %w", werr))
				return
			}
		}
		if err != nil {
			if !isNormalReadEnd(err) {
				s.setErr(fmt.Errorf("audio capture error: %w", err))
			}
			_ = s.writeMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
			return
		}
	}
}

// readLoop consumes transcription events and emits a complete utterance
// whenever Deepgram marks the end of a spoken phrase.
func (s *recognitionSession) readLoop() {
	defer close(s.done)
	defer close(s.utterances)

	var segments []string
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.flush(segments)
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var response listenResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}

		transcript := strings.TrimSpace(response.transcript())
		if transcript != "" && (response.IsFinal || response.SpeechFinal) {
			segments = append(segments, transcript)
		}
		if response.SpeechFinal && len(segments) > 0 {
			s.emit(strings.Join(segments, " "))
			segments = nil
		}
	}
}

// flush emits whatever finals accumulated before the stream ended, so a
// phrase spoken right before shutdown is not lost.
func (s *recognitionSession) flush(segments []string) {
	if len(segments) > 0 {
		s.emit(strings.Join(segments, " "))
	}
}

func (s *recognitionSession) emit(utterance string) {
	select {
	case s.utterances <- utterance:
	default:
	}
}

func (s *recognitionSession) writeMessage(messageType int, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, payload)
}

func (s *recognitionSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *recognitionSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// isNormalReadEnd reports whether an audio read error is the expected end of
// a stopped capture session.
func isNormalReadEnd(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed)
}

func buildListenURL(cfg Config) (string, error) {
	parsed, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram base URL: %w", err)
	}
	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	case "http":
		parsed.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported Deepgram base URL scheme %q", parsed.Scheme)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + "/listen"

	query := url.Values{}
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	query.Set("channels", strconv.Itoa(cfg.Channels))
	query.Set("interim_results", "false")
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r listenResponse) transcript() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return r.Channel.Alternatives[0].Transcript
}
