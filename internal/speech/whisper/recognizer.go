// Package whisper implements the batch fallback recognition engine.
// Audio is buffered for the whole capture and transcribed in one shot
// when the capture stops, so there are no interim results.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/amaki/voicereply/internal/audio"
	"github.com/amaki/voicereply/internal/speech"
)

// Config controls the transcription request settings.
type Config struct {
	APIKey     string
	Model      string // default whisper-1
	SampleRate int    // default 16000
}

// transcriber is the subset of the OpenAI client used here.
type transcriber interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Factory builds one batch recognizer per capture generation.
type Factory struct {
	cfg Config

	// seams for tests
	newDevice func() audio.Device
	client    transcriber
}

// NewFactory creates a recognizer factory. Returns an error when no API
// key is configured, so callers can fall back to text entry.
func NewFactory(cfg Config) (*Factory, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai API key is not configured")
	}

	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16_000
	}

	return &Factory{
		cfg: cfg,
		newDevice: func() audio.Device {
			conf := audio.DefaultConfig()
			conf.SampleRate = cfg.SampleRate

			return audio.NewDevice(conf)
		},
		client: openai.NewClient(cfg.APIKey),
	}, nil
}

// New implements speech.Factory.
func (f *Factory) New(scfg speech.Config, cb speech.Callbacks) (speech.Recognizer, error) {
	return &recognizer{
		cfg:    f.cfg,
		scfg:   scfg,
		cb:     cb,
		dev:    f.newDevice(),
		client: f.client,
		dataC:  make(chan audio.DataPacket, 64),
	}, nil
}

type recognizer struct {
	cfg    Config
	scfg   speech.Config
	cb     speech.Callbacks
	dev    audio.Device
	client transcriber

	dataC chan audio.DataPacket

	closeSendOnce sync.Once
	aborted       atomic.Bool
}

// Start allocates the microphone and begins buffering samples.
func (r *recognizer) Start() error {
	ctx := context.Background()

	if err := r.dev.CaptureInto(ctx, r.dataC); err != nil {
		return fmt.Errorf("failed to allocate capture device: %w", err)
	}

	if err := r.dev.Start(ctx); err != nil {
		r.dev.Dealloc(ctx)
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	go r.collect()

	return nil
}

// Stop stops the microphone and kicks off transcription of the buffered
// audio. Results arrive asynchronously through the callbacks.
func (r *recognizer) Stop() {
	_ = r.dev.Stop(context.Background())
	r.closeSendOnce.Do(func() { close(r.dataC) })
}

// Abort discards the buffered audio without transcribing it.
func (r *recognizer) Abort() {
	r.aborted.Store(true)
	_ = r.dev.Stop(context.Background())
	r.closeSendOnce.Do(func() { close(r.dataC) })
}

// collect drains the capture channel into a buffer, then transcribes
// once the channel closes.
func (r *recognizer) collect() {
	var buf bytes.Buffer
	for chunk := range r.dataC {
		buf.Write(chunk)
	}

	r.dev.Dealloc(context.Background())

	if !r.aborted.Load() {
		r.transcribe(buf.Bytes())
	}

	r.cb.OnEnd()
}

// minPCMBytes is roughly a quarter second of 16-bit mono audio at
// 16 kHz. Shorter captures are treated as silence.
const minPCMBytes = 8_000

func (r *recognizer) transcribe(pcm []byte) {
	if len(pcm) < minPCMBytes {
		r.cb.OnError(string(speech.ErrNoSpeech))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.cfg.Model,
		FilePath: "capture.wav",
		Reader:   bytes.NewReader(EncodeWAV(pcm, r.cfg.SampleRate, 1)),
		Language: languageParam(r.scfg.Language),
	})
	if err != nil {
		r.cb.OnError(string(speech.ErrNetwork))
		return
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		r.cb.OnError(string(speech.ErrNoSpeech))
		return
	}

	r.cb.OnResult(speech.Result{Text: text, Final: true})
}

// languageParam reduces a BCP 47 tag to the ISO 639-1 code the
// transcription endpoint expects.
func languageParam(tag string) string {
	if tag == "" {
		return "ja"
	}

	primary, _, _ := strings.Cut(tag, "-")

	return strings.ToLower(primary)
}
