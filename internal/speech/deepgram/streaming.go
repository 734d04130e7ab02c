// Package deepgram implements the continuous, interim-capable
// recognition engine over the Deepgram streaming websocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/amaki/voicereply/internal/audio"
	"github.com/amaki/voicereply/internal/speech"
)

// Config controls the websocket connection settings.
type Config struct {
	APIKey     string
	BaseURL    string // default wss://api.deepgram.com/v1
	Model      string // default nova-2
	SampleRate int    // default 16000
}

// Factory builds one streaming recognizer per capture generation. Each
// recognizer exclusively owns a fresh microphone device and websocket
// connection for its lifetime.
type Factory struct {
	cfg Config

	// newDevice is a seam for tests.
	newDevice func() audio.Device
}

// NewFactory creates a recognizer factory. Returns an error when no API
// key is configured, so callers can fall back to text entry.
func NewFactory(cfg Config) (*Factory, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("deepgram API key is not configured")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "wss://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
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
	}, nil
}

// New implements speech.Factory.
func (f *Factory) New(scfg speech.Config, cb speech.Callbacks) (speech.Recognizer, error) {
	return &recognizer{
		cfg:   f.cfg,
		scfg:  scfg,
		cb:    cb,
		dev:   f.newDevice(),
		dataC: make(chan audio.DataPacket, 64),
	}, nil
}

type recognizer struct {
	cfg  Config
	scfg speech.Config
	cb   speech.Callbacks

	dev   audio.Device
	conn  *websocket.Conn
	dataC chan audio.DataPacket

	closeSendOnce sync.Once
	endOnce       sync.Once

	mu            sync.Mutex
	finals        []string
	stopRequested bool
}

// Start dials the streaming endpoint and begins pumping microphone
// audio. A connection failure is reported through the error callback as
// a network error rather than returned, matching how mid-stream
// failures surface.
func (r *recognizer) Start() error {
	ctx := context.Background()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, listenURL(r.cfg, r.scfg), headers)
	if err != nil {
		r.fail(string(speech.ErrNetwork))
		return nil
	}
	r.conn = conn

	if err := r.dev.CaptureInto(ctx, r.dataC); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to allocate capture device: %w", err)
	}

	if err := r.dev.Start(ctx); err != nil {
		r.dev.Dealloc(ctx)
		_ = conn.Close()

		return fmt.Errorf("failed to start capture device: %w", err)
	}

	go r.writeLoop()
	go r.readLoop()

	return nil
}

// Stop requests a graceful stop: the microphone is stopped and the
// audio stream closed so the server can flush remaining finals before
// closing the connection, which ends the read loop.
func (r *recognizer) Stop() {
	r.mu.Lock()
	r.stopRequested = true
	r.mu.Unlock()

	_ = r.dev.Stop(context.Background())
	r.closeSendOnce.Do(func() { close(r.dataC) })
}

// Abort tears everything down without waiting for pending results. The
// device must stop before the data channel closes or a late capture
// callback would send on a closed channel.
func (r *recognizer) Abort() {
	r.mu.Lock()
	r.stopRequested = true
	r.mu.Unlock()

	_ = r.dev.Stop(context.Background())
	r.closeSendOnce.Do(func() { close(r.dataC) })
	if r.conn != nil {
		_ = r.conn.Close()
	}
	r.end()
}

func (r *recognizer) writeLoop() {
	for chunk := range r.dataC {
		if err := r.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return
		}
	}

	_ = r.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
}

func (r *recognizer) readLoop() {
	for {
		_, payload, err := r.conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			stopped := r.stopRequested
			r.mu.Unlock()

			if stopped || isNormalClose(err) {
				r.end()
			} else {
				r.fail(string(speech.ErrNetwork))
			}

			return
		}

		r.handlePayload(payload)
	}
}

// handlePayload parses one server message and dispatches recognition
// callbacks. Finals are accumulated so every final result carries the
// full finalized-so-far transcript.
func (r *recognizer) handlePayload(payload []byte) {
	var response listenResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return
	}

	if strings.EqualFold(response.Type, "Error") {
		r.fail(string(speech.ErrNetwork))
		return
	}

	transcript := strings.TrimSpace(response.transcript())
	if transcript == "" {
		return
	}

	if response.IsFinal || response.SpeechFinal {
		r.mu.Lock()
		r.finals = append(r.finals, transcript)
		cumulative := strings.Join(r.finals, " ")
		r.mu.Unlock()

		r.cb.OnResult(speech.Result{Text: cumulative, Final: true})

		return
	}

	if r.scfg.Interim {
		r.cb.OnResult(speech.Result{Text: transcript, Final: false})
	}
}

func (r *recognizer) fail(code string) {
	r.endOnce.Do(func() {
		r.cb.OnError(code)
		r.teardown()
		r.cb.OnEnd()
	})
}

func (r *recognizer) end() {
	r.endOnce.Do(func() {
		r.teardown()
		r.cb.OnEnd()
	})
}

func (r *recognizer) teardown() {
	ctx := context.Background()
	_ = r.dev.Stop(ctx)
	r.dev.Dealloc(ctx)

	if r.conn != nil {
		_ = r.conn.Close()
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

// listenURL builds the websocket listen URL for the session config.
func listenURL(cfg Config, scfg speech.Config) string {
	query := url.Values{}
	query.Set("model", cfg.Model)
	query.Set("language", languageParam(scfg.Language))
	query.Set("encoding", "linear16")
	query.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	query.Set("channels", "1")
	query.Set("interim_results", strconv.FormatBool(scfg.Interim))
	query.Set("endpointing", "300")
	query.Set("smart_format", "true")

	return strings.TrimSuffix(cfg.BaseURL, "/") + "/listen?" + query.Encode()
}

// languageParam reduces a BCP 47 tag to the primary subtag the listen
// endpoint expects ("ja-JP" -> "ja").
func languageParam(tag string) string {
	if tag == "" {
		return "ja"
	}

	primary, _, _ := strings.Cut(tag, "-")

	return strings.ToLower(primary)
}

type listenResponse struct {
	Type        string `json:"type"`
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
