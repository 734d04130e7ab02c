package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/amaki/voicereply/internal/audio"
	"github.com/amaki/voicereply/internal/config"
	"github.com/amaki/voicereply/internal/keyring"
	"github.com/amaki/voicereply/internal/logger"
	"github.com/amaki/voicereply/internal/mailapi"
	"github.com/amaki/voicereply/internal/speech"
	"github.com/amaki/voicereply/internal/speech/deepgram"
	"github.com/amaki/voicereply/internal/speech/whisper"
	"github.com/amaki/voicereply/internal/tui"
)

// CLI defines the voicereply command structure.
type CLI struct {
	// Default reply command (runs when no subcommand given)
	Reply ReplyCmd `cmd:"" default:"withargs" help:"Dictate and send a reply to an email"`

	// Subcommands
	Devices DevicesCmd `cmd:"" help:"List available audio devices"`
	Config  ConfigCmd  `cmd:"" help:"Manage configuration"`
}

// ReplyCmd is the default command that runs the reply TUI.
type ReplyCmd struct {
	EmailID  string `arg:"" required:"" help:"Id of the email to reply to"`
	Language string `flag:"" optional:"" help:"Recognition language tag (default: REPLY_LANGUAGE or ja-JP)"`
	Engine   string `flag:"" default:"deepgram" enum:"deepgram,whisper,none" help:"Recognition engine: deepgram (streaming), whisper (batch), or none (typed input)"`

	MailToken      string `flag:"" env:"MAIL_API_TOKEN" help:"Bearer token for the mail backend"`
	DeepgramAPIKey string `flag:"" env:"DEEPGRAM_API_KEY" help:"Deepgram API key for streaming recognition"`
	OpenAIAPIKey   string `flag:"" env:"OPENAI_API_KEY" help:"OpenAI API key for Whisper recognition"`
}

// Run executes the reply command.
func (c *ReplyCmd) Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger.SetupCLI(cfg)

	if c.Language == "" {
		c.Language = cfg.Language
	}

	// Environment variables take priority, fallback to keychain.
	c.MailToken = resolveKey(c.MailToken, keyring.MailToken)
	c.DeepgramAPIKey = resolveKey(c.DeepgramAPIKey, keyring.Deepgram)
	c.OpenAIAPIKey = resolveKey(c.OpenAIAPIKey, keyring.OpenAI)

	client := mailapi.NewClient(cfg.APIBaseURL, c.MailToken)
	authorized := c.MailToken != ""

	email := &mailapi.Email{ID: c.EmailID}
	if authorized {
		ctx := context.Background()

		email, err = client.FetchEmail(ctx, c.EmailID)
		if err != nil {
			return fmt.Errorf("failed to fetch email %s: %w", c.EmailID, err)
		}
	} else {
		slog.Warn("mail API token not set; compose, send, and draft-save are disabled. " +
			"Set MAIL_API_TOKEN or run 'voicereply config set-key mail <token>'")
	}

	session := speech.NewSession(c.recognizerFactory())

	p := tea.NewProgram(tui.New(tui.Config{
		Email:      email,
		Client:     client,
		Session:    session,
		Language:   c.Language,
		Authorized: authorized,
	}))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to start TUI: %w", err)
	}

	return nil
}

// recognizerFactory builds the configured recognition engine. A missing
// key is not fatal: the TUI falls back to typed input.
func (c *ReplyCmd) recognizerFactory() speech.Factory {
	switch c.Engine {
	case "deepgram":
		factory, err := deepgram.NewFactory(deepgram.Config{APIKey: c.DeepgramAPIKey})
		if err != nil {
			slog.Warn("deepgram engine unavailable, falling back to typed input", "error", err)
			return nil
		}

		return factory

	case "whisper":
		factory, err := whisper.NewFactory(whisper.Config{APIKey: c.OpenAIAPIKey})
		if err != nil {
			slog.Warn("whisper engine unavailable, falling back to typed input", "error", err)
			return nil
		}

		return factory
	}

	return nil
}

// DevicesCmd lists available audio devices.
type DevicesCmd struct{}

// Run executes the devices command.
func (dcmd *DevicesCmd) Run() error {
	slog.Info("Enumerating audio devices...")

	devices, err := audio.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	for _, dev := range devices {
		slog.Info("Audio Device",
			"name", dev.Name,
			"isDefault", dev.IsDefault,
			"formats", dev.Formats,
		)
	}

	return nil
}

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	SetKey   SetKeyCmd   `cmd:"" help:"Store an API key in system keychain"`
	ListKeys ListKeysCmd `cmd:"" name:"list-keys" help:"Show which API keys are configured"`
}

// SetKeyCmd stores an API key in the system keychain.
type SetKeyCmd struct {
	Service string `arg:"" enum:"mail,deepgram,openai,anthropic" help:"Service name"`
	Secret  string `arg:"" help:"API key value"`
}

// Run executes the set-key command.
func (c *SetKeyCmd) Run() error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("API key cannot be empty")
	}

	apiKey, err := keyring.APIKeyFromServiceName(c.Service)
	if err != nil {
		return fmt.Errorf("invalid service: %w", err)
	}

	if err := keyring.Set(apiKey, c.Secret); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	fmt.Printf("%s API key stored in keychain\n", c.Service)

	return nil
}

// ListKeysCmd shows which API keys are configured.
type ListKeysCmd struct{}

// Run executes the list-keys command.
//
//nolint:unparam // error return required by Kong interface
func (c *ListKeysCmd) Run() error {
	allSet := true

	for _, apiKey := range keyring.AllAPIKeys() {
		if keyring.IsSet(apiKey) {
			fmt.Printf("%s: configured\n", apiKey.DisplayName())
		} else {
			fmt.Printf("%s: not set\n", apiKey.DisplayName())
			allSet = false
		}
	}

	if !allSet {
		fmt.Println("\nRun 'voicereply config set-key <service> <key>' to configure.")
	}

	return nil
}

func main() {
	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}

// resolveKey returns the flag value if set, otherwise looks up the
// keychain.
func resolveKey(flagValue string, apiKey keyring.APIKey) string {
	if flagValue != "" {
		return flagValue
	}

	secret, err := keyring.Get(apiKey)
	if err != nil {
		slog.Debug("keychain lookup failed", "key", apiKey.DisplayName(), "error", err)
		return ""
	}

	return secret
}
