package main

import (
	"log"
	"os"

	"github.com/amaki/voicereply/internal/composer"
	"github.com/amaki/voicereply/internal/config"
	"github.com/amaki/voicereply/internal/devserver"
	"github.com/amaki/voicereply/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	slogger := logger.Setup(cfg)

	slogger.Info("Starting voicereply dev backend",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// The composer uses the Anthropic API when a key is present and a
	// local echo fallback otherwise.
	var comp devserver.Composer
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		comp = composer.NewClient(apiKey)
		slogger.Info("Using Anthropic composer")
	} else {
		comp = devserver.EchoComposer{}
		slogger.Warn("ANTHROPIC_API_KEY not set, using echo composer")
	}

	srv := devserver.New(cfg, slogger, comp)

	if err := devserver.Run(srv); err != nil {
		slogger.Error("Failed to start server", "error", err)
		log.Fatalf("Fatal: %v", err)
	}
}
