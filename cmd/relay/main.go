// relay: voice interaction relay.
// Accepts recorded clips over HTTP, transcribes them, asks a language
// model for a reply and speaks it back, keeping a short history per session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/voice-relay/internal/config"
	"github.com/teslashibe/voice-relay/internal/log"
	"github.com/teslashibe/voice-relay/pkg/clips"
	"github.com/teslashibe/voice-relay/pkg/hub"
	"github.com/teslashibe/voice-relay/pkg/relay"
	"github.com/teslashibe/voice-relay/pkg/server"
	"github.com/teslashibe/voice-relay/pkg/session"
	"github.com/teslashibe/voice-relay/pkg/tts"
)

var (
	version = "1.0.0"

	envFile = flag.String("env", "", "Path to an env file (default .env)")
	port    = flag.Int("port", 0, "HTTP port (overrides PORT)")
	debug   = flag.Bool("debug", false, "Debug logging and access log")
)

func main() {
	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}

	log.Init(cfg.LogLevel)
	logger := log.Component("main")
	logger.Info("starting voice-relay", "version", version)

	if err := run(cfg); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.L()

	transcriber, err := buildSTT(ctx, cfg, logger)
	if err != nil {
		return err
	}
	generator, err := buildLLM(ctx, cfg, logger)
	if err != nil {
		return err
	}
	synthesizer, err := buildTTS(ctx, cfg, logger)
	if err != nil {
		return err
	}

	audio := clips.New(clips.Config{TTL: cfg.ClipTTL, MaxEntries: cfg.MaxClips})
	store := session.NewMemoryStore(
		session.WithMaxMessages(cfg.MaxMessages),
		session.WithMaxSessions(cfg.MaxSessions),
	)

	rc := relay.DefaultConfig()
	rc.HistoryWindow = cfg.HistoryWindow
	rc.Voice = cfg.Voice
	rc.ErrorVoice = cfg.ErrorVoice
	rc.Format = tts.ParseEncoding(cfg.AudioFormat)
	rc.SampleRate = cfg.SampleRate
	rc.STTTimeout = cfg.STTTimeout
	rc.FileSTTTimeout = cfg.FileSTTTimeout
	rc.LLMTimeout = cfg.LLMTimeout
	rc.TTSTimeout = cfg.TTSTimeout
	rc.DirectTTSTimeout = cfg.DirectTTSTimeout
	rc.FallbackTTSTimeout = cfg.FallbackTTSTimeout
	rc.ErrorTTSTimeout = cfg.ErrorTTSTimeout

	opts := []relay.Option{
		relay.WithConfig(rc),
		relay.WithClips(audio, "/audio/"),
		relay.WithLogger(logger),
	}
	if transcriber != nil {
		opts = append(opts, relay.WithTranscriber(transcriber))
		defer transcriber.Close()
	}
	if generator != nil {
		opts = append(opts, relay.WithGenerator(generator))
		defer generator.Close()
	}
	if synthesizer != nil {
		opts = append(opts, relay.WithSynthesizer(synthesizer))
		defer synthesizer.Close()
	}
	pipeline := relay.New(store, opts...)

	h := pipeline.Health()
	logger.Info("services",
		"status", h.Status,
		"speech_to_text", h.Services.SpeechToText,
		"llm", h.Services.LLM,
		"text_to_speech", h.Services.TextToSpeech,
	)

	events := hub.New(logger)
	go events.Run(ctx)
	go sweep(ctx, audio, cfg.ClipTTL)

	sc := server.DefaultConfig()
	sc.Addr = fmt.Sprintf(":%d", cfg.Port)
	sc.StaticDir = cfg.StaticDir
	sc.AccessLog = cfg.Debug
	sc.Logger = logger
	srv := server.New(pipeline, audio, events, sc)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sweep drops expired clips so memory is released without a read.
func sweep(ctx context.Context, store *clips.Store, ttl time.Duration) {
	interval := ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				log.Debug("swept expired clips", "count", n)
			}
		}
	}
}
