// Command voiceid runs the voice-biometric HTTP service: embedding
// enrollment, voice verification, and the speech pass-through endpoints.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/skillsenselab/voiceid/api"
	"github.com/skillsenselab/voiceid/config"
	"github.com/skillsenselab/voiceid/embedding"
	"github.com/skillsenselab/voiceid/embedding/resemblyzer"
	"github.com/skillsenselab/voiceid/logger"
	"github.com/skillsenselab/voiceid/observability"
	"github.com/skillsenselab/voiceid/pipeline"
	"github.com/skillsenselab/voiceid/provider"
	"github.com/skillsenselab/voiceid/server"
	"github.com/skillsenselab/voiceid/server/endpoint"
	"github.com/skillsenselab/voiceid/synthesis"
	"github.com/skillsenselab/voiceid/synthesis/piper"
	"github.com/skillsenselab/voiceid/transcode"
	"github.com/skillsenselab/voiceid/transcription"
	"github.com/skillsenselab/voiceid/transcription/whisper"
	"github.com/skillsenselab/voiceid/version"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Service failed", logger.ErrorFields("run", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg.Logging)
	log := logger.GetGlobalLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownObs, err := observability.Init(ctx, cfg.Observability)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownObs(context.Background()); err != nil {
			log.Warn("Observability shutdown", logger.ErrorFields("otel", err))
		}
	}()

	var metrics *observability.PipelineMetrics
	if cfg.Observability.Enabled {
		if metrics, err = observability.NewPipelineMetrics(); err != nil {
			return err
		}
	}

	extractor, stt, tts, err := buildBackends(cfg)
	if err != nil {
		return err
	}

	transcoder := transcode.New(cfg.Transcode, log)
	pipe := pipeline.New(cfg.Pipeline, transcoder, extractor, log, metrics)

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()

	handlers := api.NewHandlers(api.Config{
		TempDir:       cfg.API.TempDir,
		TTSOutputPath: cfg.API.TTSOutputPath,
	}, pipe, stt, tts, log)
	handlers.Register(srv.GinEngine())

	probes := []provider.Provider{extractor}
	if stt != nil {
		probes = append(probes, stt)
	}
	if tts != nil {
		probes = append(probes, tts)
	}
	srv.GinEngine().GET("/health", endpoint.Health(cfg.Name, probes...))

	if err := srv.Start(ctx); err != nil {
		return err
	}
	log.Info("Service started", logger.Fields(
		"addr", srv.Addr(),
		"version", version.Get().Version,
		"threshold", pipe.Threshold(),
		"environment", cfg.Environment,
	))

	<-ctx.Done()
	return srv.Stop(context.Background())
}

// buildBackends resolves the configured model backends through the provider
// registries. Each registry maps backend names to factories, so a different
// sidecar is a config change. The transcription and synthesis backends are
// optional; their endpoints answer 503 when disabled.
func buildBackends(cfg *config.ServiceConfig) (embedding.Provider, transcription.Provider, synthesis.Provider, error) {
	embReg := embedding.NewRegistry()
	embReg.RegisterFactory(resemblyzer.ProviderName, resemblyzer.Factory())
	extractor, err := embReg.Resolve(cfg.Embedding.Provider, map[string]any{
		"base_url": cfg.Embedding.BaseURL,
		"timeout":  cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	var stt transcription.Provider
	if cfg.Transcription.Enabled {
		sttReg := transcription.NewRegistry()
		sttReg.RegisterFactory(whisper.ProviderName, whisper.Factory())
		if stt, err = sttReg.Resolve(cfg.Transcription.Provider, map[string]any{
			"base_url": cfg.Transcription.BaseURL,
			"model":    cfg.Transcription.Model,
			"language": cfg.Transcription.Language,
			"timeout":  cfg.Transcription.Timeout,
		}); err != nil {
			return nil, nil, nil, err
		}
	}

	var tts synthesis.Provider
	if cfg.Synthesis.Enabled {
		ttsReg := synthesis.NewRegistry()
		ttsReg.RegisterFactory(piper.ProviderName, piper.Factory())
		if tts, err = ttsReg.Resolve(cfg.Synthesis.Provider, map[string]any{
			"base_url": cfg.Synthesis.BaseURL,
			"voice":    cfg.Synthesis.Voice,
			"timeout":  cfg.Synthesis.Timeout,
		}); err != nil {
			return nil, nil, nil, err
		}
	}

	return extractor, stt, tts, nil
}
