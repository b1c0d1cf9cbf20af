package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	agentrunx "github.com/calyhq/caly-voice-agent/call/agentrun"
	agentsx "github.com/calyhq/caly-voice-agent/call/agents"
	contractx "github.com/calyhq/caly-voice-agent/call/contract"
	intentx "github.com/calyhq/caly-voice-agent/call/intent"
	sessionx "github.com/calyhq/caly-voice-agent/call/session"
	speechx "github.com/calyhq/caly-voice-agent/call/speech"
	commercex "github.com/calyhq/caly-voice-agent/pkg/commerce"
	configx "github.com/calyhq/caly-voice-agent/pkg/config"
	_ "github.com/calyhq/caly-voice-agent/pkg/logger/autoload"
	serverx "github.com/calyhq/caly-voice-agent/server"
	storex "github.com/calyhq/caly-voice-agent/store"
)

type AppConfig struct {
	IntentBackend string `envconfig:"INTENT_BACKEND" default:"keyword"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("")
	serverCfg := configx.MustNew[serverx.Config]("SERVER")
	dbCfg := configx.MustNew[storex.Config]("DB")
	speechCfg := configx.MustNew[speechx.Config]("SPEECH")
	commerceCfg := configx.MustNew[commercex.Config]("COMMERCE")

	db := storex.New(*dbCfg)
	defer db.Close()
	if err := db.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	if err := db.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("database ping failed")
	} else {
		log.Info().Msg("database connection successful")
	}

	commerceClient := commercex.MustNew(*commerceCfg)

	coordinator := agentrunx.NewCoordinator()
	agentsx.RegisterAll(coordinator, commerceClient, db)

	var classifier contractx.Classifier
	switch appCfg.IntentBackend {
	case "llm":
		llmCfg := configx.MustNew[intentx.LLMConfig]("INTENT")
		classifier = intentx.NewLLMClassifier(*llmCfg)
	default:
		classifier = intentx.KeywordClassifier{}
	}

	registry, err := sessionx.NewRegistry(sessionx.Deps{
		SpeechFactory: speechx.Factory(*speechCfg),
		Classifier:    classifier,
		Coordinator:   coordinator,
		Transcripts:   db,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not build session registry")
	}

	srv := serverx.New(*serverCfg, registry, db)
	if err := srv.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
