package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/syncbox/syncbox/internal/config"
	"github.com/syncbox/syncbox/internal/logger"
	"github.com/syncbox/syncbox/internal/manager"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

// Note is the demo object type synchronized by this binary.
type Note struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func main() {
	printBuildInfo()

	log := logger.NewLogger("syncbox")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	m, err := manager.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init sync engine error")
	}
	defer m.Close()

	ctx := log.WithContext(context.Background())
	m.Push().Register(ctx)
	defer m.Push().Unregister(ctx)

	list, unsubscribe, err := manager.FindAll[Note](ctx, m, func(fresh *manager.LazyList[*Note]) {
		log.Info().Int("size", fresh.Size()).Msg("notes refreshed")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("list notes error")
	}
	defer unsubscribe()
	log.Info().Int("size", list.Size()).Msg("notes cached locally")

	if len(os.Args) > 1 {
		if err = m.Save(ctx, &Note{Title: "note", Body: os.Args[1]}); err != nil {
			log.Fatal().Err(err).Msg("save note error")
		}
		log.Info().Msg("note queued for transmission")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
