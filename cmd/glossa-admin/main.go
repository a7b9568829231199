package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/glossa-dev/glossa/pkg/cli"
)

func main() {
	logger := setupLogger(os.Getenv("GLOSSA_LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCommand(&cli.Env{Logger: logger, Out: os.Stdout})
	if err := rootCmd.Execute(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, cli.ErrCheckDenied) {
			stop()
			os.Exit(2)
		}
		logger.Errorf("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
