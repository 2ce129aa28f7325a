// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"leanagent/internal/config"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	version     = flag.Bool("version", false, "Print version and exit")
	configPath  = flag.String("config", "config.json", "Config file path")
	debugMode   = flag.Bool("d", false, "Enable debug mode")
	logFile     = flag.String("log-file", "", "Log file path (logs disabled by default)")
	interactive = flag.Bool("i", false, "Keep the conversation open after the conversion")
	noColor     = flag.Bool("no-color", false, "Disable colored transcript output")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [file.md]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Println("leanagent", Version)
		return
	}

	logger, closer, err := initLogger(*debugMode, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Info().Str("version", Version).Msg("Leanagent starting")

	if err := run(logger); err != nil {
		logger.Error().Err(err).Msg("Leanagent failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if closer != nil {
			closer.Close()
		}
		os.Exit(1)
	}
	logger.Info().Msg("Leanagent finished")
}

func run(logger zerolog.Logger) error {
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path, err := resolveTaskPath(flag.Args(), cfg)
	if err != nil {
		return err
	}

	app, err := newApp(cfg, logger, newToolApprover(), nil)
	if err != nil {
		return err
	}
	app.out = os.Stdout
	app.color = useColor(*noColor)
	defer app.Close()

	canceler := &operationCanceler{}
	stop := cancelOnInterrupt(canceler)
	defer stop()

	if err := app.convert(context.Background(), path, canceler); err != nil {
		return err
	}
	if !*interactive {
		return nil
	}
	return runInteractive(context.Background(), app, canceler, logger)
}

// initLogger returns a logger writing to logFilePath, or discarding
// everything when no path is given. The closer is nil in that case.
func initLogger(debug bool, logFilePath string) (zerolog.Logger, io.Closer, error) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if logFilePath == "" {
		// No logging to console by default
		return zerolog.New(io.Discard), nil, nil
	}

	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zerolog.New(file).With().Timestamp().Logger(), file, nil
}

// useColor reports whether the transcript should be colored.
func useColor(disabled bool) bool {
	if disabled || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// cancelOnInterrupt cancels the running operation on SIGINT. With nothing
// to cancel the process exits.
func cancelOnInterrupt(canceler *operationCanceler) func() {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		for {
			select {
			case <-sigCh:
				if !canceler.Cancel() {
					os.Exit(130)
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
