package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/specialistvlad/gomake/internal/app"
	"github.com/specialistvlad/gomake/internal/cli"
	"github.com/specialistvlad/gomake/internal/run"
)

// main is the entrypoint for the gomake command.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	code, err := runMain(os.Stdout, os.Args[1:], os.Environ())
	if err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	os.Exit(code)
}

// runMain encapsulates the CLI logic for easier testing. The returned code
// follows make conventions: 0 up to date or built, 1 question-mode "work
// needed", 2 failure.
func runMain(outW io.Writer, args []string, env []string) (int, error) {
	cfg, shouldExit, err := cli.Parse(args, env, outW)
	if err != nil {
		return 2, err
	}
	if shouldExit {
		return 0, nil
	}

	cfg.Runner.Output = func(chunk []byte) {
		outW.Write(chunk)
	}

	// The app panics only on wiring-level errors; surface those cleanly.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "A critical startup error occurred: %v\n", r)
			os.Exit(2)
		}
	}()

	engine := app.NewApp(os.Stderr, cfg)
	ctx := context.Background()
	if err := engine.Load(ctx); err != nil {
		return 2, err
	}

	worked, err := engine.Run(ctx)
	if err != nil {
		return 2, err
	}
	if cfg.Runner.Mode == run.ModeQuestion && worked {
		return 1, nil
	}
	return 0, nil
}
