package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"

	"github.com/alejor21/trabajo-final-IA/internal/config"
	"github.com/alejor21/trabajo-final-IA/internal/logger"
)

const usage = `usage: eppctl [-config file] <command> [flags] [args]

commands:
  image [-save] <file>     detect PPE in an image
  video [-save] <file>     run a full video analysis
  chat <question>          ask the safety assistant
  health                   check the detection backend
  history [-kind] [-limit] list recorded analyses (needs DB_PATH)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "eppctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	configPath := ""
	if len(args) >= 2 && (args[0] == "-config" || args[0] == "--config") {
		configPath, args = args[1], args[2:]
	}
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// Keep stdout for results.
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		return err
	}

	cli := newCLI(cfg, stdout)
	cmd, rest := args[0], args[1:]
	log.WithField("command", cmd).Debug("running")

	switch cmd {
	case "image":
		return cli.image(ctx, rest)
	case "video":
		return cli.video(ctx, rest)
	case "chat":
		return cli.chat(ctx, rest)
	case "health":
		return cli.health(ctx)
	case "history":
		return cli.history(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	fmt.Fprint(stdout, usage)
	return fmt.Errorf("unknown command %q", cmd)
}
