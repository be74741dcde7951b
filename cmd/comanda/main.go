package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"comanda/internal/core"
	"comanda/internal/server"
	"comanda/internal/surface"
	"comanda/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Extract mode from arguments
	var mode string
	var modeArgs []string

	for i := 1; i < len(os.Args); i++ {
		arg := os.Args[i]
		if strings.HasPrefix(arg, "--mode=") {
			mode = strings.TrimPrefix(arg, "--mode=")
		} else if arg == "--mode" && i+1 < len(os.Args) {
			mode = os.Args[i+1]
			i++ // skip the next argument
		} else {
			modeArgs = append(modeArgs, arg)
		}
	}

	if mode == "" {
		fmt.Println(core.ErrModeArg)
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mylog := logger.New("comanda-" + mode)

	var err error
	switch mode {
	case "server":
		err = server.Execute(ctx, mylog, modeArgs)
	case "kitchen":
		err = surface.ExecuteKitchen(ctx, mylog, modeArgs)
	case "dashboard":
		err = surface.ExecuteDashboard(ctx, mylog, modeArgs)
	case "table":
		err = surface.ExecuteTable(ctx, mylog, modeArgs)
	default:
		fmt.Printf("%v: %s\n", core.ErrUnknownMode, mode)
		printUsage()
		os.Exit(1)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, core.ErrParseCmd) || errors.Is(err, core.ErrFieldIsEmpty) {
			printUsage()
		}
		mylog.Action("mode_failed").Error("Mode exited with error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: comanda --mode=<mode> [mode-specific-flags]")
	fmt.Println("Available modes:")
	fmt.Println("  server    --config-path=config.yaml --port=3000")
	fmt.Println("  kitchen   --config-path=config.yaml")
	fmt.Println("  dashboard --config-path=config.yaml")
	fmt.Println("  table     --config-path=config.yaml --table=4")
}
