// Package cmd implements the CLI command structure for stickyboard.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nibzard/stickyboard/internal/config"
	"github.com/nibzard/stickyboard/internal/logging"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Run executes the stickyboard CLI.
func Run(ctx context.Context, args []string) error {
	return RunWithIO(ctx, args, os.Stdout, os.Stderr)
}

// RunWithIO executes the CLI writing command output to stdout and usage
// and warnings to stderr.
func RunWithIO(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	// Create a flag set for global options
	fs := flag.NewFlagSet("stickyboard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		printUsage(fs, stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	// Global flags
	cws, err := config.LoadWithSources(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *help {
		printUsage(fs, stdout)
		return nil
	}
	if *showVersion {
		return versionCommand(stdout)
	}

	// Determine the subcommand
	// If no args or first arg is a flag, use "tui" as default
	subcommand := "tui"
	remainingArgs := fs.Args()
	if len(remainingArgs) > 0 && !strings.HasPrefix(remainingArgs[0], "-") {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	// Commands that work with any configuration
	switch subcommand {
	case "version":
		return versionCommand(stdout)
	case "help":
		printUsage(fs, stdout)
		return nil
	case "config":
		fmt.Fprint(stdout, config.ExampleConfig())
		return nil
	case "doctor":
		return doctorCommand(ctx, cws, remainingArgs, stdout, stderr)
	case "tail":
		return tailCommand(cws.Config, remainingArgs, stdout, stderr)
	}

	handler, ok := boardCommands[subcommand]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}

	cfg := cws.Config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a, err := openApp(ctx, cfg, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("command started", "command", subcommand, "version", Version, "api", cfg.APIURL)
	err = handler(ctx, a, remainingArgs)
	if err != nil {
		a.logger.Error("command failed", "command", subcommand, "err", err)
	}
	return err
}

// boardCommands are the subcommands that need the task board.
var boardCommands = map[string]func(context.Context, *app, []string) error{
	"tui":  tuiCommand,
	"ls":   lsCommand,
	"add":  addCommand,
	"done": doneCommand,
	"rm":   rmCommand,
}

// tailCommand prints the latest run log.
func tailCommand(cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("stickyboard tail", flag.ContinueOnError)
	fs.SetOutput(stderr)
	n := fs.Int("n", 50, "Number of lines to show (0 = all)")
	list := fs.Bool("list", false, "List run logs instead of printing one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if *list {
		runs, err := logging.FindLogRuns(cfg.LogDir)
		if err != nil {
			return fmt.Errorf("listing logs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Fprintln(stdout, "No log files found.")
			return nil
		}
		for _, run := range runs {
			fmt.Fprintf(stdout, "%s  %s  %d bytes\n", run.RunID, run.ModTime.Format("2006-01-02 15:04:05"), run.Size)
		}
		return nil
	}

	logPath, err := logging.FindLatestLog(cfg.LogDir, "")
	if err != nil {
		return fmt.Errorf("finding latest log: %w", err)
	}
	if logPath == "" {
		fmt.Fprintln(stdout, "No log files found.")
		return nil
	}

	fmt.Fprintf(stdout, "Log: %s\n\n", logPath)
	return logging.TailLog(stdout, logPath, *n)
}

// versionCommand prints version information.
func versionCommand(w io.Writer) error {
	fmt.Fprintf(w, "stickyboard version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "Stickyboard - a sticky-note task board for a JSON data server")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  stickyboard [global options] [command] [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  tui                          Launch the board (default command)")
	fmt.Fprintln(w, "  ls [-sort key] [-json]       List tasks")
	fmt.Fprintln(w, "  add -start D -end D <text>   Post a new task (dates as YYYY-MM-DD)")
	fmt.Fprintln(w, "  done <id>                    Mark a task completed")
	fmt.Fprintln(w, "  rm <id>                      Delete a task")
	fmt.Fprintln(w, "  doctor                       Check config, data server and local state")
	fmt.Fprintln(w, "  tail [-n lines] [-list]      Show the latest run log")
	fmt.Fprintln(w, "  config                       Print an example config file")
	fmt.Fprintln(w, "  version                      Show version information")
	fmt.Fprintln(w, "  help                         Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sort keys: start, deadline, complete")
}
