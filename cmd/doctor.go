package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nibzard/stickyboard/internal/api"
	"github.com/nibzard/stickyboard/internal/config"
	"github.com/nibzard/stickyboard/internal/prefs"
	"github.com/nibzard/stickyboard/internal/task"
)

// doctorCommand checks the config, the data server, the state file and the
// log directory.
func doctorCommand(ctx context.Context, cws *config.ConfigWithSources, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("stickyboard doctor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Bool("v", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	cfg := cws.Config

	fmt.Fprintln(stdout, "Stickyboard Doctor")
	fmt.Fprintln(stdout, "==================")
	fmt.Fprintln(stdout)

	allOK := true

	// Config
	fmt.Fprintln(stdout, "Config:")
	if len(cws.Files) == 0 {
		fmt.Fprintln(stdout, "  (no config files, using defaults)")
	}
	for _, f := range cws.Files {
		fmt.Fprintf(stdout, "  file: %s\n", f)
	}
	if *verbose {
		fmt.Fprintf(stdout, "  api_url = %s (%s)\n", cfg.APIURL, cws.Sources["api_url"])
		fmt.Fprintf(stdout, "  request_timeout_seconds = %d (%s)\n", cfg.RequestTimeoutSeconds, cws.Sources["request_timeout_seconds"])
		fmt.Fprintf(stdout, "  state_file = %s (%s)\n", cfg.StateFile, cws.Sources["state_file"])
		fmt.Fprintf(stdout, "  default_sort = %s (%s)\n", cfg.DefaultSort, cws.Sources["default_sort"])
		fmt.Fprintf(stdout, "  log_dir = %s (%s)\n", cfg.LogDir, cws.Sources["log_dir"])
		fmt.Fprintf(stdout, "  log_level = %s (%s)\n", cfg.LogLevel, cws.Sources["log_level"])
		fmt.Fprintf(stdout, "  log_format = %s (%s)\n", cfg.LogFormat, cws.Sources["log_format"])
	}
	configErr := cfg.Validate()
	if configErr != nil {
		allOK = false
		var joined interface{ Unwrap() []error }
		if errors.As(configErr, &joined) {
			for _, err := range joined.Unwrap() {
				fmt.Fprintf(stdout, "  ❌ %v\n", err)
			}
		} else {
			fmt.Fprintf(stdout, "  ❌ %v\n", configErr)
		}
	} else {
		fmt.Fprintln(stdout, "  ✅ OK")
	}
	fmt.Fprintln(stdout)

	// Data server
	fmt.Fprintf(stdout, "Data server: %s\n", cfg.APIURL)
	if configErr != nil {
		fmt.Fprintln(stdout, "  ❌ Skipped: config is invalid")
		allOK = false
	} else if client, err := api.New(cfg.APIURL, api.WithTimeout(cfg.RequestTimeout())); err != nil {
		fmt.Fprintf(stdout, "  ❌ Error: %v\n", err)
		allOK = false
	} else {
		key, _ := cfg.SortKey()
		tasks, err := client.ListTasks(ctx, key.Field())
		switch {
		case errors.Is(err, api.ErrMalformedResponse):
			fmt.Fprintf(stdout, "  ❌ Invalid task list: %v\n", err)
			allOK = false
		case err != nil:
			fmt.Fprintf(stdout, "  ❌ Unreachable: %v\n", err)
			allOK = false
		default:
			done := 0
			for _, t := range tasks {
				if t.Completed {
					done++
				}
			}
			fmt.Fprintf(stdout, "  ✅ OK (%d tasks, %d completed)\n", len(tasks), done)
		}
	}
	fmt.Fprintln(stdout)

	// State file
	fmt.Fprintf(stdout, "State file: %s\n", cfg.StateFile)
	if store, err := prefs.Open(cfg.StateFile, nil); err != nil {
		fmt.Fprintf(stdout, "  ❌ Error: %v\n", err)
		allOK = false
	} else {
		index, err := prefs.LoadColorIndex(ctx, store)
		if err != nil {
			fmt.Fprintf(stdout, "  ❌ %v (the board resets it to %s)\n", err, task.PaletteColor(0))
			allOK = false
		} else {
			fmt.Fprintf(stdout, "  ✅ OK (next color: %s)\n", task.PaletteColor(index))
		}
		_ = store.Close()
	}
	fmt.Fprintln(stdout)

	// Log directory
	fmt.Fprintf(stdout, "Log directory: %s\n", cfg.LogDir)
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		fmt.Fprintf(stdout, "  ❌ Error: %v\n", err)
		allOK = false
	} else if info, err := os.Stat(cfg.LogDir); err != nil || !info.IsDir() {
		fmt.Fprintln(stdout, "  ❌ Error: path is not a directory")
		allOK = false
	} else {
		fmt.Fprintln(stdout, "  ✅ OK")
	}
	fmt.Fprintln(stdout)

	if !allOK {
		return fmt.Errorf("doctor checks failed")
	}
	fmt.Fprintln(stdout, "All checks passed.")
	return nil
}
