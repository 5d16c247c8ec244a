package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"agentdir/internal/directory"
	"agentdir/internal/engine"
	"agentdir/internal/kanban"
	"agentdir/internal/notepad"
	"agentdir/internal/store"
	"agentdir/internal/tasks"

	"github.com/peterbourgon/ff/v3/ffcli"
)

// Version is set by build flags, defaults to "dev" for development builds.
var Version = "dev"

// serverFlags is the flag surface shared by every server subcommand.
type serverFlags struct {
	persistDir string
	verbose    bool
}

func newServerFlagSet(name string, sf *serverFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("agentdir "+name, flag.ContinueOnError)
	fs.StringVar(&sf.persistDir, "persist-dir", "", "directory for durable storage (empty = memory only)")
	fs.BoolVar(&sf.verbose, "verbose", false, "log individual protocol messages to stderr")
	return fs
}

// runServer wires a provider into the protocol engine and blocks on the
// stdio transport until EOF or a termination signal.
func runServer(ctx context.Context, name string, sf *serverFlags, build func(gw *store.Gateway, logger *log.Logger) (engine.Provider, func(), error)) error {
	logger := log.New(os.Stderr, "["+name+"] ", log.LstdFlags)

	gateway, err := store.New(sf.persistDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open persist dir: %w", err)
	}

	provider, cleanup, err := build(gateway, logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	eng := engine.New(provider, &engine.Options{
		Name:    name,
		Version: Version,
		Logger:  logger,
		Verbose: sf.verbose,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Println("starting server on stdio transport")
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildDirectory(gw *store.Gateway, logger *log.Logger) (engine.Provider, func(), error) {
	reg := directory.NewRegistry(gw, logger)
	if err := reg.Load(); err != nil {
		return nil, nil, fmt.Errorf("failed to load directory: %w", err)
	}
	provider := directory.NewProvider(reg, logger)

	// Pick up external edits to the directory document. The watcher only
	// flags staleness; the provider reloads on its own dispatch path.
	var cleanup func()
	if gw.Enabled() {
		watcher, err := store.NewWatcher(gw, directory.DirectoryFile, logger)
		if err != nil {
			logger.Printf("warning: file watching unavailable: %v", err)
		} else {
			go func() {
				if err := watcher.Run(provider.MarkStale); err != nil {
					logger.Printf("warning: file watcher stopped: %v", err)
				}
			}()
			cleanup = func() { _ = watcher.Close() }
		}
	}
	return provider, cleanup, nil
}

func main() {
	rootFlagSet := flag.NewFlagSet("agentdir", flag.ContinueOnError)

	var directoryFlags serverFlags
	directoryCmd := &ffcli.Command{
		Name:       "directory",
		ShortUsage: "agentdir directory [--persist-dir <path>] [--verbose]",
		ShortHelp:  "Start the agent directory and mailbox server",
		LongHelp: `Start the directory server on stdio.

The directory registers agent identities, answers discovery queries, and
carries the per-agent message and email mailboxes. With --persist-dir the
registry is saved to company_directory.json after every change and
reloaded on startup; edits made to the file while the server runs are
picked up automatically.

Examples:
  agentdir directory --persist-dir ./data
  agentdir directory --verbose`,
		FlagSet: newServerFlagSet("directory", &directoryFlags),
		Exec: func(ctx context.Context, args []string) error {
			return runServer(ctx, "agentdir-directory", &directoryFlags, buildDirectory)
		},
	}

	var notepadFlags serverFlags
	notepadCmd := &ffcli.Command{
		Name:       "notepad",
		ShortUsage: "agentdir notepad [--persist-dir <path>] [--verbose]",
		ShortHelp:  "Start the notepad server",
		FlagSet:    newServerFlagSet("notepad", &notepadFlags),
		Exec: func(ctx context.Context, args []string) error {
			return runServer(ctx, "agentdir-notepad", &notepadFlags, func(gw *store.Gateway, logger *log.Logger) (engine.Provider, func(), error) {
				return notepad.NewProvider(notepad.NewPad(gw, logger)), nil, nil
			})
		},
	}

	var tasksFlags serverFlags
	tasksCmd := &ffcli.Command{
		Name:       "tasks",
		ShortUsage: "agentdir tasks [--persist-dir <path>] [--verbose]",
		ShortHelp:  "Start the task-list server",
		FlagSet:    newServerFlagSet("tasks", &tasksFlags),
		Exec: func(ctx context.Context, args []string) error {
			return runServer(ctx, "agentdir-tasks", &tasksFlags, func(gw *store.Gateway, logger *log.Logger) (engine.Provider, func(), error) {
				return tasks.NewProvider(tasks.NewList(gw, logger)), nil, nil
			})
		},
	}

	var kanbanFlags serverFlags
	kanbanCmd := &ffcli.Command{
		Name:       "kanban",
		ShortUsage: "agentdir kanban [--persist-dir <path>] [--verbose]",
		ShortHelp:  "Start the kanban board server",
		FlagSet:    newServerFlagSet("kanban", &kanbanFlags),
		Exec: func(ctx context.Context, args []string) error {
			return runServer(ctx, "agentdir-kanban", &kanbanFlags, func(gw *store.Gateway, logger *log.Logger) (engine.Provider, func(), error) {
				return kanban.NewProvider(kanban.NewBoard(gw, logger)), nil, nil
			})
		},
	}

	versionCmd := &ffcli.Command{
		Name:       "version",
		ShortUsage: "agentdir version",
		ShortHelp:  "Print version information",
		FlagSet:    flag.NewFlagSet("agentdir version", flag.ContinueOnError),
		Exec: func(ctx context.Context, args []string) error {
			fmt.Printf("agentdir version %s\n", Version)
			return nil
		},
	}

	rootHelp := `agentdir - tool servers for multi-agent coordination

Each subcommand starts one server speaking newline-delimited JSON-RPC
over stdio. Every tool call must carry an agentName identifying the
calling agent; each agent sees only its own state.

Commands:
  directory  Agent registration, discovery, presence, and mailboxes
  notepad    Per-agent named notes
  tasks      Per-agent todo list
  kanban     Per-agent tickets on a fixed pipeline
  version    Print version information

Use "agentdir <command> --help" for more information about a command.`

	root := &ffcli.Command{
		ShortUsage:  "agentdir <command> [flags]",
		ShortHelp:   "Tool servers for multi-agent coordination",
		LongHelp:    rootHelp,
		FlagSet:     rootFlagSet,
		Subcommands: []*ffcli.Command{directoryCmd, notepadCmd, tasksCmd, kanbanCmd, versionCmd},
		Exec: func(ctx context.Context, args []string) error {
			fmt.Fprintln(os.Stderr, rootHelp)
			os.Exit(1)
			return nil
		},
	}

	if err := root.ParseAndRun(context.Background(), os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
