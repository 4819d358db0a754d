package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/five82/platesolve/internal/app"
	"github.com/five82/platesolve/internal/config"
)

const usage = `usage: platesolve [-config path] [-env file] <command> [args]

commands:
  solve [-plain] <image>               solve an image and print its job id
  fetch [-o file] <job-id> <artifact>  download a result file
  annotations <job-id>                 list objects found in a solved job
  watch [dir]                          solve new images on a schedule
  cache clear                          remove cached results and artifacts
  cache key <file>                     print the content key of a file
  logs [-n lines]                      show the end of the log
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("platesolve", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", "", "config file (default ~/.config/platesolve/config.toml)")
	envFile := global.String("env", ".env", "dotenv file loaded before the environment")
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(stderr, "platesolve: %v\n", err)
		return 1
	}

	command, cmdArgs := rest[0], rest[1:]
	if command == "cache" && len(cmdArgs) > 0 && cmdArgs[0] == "key" {
		return cacheKey(cmdArgs[1:], stdout, stderr)
	}

	var plain bool
	switch command {
	case "solve":
		fs := flag.NewFlagSet("solve", flag.ContinueOnError)
		fs.SetOutput(stderr)
		fs.BoolVar(&plain, "plain", false, "log to stderr instead of showing progress")
		if err := fs.Parse(cmdArgs); err != nil {
			return 2
		}
		cmdArgs = fs.Args()
		if !isatty.IsTerminal(os.Stderr.Fd()) {
			plain = true
		}
	default:
		plain = true
	}

	a, err := app.New(cfg, app.Options{Plain: plain, Out: stdout})
	if err != nil {
		fmt.Fprintf(stderr, "platesolve: %v\n", err)
		return 1
	}
	defer func() { _ = a.Close() }()

	switch command {
	case "solve":
		err = solve(ctx, a, cmdArgs, stdout)
	case "fetch":
		err = fetch(ctx, a, cmdArgs, stdout, stderr)
	case "annotations":
		err = annotations(ctx, a, cmdArgs, stdout)
	case "watch":
		dir := ""
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		err = a.Watch(ctx, dir)
	case "cache":
		err = cacheCommand(a, cmdArgs, stdout)
	case "logs":
		err = logs(a, cmdArgs, stdout, stderr)
	default:
		err = fmt.Errorf("unknown command %q", command)
		fmt.Fprint(stderr, usage)
	}
	if err != nil {
		fmt.Fprintf(stderr, "platesolve: %v\n", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("wrong number of arguments (see platesolve -h)")

func solve(ctx context.Context, a *app.App, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	res, err := a.Solve(ctx, args[0], app.SolveOptions{NotifyCached: true, Progress: true})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, res.JobID)
	return nil
}

func fetch(ctx context.Context, a *app.App, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("o", "", "output file (default <job>-<artifact>.<ext>)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errUsage
	}
	jobID, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("parse job id: %w", err)
	}
	res, err := a.Fetch(ctx, jobID, fs.Arg(1), *out)
	if err != nil {
		return err
	}
	source := "downloaded"
	if res.Cached {
		source = "from cache"
	}
	fmt.Fprintf(stdout, "%s (%s, %s)\n", res.Path, humanize.Bytes(uint64(res.Size)), source)
	return nil
}

func annotations(ctx context.Context, a *app.App, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	jobID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parse job id: %w", err)
	}
	list, err := a.Annotations(ctx, jobID)
	if err != nil {
		return err
	}
	for _, ann := range list {
		fmt.Fprintf(stdout, "%-10s %-30s %8.1f %8.1f\n", ann.Type, ann.Label(), ann.PixelX, ann.PixelY)
	}
	return nil
}

func cacheCommand(a *app.App, args []string, stdout io.Writer) error {
	if len(args) != 1 || args[0] != "clear" {
		return errUsage
	}
	if err := a.ClearCache(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "cleared %s\n", a.CacheRoot())
	return nil
}

func cacheKey(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintf(stderr, "platesolve: %v\n", errUsage)
		return 1
	}
	key, err := app.Key(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "platesolve: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, key)
	return 0
}

func logs(a *app.App, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	n := fs.Int("n", 40, "number of lines")
	if err := fs.Parse(args); err != nil {
		return err
	}
	entries, err := a.Logs(*n)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintln(stdout, e.Format())
	}
	return nil
}
