// Command dittodav is a command line client for WebDAV servers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/marmos91/dittodav/pkg/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := pflag.NewFlagSet("dittodav", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.Usage = func() { printUsage(stderr) }

	configPath := global.StringP("config", "c", "", "Path to config file (default: $XDG_CONFIG_HOME/dittodav/config.yaml)")
	global.String("url", "", "WebDAV root URL")
	global.StringP("username", "u", "", "Basic auth username (password via DITTODAV_SERVER_PASSWORD)")
	global.String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	global.String("log-format", "", "Log format (text, json)")
	global.String("cache", "", "Cache store (none, memory, badger, ristretto)")

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 2
	}
	name, cmdArgs := rest[0], rest[1:]

	if name == "help" {
		printUsage(stdout)
		return 0
	}

	// init does not need a valid configuration
	if name == "init" {
		return cmdInit(cmdArgs, stdout, stderr)
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", name)
		printUsage(stderr)
		return 2
	}

	cfg, err := config.Load(*configPath, global)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := config.InitializeClient(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() {
		if err := result.Close(); err != nil {
			result.Logger.WithError(err).Warn("Failed to release resources")
		}
	}()

	env := &env{client: result.Client, stdout: stdout, stderr: stderr}
	if err := cmd(ctx, env, cmdArgs); err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintf(stderr, "Usage: dittodav %s\n", usage)
			return 2
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func cmdInit(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("init", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	force := fs.BoolP("force", "f", false, "Overwrite an existing config file")
	path := fs.StringP("output", "o", "", "Where to write the file (default: the default config path)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	target := *path
	var err error
	if target == "" {
		target, err = config.InitConfig(*force)
	} else {
		err = config.InitConfigAt(target, *force)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Configuration written to %s\n", target)
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `DittoDAV - WebDAV client

Usage: dittodav [flags] <command> [args]

Flags:
  -c, --config <file>     Config file (default: $XDG_CONFIG_HOME/dittodav/config.yaml)
      --url <url>         WebDAV root URL
  -u, --username <name>   Basic auth username (password via DITTODAV_SERVER_PASSWORD)
      --log-level <lvl>   DEBUG, INFO, WARN, ERROR
      --log-format <fmt>  text, json
      --cache <type>      none, memory, badger, ristretto

Commands:
  ls [--page n] [--page-size n] [--sort field] [--desc] [PATH]
                          List a directory (directories first)
  stat PATH               Show metadata of a path
  mkdir PATH              Create a directory and its parents
  put LOCAL REMOTE        Upload a file, creating parent directories
  cat PATH                Print a file
  get REMOTE LOCAL        Download a file
  rm PATH                 Delete a file or directory
  methods                 Show the methods the server supports
  init [--force] [-o f]   Write a sample config file
  help                    Show this help message

Sort fields: displayname, getcontentlength, getlastmodified, creationdate,
getcontenttype, getetag, href

Examples:
  dittodav init
  dittodav --url https://cloud.example.com/remote.php/webdav/ -u alice ls /
  dittodav ls --sort getlastmodified --desc --page 0 --page-size 10 docs
  dittodav put report.pdf docs/2024/report.pdf
`)
}
