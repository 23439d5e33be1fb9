// Command playctl drives the Nimbus API from a terminal: it signs and checks
// HMAC requests and runs the same calls as the web playground.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"playground/internal/engine/nimbus"
	"playground/internal/engine/signing"
	"playground/internal/platform/config"
	"playground/internal/pkg/logger"
)

// env is what a subcommand gets to work with once flags and config are read.
type env struct {
	cfg    *config.Config
	stdin  io.Reader
	stdout io.Writer
}

type command struct {
	summary string
	// setup declares the command's own flags and returns its body.
	setup func(fs *pflag.FlagSet) func(ctx context.Context, e *env) error
}

var commands = map[string]command{
	"sign":     {"compute HMAC headers for a request", signCmd},
	"verify":   {"check HMAC headers against a request", verifyCmd},
	"register": {"create a user", registerCmd},
	"login":    {"log in and print the token pair", loginCmd},
	"refresh":  {"exchange a refresh token for a new pair", refreshCmd},
	"send":     {"ingest one event (HMAC or JWT)", sendCmd},
	"list":     {"list recent events", listCmd},
	"inspect":  {"decode a JWT without verifying it", inspectCmd},
	"health":   {"check the backend is up", healthCmd},
}

var errInvalid = errors.New("invalid")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(stdout)
		return 0
	}

	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "playctl: unknown command %q\n\n", name)
		usage(stderr)
		return 2
	}

	fs := pflag.NewFlagSet("playctl "+name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.StringP("config", "c", "", "path to a config file")
	fs.String("base-url", "", "Nimbus API base URL")
	fs.Duration("timeout", 0, "HTTP timeout")
	fs.String("project-id", "", "project to send events to and list from")
	fs.String("key-id", "", "HMAC API key ID")
	fs.String("secret", "", "HMAC API key secret")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	body := cmd.setup(fs)

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	v := config.New()
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.level", "warn")
	if err := config.ReadFile(v, *configPath); err != nil {
		fmt.Fprintf(stderr, "playctl: read config: %v\n", err)
		return 1
	}
	if err := config.BindFlags(v, fs, map[string]string{
		"base-url":   "backend.base_url",
		"timeout":    "backend.timeout",
		"project-id": "backend.project_id",
		"key-id":     "hmac.key_id",
		"secret":     "hmac.secret",
		"log-level":  "logging.level",
	}); err != nil {
		fmt.Fprintf(stderr, "playctl: %v\n", err)
		return 1
	}
	cfg, err := config.Decode(v)
	if err != nil {
		fmt.Fprintf(stderr, "playctl: load config: %v\n", err)
		return 1
	}

	// stdout carries results only.
	cfg.Logging.Output = "stderr"
	logger.Init(cfg.Logging)

	if err := body(ctx, &env{cfg: cfg, stdin: stdin, stdout: stdout}); err != nil {
		if !errors.Is(err, errInvalid) {
			log.Error().Err(err).Str("command", name).Msg("command failed")
		}
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: playctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run 'playctl <command> --help' for the flags of a command.")
}

func (e *env) client() (*nimbus.Client, error) {
	return nimbus.NewClient(e.cfg.Backend.BaseURL, e.cfg.Backend.Timeout,
		nimbus.WithUserAgent(e.cfg.Backend.UserAgent),
		nimbus.WithSigner(signing.NewSigner()),
	)
}

func (e *env) print(v interface{}) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// callResult is the printed form of one API call.
type callResult struct {
	Status    int                    `json:"status"`
	RequestID string                 `json:"request_id,omitempty"`
	ElapsedMS int64                  `json:"elapsed_ms"`
	Body      map[string]interface{} `json:"body"`
	Error     string                 `json:"error,omitempty"`
}

// report prints the outcome of a call and passes err through. Failures that
// produced a response are printed before being returned.
func (e *env) report(resp *nimbus.Response, err error) error {
	if resp == nil {
		var apiErr *nimbus.APIError
		if errors.As(err, &apiErr) {
			resp = apiErr.Response
		}
	}
	if resp == nil {
		return err
	}

	out := callResult{
		Status:    resp.StatusCode,
		RequestID: resp.RequestID,
		ElapsedMS: resp.Elapsed.Milliseconds(),
		Body:      resp.Body,
	}
	if err != nil {
		out.Error = nimbus.ErrorDetail(err)
		if out.Error == "" {
			out.Error = err.Error()
		}
	}
	if perr := e.print(out); perr != nil {
		return perr
	}
	return err
}

func readBody(e *env, inline, file string) ([]byte, error) {
	switch {
	case inline != "" && file != "":
		return nil, errors.New("use only one of --body and --body-file")
	case file == "-":
		return io.ReadAll(e.stdin)
	case file != "":
		return os.ReadFile(file)
	default:
		return []byte(inline), nil
	}
}

func nowStamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
