// Command gemfetch fetches gemini resources and prints them.
//
//	gemfetch [flags] gemini://example.com/ [more URIs...]
//
// URIs are fetched concurrently. Gemtext documents are printed line by line,
// other bodies are written as is. With -json every outcome is printed as a JSON object.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/ninedraft/gemcore/gemini"
)

func main() {
	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt)
	var code = run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var flags = flag.NewFlagSet("gemfetch", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var configPath string
	flags.StringVar(&configPath, "config", "", "TOML config file")
	var defaults = defaultConfig()
	var overrides = defaults
	flags.DurationVar(&overrides.ConnectTimeout, "connect-timeout", defaults.ConnectTimeout, "connection and handshake timeout")
	flags.DurationVar(&overrides.ReadTimeout, "read-timeout", defaults.ReadTimeout, "timeout of a single read")
	flags.IntVar(&overrides.MaxRedirects, "max-redirects", defaults.MaxRedirects, "redirects to follow, negative disables redirects")
	flags.IntVar(&overrides.MaxTextSize, "max-text", defaults.MaxTextSize, "gemtext size limit in bytes")
	flags.Int64Var(&overrides.MaxBodySize, "max-body", defaults.MaxBodySize, "binary body size limit in bytes")
	flags.StringVar(&overrides.Trust, "trust", defaults.Trust, "certificate trust policy: accept-all, hostname or tofu")
	flags.StringVar(&overrides.LogLevel, "log-level", defaults.LogLevel, "debug, info, warn, error or none")
	flags.IntVar(&overrides.Parallel, "parallel", defaults.Parallel, "number of concurrent fetches")
	flags.BoolVar(&overrides.JSON, "json", defaults.JSON, "print outcomes as JSON objects")
	if err := flags.Parse(args); err != nil {
		return exitUsage
	}
	if flags.NArg() == 0 {
		fmt.Fprintln(stderr, "gemfetch: no URI to fetch")
		flags.Usage()
		return exitUsage
	}

	var cfg = defaults
	if configPath != "" {
		var loaded, err = loadConfig(configPath, cfg)
		if err != nil {
			fmt.Fprintln(stderr, "gemfetch:", err)
			return exitUsage
		}
		cfg = loaded
	}
	cfg = applyFlags(flags, cfg, overrides)
	if err := cfg.validate(); err != nil {
		fmt.Fprintln(stderr, "gemfetch:", err)
		return exitUsage
	}

	var logger = newLogger(stderr, cfg)
	var client, errClient = newClient(cfg, logger)
	if errClient != nil {
		fmt.Fprintln(stderr, "gemfetch:", errClient)
		return exitUsage
	}

	var results = fetchAll(ctx, client, cfg, flags.Args())
	var code = exitOK
	for _, result := range results {
		if result.Error != "" {
			code = exitFailure
		}
	}
	if err := printResults(stdout, results, cfg.JSON); err != nil {
		level.Error(logger).Log("msg", "writing output", "err", err)
		return exitFailure
	}
	return code
}

// applyFlags copies explicitly set flags over the file configuration.
func applyFlags(flags *flag.FlagSet, cfg, overrides config) config {
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "connect-timeout":
			cfg.ConnectTimeout = overrides.ConnectTimeout
		case "read-timeout":
			cfg.ReadTimeout = overrides.ReadTimeout
		case "max-redirects":
			cfg.MaxRedirects = overrides.MaxRedirects
		case "max-text":
			cfg.MaxTextSize = overrides.MaxTextSize
		case "max-body":
			cfg.MaxBodySize = overrides.MaxBodySize
		case "trust":
			cfg.Trust = overrides.Trust
		case "log-level":
			cfg.LogLevel = overrides.LogLevel
		case "parallel":
			cfg.Parallel = overrides.Parallel
		case "json":
			cfg.JSON = overrides.JSON
		}
	})
	return cfg
}

func newLogger(w io.Writer, cfg config) log.Logger {
	var logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	var filter, _ = cfg.levelFilter()
	logger = level.NewFilter(logger, filter)
	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

func newClient(cfg config, logger log.Logger) (*gemini.Client, error) {
	var trust, err = cfg.trustPolicy()
	if err != nil {
		return nil, err
	}
	return &gemini.Client{
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		MaxRedirects:   redirectLimit(cfg.MaxRedirects),
		MaxTextSize:    cfg.MaxTextSize,
		Trust:          trust,
		Logger:         logger,
	}, nil
}

// redirectLimit maps the CLI setting to the client field: zero means no redirects on the command line.
func redirectLimit(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

type result struct {
	URI      string   `json:"uri"`
	URL      string   `json:"url,omitempty"`
	Status   int      `json:"status,omitempty"`
	Meta     string   `json:"meta,omitempty"`
	Lines    []string `json:"lines,omitempty"`
	Body     []byte   `json:"body,omitempty"`
	Error    string   `json:"error,omitempty"`
	Kind     string   `json:"kind,omitempty"`
	Prompt   string   `json:"prompt,omitempty"`
	WaitHint string   `json:"wait_hint,omitempty"`
}

var errBodyTooLarge = errors.New("body exceeds the size limit")

func fetchAll(ctx context.Context, client *gemini.Client, cfg config, uris []string) []result {
	var results = make([]result, len(uris))
	var group errgroup.Group
	group.SetLimit(cfg.Parallel)
	for i, uri := range uris {
		i, uri := i, uri
		group.Go(func() error {
			results[i] = fetch(ctx, client, uri, cfg.MaxBodySize)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func fetch(ctx context.Context, client *gemini.Client, uri string, maxBody int64) result {
	var res = result{URI: uri}
	var resp, err = client.Fetch(ctx, uri)
	if err != nil {
		return failed(res, err)
	}
	defer func() { _ = resp.Close() }()

	var header = resp.ResponseHeader()
	res.URL = header.URL
	res.Status = header.Status.Int()
	res.Meta = header.Meta
	switch resp := resp.(type) {
	case *gemini.TextResponse:
		res.Lines = resp.Lines
	case *gemini.BinaryResponse:
		var body, errRead = io.ReadAll(io.LimitReader(resp, maxBody+1))
		switch {
		case errRead != nil:
			return failed(res, fmt.Errorf("reading body: %w", errRead))
		case int64(len(body)) > maxBody:
			return failed(res, errBodyTooLarge)
		}
		res.Body = body
	}
	return res
}

func failed(res result, err error) result {
	res.Error = err.Error()
	var gerr *gemini.Error
	if !errors.As(err, &gerr) {
		return res
	}
	res.Kind = gerr.Kind.String()
	if gerr.Code != 0 {
		res.Status = gerr.Code.Int()
	}
	res.Prompt = gerr.Prompt()
	if wait, ok := gerr.WaitHint(); ok {
		res.WaitHint = wait.Round(time.Second).String()
	}
	return res
}

func printResults(w io.Writer, results []result, asJSON bool) error {
	if asJSON {
		var enc = json.NewEncoder(w)
		for _, res := range results {
			if err := enc.Encode(res); err != nil {
				return fmt.Errorf("encoding %s: %w", res.URI, err)
			}
		}
		return nil
	}

	for _, res := range results {
		var err error
		switch {
		case res.Error != "":
			_, err = fmt.Fprintf(w, "# %s: %s\n", res.URI, res.Error)
		case res.Lines != nil:
			_, err = io.WriteString(w, strings.Join(res.Lines, "\n")+"\n")
		default:
			_, err = w.Write(res.Body)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
