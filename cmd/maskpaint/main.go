package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/example/maskpaint/internal/capture"
	"github.com/example/maskpaint/internal/config"
	"github.com/example/maskpaint/internal/credential"
	"github.com/example/maskpaint/internal/effect"
	"github.com/example/maskpaint/internal/notify"
	"github.com/example/maskpaint/internal/submit"
)

var (
	version            = "dev"
	commit             = ""
	date               = ""
	configPathOverride = ""
)

type runnable interface{ Run() error }

type root struct {
	fs        *flag.FlagSet
	program   string
	config    *config.Config
	notifier  *notify.Notifier
	server    string
	token     string
	tokenFile string
	scale     float64
	timeout   time.Duration

	submitAlerts  bool
	failureAlerts bool
}

func (r *root) Program() string {
	return r.program
}

func (r *root) FlagSet() *flag.FlagSet {
	return r.fs
}

func newRoot() *root {
	loader := config.NewLoader(version, configPathOverride)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load config: %v\n", err)
		cfg = config.New()
	}
	return newRootWith(cfg)
}

func newRootWith(cfg *config.Config) *root {
	r := &root{
		fs:       flag.NewFlagSet("maskpaint", flag.ContinueOnError),
		program:  "maskpaint",
		config:   cfg,
		notifier: notify.New(notify.LoadPreferences()),
	}
	// Precedence: CLI > Env > Config > Default
	r.fs.StringVar(&r.server, "server", cfg.Server, "base URL of the fracture service")
	r.fs.StringVar(&r.token, "token", "", "bearer token (default $"+credential.EnvVar+" or token_file)")
	r.fs.StringVar(&r.tokenFile, "token-file", cfg.TokenFile, "file holding the bearer token")
	r.fs.Float64Var(&r.scale, "scale", cfg.Scale, "device pixel ratio override, 0 detects it")
	r.fs.DurationVar(&r.timeout, "timeout", cfg.Timeout, "submission timeout, 0 waits forever")
	r.fs.BoolVar(&r.submitAlerts, "notify-submit", cfg.Notify.Submit, "show a desktop notification after a submission succeeds")
	r.fs.BoolVar(&r.failureAlerts, "notify-failure", cfg.Notify.Failure, "show a desktop notification when a submission fails")
	r.fs.Usage = usageFunc(r)
	return r
}

func (r *root) subcommand(name string) string {
	return strings.TrimSpace(strings.Join([]string{r.program, name}, " "))
}

func (r *root) Run(args []string) error {
	if err := r.fs.Parse(args); err != nil {
		return err
	}
	if r.fs.NArg() < 1 {
		return &UsageError{of: r, Reason: errors.New("no command given")}
	}
	r.notifier.Enable(notify.EventSubmit, r.submitAlerts)
	r.notifier.Enable(notify.EventFailure, r.failureAlerts)

	cmdName := r.fs.Arg(0)
	subArgs := r.fs.Args()[1:]

	var (
		cmd runnable
		err error
	)
	switch cmdName {
	case "annotate":
		cmd, err = parseAnnotateCmd(subArgs, r)
	case "submit":
		cmd, err = parseSubmitCmd(subArgs, r)
	case "stub-server":
		cmd, err = parseStubServerCmd(subArgs, r)
	case "config":
		cmd, err = parseConfigCmd(subArgs, r)
	case "version":
		cmd = &versionCmd{r: r}
	default:
		err = &UsageError{of: r, Reason: fmt.Errorf("unknown command %q", cmdName)}
	}
	if err != nil {
		return err
	}
	return cmd.Run()
}

func (r *root) credentials() credential.Source {
	return credential.Default(r.token, r.tokenFile)
}

func (r *root) dispatcher(fx effect.Notifier) (*submit.Dispatcher, error) {
	opts := []submit.Option{submit.WithCredentials(r.credentials())}
	if fx != nil {
		opts = append(opts, submit.WithEffect(fx))
	}
	return submit.New(r.server, opts...)
}

func (r *root) loader() *capture.Loader {
	return capture.NewLoader(capture.WithCredentials(r.credentials()))
}

func main() {
	r := newRoot()
	if err := r.Run(os.Args[1:]); err != nil {
		var uerr *UsageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr.Error())
			os.Exit(2)
		}
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
