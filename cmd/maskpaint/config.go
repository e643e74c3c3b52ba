package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/example/maskpaint/internal/config"
)

type configCmd struct {
	*root
	fs  *flag.FlagSet
	out io.Writer
}

func (c *configCmd) Program() string        { return c.subcommand("config") }
func (c *configCmd) FlagSet() *flag.FlagSet { return c.fs }

func parseConfigCmd(args []string, r *root) (*configCmd, error) {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	c := &configCmd{root: r, fs: fs, out: os.Stdout}
	fs.Usage = usageFunc(c)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *configCmd) Run() error {
	args := c.fs.Args()
	if len(args) < 1 {
		return &UsageError{of: c, Reason: errors.New("missing print or save")}
	}

	switch args[0] {
	case "print":
		_, err := io.WriteString(c.out, c.effective().String())
		return err
	case "save":
		loader := config.NewLoader(version, configPathOverride)
		path, err := loader.Save(c.effective())
		if err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Configuration saved to %s\n", path)
		return nil
	default:
		return &UsageError{of: c, Reason: fmt.Errorf("unknown config command %q", args[0])}
	}
}

// effective merges the global flags over the loaded file.
func (c *configCmd) effective() *config.Config {
	cfg := *c.config
	cfg.Server = c.server
	cfg.TokenFile = c.tokenFile
	cfg.Scale = c.scale
	cfg.Timeout = c.timeout
	cfg.Notify = config.Notify{Submit: c.submitAlerts, Failure: c.failureAlerts}
	return &cfg
}
