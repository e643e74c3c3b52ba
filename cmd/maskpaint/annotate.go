package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/example/maskpaint/internal/appstate"
	"github.com/example/maskpaint/internal/config"
	"github.com/example/maskpaint/internal/display"
	"github.com/example/maskpaint/internal/effect"
	"github.com/example/maskpaint/internal/session"
)

// annotateCmd opens the editor window on an image.
type annotateCmd struct {
	*root
	fs    *flag.FlagSet
	ref   string
	size  float64
	color string
}

func (a *annotateCmd) Program() string        { return a.subcommand("annotate") }
func (a *annotateCmd) FlagSet() *flag.FlagSet { return a.fs }

func parseAnnotateCmd(args []string, r *root) (*annotateCmd, error) {
	fs := flag.NewFlagSet("annotate", flag.ContinueOnError)
	a := &annotateCmd{root: r, fs: fs}
	fs.Float64Var(&a.size, "brush-size", r.config.Brush.Size, "brush width in display pixels")
	fs.StringVar(&a.color, "color", "", "brush color name or #RRGGBB (default from config)")
	fs.Usage = usageFunc(a)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, &UsageError{of: a, Reason: fmt.Errorf("want one image, got %d arguments", fs.NArg())}
	}
	a.ref = fs.Arg(0)
	return a, nil
}

func (a *annotateCmd) Run() error {
	col := a.config.Brush.Color
	if a.color != "" {
		c, err := config.ParseColor(a.color)
		if err != nil {
			return fmt.Errorf("brush color: %w", err)
		}
		col = c
	}

	loader := a.loader()
	src, err := loader.Load(context.Background(), a.ref)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", a.ref, err)
	}

	fx := effect.NewRenderer(col)
	d, err := a.dispatcher(fx)
	if err != nil {
		return err
	}
	dpr := display.Ratio(a.scale)
	sess := session.New(d, session.WithBrush(a.size, col), session.WithDPR(dpr))
	if err := sess.Load(src); err != nil {
		return err
	}

	st := appstate.New(sess,
		appstate.WithEffect(fx),
		appstate.WithLoader(loader),
		appstate.WithNotifier(a.notifier),
		appstate.WithDPR(dpr),
		appstate.WithTimeout(a.timeout),
	)
	st.Run()
	return nil
}
