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
	"strings"

	"github.com/example/maskpaint/internal/config"
	"github.com/example/maskpaint/internal/input"
	"github.com/example/maskpaint/internal/session"
	"github.com/example/maskpaint/internal/submit"
	"github.com/example/maskpaint/internal/surface"
)

// stroke is a polyline in display coordinates drawn with one tool.
type stroke struct {
	mode   surface.Mode
	points [][2]float64
}

func parseStroke(mode surface.Mode, s string) (stroke, error) {
	fields := strings.Split(s, ",")
	if len(fields) < 2 || len(fields)%2 != 0 {
		return stroke{}, fmt.Errorf("stroke %q: want x1,y1[,x2,y2...]", s)
	}
	st := stroke{mode: mode}
	for i := 0; i < len(fields); i += 2 {
		x, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return stroke{}, fmt.Errorf("stroke %q: %w", s, err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
		if err != nil {
			return stroke{}, fmt.Errorf("stroke %q: %w", s, err)
		}
		st.points = append(st.points, [2]float64{x, y})
	}
	return st, nil
}

func parseSize(s string) (float64, float64, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q: want WxH", s)
	}
	fw, err := strconv.ParseFloat(w, 64)
	if err != nil || fw <= 0 {
		return 0, 0, fmt.Errorf("size %q: bad width", s)
	}
	fh, err := strconv.ParseFloat(h, 64)
	if err != nil || fh <= 0 {
		return 0, 0, fmt.Errorf("size %q: bad height", s)
	}
	return fw, fh, nil
}

// submitCmd paints strokes onto an image without a window and submits them.
type submitCmd struct {
	*root
	fs      *flag.FlagSet
	ref     string
	strokes []stroke
	size    float64
	color   string
	view    string
	output  string
	out     io.Writer
}

func (s *submitCmd) Program() string        { return s.subcommand("submit") }
func (s *submitCmd) FlagSet() *flag.FlagSet { return s.fs }

func parseSubmitCmd(args []string, r *root) (*submitCmd, error) {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	s := &submitCmd{root: r, fs: fs, out: os.Stdout}
	add := func(mode surface.Mode) func(string) error {
		return func(v string) error {
			st, err := parseStroke(mode, v)
			if err != nil {
				return err
			}
			s.strokes = append(s.strokes, st)
			return nil
		}
	}
	fs.Func("line", "brush stroke x1,y1,x2,y2[,...] in display pixels (repeatable)", add(surface.ModePaint))
	fs.Func("erase", "eraser stroke x1,y1,x2,y2[,...] in display pixels (repeatable)", add(surface.ModeErase))
	fs.Float64Var(&s.size, "brush-size", r.config.Brush.Size, "brush width in display pixels")
	fs.StringVar(&s.color, "color", "", "brush color name or #RRGGBB (default from config)")
	fs.StringVar(&s.view, "display", "", "display size WxH the strokes refer to (default: image size)")
	fs.StringVar(&s.output, "output", "result.png", "where to write a direct-mode result")
	fs.Usage = usageFunc(s)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, &UsageError{of: s, Reason: fmt.Errorf("want one image, got %d arguments", fs.NArg())}
	}
	if len(s.strokes) == 0 {
		return nil, errors.New("at least one -line is required")
	}
	if s.view != "" {
		if _, _, err := parseSize(s.view); err != nil {
			return nil, err
		}
	}
	s.ref = fs.Arg(0)
	return s, nil
}

func (s *submitCmd) Run() error {
	col := s.config.Brush.Color
	if s.color != "" {
		c, err := config.ParseColor(s.color)
		if err != nil {
			return fmt.Errorf("brush color: %w", err)
		}
		col = c
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	src, err := s.loader().Load(ctx, s.ref)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", s.ref, err)
	}
	d, err := s.dispatcher(nil)
	if err != nil {
		return err
	}
	sess := session.New(d, session.WithBrush(s.size, col), session.WithDPR(max(1, s.scale)))
	if err := sess.Load(src); err != nil {
		return err
	}
	w, h := src.Size()
	dw, dh := float64(w), float64(h)
	if s.view != "" {
		dw, dh, _ = parseSize(s.view)
	}
	if err := sess.Resize(dw, dh); err != nil {
		return err
	}
	if err := paintStrokes(sess, s.strokes); err != nil {
		return err
	}

	res, err := sess.Submit(ctx)
	if err != nil {
		s.notifier.Failed(err)
		return fmt.Errorf("submit: %w", err)
	}
	switch res.Mode {
	case submit.Direct:
		if err := os.WriteFile(s.output, res.Image, 0o644); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		s.notifier.Submitted(s.output, sess.Source().Image)
		fmt.Fprintln(s.out, s.output)
	case submit.Queued:
		s.notifier.Submitted("to queue", nil)
		fmt.Fprintln(s.out, res.Location)
	}
	return nil
}

func paintStrokes(sess *session.Session, strokes []stroke) error {
	for _, st := range strokes {
		sess.SetTool(st.mode)
		for i, p := range st.points {
			kind := input.Move
			if i == 0 {
				kind = input.Down
			}
			ev := input.PointerEvent{Kind: kind, ClientX: p[0], ClientY: p[1], Button: input.ButtonPrimary}
			if err := sess.HandlePointer(ev); err != nil {
				return err
			}
		}
		last := st.points[len(st.points)-1]
		if err := sess.HandlePointer(input.PointerEvent{Kind: input.Up, ClientX: last[0], ClientY: last[1]}); err != nil {
			return err
		}
	}
	return nil
}
