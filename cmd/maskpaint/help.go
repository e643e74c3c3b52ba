package main

import (
	"embed"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/*.txt
var helpFS embed.FS

// helpPages parses every usage page once, on first use.
var helpPages = sync.OnceValues(func() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"flags": flagLines,
	}).ParseFS(helpFS, "templates/*.txt")
})

// flagLine is one flag as a usage page lists it.
type flagLine struct {
	Name    string
	Arg     string
	Default string
	Usage   string
}

// flagLines lists the flags of fs by name. Zero defaults are omitted.
func flagLines(fs *flag.FlagSet) []flagLine {
	var lines []flagLine
	if fs == nil {
		return lines
	}
	fs.VisitAll(func(f *flag.Flag) {
		arg, usage := flag.UnquoteUsage(f)
		l := flagLine{Name: f.Name, Arg: arg, Usage: usage}
		switch f.DefValue {
		case "", "0", "false", "0s":
		default:
			l.Default = f.DefValue
		}
		lines = append(lines, l)
	})
	sort.Slice(lines, func(i, j int) bool { return lines[i].Name < lines[j].Name })
	return lines
}

// command is what a usage page is rendered from.
type command interface {
	Program() string
	Template() string
	FlagSet() *flag.FlagSet
}

// UsageError reports a command line that could not be run. Its message is the
// command's usage page, preceded by the reason when there is one.
type UsageError struct {
	of     command
	Reason error
}

func (e *UsageError) Error() string {
	var b strings.Builder
	if e.Reason != nil {
		fmt.Fprintf(&b, "%s: %v\n\n", e.of.Program(), e.Reason)
	}
	if err := writeUsage(&b, e.of); err != nil {
		return fmt.Sprintf("%s: usage unavailable: %v", e.of.Program(), err)
	}
	return b.String()
}

func (e *UsageError) Unwrap() error { return e.Reason }

func writeUsage(w io.Writer, c command) error {
	pages, err := helpPages()
	if err != nil {
		return fmt.Errorf("parse usage pages: %w", err)
	}
	if err := pages.ExecuteTemplate(w, c.Template(), c); err != nil {
		return fmt.Errorf("render %s: %w", c.Template(), err)
	}
	return nil
}

// usageFunc prints the usage page of c for -h.
func usageFunc(c command) func() {
	return func() {
		if err := writeUsage(os.Stderr, c); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func (r *root) Template() string          { return "root.txt" }
func (a *annotateCmd) Template() string   { return "annotate.txt" }
func (s *submitCmd) Template() string     { return "submit.txt" }
func (s *stubServerCmd) Template() string { return "stub-server.txt" }
func (c *configCmd) Template() string     { return "config.txt" }
func (v *versionCmd) Template() string    { return "version.txt" }
