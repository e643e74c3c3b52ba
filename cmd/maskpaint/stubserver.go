package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/example/maskpaint/internal/stubserver"
)

// stubServerCmd serves a local stand-in for the fracture service.
type stubServerCmd struct {
	*root
	fs      *flag.FlagSet
	addr    string
	token   string
	verbose bool
	jobs    []string
	out     io.Writer
}

func (s *stubServerCmd) Program() string        { return s.subcommand("stub-server") }
func (s *stubServerCmd) FlagSet() *flag.FlagSet { return s.fs }

func parseStubServerCmd(args []string, r *root) (*stubServerCmd, error) {
	fs := flag.NewFlagSet("stub-server", flag.ContinueOnError)
	s := &stubServerCmd{root: r, fs: fs, out: os.Stdout}
	fs.StringVar(&s.addr, "addr", "127.0.0.1:8000", "listen address")
	fs.StringVar(&s.token, "require-token", "", "bearer token required on submissions (empty accepts any)")
	fs.BoolVar(&s.verbose, "v", false, "log every request")
	fs.Func("job", "seed a job: original.png[,result1.png,...] (repeatable)", func(v string) error {
		if strings.TrimSpace(v) == "" {
			return errors.New("empty job")
		}
		s.jobs = append(s.jobs, v)
		return nil
	})
	fs.Usage = usageFunc(s)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, &UsageError{of: s, Reason: fmt.Errorf("unexpected argument %q", fs.Arg(0))}
	}
	return s, nil
}

func (s *stubServerCmd) server() (*stubserver.Server, error) {
	opts := []stubserver.Option{stubserver.WithToken(s.token)}
	if s.verbose {
		opts = append(opts, stubserver.WithRequestLog())
	}
	srv := stubserver.New(opts...)
	for _, job := range s.jobs {
		files := strings.Split(job, ",")
		images := make([][]byte, 0, len(files))
		for _, f := range files {
			data, err := os.ReadFile(strings.TrimSpace(f))
			if err != nil {
				return nil, fmt.Errorf("job %s: %w", job, err)
			}
			images = append(images, data)
		}
		id := srv.AddJob(images[0], images[1:]...)
		fmt.Fprintf(s.out, "job %d: %d result(s)\n", id, len(images)-1)
	}
	return srv, nil
}

func (s *stubServerCmd) Run() error {
	srv, err := s.server()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdown); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	fmt.Fprintf(s.out, "serving on http://%s\n", ln.Addr())
	if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
