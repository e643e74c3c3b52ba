// Package credential provides the read-only bearer token attached to
// submissions.
package credential

import (
	"log"
	"os"
	"strings"
)

// EnvVar is the environment variable consulted by Env.
const EnvVar = "MASKPAINT_TOKEN"

// Source yields the current bearer token. ok is false when no token is
// available, in which case requests go out without authorization.
type Source interface {
	Token() (token string, ok bool)
}

// Static always returns the same token. An empty value means no token.
type Static string

// Token implements Source.
func (s Static) Token() (string, bool) {
	v := strings.TrimSpace(string(s))
	return v, v != ""
}

var getenv = os.Getenv

// Env reads the token from an environment variable on every call.
type Env string

// Token implements Source.
func (e Env) Token() (string, bool) {
	name := string(e)
	if name == "" {
		name = EnvVar
	}
	return Static(getenv(name)).Token()
}

var readFile = os.ReadFile

// File reads the token from the first line of a file on every call so a
// rotated token is picked up without a restart.
type File string

// Token implements Source.
func (f File) Token() (string, bool) {
	if f == "" {
		return "", false
	}
	data, err := readFile(expandHome(string(f)))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("token file %s: %v", f, err)
		}
		return "", false
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return Static(line).Token()
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return home + strings.TrimPrefix(p, "~")
}

// Chain returns the first token any source yields.
type Chain []Source

// Token implements Source.
func (c Chain) Token() (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if tok, ok := s.Token(); ok {
			return tok, true
		}
	}
	return "", false
}

// Default returns the usual lookup order: an explicit value, the environment,
// then a token file.
func Default(explicit, tokenFile string) Source {
	return Chain{Static(explicit), Env(EnvVar), File(tokenFile)}
}
