package submit

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Mode selects the endpoint and payload shape.
type Mode int

const (
	// Direct sends the full source image with the mask.
	Direct Mode = iota
	// Queued refers to a result already held by the server.
	Queued
)

func (m Mode) String() string {
	switch m {
	case Direct:
		return "direct"
	case Queued:
		return "queued"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ResultsPath is the path segment of the server's result store.
const ResultsPath = "results"

// JobRef names one candidate result of a queued job.
type JobRef struct {
	JobID  int
	Choice int
}

// Location returns the result-store URL of the reference under base.
func (j JobRef) Location(base *url.URL) string {
	return base.JoinPath(ResultsPath, strconv.Itoa(j.JobID), strconv.Itoa(j.Choice)).String()
}

// ParseJobReference extracts a job reference from location when it points
// into the result store under base. Query and fragment are ignored. Any
// other location, including the "original" entry of a job, reports false.
func ParseJobReference(base *url.URL, location string) (JobRef, bool) {
	if base == nil || location == "" {
		return JobRef{}, false
	}
	u, err := url.Parse(location)
	if err != nil || !u.IsAbs() {
		return JobRef{}, false
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return JobRef{}, false
	}
	prefix := strings.TrimSuffix(base.Path, "/") + "/" + ResultsPath + "/"
	rest, ok := strings.CutPrefix(u.Path, prefix)
	if !ok {
		return JobRef{}, false
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 {
		return JobRef{}, false
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil || id < 0 {
		return JobRef{}, false
	}
	choice, err := strconv.Atoi(parts[1])
	if err != nil || choice < 0 {
		return JobRef{}, false
	}
	return JobRef{JobID: id, Choice: choice}, true
}

// CacheBust returns location with its t query parameter set to the given
// time in unix milliseconds. Unparseable locations are returned unchanged.
func CacheBust(location string, now time.Time) string {
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}
