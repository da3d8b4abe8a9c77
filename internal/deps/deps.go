package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionTimeout = 5 * time.Second

// Requirement names an external binary and how to ask it for a version.
type Requirement struct {
	Name     string
	Command  string
	Optional bool
	// VersionArg is passed to the binary to read its version line; empty
	// skips the version probe.
	VersionArg string
}

// Status is the outcome of looking a Requirement up on the system.
type Status struct {
	Requirement
	Available bool
	Path      string
	Version   string
	// Detail explains why the binary is unavailable.
	Detail string
}

// CheckBinaries resolves each requirement in order.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		results[i] = check(ctx, req)
	}
	return results
}

func check(ctx context.Context, req Requirement) Status {
	req.Command = strings.TrimSpace(req.Command)
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Available = true
	status.Path = path
	if req.VersionArg != "" {
		status.Version = versionLine(ctx, path, req.VersionArg)
	}
	return status
}

// versionLine returns the first line the binary prints for arg, or "" when
// it cannot be run.
func versionLine(ctx context.Context, binary, arg string) string {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, arg).Output() //nolint:gosec
	if err != nil {
		return ""
	}
	line, _, _ := bytes.Cut(out, []byte("\n"))
	return strings.TrimSpace(string(line))
}
