package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"jimaku/internal/config"
	"jimaku/internal/deps"
)

// CheckGemini verifies that the Gemini API is reachable and the key is
// accepted by fetching the configured model's metadata. It uses a
// 15-second timeout and a single attempt.
func CheckGemini(ctx context.Context, cfg config.Gemini) Result {
	const name = "Gemini API"

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return Result{Name: name, Detail: "API key missing (set GEMINI_API_KEY)"}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	model := strings.TrimPrefix(strings.TrimSpace(cfg.Model), "models/")
	if base == "" || model == "" {
		return Result{Name: name, Detail: "base URL or model not configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/models/"+url.PathEscape(model), nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%v)", err)}
	}
	req.Header.Set("x-goog-api-key", key)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeRequestError(err)}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Result{Name: name, Passed: true, Detail: "reachable (" + model + ")"}
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return Result{Name: name, Detail: "auth failed (invalid api key)"}
	case http.StatusNotFound:
		return Result{Name: name, Detail: fmt.Sprintf("model %q not found", model)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("check failed (%d)", resp.StatusCode)}
	}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minBytes available to unprivileged users.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := uint64(fs.Bavail) * uint64(fs.Bsize) //nolint:gosec
	detail := fmt.Sprintf("%s free on %s", humanize.IBytes(free), path)
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need %s)", detail, humanize.IBytes(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the external binaries for the given config.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:       "FFmpeg",
			Command:    cfg.FFmpegBinary(),
			VersionArg: "-version",
		},
		{
			Name:       "FFprobe",
			Command:    deps.ResolveFFprobePath(cfg.FFmpegBinary(), cfg.FFprobeBinary()),
			VersionArg: "-version",
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}

func summarizeRequestError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (Gemini API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (Gemini API unreachable)"
	}
	return err.Error()
}
