package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFprobePath returns the ffprobe binary to execute. A configured
// ffprobe found on PATH wins; otherwise an ffprobe sitting next to the
// resolved ffmpeg is used, which covers static ffmpeg builds unpacked
// outside PATH.
func ResolveFFprobePath(ffmpegBinary, ffprobeBinary string) string {
	ffprobeBinary = strings.TrimSpace(ffprobeBinary)
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	if resolved, err := exec.LookPath(ffprobeBinary); err == nil {
		return resolved
	}
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	if ffmpegBinary == "" {
		return ffprobeBinary
	}
	resolvedFFmpeg, err := exec.LookPath(ffmpegBinary)
	if err != nil {
		return ffprobeBinary
	}
	candidate := filepath.Join(filepath.Dir(resolvedFFmpeg), executableName("ffprobe"))
	if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
		return candidate
	}
	return ffprobeBinary
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
