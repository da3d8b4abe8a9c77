package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// pollInterval is how often a follow-mode Tail rechecks the file.
const pollInterval = 250 * time.Millisecond

// Options controls a Tail call.
type Options struct {
	// Offset resumes reading at a byte position. A negative offset returns
	// the last Limit matching lines instead.
	Offset int64
	Limit  int
	// Follow waits up to Wait for new lines when none are available.
	Follow bool
	Wait   time.Duration
	// Match drops lines it returns false for.
	Match func(line string) bool
}

// Result carries the lines read and the offset to resume from.
type Result struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from the log file at path. A missing file yields no lines
// and a zero offset.
func Tail(ctx context.Context, path string, opts Options) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, nil
		}
		return Result{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Result{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var result Result
	if opts.Offset < 0 {
		result, err = readLast(path, opts.Limit, opts.Match)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// The file was truncated or replaced; start over.
			offset = 0
		}
		result, err = readFrom(path, offset, opts.Match)
	}
	if err != nil {
		return result, err
	}
	if len(result.Lines) > 0 || !opts.Follow || opts.Wait <= 0 {
		return result, nil
	}
	return waitForLines(ctx, path, result.Offset, opts.Wait, opts.Match)
}

func readLast(path string, limit int, match func(string) bool) (Result, error) {
	all, err := readFrom(path, 0, match)
	if err != nil || limit <= 0 {
		return Result{Offset: all.Offset}, err
	}
	if len(all.Lines) > limit {
		all.Lines = all.Lines[len(all.Lines)-limit:]
	}
	return all, nil
}

// readFrom returns complete lines after offset. A trailing partial line is
// left for the next call.
func readFrom(path string, offset int64, match func(string) bool) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, nil
		}
		return Result{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Result{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}

	result := Result{Offset: offset}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("read log file: %w", err)
		}
		result.Offset += int64(len(line))
		line = trimNewline(line)
		if match == nil || match(line) {
			result.Lines = append(result.Lines, line)
		}
	}
	return result, nil
}

func trimNewline(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}

func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration, match func(string) bool) (Result, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{Offset: offset}, ctx.Err()
		case <-ticker.C:
		}
		result, err := readFrom(path, offset, match)
		if err != nil {
			return result, err
		}
		if len(result.Lines) > 0 || time.Now().After(deadline) {
			return result, nil
		}
		offset = result.Offset
	}
}
