// Package ffmpeg wraps the ffmpeg and ffprobe invocations the pipeline needs:
// probing the container, demuxing the context subtitle track, extracting the
// speech track, and slicing it into chunk-sized clips.
package ffmpeg
