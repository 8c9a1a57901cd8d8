// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The watermark stage uses it to confirm that a downloaded artifact carries a
// video stream before an overlay is attempted; metadata from the extractor
// alone sometimes labels audio-only formats as video.
//
// Key types:
//   - Prober: runs ffprobe through a runner.Executor
//   - Result: parsed streams and format metadata
package ffprobe
