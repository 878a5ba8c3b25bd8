package utils

import (
	"bufio"
	"bytes"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// LineStamper implements io.Writer and prefixes every complete line written
// through it with a sequence number and a timestamp. pushbox uses it to tee
// the raw rsync stream into the run log without touching what the terminal
// sees, and as the sink for the file copy of its own logs.
type LineStamper struct {
	target   io.Writer
	sequence *atomic.Uint64
	buf      *bytes.Buffer
	reader   *bufio.Reader
}

// NewLineStamper returns a LineStamper writing stamped lines to target.
func NewLineStamper(target io.Writer) *LineStamper {
	buf := &bytes.Buffer{}
	return &LineStamper{
		target:   target,
		sequence: &atomic.Uint64{},
		buf:      buf,
		reader:   bufio.NewReader(buf),
	}
}

func (l *LineStamper) writeStampedLine(line []byte) (int, error) {
	lineNum := l.sequence.Add(1)
	totalWritten := 0

	prefix := slog.Uint64("line", lineNum).String() + " " +
		slog.String("time", time.Now().Format(time.RFC3339)).String() + " "
	n, err := io.WriteString(l.target, prefix)
	totalWritten += n
	if err != nil {
		return totalWritten, err
	}

	n, err = l.target.Write(line)
	totalWritten += n
	if err != nil {
		return totalWritten, err
	}

	n, err = io.WriteString(l.target, "\n")
	totalWritten += n
	return totalWritten, err
}

// Write buffers p and flushes every complete line with its stamp. On success
// it reports len(p) so it can sit inside an io.MultiWriter; the stamped form
// reaching the target is longer than the input.
func (l *LineStamper) Write(p []byte) (int, error) {
	if _, err := l.buf.Write(p); err != nil {
		return 0, err
	}

	for {
		line, err := l.reader.ReadString('\n')
		if err != nil {
			// no complete line yet, keep the tail for the next write
			if line != "" {
				l.buf.WriteString(line)
			}
			break
		}
		line = strings.TrimRight(line, "\r\n")
		if _, err := l.writeStampedLine([]byte(line)); err != nil {
			return 0, err
		}
	}

	return len(p), nil
}

// Close flushes any trailing partial line to the target.
func (l *LineStamper) Close() error {
	remaining, err := io.ReadAll(l.reader)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		_, err = l.writeStampedLine(remaining)
	}
	return err
}
