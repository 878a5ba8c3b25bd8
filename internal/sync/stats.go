package sync

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Stats is the transfer summary rsync prints under --stats.
type Stats struct {
	FilesTotal       int64
	FilesTransferred int64
	TotalSize        int64
	BytesSent        int64
	BytesReceived    int64
}

var statsNumber = regexp.MustCompile(`[0-9][0-9,]*`)

// ParseStats extracts the --stats summary from rsync output. Lines it does
// not recognize are ignored, so the whole captured stream can be fed in.
// Both the pre-3.1 and current field names are understood.
func ParseStats(r io.Reader) *Stats {
	stats := &Stats{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Number of files:"):
			stats.FilesTotal = firstNumber(line)
		case strings.HasPrefix(line, "Number of regular files transferred:"),
			strings.HasPrefix(line, "Number of files transferred:"):
			stats.FilesTransferred = firstNumber(line)
		case strings.HasPrefix(line, "Total file size:"):
			stats.TotalSize = firstNumber(line)
		case strings.HasPrefix(line, "Total bytes sent:"):
			stats.BytesSent = firstNumber(line)
		case strings.HasPrefix(line, "Total bytes received:"):
			stats.BytesReceived = firstNumber(line)
		case strings.HasPrefix(line, "sent ") && strings.Contains(line, "received "):
			// fallback summary line: `sent X bytes  received Y bytes  Z bytes/sec`
			if stats.BytesSent == 0 {
				stats.BytesSent = firstNumber(line)
			}
			if stats.BytesReceived == 0 {
				if _, rest, ok := strings.Cut(line, "received "); ok {
					stats.BytesReceived = firstNumber(rest)
				}
			}
		case strings.HasPrefix(line, "total size is"):
			if stats.TotalSize == 0 {
				stats.TotalSize = firstNumber(line)
			}
		}
	}

	return stats
}

// firstNumber returns the first comma-grouped integer in the line, or 0.
func firstNumber(line string) int64 {
	match := statsNumber.FindString(line)
	if match == "" {
		return 0
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(match, ",", ""), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
