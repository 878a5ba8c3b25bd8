package sync

import (
	"strconv"
	"strings"

	"github.com/pushbox/pushbox/internal/config"
)

// Transport is the remote-shell command rsync opens its connection with.
// BatchMode is always on: a push must fail, never prompt.
type Transport struct {
	Port         int
	IdentityFile string
	Options      []string
}

func NewTransport(cfg *config.Config) *Transport {
	return &Transport{
		Port:         cfg.TargetPort,
		IdentityFile: cfg.IdentityFile,
		Options:      cfg.SSHOptions,
	}
}

// Args returns the ssh invocation, binary first.
func (t *Transport) Args() []string {
	args := []string{"ssh", "-p", strconv.Itoa(t.Port), "-o", "BatchMode=yes"}
	if t.IdentityFile != "" {
		args = append(args, "-i", t.IdentityFile)
	}
	for _, opt := range t.Options {
		args = append(args, "-o", opt)
	}
	return args
}

// Command renders the invocation as the single string rsync expects after
// -e. rsync splits the value on whitespace honoring quotes, so arguments
// with spaces are quoted.
func (t *Transport) Command() string {
	parts := t.Args()
	quoted := make([]string, 0, len(parts))
	for _, part := range parts {
		quoted = append(quoted, quoteArg(part))
	}
	return strings.Join(quoted, " ")
}

func quoteArg(s string) string {
	if strings.ContainsAny(s, " \t") {
		return `"` + s + `"`
	}
	return s
}
