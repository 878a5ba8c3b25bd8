package sync

import (
	"path/filepath"
	"strings"

	"github.com/pushbox/pushbox/internal/config"
)

const rsyncBin = "rsync"

// Command assembles the rsync invocation for one push. It is pure: building
// the argument vector never touches the filesystem or the network, so the
// exact command can be inspected, logged and tested before anything runs.
type Command struct {
	cfg       *config.Config
	transport *Transport
	excludes  []string
}

func NewCommand(cfg *config.Config, transport *Transport, excludes []string) *Command {
	return &Command{
		cfg:       cfg,
		transport: transport,
		excludes:  excludes,
	}
}

// Source returns the local source argument with the separator policy
// applied. The builder owns the trailing separator: in contents mode the
// source always ends with exactly one, in directory mode never.
func (c *Command) Source() string {
	src := filepath.Clean(c.cfg.SourceDir)
	if c.cfg.SourceMode == config.SourceModeDirectory {
		return src
	}
	return src + "/"
}

// Args returns the full argument vector, without the binary name. Archive
// mode, verbose and --stats are fixed; everything else follows the config.
func (c *Command) Args() []string {
	args := []string{"-a", "-v", "--stats"}
	if c.cfg.DryRun {
		args = append(args, "-n")
	}
	if c.cfg.Mirror {
		args = append(args, "--delete")
	}
	for _, pattern := range c.excludes {
		args = append(args, "--exclude", pattern)
	}
	args = append(args, "-e", c.transport.Command())
	args = append(args, c.Source(), c.cfg.Remote())
	return args
}

// String renders the resolved command the way it is echoed before
// execution, shell-quoted so the line can be copied and re-run.
func (c *Command) String() string {
	parts := []string{rsyncBin}
	for _, arg := range c.Args() {
		parts = append(parts, shellQuote(arg))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\"'\\$&|;<>()*?![]#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
