package sync

import (
	"bufio"
	"log/slog"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/pushbox/pushbox/internal/project"
	"github.com/pushbox/pushbox/internal/utils"
)

// defaultExcludes are always in effect. The metadata dir must never reach
// the remote; the rest keeps VCS state and editor droppings off the wire.
var defaultExcludes = []string{
	project.MetadataDirName + "/",
	".git/",
	".hg/",
	".svn/",
	"*.swp",
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList is the effective exclusion rule set of one push: built-in
// defaults, then the project's .pushignore lines, then the config patterns.
// The same list feeds rsync as --exclude arguments and the preflight scanner
// as a matcher, so both sides agree on what stays local.
type IgnoreList struct {
	ignorePath     string
	configPatterns []string

	lines   []string
	matcher *gitignore.GitIgnore
}

func NewIgnoreList(proj *project.Project, configPatterns []string) *IgnoreList {
	return &IgnoreList{
		ignorePath:     proj.IgnorePath,
		configPatterns: configPatterns,
	}
}

// Load reads the .pushignore file if present and compiles the effective
// rule set. Problems with the file are logged and skipped; a missing or
// broken ignore file never stops a push.
func (l *IgnoreList) Load() {
	seen := mapset.NewSet[string]()
	lines := make([]string, 0, len(defaultExcludes)+len(l.configPatterns))

	add := func(line string) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			return
		}
		if strings.HasPrefix(line, "!") {
			slog.Warn("negation rules are not supported, skipping", "rule", line, "path", l.ignorePath)
			return
		}
		if seen.Contains(line) {
			return
		}
		seen.Add(line)
		lines = append(lines, line)
	}

	for _, line := range defaultExcludes {
		add(line)
	}

	if utils.FileExists(l.ignorePath) {
		file, err := os.Open(l.ignorePath)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", l.ignorePath, "error", err)
		} else {
			defer file.Close()
			rules := 0
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				before := len(lines)
				add(scanner.Text())
				if len(lines) > before {
					rules++
				}
			}
			if err := scanner.Err(); err != nil {
				slog.Warn("error reading ignore file", "path", l.ignorePath, "error", err)
			} else {
				slog.Debug("loaded ignore file", "path", l.ignorePath, "rules", rules)
			}
		}
	}

	for _, pattern := range l.configPatterns {
		add(pattern)
	}

	l.lines = lines
	l.matcher = gitignore.CompileIgnoreLines(lines...)
}

// Patterns returns the effective exclusion patterns in a stable order:
// defaults, ignore file, config. Each becomes one --exclude argument.
func (l *IgnoreList) Patterns() []string {
	return l.lines
}

// ShouldIgnore reports whether the root-relative path is excluded. Directory
// paths must be passed with isDir=true so trailing-slash rules apply.
func (l *IgnoreList) ShouldIgnore(relPath string, isDir bool) bool {
	if l.matcher == nil {
		return false
	}
	matchPath := relPath
	if isDir {
		matchPath += "/"
	}
	if l.matcher.MatchesPath(matchPath) {
		return true
	}

	// The gitignore compiler is loose with explicit ** globs; match those
	// the way rsync does, anchored against the full relative path.
	for _, pattern := range l.lines {
		if strings.Contains(pattern, "**") && matchesRsyncGlob(pattern, relPath) {
			return true
		}
	}
	return false
}

// matchesRsyncGlob applies rsync's matching rules for one exclude pattern:
// a pattern without a slash matches at any depth, a trailing slash makes it
// apply to a directory and everything below it.
func matchesRsyncGlob(pattern, relPath string) bool {
	pattern = strings.TrimSuffix(pattern, "/")
	if !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}

	if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
		return true
	}
	ok, err := doublestar.Match(pattern+"/**", relPath)
	return err == nil && ok
}
