package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushbox/pushbox/internal/project"
)

func loadRules(t *testing.T, ignoreFile string, configPatterns []string) *IgnoreList {
	t.Helper()
	root := t.TempDir()
	proj, err := project.New(root)
	require.NoError(t, err)

	if ignoreFile != "" {
		require.NoError(t, os.WriteFile(proj.IgnorePath, []byte(ignoreFile), 0o644))
	}

	rules := NewIgnoreList(proj, configPatterns)
	rules.Load()
	return rules
}

func TestIgnoreList_DefaultsAlwaysApply(t *testing.T) {
	rules := loadRules(t, "", nil)

	assert.True(t, rules.ShouldIgnore(".pushbox", true))
	assert.True(t, rules.ShouldIgnore(".git", true))
	assert.True(t, rules.ShouldIgnore(".DS_Store", false))
	assert.False(t, rules.ShouldIgnore("src/main.rs", false))
	assert.False(t, rules.ShouldIgnore("a.txt", false))
}

func TestIgnoreList_MergesFileAndConfig(t *testing.T) {
	ignoreFile := `# build output
node_modules/

*.bak
!keep.bak
`
	rules := loadRules(t, ignoreFile, []string{"target/", "*.bak"})

	assert.True(t, rules.ShouldIgnore("node_modules", true))
	assert.True(t, rules.ShouldIgnore("notes.bak", false))
	assert.True(t, rules.ShouldIgnore("target", true))
	// negation rules are unsupported and skipped
	assert.True(t, rules.ShouldIgnore("keep.bak", false))

	patterns := rules.Patterns()
	assert.Contains(t, patterns, "node_modules/")
	assert.Contains(t, patterns, "target/")

	// duplicates collapse across sources
	count := 0
	for _, p := range patterns {
		if p == "*.bak" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// comment lines never become patterns
	for _, p := range patterns {
		assert.NotContains(t, p, "#")
	}
}

func TestIgnoreList_PatternOrderStable(t *testing.T) {
	rules := loadRules(t, "from-file/\n", []string{"from-config/"})

	patterns := rules.Patterns()
	require.GreaterOrEqual(t, len(patterns), 3)
	// defaults first, then the ignore file, then config
	assert.Equal(t, project.MetadataDirName+"/", patterns[0])
	assert.Equal(t, "from-file/", patterns[len(patterns)-2])
	assert.Equal(t, "from-config/", patterns[len(patterns)-1])
}

func TestIgnoreList_DoublestarGlobs(t *testing.T) {
	rules := loadRules(t, "", []string{"docs/**/*.pdf"})

	assert.True(t, rules.ShouldIgnore("docs/a/b/manual.pdf", false))
	assert.True(t, rules.ShouldIgnore("docs/manual.pdf", false))
	assert.False(t, rules.ShouldIgnore("docs/manual.txt", false))
	assert.False(t, rules.ShouldIgnore("other/manual.pdf", false))
}

func TestIgnoreList_DirPatternMatchesContents(t *testing.T) {
	rules := loadRules(t, "", []string{"target/"})

	assert.True(t, rules.ShouldIgnore("target", true))
	assert.True(t, rules.ShouldIgnore("target/debug/build.o", false))
	assert.False(t, rules.ShouldIgnore("targeted.txt", false))
}

func TestIgnoreList_MissingFileIsFine(t *testing.T) {
	root := t.TempDir()
	proj, err := project.New(root)
	require.NoError(t, err)

	rules := NewIgnoreList(proj, nil)
	rules.Load()

	assert.NotEmpty(t, rules.Patterns())
	assert.False(t, rules.ShouldIgnore(filepath.Join("src", "main.rs"), false))
}
