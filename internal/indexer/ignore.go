package indexer

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/embedsync/embedsync/internal/utils"
)

// IgnoreFileName is an optional gitignore-style file at the watch root.
const IgnoreFileName = ".embedsyncignore"

var defaultIgnoreLines = []string{
	// embedsync internal state
	".embedsync/",
	IgnoreFileName,
	// vcs / tooling
	".git/",
	".svn/",
	"node_modules/",
	"__pycache__/",
	"venv/",
	".venv/",
	// editors
	".vscode/",
	".idea/",
	"*.tmp",
	"*.swp",
	// OS droppings
	".DS_Store",
	"Thumbs.db",
}

// IgnoreList filters paths out of snapshots using gitignore semantics.
type IgnoreList struct {
	baseDir string
	ignore  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string) *IgnoreList {
	return &IgnoreList{baseDir: baseDir}
}

// Load compiles the default rules plus the watch root's ignore file, if any.
func (l *IgnoreList) Load() {
	lines := append([]string{}, defaultIgnoreLines...)

	ignorePath := filepath.Join(l.baseDir, IgnoreFileName)
	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()
			rules := 0
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				if line := scanner.Text(); line != "" {
					lines = append(lines, line)
					rules++
				}
			}
			if err := scanner.Err(); err != nil {
				slog.Warn("error reading ignore file", "path", ignorePath, "error", err)
			} else {
				slog.Info("loaded ignore file", "path", ignorePath, "rules", rules)
			}
		}
	}

	l.ignore = gitignore.CompileIgnoreLines(lines...)
}

// ShouldIgnore reports whether the relative path matches any ignore rule.
func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	if l.ignore == nil {
		l.Load()
	}
	return l.ignore.MatchesPath(relPath)
}
