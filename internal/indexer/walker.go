package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dpolishuk/coderag/internal/models"
	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
)

// MaxFileSize is the largest file ingested, in bytes.
const MaxFileSize = 1 << 20

type candidate struct {
	relPath  string
	fullPath string
	language string
	size     int64
}

// walkSources lists ingestible files under root in lexical order.
func walkSources(root string, respectIgnore bool) ([]candidate, error) {
	var ignored *ignore.GitIgnore
	if respectIgnore {
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			ignored = gi
		}
	}

	var files []candidate
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		slashPath := filepath.ToSlash(relPath)

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			if ignored != nil && relPath != "." && ignored.MatchesPath(slashPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || hasGitSegment(slashPath) {
			return nil
		}
		lang := models.DetectLanguage(path)
		if lang == "" {
			return nil
		}
		if ignored != nil && ignored.MatchesPath(slashPath) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > MaxFileSize {
			return nil
		}
		files = append(files, candidate{
			relPath:  slashPath,
			fullPath: path,
			language: lang,
			size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return files, nil
}

func hasGitSegment(slashPath string) bool {
	for _, seg := range strings.Split(slashPath, "/") {
		if seg == ".git" {
			return true
		}
	}
	return false
}

// readSources reads every candidate with at most workers concurrent reads.
// The result keeps the order of files.
func readSources(ctx context.Context, codebaseID string, files []candidate, workers int) ([]*models.SourceFile, error) {
	out := make([]*models.SourceFile, len(files))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := os.ReadFile(f.fullPath)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", f.relPath, err)
			}
			content := strings.ToValidUTF8(string(raw), "�")
			out[i] = &models.SourceFile{
				CodebaseID: codebaseID,
				Path:       f.relPath,
				Content:    content,
				Language:   f.language,
				LineCount:  models.CountLines(content),
				Size:       f.size,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// primaryLanguage is the most frequent language; on a tie the language that
// reached the top count first wins.
func primaryLanguage(files []*models.SourceFile) string {
	counts := map[string]int{}
	best := ""
	for _, f := range files {
		counts[f.Language]++
		if best == "" || counts[f.Language] > counts[best] {
			best = f.Language
		}
	}
	return best
}
