package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"reposync/internal/gitx"
	"reposync/internal/logger"
	"reposync/internal/model"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// Local maps a lower-cased repository name to its working tree.
type Local map[string]string

type Scanner struct {
	exclude []string
}

func NewScanner(exclude []string) *Scanner {
	return &Scanner{exclude: exclude}
}

// Scan looks at the immediate children of every root. Unreadable roots are
// logged and skipped; the first root wins when two hold the same name.
func (s *Scanner) Scan(roots []string) (Local, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no search directories configured")
	}

	found := make(Local)
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			logger.Log.Warn("failed to read search directory",
				zap.String("dir", root),
				zap.Error(err))
			continue
		}

		for _, e := range entries {
			if !e.IsDir() || s.Excluded(e.Name()) {
				continue
			}

			path := filepath.Join(root, e.Name())
			if !gitx.IsRepository(path) {
				continue
			}

			key := model.Key(e.Name())
			if prev, ok := found[key]; ok {
				logger.Log.Warn("duplicate repository name, keeping first",
					zap.String("kept", prev),
					zap.String("ignored", path))
				continue
			}
			found[key] = path
		}
	}

	logger.Log.Info("local inventory scanned",
		zap.Int("roots", len(roots)),
		zap.Int("repositories", len(found)))

	return found, nil
}

func (s *Scanner) Excluded(name string) bool {
	for _, pattern := range s.exclude {
		if strings.EqualFold(pattern, name) {
			return true
		}
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}

	return false
}

// Merge pairs local working trees with remote repositories by name.
func Merge(local Local, remote []model.RemoteRepo) []model.RepositoryRecord {
	byKey := make(map[string]*model.RepositoryRecord, len(local)+len(remote))

	for key, path := range local {
		byKey[key] = &model.RepositoryRecord{Name: filepath.Base(path), LocalPath: path}
	}

	for i := range remote {
		r := remote[i]
		key := model.Key(r.Name)
		if rec, ok := byKey[key]; ok {
			rec.Remote = &r
			rec.Name = r.Name
			continue
		}
		byKey[key] = &model.RepositoryRecord{Name: r.Name, Remote: &r}
	}

	records := make([]model.RepositoryRecord, 0, len(byKey))
	for _, rec := range byKey {
		records = append(records, *rec)
	}
	slices.SortFunc(records, func(a, b model.RepositoryRecord) int {
		return strings.Compare(a.Key(), b.Key())
	})

	return records
}
