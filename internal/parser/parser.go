// Package parser reads battle-replay JSON files into typed records.
package parser

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vporokh/go-tank-metrics/internal/model"
)

// ParseReplay reads one replay JSON file.
func ParseReplay(path string) (*model.Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	var r model.Replay
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode replay %s: %w", filepath.Base(path), err)
	}
	if r.Performances == nil {
		r.Performances = map[model.AccountID]*model.PlayerPerformance{}
	}
	return &r, nil
}

// Discover expands a list of file and directory arguments into the sorted set
// of replay JSON files beneath them. Directories are walked recursively;
// non-replay files are ignored.
func Discover(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isReplayFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func isReplayFile(path string) bool {
	return strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".wotbreplay.json")
}
