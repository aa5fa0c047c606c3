package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/disparter/toguwaka-discord-game-sub002/pkg/story"
)

// LoadContentDir reads every chapter document under dir (one logical record
// per chapter id, id taken from the filename) and builds a content model.
// Malformed documents are rejected here, at the load boundary, so "missing
// key" failures never reach the engine. entry overrides the default
// lexicographically-first entry chapter when non-empty.
func LoadContentDir(dir, entry string) (*story.ContentModel, error) {
	var chapters []*story.Chapter
	var defects []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		var format story.Format
		switch filepath.Ext(path) {
		case ".json":
			format = story.FormatJSON
		case ".yaml", ".yml":
			format = story.FormatYAML
		default:
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read chapter file %s: %w", path, err)
		}

		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		c, err := story.ParseChapter(id, data, format)
		if err != nil {
			defects = append(defects, err.Error())
			return nil
		}
		chapters = append(chapters, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk content directory %s: %w", dir, err)
	}

	if len(defects) > 0 {
		return nil, fmt.Errorf("content directory %s has %d malformed documents:\n  - %s", dir, len(defects), strings.Join(defects, "\n  - "))
	}

	model, err := story.NewContentModel(chapters, entry)
	if err != nil {
		return nil, fmt.Errorf("build content model from %s: %w", dir, err)
	}
	return model, nil
}
