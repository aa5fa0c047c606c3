package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeChapter(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadContentDir(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "1_arrival.json", `{
		"kind": "story",
		"title": "Arrival",
		"description": "Day one.",
		"next_chapter": "2_classes"
	}`)
	writeChapter(t, dir, "2_classes.yaml", `
kind: story
title: Classes
description: Day two.
dialogues:
  - First bell.
  - text: Pick a seat.
`)
	writeChapter(t, dir, "notes.txt", "not a chapter, must be skipped")

	model, err := LoadContentDir(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 2, model.Len())
	assert.Equal(t, "1_arrival", model.EntryID(), "entry defaults to the lexicographically first id")

	c, ok := model.Chapter("2_classes")
	require.True(t, ok)
	assert.Len(t, c.Dialogues, 2)
	assert.Equal(t, "First bell.", c.Dialogues[0].Text)
}

func TestLoadContentDir_EntryOverride(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "a.json", `{"kind": "story", "title": "A", "description": "d"}`)
	writeChapter(t, dir, "b.json", `{"kind": "story", "title": "B", "description": "d"}`)

	model, err := LoadContentDir(dir, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", model.EntryID())

	_, err = LoadContentDir(dir, "ghost")
	assert.Error(t, err, "an entry id not present in the directory is rejected")
}

func TestLoadContentDir_RejectsMalformedDocuments(t *testing.T) {
	dir := t.TempDir()
	writeChapter(t, dir, "good.json", `{"kind": "story", "title": "G", "description": "d"}`)
	writeChapter(t, dir, "missing_title.json", `{"kind": "story", "description": "d"}`)
	writeChapter(t, dir, "unknown_key.json", `{"kind": "story", "title": "U", "description": "d", "surprise": true}`)

	_, err := LoadContentDir(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 malformed documents")
}

func TestLoadContentDir_MissingDirectory(t *testing.T) {
	_, err := LoadContentDir(filepath.Join(t.TempDir(), "nope"), "")
	assert.Error(t, err)
}
