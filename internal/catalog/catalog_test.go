package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "notes-a1", "config.json"), `{
		"id": "a1", "name": "Notes", "url": "https://notes.example.com",
		"description": "", "created_at": 20,
		"engine": {"kind": "webkit"}, "folder": "notes-a1"
	}`)
	writeFile(t, filepath.Join(root, "mail-b2", "config.json"), `{
		"id": "b2", "name": "Mail", "url": "mail.example.com",
		"description": "inbox", "created_at": 10,
		"engine": {"kind": "chromium", "browser": "brave"}, "folder": "mail-b2"
	}`)
	// Not records
	writeFile(t, filepath.Join(root, "broken-c3", "config.json"), `{"id": `)
	writeFile(t, filepath.Join(root, "noid-d4", "config.json"), `{"name": "x"}`)
	writeFile(t, filepath.Join(root, "config.json"), `{"id": "top"}`)
	writeFile(t, filepath.Join(root, "deep", "nested", "config.json"), `{"id": "deep"}`)
	writeFile(t, filepath.Join(root, "notes-a1", "icon.png"), "png")

	records, err := New(root, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, Record{
		ID: "b2", Name: "Mail", URL: "mail.example.com", Description: "inbox",
		CreatedAt: 10, Engine: Engine{Kind: "chromium", Browser: "brave"}, Folder: "mail-b2",
	}, records[0])
	assert.Equal(t, "a1", records[1].ID)
	assert.Equal(t, Engine{Kind: "webkit"}, records[1].Engine)
}

func TestLoadMissingDir(t *testing.T) {
	records, err := New(filepath.Join(t.TempDir(), "absent"), nil).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestLoadCanceled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "config.json"), `{"id":"a"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(root, nil).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBindingsAndFind(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes-a1", "config.json"),
		`{"id":"a1","name":"Notes","url":"https://notes.example.com","created_at":1}`)

	c := New(root, nil)
	ctx := context.Background()

	bindings, err := c.Bindings(ctx)
	require.NoError(t, err)
	assert.Equal(t, []icon.Binding{{AppID: "a1", URL: "https://notes.example.com", Name: "Notes"}}, bindings)

	rec, ok, err := c.Find(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Notes", rec.Name)

	_, ok, err = c.Find(ctx, "zz")
	require.NoError(t, err)
	assert.False(t, ok)
}
