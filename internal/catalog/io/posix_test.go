package io

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicholsn/opencga/internal/common"
)

func TestPosixWorkspaceLayout(t *testing.T) {
	root := t.TempDir()
	m, err := NewPosixManager(root)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.CreateUser(ctx, "nacho"))
	require.NoError(t, m.CreateStudy(ctx, "nacho", 1, 2))
	require.NoError(t, m.CreateFolder(ctx, "nacho", 1, 2, "data/vcfs/"))

	info, err := os.Stat(filepath.Join(root, "users", "nacho", "projects", "1", "2", "data", "vcfs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	outDir, err := m.CreateJobOutDir(ctx, "nacho", 1, 2, 7)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "users", "nacho", "projects", "1", "2", "jobs", "7"), outDir)
	assert.DirExists(t, outDir)
}

func TestPosixExistsAndDelete(t *testing.T) {
	m, err := NewPosixManager(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.CreateFolder(ctx, "nacho", 1, 2, "data/"))

	ok, err := m.Exists(ctx, "nacho", 1, 2, "data/")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Exists(ctx, "nacho", 1, 2, "missing/")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.DeleteFile(ctx, "nacho", 1, 2, "data/"))
	ok, err = m.Exists(ctx, "nacho", 1, 2, "data/")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting something already gone is not an error.
	require.NoError(t, m.DeleteFile(ctx, "nacho", 1, 2, "data/"))
}

func TestPosixRejectsEscapingPaths(t *testing.T) {
	m, err := NewPosixManager(t.TempDir())
	require.NoError(t, err)

	err = m.CreateFolder(context.Background(), "nacho", 1, 2, "../../../../../../etc")
	assert.True(t, common.IsErrInvalidArgument(err))
}

func TestPosixRequiresRoot(t *testing.T) {
	_, err := NewPosixManager("")
	assert.True(t, common.IsErrInvalidArgument(err))
}
