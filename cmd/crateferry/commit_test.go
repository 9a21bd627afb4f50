package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsukumogami/crateferry/internal/config"
	"github.com/tsukumogami/crateferry/internal/install"
	"github.com/tsukumogami/crateferry/internal/schedule"
	"github.com/tsukumogami/crateferry/internal/track"
)

func testEntry(t *testing.T, pkg, version string) schedule.PlanEntry {
	t.Helper()
	src := filepath.Join(t.TempDir(), pkg)
	require.NoError(t, os.WriteFile(src, []byte("binary"), 0o755))
	return schedule.PlanEntry{
		Package:  pkg,
		Version:  version,
		Strategy: "metadata",
		BinPaths: map[string]string{pkg: src},
	}
}

func TestCommitEntryForceDropsTrackedRecordEvenUnderNoTrack(t *testing.T) {
	root := t.TempDir()
	cfg := config.NewConfig(root)
	require.NoError(t, cfg.EnsureDirectories())
	tracker := track.NewTracker(cfg.ManifestDB)

	_, err := tracker.Put(context.Background(), track.InstallRecord{
		Name:        "fd",
		Version:     "1.0.0",
		InstalledAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	noTrackFlag = true
	forceFlag = true
	defer func() { noTrackFlag = false; forceFlag = false }()

	installer := install.New(install.Options{
		ToolsDir: filepath.Join(cfg.MetaDir, "tools"),
		BinDir:   cfg.InstallRoot,
	})

	entry := testEntry(t, "fd", "2.0.0")
	require.NoError(t, commitEntry(context.Background(), cfg, tracker, installer, entry))

	existing, err := tracker.Lookup(context.Background(), "fd", "1.0.0")
	require.NoError(t, err)
	assert.Nil(t, existing, "force must drop the prior record even under --no-track")
}

func TestCommitEntryNoTrackWithoutForceRefusesExistingBinFile(t *testing.T) {
	root := t.TempDir()
	cfg := config.NewConfig(root)
	require.NoError(t, cfg.EnsureDirectories())
	tracker := track.NewTracker(cfg.ManifestDB)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.InstallRoot, "fd"), []byte("existing"), 0o755))

	noTrackFlag = true
	forceFlag = false
	defer func() { noTrackFlag = false }()

	installer := install.New(install.Options{
		ToolsDir: filepath.Join(cfg.MetaDir, "tools"),
		BinDir:   cfg.InstallRoot,
	})

	entry := testEntry(t, "fd", "2.0.0")
	err := commitEntry(context.Background(), cfg, tracker, installer, entry)
	assert.ErrorIs(t, err, errBinConflict)
}

func TestCommitEntryTracksByDefault(t *testing.T) {
	root := t.TempDir()
	cfg := config.NewConfig(root)
	require.NoError(t, cfg.EnsureDirectories())
	tracker := track.NewTracker(cfg.ManifestDB)

	installer := install.New(install.Options{
		ToolsDir: filepath.Join(cfg.MetaDir, "tools"),
		BinDir:   cfg.InstallRoot,
	})

	entry := testEntry(t, "fd", "1.0.0")
	require.NoError(t, commitEntry(context.Background(), cfg, tracker, installer, entry))

	existing, err := tracker.Lookup(context.Background(), "fd", "1.0.0")
	require.NoError(t, err)
	require.NotNil(t, existing)
}
