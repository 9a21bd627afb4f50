// Package track persists InstallRecords for installed packages, guarded
// by a process-wide advisory file lock (spec.md §4.J).
package track

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/tsukumogami/crateferry/internal/ferr"
)

// InstallRecord is one installed (name, version) pair's metadata.
type InstallRecord struct {
	Name        string            `json:"name"`
	Version     string            `json:"version"`
	Strategy    string            `json:"strategy,omitempty"`
	Target      string            `json:"target,omitempty"`
	Binaries    map[string]string `json:"binaries,omitempty"`
	InstalledAt time.Time         `json:"installed_at"`
}

// manifestDoc is the on-disk shape: name -> version -> record, the same
// two-level map the teacher's ToolState.Versions uses for multi-version
// tracking.
type manifestDoc struct {
	Records map[string]map[string]InstallRecord `json:"records"`
}

func emptyManifest() *manifestDoc {
	return &manifestDoc{Records: make(map[string]map[string]InstallRecord)}
}

// lockTimeout bounds how long Tracker waits for the advisory lock before
// giving up with a ferr.Concurrency error.
const lockTimeout = 30 * time.Second

// lockPollInterval is how often TryLockContext retries acquisition.
const lockPollInterval = 50 * time.Millisecond

// Tracker reads and writes one manifest file.
type Tracker struct {
	path string
}

// NewTracker builds a Tracker for the manifest at path.
func NewTracker(path string) *Tracker {
	return &Tracker{path: path}
}

func (t *Tracker) lockPath() string {
	return t.path + ".lock"
}

func (t *Tracker) withLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return ferr.New(ferr.Filesystem, "track.lock", "", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	fl := flock.New(t.lockPath())
	locked, err := fl.TryLockContext(lockCtx, lockPollInterval)
	if err != nil {
		return ferr.New(ferr.Concurrency, "track.lock", "", err)
	}
	if !locked {
		return ferr.New(ferr.Concurrency, "track.lock", "", context.DeadlineExceeded)
	}
	defer fl.Unlock()

	return fn()
}

// Load reads the manifest. A missing file is not an error; it reads as
// empty. Reads take the same exclusive lock writes do, held only for the
// duration of the read — flock only exposes OS-level exclusive/shared
// locking, and shared-lock semantics differ enough across platforms that
// a short-held exclusive read keeps behavior identical everywhere.
func (t *Tracker) Load(ctx context.Context) (*manifestDoc, error) {
	var doc *manifestDoc
	err := t.withLock(ctx, func() error {
		loaded, err := t.readUnlocked()
		if err != nil {
			return err
		}
		doc = loaded
		return nil
	})
	return doc, err
}

func (t *Tracker) readUnlocked() (*manifestDoc, error) {
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return emptyManifest(), nil
	}
	if err != nil {
		return nil, ferr.New(ferr.Filesystem, "track.load", "", err)
	}

	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ferr.New(ferr.Configuration, "track.load", "", err)
	}
	if doc.Records == nil {
		doc.Records = make(map[string]map[string]InstallRecord)
	}
	return &doc, nil
}

func (t *Tracker) save(doc *manifestDoc) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ferr.New(ferr.Configuration, "track.save", "", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return ferr.New(ferr.Filesystem, "track.save", "", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return ferr.New(ferr.Filesystem, "track.save", "", err)
	}
	return nil
}

// Lookup returns the record for (name, version), if any.
func (t *Tracker) Lookup(ctx context.Context, name, version string) (*InstallRecord, error) {
	doc, err := t.Load(ctx)
	if err != nil {
		return nil, err
	}
	versions, ok := doc.Records[name]
	if !ok {
		return nil, nil
	}
	rec, ok := versions[version]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Put records name/version's install, returning any other version of the
// same package already on record (the caller is responsible for removing
// its files — Put only updates the manifest). Every prior version is
// dropped from the manifest in the process: crateferry tracks one active
// version per package.
func (t *Tracker) Put(ctx context.Context, record InstallRecord) (*InstallRecord, error) {
	var displaced *InstallRecord
	err := t.withLock(ctx, func() error {
		doc, err := t.readUnlocked()
		if err != nil {
			return err
		}

		if versions, ok := doc.Records[record.Name]; ok {
			for v, rec := range versions {
				if v != record.Version {
					r := rec
					displaced = &r
				}
			}
		}

		doc.Records[record.Name] = map[string]InstallRecord{record.Version: record}
		return t.save(doc)
	})
	return displaced, err
}

// Remove deletes name's record entirely, regardless of version.
func (t *Tracker) Remove(ctx context.Context, name string) error {
	return t.withLock(ctx, func() error {
		doc, err := t.readUnlocked()
		if err != nil {
			return err
		}
		delete(doc.Records, name)
		return t.save(doc)
	})
}
