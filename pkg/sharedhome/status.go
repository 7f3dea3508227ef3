// Package sharedhome reads and writes per-node liveness files in a directory
// shared by every node of the cluster.
//
// Each node owns one file, <home>/node-status/<node id>, holding the decimal
// millisecond timestamp of its last write. Writes go to <node id>.tmp first
// and are renamed over the real file, so readers see either the previous
// value or the new one.
package sharedhome

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-coord/pkg/clock"
	"github.com/dd0wney/cluso-coord/pkg/logging"
)

// StatusDirName is the directory under the shared home holding status files
const StatusDirName = "node-status"

const tmpSuffix = ".tmp"

var (
	ErrInvalidNodeID = errors.New("invalid node id for status file")
	ErrCorruptStatus = errors.New("status file does not hold a timestamp")
)

// Status is the last time a node wrote to the shared home
type Status struct {
	NodeID     string    `json:"node_id"`
	UpdateTime time.Time `json:"update_time"`
}

// FileStore keeps node status files under one shared home
type FileStore struct {
	dir    string
	logger logging.Logger
}

// NewFileStore returns a store rooted at <home>/node-status. The directory is
// created on first write.
func NewFileStore(home string, logger logging.Logger) *FileStore {
	return &FileStore{
		dir:    filepath.Join(home, StatusDirName),
		logger: logging.OrNop(logger).With(logging.Component("sharedhome")),
	}
}

// Dir returns the status directory
func (f *FileStore) Dir() string {
	return f.dir
}

// Read returns the status of nodeID, or nil if the node never wrote one
func (f *FileStore) Read(nodeID string) (*Status, error) {
	path, err := f.pathFor(nodeID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status of %s: %w", nodeID, err)
	}

	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptStatus, path, err)
	}

	return &Status{NodeID: nodeID, UpdateTime: clock.FromMillis(ms)}, nil
}

// Write replaces the status file of status.NodeID
func (f *FileStore) Write(status Status) error {
	path, err := f.pathFor(status.NodeID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	tmp := path + tmpSuffix
	content := strconv.FormatInt(clock.Millis(status.UpdateTime), 10)
	if err := writeSynced(tmp, []byte(content)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write status of %s: %w", status.NodeID, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish status of %s: %w", status.NodeID, err)
	}

	// The rename itself is only durable once the directory entry is synced
	if err := syncDir(f.dir); err != nil {
		return fmt.Errorf("failed to sync status directory: %w", err)
	}
	return nil
}

// Remove deletes the status file of nodeID. Failures are logged and
// otherwise ignored; a missing file is a valid state for readers.
func (f *FileStore) Remove(nodeID string) {
	path, err := f.pathFor(nodeID)
	if err != nil {
		f.logger.Warn("not removing status file", logging.NodeID(nodeID), logging.Error(err))
		return
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.logger.Warn("failed to remove status file", logging.Path(path), logging.Error(err))
	}
}

// ReadAll returns the status of every node with a status file, sorted by
// node id. In-progress .tmp files are skipped.
func (f *FileStore) ReadAll() ([]Status, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list status directory: %w", err)
	}

	statuses := make([]Status, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, tmpSuffix) {
			continue
		}

		status, err := f.Read(name)
		if err != nil {
			return nil, err
		}
		// Removed between ReadDir and Read
		if status == nil {
			continue
		}
		statuses = append(statuses, *status)
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].NodeID < statuses[j].NodeID })
	return statuses, nil
}

func (f *FileStore) pathFor(nodeID string) (string, error) {
	if nodeID == "" || nodeID == "." || nodeID == ".." ||
		strings.ContainsAny(nodeID, `/\`) || strings.HasSuffix(nodeID, tmpSuffix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidNodeID, nodeID)
	}
	return filepath.Join(f.dir, nodeID), nil
}

func writeSynced(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// syncDir flushes directory entries of dir. Filesystems that cannot sync a
// directory report EINVAL or ENOTSUP; the rename is still atomic there.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	err = d.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTSUP) {
		return nil
	}
	return err
}
