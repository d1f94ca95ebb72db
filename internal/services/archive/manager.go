package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/common"
	"github.com/ternarybob/sitebatch/internal/interfaces"
)

// GroupDeleter is the slice of the job store the reaper needs
type GroupDeleter interface {
	DeleteGroup(ctx context.Context, groupID string) error
}

// Manager owns the archive lifecycle: outputs/<gid>/** is the raw artefact
// tree workers write into; results/<gid>.zip is the public bundle. The raw
// directory and the archive are never both present as sources of truth.
type Manager struct {
	outputsDir string
	resultsDir string
	store      GroupDeleter
	logger     arbor.ILogger
	reapMu     sync.Mutex
}

// NewManager creates the archive manager and ensures the results directory
// exists.
func NewManager(config *common.ArchiveConfig, store GroupDeleter, logger arbor.ILogger) (*Manager, error) {
	if err := os.MkdirAll(config.ResultsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &Manager{
		outputsDir: config.OutputsDir,
		resultsDir: config.ResultsDir,
		store:      store,
		logger:     logger,
	}, nil
}

// RawDir returns the raw output directory for a group
func (m *Manager) RawDir(groupID string) string {
	return filepath.Join(m.outputsDir, groupID)
}

// ZipPath returns the public archive path for a group
func (m *Manager) ZipPath(groupID string) string {
	return filepath.Join(m.resultsDir, groupID+".zip")
}

// Archive bundles outputs/<gid>/** into results/<gid>.zip with paths
// relative to the outputs root, then removes the raw directory. A missing
// raw directory means there is nothing to archive, not an error. The zip is
// written to a temporary file and promoted with an atomic rename only after
// a fully successful write.
func (m *Manager) Archive(groupID string) (bool, error) {
	rawDir := m.RawDir(groupID)
	if _, err := os.Stat(rawDir); os.IsNotExist(err) {
		return false, nil
	}

	tmpPath := filepath.Join(m.outputsDir, groupID+".zip.tmp")
	if err := m.buildZip(rawDir, tmpPath); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to build archive for group %s: %w", groupID, err)
	}

	finalPath := m.ZipPath(groupID)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("failed to promote archive for group %s: %w", groupID, err)
	}

	if err := os.RemoveAll(rawDir); err != nil {
		m.logger.Warn().Err(err).Str("group_id", groupID).Msg("Failed to remove raw output directory")
	}

	m.logger.Info().Str("group_id", groupID).Str("path", finalPath).Msg("Group archived")
	return true, nil
}

// Remove deletes the archive file if present; reports whether it existed
func (m *Manager) Remove(groupID string) bool {
	err := os.Remove(m.ZipPath(groupID))
	if err != nil {
		return false
	}
	m.logger.Debug().Str("group_id", groupID).Msg("Archive removed")
	return true
}

// Ensure returns the archive path, building it lazily from the raw outputs
// when absent. ErrNotFound when neither exists.
func (m *Manager) Ensure(groupID string) (string, error) {
	zipPath := m.ZipPath(groupID)
	if _, err := os.Stat(zipPath); err == nil {
		return zipPath, nil
	}

	created, err := m.Archive(groupID)
	if err != nil {
		return "", err
	}
	if !created {
		return "", fmt.Errorf("no artefacts for group %s: %w", groupID, interfaces.ErrNotFound)
	}
	return zipPath, nil
}

// Reap deletes every archive older than retention together with its raw
// directory and its job store rows. Returns the removed group ids. Safe to
// re-run and to run concurrently with operations on unrelated groups.
func (m *Manager) Reap(ctx context.Context, retention time.Duration) ([]string, error) {
	m.reapMu.Lock()
	defer m.reapMu.Unlock()

	entries, err := os.ReadDir(m.resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan results directory: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	var removed []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".zip") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue // still recent
		}

		groupID := strings.TrimSuffix(entry.Name(), ".zip")

		// Store rows first (cascades items); a group already deleted by an
		// explicit delete is fine.
		if m.store != nil {
			if err := m.store.DeleteGroup(ctx, groupID); err != nil && !isNotFound(err) {
				m.logger.Warn().Err(err).Str("group_id", groupID).Msg("Reaper failed to delete group rows")
				continue
			}
		}

		if err := os.Remove(filepath.Join(m.resultsDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Str("group_id", groupID).Msg("Reaper failed to delete archive")
			continue
		}
		if err := os.RemoveAll(m.RawDir(groupID)); err != nil {
			m.logger.Warn().Err(err).Str("group_id", groupID).Msg("Reaper failed to delete raw directory")
		}

		removed = append(removed, groupID)
	}

	if len(removed) > 0 {
		m.logger.Info().Int("count", len(removed)).Strs("group_ids", removed).Msg("Reaper removed expired groups")
	}
	return removed, nil
}

func (m *Manager) buildZip(rawDir, tmpPath string) error {
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	writer := zip.NewWriter(out)
	walkErr := filepath.WalkDir(rawDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		// Store paths relative to the outputs root so the bundle keeps the
		// <gid>/... structure
		relPath, err := filepath.Rel(m.outputsDir, path)
		if err != nil {
			return err
		}

		entry, err := writer.Create(filepath.ToSlash(relPath))
		if err != nil {
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(entry, file)
		file.Close()
		return err
	})

	if walkErr != nil {
		writer.Close()
		out.Close()
		return walkErr
	}
	if err := writer.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func isNotFound(err error) bool {
	return errors.Is(err, interfaces.ErrNotFound)
}
