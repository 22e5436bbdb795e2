package session

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	filePrefix     = "chat_"
	fileExt        = ".json"
	fileTimeLayout = "2006-01-02_15-04-05"

	// sentinelName opts the directory out of Spotlight indexing.
	sentinelName = ".metadata_never_index"

	dirPerm  = 0o755
	filePerm = 0o644
)

// writeFileAtomic writes data to a temp file in the target directory,
// fsyncs it and renames it over path. Readers see the old file or the new
// one, never a torn write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, ".tmp-chat-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := f.Name()

	success := false
	defer func() {
		if !success {
			f.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}

// prepareDir creates dir with intermediates and drops the index sentinel
// the first time it sees the directory.
func prepareDir(dir string) error {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}
	sentinel := filepath.Join(dir, sentinelName)
	if _, err := os.Stat(sentinel); os.IsNotExist(err) {
		if err := os.WriteFile(sentinel, nil, filePerm); err != nil {
			return fmt.Errorf("write index sentinel: %w", err)
		}
	}
	return nil
}

// isSessionFile reports whether name looks like a saved session.
func isSessionFile(name string) bool {
	return len(name) > len(filePrefix)+len(fileExt) &&
		name[:len(filePrefix)] == filePrefix &&
		filepath.Ext(name) == fileExt
}

// Diagnostics is best-effort detail about a sessions directory, logged with
// failed writes and shown by the doctor command.
type Diagnostics struct {
	Dir            string
	ParentWritable bool
	FreeBytes      int64 // -1 when unknown
}

// Diagnose inspects dir, or its nearest existing ancestor when dir does not
// exist yet.
func Diagnose(dir string) Diagnostics {
	d := Diagnostics{Dir: dir, FreeBytes: -1}
	probe := dir
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}
	d.ParentWritable = writable(probe)
	if free, ok := freeBytes(probe); ok {
		d.FreeBytes = free
	}
	return d
}
