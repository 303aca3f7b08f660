package fileutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BackupSuffix 마지막 정상본 사본의 접미사
const BackupSuffix = ".backup"

// BackupPath returns the sibling backup path for path
func BackupPath(path string) string {
	return path + BackupSuffix
}

// WriteJSONAtomic writes v to path with the crash-safe contract shared by every store:
//  1. marshal to a uniquely-named temp file in the same directory and fsync it
//  2. re-read the temp file and validate it (decode into validate's target)
//  3. copy the current file (if any) to <path>.backup
//  4. rename the temp file over path
//
// validate may be nil; when set it receives the re-read bytes.
// ⭐ SSOT: 원자적 파일 쓰기는 이 함수에서만
func WriteJSONAtomic(path string, v any, validate func([]byte) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.tmp_%s", path, uuid.NewString())
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeSynced(tmpPath, data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	written, err := os.ReadFile(tmpPath)
	if err != nil {
		return fmt.Errorf("re-read temp file: %w", err)
	}
	if validate != nil {
		if err := validate(written); err != nil {
			return fmt.Errorf("validate temp file: %w", err)
		}
	} else if !json.Valid(written) {
		return errors.New("validate temp file: invalid json")
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if err := CopyFile(path, BackupPath(path)); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadJSONWithBackup decodes path through decode; when the primary is missing,
// unreadable or fails to decode it retries with the backup sibling.
// It reports which file was used. os.ErrNotExist only when neither file exists.
func ReadJSONWithBackup(path string, decode func([]byte) error) (usedBackup bool, err error) {
	data, primaryErr := os.ReadFile(path)
	if primaryErr == nil {
		if primaryErr = decode(data); primaryErr == nil {
			return false, nil
		}
	}

	backup, err := os.ReadFile(BackupPath(path))
	if err != nil {
		if errors.Is(primaryErr, os.ErrNotExist) && errors.Is(err, os.ErrNotExist) {
			return false, primaryErr
		}
		return false, fmt.Errorf("primary: %v; backup: %v", primaryErr, err)
	}
	if err := decode(backup); err != nil {
		return false, fmt.Errorf("primary: %v; backup: %w", primaryErr, err)
	}
	return true, nil
}

// CopyFile copies src to dst, replacing dst
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
