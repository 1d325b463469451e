// Package static gathers assets from source directories into a single
// serving root.
package static

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Result summarizes a collection run.
type Result struct {
	Copied  int
	Skipped int
}

// Collect copies every file under the source directories into root,
// keeping relative paths. Files whose size and modification time match
// the destination are left alone, so repeated runs are cheap. Later
// sources win on path collisions.
func Collect(sourceDirs []string, root string) (*Result, error) {
	if root == "" {
		return nil, fmt.Errorf("static root is not configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create static root: %w", err)
	}

	result := &Result{}
	for _, dir := range sourceDirs {
		if err := collectDir(dir, root, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func collectDir(dir, root string, result *Result) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("static source %s is not a directory", dir)
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(root, rel)

		same, err := upToDate(path, dst)
		if err != nil {
			return err
		}
		if same {
			result.Skipped++
			return nil
		}

		if err := copyFile(path, dst); err != nil {
			return err
		}
		result.Copied++
		return nil
	})
}

func upToDate(src, dst string) (bool, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	dstInfo, err := os.Stat(dst)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return srcInfo.Size() == dstInfo.Size() && !srcInfo.ModTime().After(dstInfo.ModTime()), nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
