package store

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const tempSuffix = ".sumkeeper.tmp"

// writeAtomic writes data to a temp file beside path and renames it over path
func writeAtomic(fs afero.Fs, path string, data []byte) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tempPath := path + tempSuffix
	file, err := fs.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	_, writeErr := file.Write(data)
	syncErr := file.Sync()
	closeErr := file.Close()

	for _, err := range []error{writeErr, syncErr, closeErr} {
		if err != nil {
			fs.Remove(tempPath)
			return err
		}
	}

	if err := fs.Rename(tempPath, path); err != nil {
		fs.Remove(tempPath)
		return err
	}
	return nil
}
