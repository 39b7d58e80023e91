package worker

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nodo1014/indexer-quick/internal/core"
)

// statMedia builds the core.MediaFile record for path from the filesystem,
// used to decide whether incremental indexing can skip it.
func statMedia(path string) (core.MediaFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return core.MediaFile{}, err
	}
	return core.MediaFile{
		Path:         path,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		HasSubtitle:  true,
		Extension:    strings.ToLower(filepath.Ext(path)),
	}, nil
}
