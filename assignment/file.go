package assignment

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kaiju-coding/codejudge/evaluation"
	"github.com/kaiju-coding/codejudge/pkg/apperr"
)

var _ Store = &FileStore{}

// FileStore reads <dir>/<assignment id>.yaml
type FileStore struct {
	dir string
}

// NewFileStore creates a store over the directory
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// FetchTestCases implements Store
func (s *FileStore) FetchTestCases(ctx context.Context, id string) ([]evaluation.TestCase, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(s.dir, id+".yaml"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(id)
		}
		return nil, apperr.Internal(err, "read assignment %s", id)
	}
	return decode(id, b)
}
