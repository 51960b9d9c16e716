package source

import (
	"fmt"

	"github.com/spf13/afero"
)

// NewFs roots an afero filesystem at dir. An empty dir is the whole OS
// filesystem.
func NewFs(dir string) (afero.Fs, error) {
	fs := afero.NewOsFs()
	if dir == "" {
		return fs, nil
	}
	if exists, err := afero.DirExists(fs, dir); err != nil {
		return nil, err
	} else if !exists {
		return nil, fmt.Errorf("dir %s not exists", dir)
	}
	return afero.NewBasePathFs(fs, dir), nil
}
