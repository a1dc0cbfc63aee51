package store

import (
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// DirFs roots an OS filesystem at dir, creating it when create is set.
func DirFs(dir string, create bool) (afero.Fs, error) {
	fs := afero.NewOsFs()
	if exists, err := afero.DirExists(fs, dir); err != nil {
		return nil, err
	} else if !exists {
		if !create {
			return nil, errors.Errorf("data dir %s not exists", dir)
		}
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create data dir %s", dir)
		}
	}
	return afero.NewBasePathFs(fs, dir), nil
}
