package handlers

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"atamind/internal/media"
)

// publicUploads serves story media from the uploads directory.
// Directory listings and voice recordings are reported as missing; recordings are
// only reachable through the authenticated recording audio route.
type publicUploads struct {
	fs http.FileSystem
}

func (u publicUploads) Open(name string) (http.File, error) {
	if strings.HasPrefix(path.Base(name), media.RecordingPrefix+"_") {
		return nil, fs.ErrNotExist
	}

	f, err := u.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

// UploadsHandler serves story media files under /uploads/
func UploadsHandler(dir string) http.Handler {
	return http.StripPrefix("/uploads/", http.FileServer(publicUploads{fs: http.Dir(dir)}))
}
