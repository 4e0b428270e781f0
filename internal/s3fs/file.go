package s3fs

import (
	"io/fs"
	"time"

	"github.com/minio/minio-go/v7"
)

// A file is an open object. It implements io.ReaderAt and io.Seeker.
type file struct {
	object *minio.Object
	info   *fileInfo
}

func (f *file) Read(p []byte) (int, error) {
	return f.object.Read(p)
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	return f.object.ReadAt(p, off)
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	return f.object.Seek(offset, whence)
}

func (f *file) Stat() (fs.FileInfo, error) {
	return f.info, nil
}

func (f *file) Close() error {
	return f.object.Close()
}

type fileInfo struct {
	name       string
	dir        bool
	objectInfo minio.ObjectInfo
}

func (i *fileInfo) Name() string       { return i.name }
func (i *fileInfo) Size() int64        { return i.objectInfo.Size }
func (i *fileInfo) ModTime() time.Time { return i.objectInfo.LastModified }
func (i *fileInfo) IsDir() bool        { return i.dir }
func (i *fileInfo) Sys() any           { return i.objectInfo }

func (i *fileInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}
