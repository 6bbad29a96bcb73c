package fs

import "context"

// Engine opens disks, identifies ext4 filesystems on them and hands them to a
// Mounter.
type Engine struct {
	mounter Mounter
}

func NewEngine(mounter Mounter) *Engine {
	return &Engine{mounter: mounter}
}

func (e *Engine) OpenDisk(ctx context.Context, path string) (Disk, error) {
	d, err := OpenBlockDevice(path)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// OpenFileSystem takes ownership of d only on success.
func (e *Engine) OpenFileSystem(ctx context.Context, d Disk) (FileSystem, error) {
	fsys, err := OpenExt4(d)
	if err != nil {
		return nil, err
	}
	return fsys, nil
}

func (e *Engine) Mount(ctx context.Context, fsys FileSystem, mountpoint string, onReady func()) error {
	return e.mounter.Mount(ctx, fsys, mountpoint, onReady)
}
