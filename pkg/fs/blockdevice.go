package fs

import (
	"fmt"
	"io"
	"os"
)

// BlockDevice is a read-only handle on a device node or an image file.
type BlockDevice struct {
	path      string
	file      *os.File
	sizeBytes int64
	isBlock   bool
}

// OpenBlockDevice opens path read-only. Directories and other special files
// are rejected with ErrNotADisk.
func OpenBlockDevice(path string) (*BlockDevice, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	mode := info.Mode()
	isBlock := mode&os.ModeDevice != 0 && mode&os.ModeCharDevice == 0
	if !isBlock && !mode.IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotADisk, path)
	}

	size := info.Size()
	if isBlock {
		// device nodes report a zero size in stat
		end, err := f.Seek(0, io.SeekEnd)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("determine size of %s: %w", path, err)
		}
		size = end
	}

	return &BlockDevice{
		path:      path,
		file:      f,
		sizeBytes: size,
		isBlock:   isBlock,
	}, nil
}

func (d *BlockDevice) ReadAt(p []byte, off int64) (int, error) {
	return d.file.ReadAt(p, off)
}

func (d *BlockDevice) Path() string {
	return d.path
}

func (d *BlockDevice) Size() int64 {
	return d.sizeBytes
}

func (d *BlockDevice) IsBlockDevice() bool {
	return d.isBlock
}

func (d *BlockDevice) Close() error {
	return d.file.Close()
}
