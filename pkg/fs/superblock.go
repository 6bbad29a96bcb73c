package fs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	superBlockOffset = 1024
	superBlockMagic  = 0xEF53
)

// superBlock is the leading part of the ext4 superblock, up to the fields we
// need to identify a filesystem.
//
// | Group 0 padding | 1024 bytes
// | ext4 superblock | 1024 bytes
//
// https://ext4.wiki.kernel.org/index.php/Ext4_Disk_Layout
type superBlock struct {
	InodesCount        uint32
	BlocksCountLow     uint32
	RootBlocksCountLow uint32
	FreeBlocksCountLow uint32
	FreeInodesCount    uint32
	FirstDataBlock     uint32
	LogBlockSize       uint32
	LogClusterSize     uint32
	BlocksPerGroup     uint32
	ClustersPerGroup   uint32
	InodesPerGroup     uint32
	Mtime              uint32
	Wtime              uint32
	MountCount         uint16
	MaxMountCount      uint16
	Magic              uint16
	State              uint16
	Errors             uint16
	MinorRevisionLevel uint16
	LastCheck          uint32
	CheckInterval      uint32
	CreatorOS          uint32
	RevisionLevel      uint32
	DefaultReservedUid uint16
	DefaultReservedGid uint16
	FirstInode         uint32
	InodeSize          uint16
	BlockGroupNr       uint16
	FeatureCompat      uint32
	FeatureIncompat    uint32
	FeatureRoCompat    uint32
	UUID               [16]byte
	VolumeName         [16]byte
	LastMounted        [64]byte
}

func readSuperBlock(r io.ReaderAt) (*superBlock, error) {
	var sb superBlock
	section := io.NewSectionReader(r, superBlockOffset, int64(binary.Size(sb)))
	if err := binary.Read(section, binary.LittleEndian, &sb); err != nil {
		return nil, fmt.Errorf("read superblock: %w", err)
	}

	if sb.Magic != superBlockMagic {
		return nil, ErrNotExt4
	}
	return &sb, nil
}

func (sb *superBlock) blockSize() int64 {
	return 1024 << sb.LogBlockSize
}

func (sb *superBlock) sizeBytes() int64 {
	return sb.blockSize() * int64(sb.BlocksCountLow)
}

func (sb *superBlock) label() string {
	return string(bytes.TrimRight(sb.VolumeName[:], "\x00"))
}
