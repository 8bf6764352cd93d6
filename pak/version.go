package pak

import "fmt"

// Magic is the little-endian marker stored in every pak footer.
const Magic uint32 = 0x5A6F12E1

// Version identifies a pak layout. Two layouts share major version 8, so the
// layout and the on-disk major number are tracked separately.
type Version int

const (
	V1 Version = iota + 1
	V2
	V3
	V4
	V5
	V6
	V7
	V8A
	V8B
	V9
	V10
	V11
)

// Major version numbers at which the layout changed.
const (
	majorInitial               = 1
	majorCompressionEncryption = 3
	majorIndexEncryption       = 4
	majorEncryptionKeyGUID     = 7
	majorFNameCompression      = 8
	majorFrozenIndex           = 9
	majorPathHashIndex         = 10
)

// versions is the probe order used when detecting the layout of a file.
var versions = []Version{V11, V10, V9, V8B, V8A, V7, V6, V5, V4, V3, V2, V1}

// Major returns the version number written in the footer.
func (v Version) Major() uint32 {
	switch {
	case v <= V7:
		return uint32(v)
	case v == V8A || v == V8B:
		return 8
	default:
		return uint32(v) - 1
	}
}

func (v Version) String() string {
	switch v {
	case V8A:
		return "V8A"
	case V8B:
		return "V8B"
	default:
		return fmt.Sprintf("V%d", v.Major())
	}
}

// compressionSlots is the number of 32 byte compression method names in the footer.
func (v Version) compressionSlots() int {
	switch {
	case v == V8A:
		return 4
	case v >= V8B:
		return 5
	default:
		return 0
	}
}

// FooterSize is the byte length of the footer for this layout.
func (v Version) FooterSize() int64 {
	size := int64(4 + 4 + 8 + 8 + 20) // magic, version, index offset, index size, hash
	if v.Major() >= majorEncryptionKeyGUID {
		size += 16
	}
	if v.Major() >= majorIndexEncryption {
		size++
	}
	if v.Major() == majorFrozenIndex {
		size++
	}
	size += int64(v.compressionSlots()) * 32
	return size
}
