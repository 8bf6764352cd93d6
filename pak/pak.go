// Package pak reads the index of Unreal Engine pak files.
//
// Only the parts needed to enumerate packed records are decoded: the footer,
// the mount point and the record names. Entry payloads are never read.
package pak

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf16"
)

var (
	// ErrMagic is returned when no supported footer layout matches the file.
	ErrMagic = errors.New("pak footer magic not found")
	// ErrEncryptedIndex is returned for paks whose index is encrypted.
	ErrEncryptedIndex = errors.New("pak index is encrypted")
	// ErrFrozenIndex is returned for V9 paks using the frozen index layout.
	ErrFrozenIndex = errors.New("frozen pak index is not supported")
	// ErrNoDirectoryIndex is returned for path-hash paks without a full directory index.
	ErrNoDirectoryIndex = errors.New("pak has no full directory index")
)

// deletedLocation marks a directory index record that points at no entry.
const deletedLocation = 0x80000000

// Footer is the fixed trailer of a pak file.
type Footer struct {
	Version     Version
	Encrypted   bool
	Frozen      bool
	IndexOffset uint64
	IndexSize   uint64
}

// Reader holds the decoded index of a pak file.
type Reader struct {
	Footer     Footer
	mountPoint string
	files      []string
}

// NewReader detects the pak layout of r and decodes its index.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	footer, err := readFooter(r, size)
	if err != nil {
		return nil, err
	}
	if footer.Encrypted {
		return nil, ErrEncryptedIndex
	}
	if footer.Frozen {
		return nil, ErrFrozenIndex
	}

	index, err := readSection(r, size, footer.IndexOffset, footer.IndexSize)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	p := &Reader{Footer: footer}
	c := &cursor{buf: index}
	if p.mountPoint, err = c.string(); err != nil {
		return nil, fmt.Errorf("read mount point: %w", err)
	}
	count, err := c.u32()
	if err != nil {
		return nil, fmt.Errorf("read record count: %w", err)
	}

	if footer.Version.Major() >= majorPathHashIndex {
		p.files, err = readPathHashIndex(r, size, c)
	} else {
		p.files, err = readLegacyIndex(c, footer.Version, count)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// MountPoint is the path prefix declared by the index.
func (p *Reader) MountPoint() string { return p.mountPoint }

// Files returns the record paths in index order.
func (p *Reader) Files() []string { return p.files }

func readFooter(r io.ReaderAt, size int64) (Footer, error) {
	for _, v := range versions {
		fsize := v.FooterSize()
		if size < fsize {
			continue
		}
		buf := make([]byte, fsize)
		if _, err := r.ReadAt(buf, size-fsize); err != nil {
			return Footer{}, fmt.Errorf("read footer: %w", err)
		}
		c := &cursor{buf: buf}
		f := Footer{Version: v}
		if v.Major() >= majorEncryptionKeyGUID {
			c.skip(16)
		}
		if v.Major() >= majorIndexEncryption {
			b, _ := c.u8()
			f.Encrypted = b != 0
		}
		magic, _ := c.u32()
		major, _ := c.u32()
		if magic != Magic || major != v.Major() {
			continue
		}
		f.IndexOffset, _ = c.u64()
		f.IndexSize, _ = c.u64()
		c.skip(20)
		if v.Major() == majorFrozenIndex {
			b, _ := c.u8()
			f.Frozen = b != 0
		}
		return f, nil
	}
	return Footer{}, ErrMagic
}

func readSection(r io.ReaderAt, size int64, offset, length uint64) ([]byte, error) {
	if offset > uint64(size) || length > uint64(size)-offset {
		return nil, fmt.Errorf("section [%d,+%d) outside file of %d bytes", offset, length, size)
	}
	buf := make([]byte, length)
	if _, err := r.ReadAt(buf, int64(offset)); err != nil {
		return nil, err
	}
	return buf, nil
}

func readLegacyIndex(c *cursor, v Version, count uint32) ([]string, error) {
	// every record needs at least 48 bytes of name prefix and entry
	if uint64(count)*48 > uint64(c.remaining()) {
		return nil, fmt.Errorf("record count %d exceeds index size", count)
	}
	files := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := c.string()
		if err != nil {
			return nil, fmt.Errorf("read record %d name: %w", i, err)
		}
		if err := skipEntry(c, v); err != nil {
			return nil, fmt.Errorf("read record %d (%s): %w", i, name, err)
		}
		files = append(files, name)
	}
	return files, nil
}

func skipEntry(c *cursor, v Version) error {
	c.skip(8 + 8 + 8) // offset, compressed size, uncompressed size
	var compression uint32
	if v == V8A {
		b, err := c.u8()
		if err != nil {
			return err
		}
		compression = uint32(b)
	} else {
		var err error
		if compression, err = c.u32(); err != nil {
			return err
		}
	}
	if v.Major() == majorInitial {
		c.skip(8) // timestamp
	}
	c.skip(20) // sha1
	if v.Major() >= majorCompressionEncryption {
		if compression != 0 {
			blocks, err := c.u32()
			if err != nil {
				return err
			}
			if uint64(blocks)*16 > uint64(c.remaining()) {
				return fmt.Errorf("block count %d exceeds index size", blocks)
			}
			c.skip(int(blocks) * 16)
		}
		c.skip(1 + 4) // flags, compression block size
	}
	return c.err
}

func readPathHashIndex(r io.ReaderAt, size int64, c *cursor) ([]string, error) {
	c.skip(8) // path hash seed
	hasPathHash, err := c.u32()
	if err != nil {
		return nil, err
	}
	if hasPathHash != 0 {
		c.skip(8 + 8 + 20)
	}
	hasDirectory, err := c.u32()
	if err != nil {
		return nil, err
	}
	if hasDirectory == 0 {
		return nil, ErrNoDirectoryIndex
	}
	offset, _ := c.u64()
	length, _ := c.u64()
	c.skip(20)
	if c.err != nil {
		return nil, c.err
	}

	dirIndex, err := readSection(r, size, offset, length)
	if err != nil {
		return nil, fmt.Errorf("read directory index: %w", err)
	}
	d := &cursor{buf: dirIndex}
	dirs, err := d.u32()
	if err != nil {
		return nil, err
	}
	var files []string
	for i := uint32(0); i < dirs; i++ {
		dir, err := d.string()
		if err != nil {
			return nil, fmt.Errorf("read directory %d: %w", i, err)
		}
		if len(dir) > 0 && dir[0] == '/' {
			dir = dir[1:]
		}
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < n; j++ {
			name, err := d.string()
			if err != nil {
				return nil, fmt.Errorf("read file %d of %q: %w", j, dir, err)
			}
			location, err := d.u32()
			if err != nil {
				return nil, err
			}
			if location == deletedLocation {
				continue
			}
			files = append(files, dir+name)
		}
	}
	return files, nil
}

// cursor decodes little-endian values from an in-memory index. The first
// failure sticks so callers may chain reads and check once.
type cursor struct {
	buf []byte
	off int
	err error
}

func (c *cursor) remaining() int { return len(c.buf) - c.off }

func (c *cursor) next(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || n > c.remaining() {
		c.err = io.ErrUnexpectedEOF
		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b
}

func (c *cursor) skip(n int) { c.next(n) }

func (c *cursor) u8() (uint8, error) {
	b := c.next(1)
	if b == nil {
		return 0, c.err
	}
	return b[0], nil
}

func (c *cursor) u32() (uint32, error) {
	b := c.next(4)
	if b == nil {
		return 0, c.err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) u64() (uint64, error) {
	b := c.next(8)
	if b == nil {
		return 0, c.err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// string reads an FString: a signed length counting the terminator, followed
// by bytes when positive or UTF-16LE units when negative. Byte strings are
// returned as stored; they are not guaranteed to be valid UTF-8.
func (c *cursor) string() (string, error) {
	n, err := c.u32()
	if err != nil {
		return "", err
	}
	length := int32(n)
	switch {
	case length == 0:
		return "", nil
	case length > 0:
		b := c.next(int(length))
		if b == nil {
			return "", c.err
		}
		if b[len(b)-1] == 0 {
			b = b[:len(b)-1]
		}
		return string(b), nil
	default:
		units := -int64(length)
		if units*2 > int64(c.remaining()) {
			c.err = io.ErrUnexpectedEOF
			return "", c.err
		}
		b := c.next(int(units) * 2)
		u := make([]uint16, units)
		for i := range u {
			u[i] = binary.LittleEndian.Uint16(b[i*2:])
		}
		if len(u) > 0 && u[len(u)-1] == 0 {
			u = u[:len(u)-1]
		}
		if !validUTF16(u) {
			return "", errors.New("invalid UTF-16 string")
		}
		return string(utf16.Decode(u)), nil
	}
}

func validUTF16(u []uint16) bool {
	for i := 0; i < len(u); i++ {
		switch {
		case u[i] >= 0xD800 && u[i] < 0xDC00:
			if i+1 >= len(u) || u[i+1] < 0xDC00 || u[i+1] >= 0xE000 {
				return false
			}
			i++
		case u[i] >= 0xDC00 && u[i] < 0xE000:
			return false
		}
	}
	return true
}
