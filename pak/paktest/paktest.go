// Package paktest builds synthetic pak files and zip archives for tests.
package paktest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"path"

	"modio-mod-indexer/pak"
)

// DefaultMount is the mount point used by most shipped mods.
const DefaultMount = "../../../FSD/"

// Pak describes the index of a pak to build.
type Pak struct {
	Version    pak.Version
	MountPoint string
	Files      []string
}

// Build encodes p. Entry payloads are empty; only the index is meaningful.
func Build(p Pak) []byte {
	if p.Version == 0 {
		p.Version = pak.V11
	}
	var out bytes.Buffer
	var index []byte
	if p.Version.Major() >= 10 {
		index = pathHashIndex(p, &out)
	} else {
		index = legacyIndex(p)
	}
	indexOffset := uint64(out.Len())
	out.Write(index)
	out.Write(footer(p.Version, indexOffset, uint64(len(index))))
	return out.Bytes()
}

// Zip wraps files into a zip archive, in the given order.
func Zip(files ...File) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.Create(f.Name)
		if err != nil {
			panic(err)
		}
		if _, err := fw.Write(f.Body); err != nil {
			panic(err)
		}
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// File is one zip member.
type File struct {
	Name string
	Body []byte
}

// Archive is a zip holding a single pak named after the mod.
func Archive(p Pak) []byte {
	return Zip(File{Name: "Mod.pak", Body: Build(p)})
}

func legacyIndex(p Pak) []byte {
	var b bytes.Buffer
	putString(&b, p.MountPoint)
	putU32(&b, uint32(len(p.Files)))
	for _, f := range p.Files {
		putString(&b, f)
		putU64(&b, 0) // offset
		putU64(&b, 0) // compressed
		putU64(&b, 0) // uncompressed
		if p.Version == pak.V8A {
			b.WriteByte(0)
		} else {
			putU32(&b, 0)
		}
		if p.Version.Major() == 1 {
			putU64(&b, 0)
		}
		b.Write(make([]byte, 20))
		if p.Version.Major() >= 3 {
			b.WriteByte(0)
			putU32(&b, 0)
		}
	}
	return b.Bytes()
}

// pathHashIndex writes the full directory index into out and returns the
// primary index that references it.
func pathHashIndex(p Pak, out *bytes.Buffer) []byte {
	var dirs []string
	byDir := map[string][]string{}
	for _, f := range p.Files {
		dir := path.Dir(f)
		if dir == "." {
			dir = "/"
		} else {
			dir = "/" + dir + "/"
		}
		if _, ok := byDir[dir]; !ok {
			dirs = append(dirs, dir)
		}
		byDir[dir] = append(byDir[dir], path.Base(f))
	}

	var fdi bytes.Buffer
	putU32(&fdi, uint32(len(dirs)))
	for _, dir := range dirs {
		putString(&fdi, dir)
		putU32(&fdi, uint32(len(byDir[dir])))
		for i, name := range byDir[dir] {
			putString(&fdi, name)
			putU32(&fdi, uint32(i))
		}
	}
	fdiOffset := uint64(out.Len())
	out.Write(fdi.Bytes())

	var b bytes.Buffer
	putString(&b, p.MountPoint)
	putU32(&b, uint32(len(p.Files)))
	putU64(&b, 0) // path hash seed
	putU32(&b, 0) // no path hash index
	putU32(&b, 1)
	putU64(&b, fdiOffset)
	putU64(&b, uint64(fdi.Len()))
	b.Write(make([]byte, 20))
	putU32(&b, 0) // encoded entries size
	putU32(&b, 0) // unencoded entries
	return b.Bytes()
}

func footer(v pak.Version, offset, size uint64) []byte {
	var b bytes.Buffer
	if v.Major() >= 7 {
		b.Write(make([]byte, 16))
	}
	if v.Major() >= 4 {
		b.WriteByte(0)
	}
	putU32(&b, pak.Magic)
	putU32(&b, v.Major())
	putU64(&b, offset)
	putU64(&b, size)
	b.Write(make([]byte, 20))
	if v.Major() == 9 {
		b.WriteByte(0)
	}
	switch {
	case v == pak.V8A:
		b.Write(make([]byte, 4*32))
	case v >= pak.V8B:
		b.Write(make([]byte, 5*32))
	}
	return b.Bytes()
}

// putString writes a NUL terminated byte FString.
func putString(b *bytes.Buffer, s string) {
	if s == "" {
		putU32(b, 0)
		return
	}
	putU32(b, uint32(len(s)+1))
	b.WriteString(s)
	b.WriteByte(0)
}

func putU32(b *bytes.Buffer, v uint32) {
	_ = binary.Write(b, binary.LittleEndian, v)
}

func putU64(b *bytes.Buffer, v uint64) {
	_ = binary.Write(b, binary.LittleEndian, v)
}
