package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modio-mod-indexer/pak"
	"modio-mod-indexer/pak/paktest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		mount  string
		record string
		want   string
	}{
		{"stock mount", "../../../FSD/", "Content/Mod/A.uasset", "FSD/Content/Mod/A.uasset"},
		{"mount without trailing slash", "../../../FSD", "Content/A.uasset", "FSD/Content/A.uasset"},
		{"bare prefix mount", "../../../", "FSD/Content/A.uasset", "FSD/Content/A.uasset"},
		{"dot components", "../../.././FSD/", "./Content//A.uasset", "FSD/Content/A.uasset"},
		{"record equals mount", "../../../", "", ""},
		{"deeper mount still resolves to root", "../../../../../../", "FSD/A.uasset", "FSD/A.uasset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.mount, tt.record, DefaultContainmentPrefix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePrefixMismatch(t *testing.T) {
	tests := []struct {
		name   string
		mount  string
		record string
	}{
		{"shallow mount", "../../FSD/", "Content/A.uasset"},
		{"root mount", "/", "Content/A.uasset"},
		{"absolute record replaces mount", "../../../FSD/", "/Game/A.uasset"},
		{"component lookalike", "../../..FSD/", "A.uasset"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.mount, tt.record, DefaultContainmentPrefix)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrPrefixMismatch), "got %v", err)

			var pathErr *PathError
			require.True(t, errors.As(err, &pathErr))
			assert.Equal(t, tt.mount, pathErr.MountPoint)
			assert.Equal(t, tt.record, pathErr.RecordPath)
		})
	}
}

func TestNormalizeNonRepresentable(t *testing.T) {
	_, err := Normalize("../../../FSD/", "Content/\xff\xfe.uasset", DefaultContainmentPrefix)
	assert.True(t, errors.Is(err, ErrNonRepresentablePath), "got %v", err)
	assert.Contains(t, err.Error(), "mount point")
}

func TestNormalizeNeverKeepsPrefix(t *testing.T) {
	prefix := components(DefaultContainmentPrefix)
	mounts := []string{"../../../", "../../../FSD/", "../../../../", "../../../../../../../x/", "../../../FSD/../"}
	records := []string{"", "A", "Content/A.uasset", "../B", "./C/D"}
	for _, m := range mounts {
		for _, r := range records {
			got, err := Normalize(m, r, DefaultContainmentPrefix)
			require.NoError(t, err, "mount %q record %q", m, r)
			assert.False(t, hasPrefix(components(got), prefix), "mount %q record %q gave %q", m, r, got)
		}
	}
}

func TestNormalizeCustomPrefix(t *testing.T) {
	got, err := Normalize("/Game/", "Maps/A.umap", "/Game")
	require.NoError(t, err)
	assert.Equal(t, "Maps/A.umap", got)

	_, err = Normalize("../../../FSD/", "A", "/Game")
	assert.True(t, errors.Is(err, ErrPrefixMismatch))
}

func TestSplitPath(t *testing.T) {
	str := func(s string) *string { return &s }
	tests := []struct {
		path  string
		noExt string
		ext   *string
		stem  *string
	}{
		{"FSD/Content/A.uasset", "FSD/Content/A", str("uasset"), str("A")},
		{"FSD/Content/A.tar.gz", "FSD/Content/A.tar", str("gz"), str("A.tar")},
		{"FSD/README", "FSD/README", nil, str("README")},
		{"FSD/.hidden", "FSD/.hidden", nil, str(".hidden")},
		{"FSD/trailing.", "FSD/trailing", str(""), str("trailing")},
		{"", "", nil, nil},
		{"FSD/", "FSD/", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := SplitPath(tt.path)
			assert.Equal(t, tt.path, got.Path)
			assert.Equal(t, tt.noExt, got.PathNoExtension)
			assert.Equal(t, tt.ext, got.Extension)
			assert.Equal(t, tt.stem, got.Stem)
		})
	}
}

func TestIndex(t *testing.T) {
	files := []string{"Content/Mod/A.uasset", "Content/Mod/A.uexp", "Content/B.umap"}
	want := []string{"FSD/Content/Mod/A.uasset", "FSD/Content/Mod/A.uexp", "FSD/Content/B.umap"}

	for _, v := range []pak.Version{pak.V3, pak.V8B, pak.V11} {
		t.Run(v.String(), func(t *testing.T) {
			data := paktest.Archive(paktest.Pak{Version: v, MountPoint: paktest.DefaultMount, Files: files})
			got, err := Indexer{}.Index(bytes.NewReader(data), int64(len(data)))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestIndexIsDeterministic(t *testing.T) {
	data := paktest.Archive(paktest.Pak{MountPoint: paktest.DefaultMount, Files: []string{"Content/A.uasset", "Content/Sub/B.uasset", "C.txt"}})
	ix := NewIndexer("", "")

	first, err := ix.Index(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	second, err := ix.Index(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestIndexPicksFirstPackageEntry(t *testing.T) {
	first := paktest.Build(paktest.Pak{MountPoint: paktest.DefaultMount, Files: []string{"Content/First.uasset"}})
	second := paktest.Build(paktest.Pak{MountPoint: paktest.DefaultMount, Files: []string{"Content/Second.uasset"}})
	data := paktest.Zip(
		paktest.File{Name: "readme.txt", Body: []byte("hello")},
		paktest.File{Name: "pak/", Body: nil},
		paktest.File{Name: "Mod_P.PAK", Body: first},
		paktest.File{Name: "Other.pak", Body: second},
	)

	got, err := Indexer{}.Index(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, []string{"FSD/Content/First.uasset"}, got)
}

func TestIndexErrors(t *testing.T) {
	badRecord := paktest.Archive(paktest.Pak{MountPoint: "../../FSD/", Files: []string{"Content/A.uasset"}})
	noPak := paktest.Zip(paktest.File{Name: "readme.txt", Body: []byte("no pak here")})
	badPak := paktest.Zip(paktest.File{Name: "Mod.pak", Body: []byte("definitely not a pak")})

	tests := []struct {
		name string
		data []byte
		kind Kind
	}{
		{"not a zip", []byte("plain bytes"), KindContainerCorrupt},
		{"no package entry", noPak, KindMissingPackageEntry},
		{"empty zip", paktest.Zip(), KindMissingPackageEntry},
		{"package format", badPak, KindPackageFormat},
		{"record outside prefix", badRecord, KindPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Indexer{}.Index(bytes.NewReader(tt.data), int64(len(tt.data)))
			require.Error(t, err)
			assert.Nil(t, got)

			var indexErr *IndexError
			require.True(t, errors.As(err, &indexErr))
			assert.Equal(t, tt.kind, indexErr.Kind)
		})
	}

	_, err := Indexer{}.Index(bytes.NewReader(noPak), int64(len(noPak)))
	assert.True(t, errors.Is(err, ErrMissingPackageEntry))
	_, err = Indexer{}.Index(bytes.NewReader(badRecord), int64(len(badRecord)))
	assert.True(t, errors.Is(err, ErrPrefixMismatch))
}

func TestIndexFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abc.zip")
	data := paktest.Archive(paktest.Pak{MountPoint: paktest.DefaultMount, Files: []string{"Content/A.uasset"}})
	require.NoError(t, os.WriteFile(path, data, 0644))

	got, err := Indexer{}.IndexFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"FSD/Content/A.uasset"}, got)

	fromMemory, err := Indexer{}.Index(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, fromMemory, got)

	_, err = Indexer{}.IndexFile(filepath.Join(dir, "missing.zip"))
	var indexErr *IndexError
	require.True(t, errors.As(err, &indexErr))
	assert.Equal(t, KindIO, indexErr.Kind)
	assert.True(t, strings.Contains(err.Error(), "IoError"))
}
