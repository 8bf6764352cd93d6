package mirror

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
)

// progressInterval is the number of bytes between DownloadProgress calls.
const progressInterval = 256 << 10

// verifyingReader hashes what passes through it and fails the read that
// completes the content when the md5 does not match. The check runs at the
// announced size or at EOF, whichever comes first.
type verifyingReader struct {
	r        io.Reader
	h        hash.Hash
	want     string
	size     int64
	n        int64
	checked  bool
	err      error
	progress func(n int64)
	reported int64
}

func newVerifyingReader(r io.Reader, md5Hex string, size int64, progress func(int64)) *verifyingReader {
	return &verifyingReader{r: r, h: md5.New(), want: strings.ToLower(md5Hex), size: size, progress: progress}
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	if n > 0 {
		if v.checked {
			v.err = fmt.Errorf("%w: more than the announced %d bytes", ErrChecksumMismatch, v.size)
			return 0, v.err
		}
		v.h.Write(p[:n])
		v.n += int64(n)
		if v.progress != nil && v.n-v.reported >= progressInterval {
			v.progress(v.n - v.reported)
			v.reported = v.n
		}
	}
	if err != nil && err != io.EOF {
		v.err = err
		return n, err
	}
	if !v.checked && (err == io.EOF || (v.size > 0 && v.n >= v.size)) {
		v.checked = true
		if v.progress != nil && v.n > v.reported {
			v.progress(v.n - v.reported)
			v.reported = v.n
		}
		if got := hex.EncodeToString(v.h.Sum(nil)); got != v.want {
			v.err = fmt.Errorf("%w: expected %s, got %s (%d bytes)", ErrChecksumMismatch, v.want, got, v.n)
			return 0, v.err
		}
	}
	return n, err
}
