package tiling

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// BlobFileExt is the conventional extension of a plan blob on disk.
const BlobFileExt = ".tiling"

// WriteBlobFile encodes p and writes it to path. The file is written next to
// its final name and renamed into place, so readers never see a partial blob.
func WriteBlobFile(path string, p *Plan) error {
	blob, err := Encode(p)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "create blob file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write blob file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close blob file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "rename blob file")
}

// BlobFile is a plan blob mapped read-only from disk. Bytes stays valid
// until Close.
type BlobFile struct {
	file   *os.File
	data   []byte
	mapped bool
	closed bool
}

// OpenBlobFile maps the blob at path and checks its framing (magic, version,
// size and checksum). The plan itself is decoded by Plan.
func OpenBlobFile(path string) (*BlobFile, error) {
	//nolint:gosec // G304: plan files are named by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open blob file")
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "stat blob file")
	}
	if stat.Size() < int64(BlobSize(0)) {
		_ = f.Close()
		return nil, errors.Wrapf(ErrTruncated, "%s: %d bytes", path, stat.Size())
	}

	data, mapped, err := mapFile(f, stat.Size())
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "map blob file")
	}
	bf := &BlobFile{file: f, data: data, mapped: mapped}
	if _, err := Decode(data); err != nil {
		_ = bf.Close()
		return nil, errors.Wrap(err, path)
	}
	return bf, nil
}

// Bytes returns the mapped blob. The slice is read-only.
func (bf *BlobFile) Bytes() []byte {
	return bf.data
}

// Plan decodes the mapped blob.
func (bf *BlobFile) Plan() (*Plan, error) {
	if bf.closed {
		return nil, errors.New("blob file is closed")
	}
	return Decode(bf.data)
}

// Close unmaps and closes the file. It is safe to call more than once.
func (bf *BlobFile) Close() error {
	if bf.closed {
		return nil
	}
	bf.closed = true

	var err error
	if bf.mapped {
		err = unmapFile(bf.data)
	}
	bf.data = nil
	if cerr := bf.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
