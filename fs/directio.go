package fs

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/ncw/directio"
	"github.com/sharedcode/coverage"
)

// DirectIO exposes unbuffered file operations using O_DIRECT semantics where supported.
// Buffers must come from directio.AlignedBlock and offsets must be block aligned.
type DirectIO interface {
	Open(ctx context.Context, filename string, flag int, permission os.FileMode) (*os.File, error)
	WriteAt(ctx context.Context, file *os.File, block []byte, offset int64) (int, error)
	ReadAt(ctx context.Context, file *os.File, block []byte, offset int64) (int, error)
	Close(file *os.File) error
}

type directIO struct{}

// NewDirectIO returns a DirectIO backed by github.com/ncw/directio.
func NewDirectIO() DirectIO {
	return directIO{}
}

func (dio directIO) Open(ctx context.Context, filename string, flag int, permission os.FileMode) (*os.File, error) {
	var f *os.File
	err := coverage.RetryIO(ctx, coverage.FileIOError, func(context.Context) error {
		var e error
		f, e = directio.OpenFile(filename, flag, permission)
		return e
	})
	return f, err
}

func (dio directIO) WriteAt(ctx context.Context, file *os.File, block []byte, offset int64) (int, error) {
	var n int
	err := coverage.RetryIO(ctx, coverage.FileIOError, func(context.Context) error {
		var e error
		n, e = file.WriteAt(block, offset)
		return e
	})
	return n, err
}

func (dio directIO) ReadAt(ctx context.Context, file *os.File, block []byte, offset int64) (int, error) {
	var n int
	err := coverage.RetryIO(ctx, coverage.FileIOError, func(context.Context) error {
		var e error
		n, e = file.ReadAt(block, offset)
		return e
	})
	return n, err
}

func (dio directIO) Close(file *os.File) error {
	return file.Close()
}

// headerSize prefixes every direct-I/O file with the payload length.
const headerSize = 8

// directFileIO is a FileIO writing whole files through direct I/O. Files are laid out as an
// 8 byte little endian payload length, the payload, then zero padding up to the block size.
// Directory operations go through the default FileIO.
type directFileIO struct {
	defaultFileIO
	directIO DirectIO
}

// NewDirectFileIO returns a FileIO that bypasses the OS page cache for blob reads and writes,
// which suits large tile payloads read once. A nil dio means NewDirectIO().
func NewDirectFileIO(dio DirectIO) FileIO {
	if dio == nil {
		dio = NewDirectIO()
	}
	return directFileIO{directIO: dio}
}

func alignedSize(n int) int {
	if r := n % directio.BlockSize; r != 0 {
		return n + directio.BlockSize - r
	}
	return n
}

func (fio directFileIO) WriteFile(ctx context.Context, name string, data []byte, perm os.FileMode) error {
	block := directio.AlignedBlock(alignedSize(headerSize + len(data)))
	binary.LittleEndian.PutUint64(block, uint64(len(data)))
	copy(block[headerSize:], data)

	f, err := fio.directIO.Open(ctx, name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := fio.directIO.WriteAt(ctx, f, block, 0); err != nil {
		fio.directIO.Close(f)
		return err
	}
	return fio.directIO.Close(f)
}

func (fio directFileIO) ReadFile(ctx context.Context, name string) ([]byte, error) {
	st, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	size := int(st.Size())
	if size < headerSize || size%directio.BlockSize != 0 {
		return nil, fmt.Errorf("file %s is not a direct-io blob (size %d)", name, size)
	}
	f, err := fio.directIO.Open(ctx, name, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer fio.directIO.Close(f)

	block := directio.AlignedBlock(size)
	if _, err := fio.directIO.ReadAt(ctx, f, block, 0); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint64(block)
	if n > uint64(size-headerSize) {
		return nil, fmt.Errorf("file %s has a corrupted length header %d", name, n)
	}
	r := make([]byte, n)
	copy(r, block[headerSize:])
	return r, nil
}
