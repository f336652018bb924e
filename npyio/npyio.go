// Package npyio writes float64 matrices in the NumPy .npy and .npz formats
// so results can be loaded with numpy.load.
package npyio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

var order = binary.LittleEndian

// The header layout is adapted from: github.com/sbinet/npyio
var magic = [6]byte{'\x93', 'N', 'U', 'M', 'P', 'Y'}

const (
	majorVersion = byte(2)
	minorVersion = byte(0)
	// The data must start on a 64-byte boundary.
	headerAlignment = 64
)

var ErrNotRectangular = errors.New("matrix rows have different lengths")

// WriteMatrix writes m as a 2-D little-endian float64 array in C order.
func WriteMatrix(w io.Writer, m [][]float64) error {
	rows, cols := len(m), 0
	if rows > 0 {
		cols = len(m[0])
	}
	for _, row := range m {
		if len(row) != cols {
			return ErrNotRectangular
		}
	}

	if err := writeHeader(w, rows, cols); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	var buf [8]byte
	for _, row := range m {
		for _, x := range row {
			order.PutUint64(buf[:], math.Float64bits(x))
			if _, err := bw.Write(buf[:]); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

func writeHeader(w io.Writer, rows, cols int) error {
	if err := binary.Write(w, order, magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, order, majorVersion); err != nil {
		return err
	}
	if err := binary.Write(w, order, minorVersion); err != nil {
		return err
	}

	buf := new(bytes.Buffer)
	fmt.Fprintf(buf,
		"{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }",
		rows, cols)

	// magic + version + uint32 header length + header + '\n'
	prefix := len(magic) + 2 + 4
	padding := (headerAlignment - (prefix+buf.Len()+1)%headerAlignment) % headerAlignment
	buf.Write(bytes.Repeat([]byte{'\x20'}, padding))
	buf.WriteByte('\n')

	buflen := int64(buf.Len())
	if err := binary.Write(w, order, uint32(buflen)); err != nil {
		return err
	}

	if n, err := io.Copy(w, buf); err != nil {
		return err
	} else if n < buflen {
		return io.ErrShortWrite
	}

	return nil
}

var shapeRe = regexp.MustCompile(`'shape': \((\d+), (\d+)\)`)

// ReadMatrix reads a 2-D array written by WriteMatrix.
func ReadMatrix(r io.Reader) ([][]float64, error) {
	var prefix [len(magic) + 2]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, errors.Wrap(err, "read magic")
	}
	if !bytes.Equal(prefix[:len(magic)], magic[:]) {
		return nil, errors.New("not a .npy file")
	}
	if prefix[len(magic)] != majorVersion {
		return nil, errors.Errorf("unsupported .npy version %d", prefix[len(magic)])
	}

	var hdrLen uint32
	if err := binary.Read(r, order, &hdrLen); err != nil {
		return nil, errors.Wrap(err, "read header length")
	}

	hdr := make([]byte, hdrLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	if !bytes.Contains(hdr, []byte("'descr': '<f8'")) {
		return nil, errors.Errorf("unsupported dtype in header %q", hdr)
	}

	match := shapeRe.FindSubmatch(hdr)
	if match == nil {
		return nil, errors.Errorf("unsupported shape in header %q", hdr)
	}
	rows, _ := strconv.Atoi(string(match[1]))
	cols, _ := strconv.Atoi(string(match[2]))

	br := bufio.NewReader(r)
	m := make([][]float64, rows)
	var buf [8]byte
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			if _, err := io.ReadFull(br, buf[:]); err != nil {
				return nil, errors.Wrapf(err, "read element (%d, %d)", i, j)
			}
			m[i][j] = math.Float64frombits(order.Uint64(buf[:]))
		}
	}

	return m, nil
}
