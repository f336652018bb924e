package npyio

import (
	"bufio"
	"io"
	"os"

	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
)

// Array is one named entry of an .npz archive. The ".npy" suffix is added
// to Name when writing.
type Array struct {
	Name string
	Data [][]float64
}

// WriteNPZ writes arrays as a compressed .npz archive, in order.
func WriteNPZ(w io.Writer, arrays []Array) error {
	z := zip.NewWriter(w)
	for _, a := range arrays {
		f, err := z.Create(a.Name + ".npy")
		if err != nil {
			return errors.Wrapf(err, "create %s", a.Name)
		}

		if err := WriteMatrix(f, a.Data); err != nil {
			return errors.Wrapf(err, "write %s", a.Name)
		}
	}

	return z.Close()
}

func MakeNPZ(arrays []Array, output string) error {
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	b := bufio.NewWriter(f)
	if err := WriteNPZ(b, arrays); err != nil {
		return err
	}

	if err := b.Flush(); err != nil {
		return err
	}

	return f.Close()
}
