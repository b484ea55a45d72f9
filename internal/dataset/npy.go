package dataset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/x448/float16"
)

// DType is the element type of a features array on disk.
type DType string

const (
	// Float32 stores features as little-endian IEEE 754 single precision.
	Float32 DType = "float32"
	// Float16 stores features as little-endian IEEE 754 half precision.
	Float16 DType = "float16"
)

// ErrInvalidNpy is returned when a stream is not a version 1.0 .npy file.
var ErrInvalidNpy = errors.New("invalid npy data")

var npyMagic = []byte("\x93NUMPY")

// npyAlign is the alignment of the header end, in bytes.
const npyAlign = 64

// Descr returns the NumPy type descriptor for d.
func (d DType) Descr() (string, error) {
	switch d {
	case Float32, "":
		return "<f4", nil
	case Float16:
		return "<f2", nil
	default:
		return "", fmt.Errorf("unsupported dtype %q", string(d))
	}
}

// Header is the metadata of a .npy array.
type Header struct {
	Descr        string
	FortranOrder bool
	Shape        []int
}

// Len returns the number of elements described by the shape.
func (h Header) Len() int {
	n := 1
	for _, d := range h.Shape {
		n *= d
	}
	return n
}

func shapeLiteral(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// writeHeader writes a version 1.0 header. The dictionary is padded with
// spaces so the data starts on a 64 byte boundary.
func writeHeader(w io.Writer, h Header) error {
	fortran := "False"
	if h.FortranOrder {
		fortran = "True"
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': %s, 'shape': %s, }", h.Descr, fortran, shapeLiteral(h.Shape))

	// magic(6) + version(2) + header length(2) + dict + '\n'
	prefix := len(npyMagic) + 4
	total := prefix + len(dict) + 1
	if rem := total % npyAlign; rem != 0 {
		total += npyAlign - rem
	}
	hlen := total - prefix
	if hlen > 0xffff {
		return fmt.Errorf("npy header too long: %d bytes", hlen)
	}

	var buf bytes.Buffer
	buf.Write(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(hlen))
	buf.WriteString(dict)
	buf.WriteString(strings.Repeat(" ", hlen-len(dict)-1))
	buf.WriteByte('\n')

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFloat32 writes data as a C-order array of the given shape, storing
// elements as dtype.
func WriteFloat32(w io.Writer, shape []int, data []float32, dtype DType) error {
	descr, err := dtype.Descr()
	if err != nil {
		return err
	}

	h := Header{Descr: descr, Shape: shape}
	if h.Len() != len(data) {
		return fmt.Errorf("shape %v holds %d elements, got %d", shape, h.Len(), len(data))
	}

	if err := writeHeader(w, h); err != nil {
		return fmt.Errorf("write npy header: %w", err)
	}

	switch descr {
	case "<f2":
		half := make([]uint16, len(data))
		for i, v := range data {
			half[i] = float16.Fromfloat32(v).Bits()
		}
		err = binary.Write(w, binary.LittleEndian, half)
	default:
		err = binary.Write(w, binary.LittleEndian, data)
	}
	if err != nil {
		return fmt.Errorf("write npy data: %w", err)
	}
	return nil
}

// ReadHeader parses a version 1.0 .npy header, leaving r positioned at the
// first data byte.
func ReadHeader(r io.Reader) (Header, error) {
	prefix := make([]byte, len(npyMagic)+4)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrInvalidNpy, err)
	}
	if !bytes.Equal(prefix[:len(npyMagic)], npyMagic) {
		return Header{}, fmt.Errorf("%w: bad magic", ErrInvalidNpy)
	}
	if prefix[6] != 1 || prefix[7] != 0 {
		return Header{}, fmt.Errorf("%w: version %d.%d", ErrInvalidNpy, prefix[6], prefix[7])
	}

	hlen := binary.LittleEndian.Uint16(prefix[8:])
	raw := make([]byte, hlen)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrInvalidNpy, err)
	}

	return parseDict(strings.TrimSpace(string(raw)))
}

// parseDict reads the three keys NumPy writes into the header dictionary.
func parseDict(dict string) (Header, error) {
	var h Header

	descr, ok := dictValue(dict, "descr")
	if !ok {
		return Header{}, fmt.Errorf("%w: missing descr", ErrInvalidNpy)
	}
	h.Descr = strings.Trim(descr, "'\"")

	fortran, ok := dictValue(dict, "fortran_order")
	if !ok {
		return Header{}, fmt.Errorf("%w: missing fortran_order", ErrInvalidNpy)
	}
	h.FortranOrder = fortran == "True"

	start := strings.Index(dict, "'shape':")
	if start < 0 {
		return Header{}, fmt.Errorf("%w: missing shape", ErrInvalidNpy)
	}
	open := strings.Index(dict[start:], "(")
	end := strings.Index(dict[start:], ")")
	if open < 0 || end < open {
		return Header{}, fmt.Errorf("%w: malformed shape", ErrInvalidNpy)
	}
	for _, tok := range strings.Split(dict[start+open+1:start+end], ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		d, err := strconv.Atoi(tok)
		if err != nil {
			return Header{}, fmt.Errorf("%w: shape entry %q", ErrInvalidNpy, tok)
		}
		h.Shape = append(h.Shape, d)
	}
	return h, nil
}

// dictValue returns the scalar after 'key': up to the next comma.
func dictValue(dict, key string) (string, bool) {
	marker := "'" + key + "':"
	i := strings.Index(dict, marker)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimSpace(dict[i+len(marker):])
	if j := strings.Index(rest, ","); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest), true
}
