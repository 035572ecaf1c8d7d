// Package npy reads and writes NumPy .npy version 1.0 files for the dense
// arrays exchanged with the upstream embedding and classifier tooling.
// Supported dtypes are little-endian float32/float64 and bool, C order,
// one or two dimensions.
package npy

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/scgenomics/doubletect/internal/errors"
)

var magic = []byte("\x93NUMPY")

const headerAlign = 64

type header struct {
	descr        string
	fortranOrder bool
	shape        []int
}

func (h *header) elements() int {
	n := 1
	for _, d := range h.shape {
		n *= d
	}
	return n
}

// WriteVector writes a 1-D float64 array as <f8.
func WriteVector(path string, data []float64) error {
	buf := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return writeFile(path, "<f8", []int{len(data)}, buf)
}

// WriteMatrix writes a 2-D float32 array as <f4. All rows must have the same
// length; an empty matrix is rejected.
func WriteMatrix(path string, data [][]float32) error {
	if len(data) == 0 {
		return errors.Newf("npy: empty matrix").Component("npy").Category(errors.CategoryValidation).Build()
	}
	cols := len(data[0])
	buf := make([]byte, 0, 4*len(data)*cols)
	scratch := make([]byte, 4)
	for i, row := range data {
		if len(row) != cols {
			return errors.Newf("npy: ragged matrix: row %d has %d columns, want %d", i, len(row), cols).
				Component("npy").
				Category(errors.CategoryValidation).
				Build()
		}
		for _, v := range row {
			binary.LittleEndian.PutUint32(scratch, math.Float32bits(v))
			buf = append(buf, scratch...)
		}
	}
	return writeFile(path, "<f4", []int{len(data), cols}, buf)
}

// WriteBoolVector writes a 1-D bool array as |b1.
func WriteBoolVector(path string, data []bool) error {
	buf := make([]byte, len(data))
	for i, v := range data {
		if v {
			buf[i] = 1
		}
	}
	return writeFile(path, "|b1", []int{len(data)}, buf)
}

// ReadVector reads a 1-D float array (either <f4 or <f8) as float64.
func ReadVector(path string) ([]float64, error) {
	h, data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if len(h.shape) != 1 {
		return nil, shapeError(path, h.shape, "1-D vector")
	}
	return decodeFloats(h, data)
}

// ReadMatrix reads a 2-D float array (either <f4 or <f8) as float32 rows.
func ReadMatrix(path string) ([][]float32, error) {
	h, data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if len(h.shape) != 2 {
		return nil, shapeError(path, h.shape, "2-D matrix")
	}
	flat, err := decodeFloats(h, data)
	if err != nil {
		return nil, err
	}
	rows, cols := h.shape[0], h.shape[1]
	out := make([][]float32, rows)
	for r := range rows {
		row := make([]float32, cols)
		for c := range cols {
			row[c] = float32(flat[r*cols+c])
		}
		out[r] = row
	}
	return out, nil
}

// ReadBoolVector reads a 1-D |b1 array.
func ReadBoolVector(path string) ([]bool, error) {
	h, data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if len(h.shape) != 1 {
		return nil, shapeError(path, h.shape, "1-D vector")
	}
	if h.descr != "|b1" {
		return nil, errors.Newf("npy: %s: dtype %s is not bool", path, h.descr).
			Component("npy").
			Category(errors.CategoryFileParsing).
			Build()
	}
	out := make([]bool, h.elements())
	for i, b := range data[:len(out)] {
		out[i] = b != 0
	}
	return out, nil
}

func decodeFloats(h *header, data []byte) ([]float64, error) {
	n := h.elements()
	out := make([]float64, n)
	switch h.descr {
	case "<f8":
		if len(data) < 8*n {
			return nil, truncatedError(h, len(data))
		}
		for i := range n {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
		}
	case "<f4":
		if len(data) < 4*n {
			return nil, truncatedError(h, len(data))
		}
		for i := range n {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:])))
		}
	default:
		return nil, errors.Newf("npy: unsupported dtype %s", h.descr).
			Component("npy").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return out, nil
}

func shapeError(path string, shape []int, want string) error {
	return errors.Newf("npy: %s: shape %v is not a %s", path, shape, want).
		Component("npy").
		Category(errors.CategoryFileParsing).
		Build()
}

func truncatedError(h *header, got int) error {
	return errors.Newf("npy: truncated data: %d bytes for shape %v dtype %s", got, h.shape, h.descr).
		Component("npy").
		Category(errors.CategoryFileParsing).
		Build()
}

func writeFile(path, descr string, shape []int, data []byte) error {
	f, err := os.Create(path) //nolint:gosec // path comes from application settings
	if err != nil {
		return errors.New(err).Component("npy").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	defer f.Close() //nolint:errcheck // close error surfaced by the flush below

	w := bufio.NewWriter(f)
	if err := writeHeader(w, descr, shape); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.New(err).Component("npy").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	if err := w.Flush(); err != nil {
		return errors.New(err).Component("npy").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	return f.Sync()
}

func writeHeader(w io.Writer, descr string, shape []int) error {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
	}
	shapeStr := strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += "," // numpy 1-D tuples carry a trailing comma
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%s), }", descr, shapeStr)

	// Pad with spaces so the data section starts on a 64 byte boundary,
	// newline terminated as the format requires.
	headerLen := len(magic) + 2 + 2 + len(dict) + 1
	pad := (headerAlign - headerLen%headerAlign) % headerAlign
	dict += strings.Repeat(" ", pad) + "\n"

	if _, err := w.Write(magic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{1, 0}); err != nil { // version 1.0
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(dict))); err != nil { //nolint:gosec // header length bounded
		return err
	}
	_, err := w.Write([]byte(dict))
	return err
}

func readFile(path string) (*header, []byte, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from application settings
	if err != nil {
		return nil, nil, errors.New(err).Component("npy").Category(errors.CategoryFileIO).Context("path", path).Build()
	}

	if len(raw) < len(magic)+4 || string(raw[:len(magic)]) != string(magic) {
		return nil, nil, errors.Newf("npy: %s: not an npy file", path).
			Component("npy").
			Category(errors.CategoryFileParsing).
			Build()
	}
	major := raw[6]
	if major != 1 {
		return nil, nil, errors.Newf("npy: %s: unsupported format version %d", path, major).
			Component("npy").
			Category(errors.CategoryFileParsing).
			Build()
	}
	headerLen := int(binary.LittleEndian.Uint16(raw[8:10]))
	if len(raw) < 10+headerLen {
		return nil, nil, errors.Newf("npy: %s: truncated header", path).
			Component("npy").
			Category(errors.CategoryFileParsing).
			Build()
	}

	h, err := parseHeader(string(raw[10 : 10+headerLen]))
	if err != nil {
		return nil, nil, errors.New(err).Component("npy").Category(errors.CategoryFileParsing).Context("path", path).Build()
	}
	if h.fortranOrder {
		return nil, nil, errors.Newf("npy: %s: fortran order not supported", path).
			Component("npy").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return h, raw[10+headerLen:], nil
}

// parseHeader extracts descr, fortran_order and shape from the python dict
// literal in the npy header.
func parseHeader(dict string) (*header, error) {
	h := &header{}

	descr, err := dictValue(dict, "descr")
	if err != nil {
		return nil, err
	}
	h.descr = strings.Trim(descr, "'\"")

	order, err := dictValue(dict, "fortran_order")
	if err != nil {
		return nil, err
	}
	h.fortranOrder = strings.HasPrefix(order, "True")

	shapeVal, err := dictValue(dict, "shape")
	if err != nil {
		return nil, err
	}
	open := strings.Index(shapeVal, "(")
	closing := strings.Index(shapeVal, ")")
	if open < 0 || closing < open {
		return nil, fmt.Errorf("malformed shape %q", shapeVal)
	}
	for part := range strings.SplitSeq(shapeVal[open+1:closing], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("malformed shape dimension %q", part)
		}
		h.shape = append(h.shape, d)
	}
	if len(h.shape) == 0 || len(h.shape) > 2 {
		return nil, fmt.Errorf("unsupported rank %d", len(h.shape))
	}
	return h, nil
}

// dictValue returns the raw value following "'key':" in the header dict,
// up to the next top-level comma.
func dictValue(dict, key string) (string, error) {
	marker := "'" + key + "':"
	idx := strings.Index(dict, marker)
	if idx < 0 {
		return "", fmt.Errorf("header missing key %q", key)
	}
	rest := strings.TrimSpace(dict[idx+len(marker):])

	// Values are either quoted strings, booleans, or a parenthesized tuple.
	if strings.HasPrefix(rest, "(") {
		end := strings.Index(rest, ")")
		if end < 0 {
			return "", fmt.Errorf("unterminated tuple for key %q", key)
		}
		return rest[:end+1], nil
	}
	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		end = len(rest)
	}
	return strings.TrimSpace(rest[:end]), nil
}
