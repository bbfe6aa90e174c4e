package raster

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	verrors "voxelpart/pkg/errors"
)

// nrrdHeader collects the fields of an NRRD header that the reader uses.
// Unknown fields and key:=value pairs are ignored.
type nrrdHeader struct {
	dimension  int
	sizes      []int
	valueType  string
	encoding   string
	bigEndian  bool
	spacings   []float64
	directions [][]float64
	origin     []float64
	hasOrigin  bool
	dataFile   string
}

// Load reads an NRRD file from path and returns it as a Volume.
//
// Supported value types are the fixed-width integers and IEEE floats;
// supported encodings are raw, gzip and text. The grid must be
// 3-dimensional. Per-axis voxel size is taken from the space directions
// field when present, otherwise from spacings, otherwise defaults to 1.
func Load(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, verrors.Wrap(err, verrors.KindSourceNotFound,
			"cannot open raster source %q", path)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	header, err := parseHeader(r, path)
	if err != nil {
		return nil, err
	}

	if header.dataFile != "" {
		return nil, verrors.New(verrors.KindSourceFormat,
			"raster source %q uses a detached data file, which is not supported", path)
	}
	if header.dimension != 3 {
		return nil, verrors.New(verrors.KindDimensionality,
			"raster source %q has dimension %d, partitions require 3", path, header.dimension)
	}
	if len(header.sizes) != 3 {
		return nil, verrors.New(verrors.KindSourceFormat,
			"raster source %q declares %d sizes for dimension 3", path, len(header.sizes))
	}
	for axis, size := range header.sizes {
		if size <= 0 {
			return nil, verrors.New(verrors.KindSourceFormat,
				"raster source %q declares non-positive size %d on axis %d", path, size, axis)
		}
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, verrors.Wrap(err, verrors.KindSourceFormat,
			"cannot read data of raster source %q", path)
	}

	n := header.sizes[0] * header.sizes[1] * header.sizes[2]
	data, err := decodePayload(header, payload, n)
	if err != nil {
		return nil, verrors.Wrap(err, verrors.KindSourceFormat,
			"cannot decode data of raster source %q", path)
	}

	shape := [3]int{header.sizes[0], header.sizes[1], header.sizes[2]}
	voxelSize := header.voxelSize()
	origin := [3]float64{}
	if header.hasOrigin {
		copy(origin[:], header.origin)
	}
	return NewVolume(shape, voxelSize, origin, data)
}

// parseHeader consumes the header lines up to and including the blank
// line that separates the header from the data payload.
func parseHeader(r *bufio.Reader, path string) (*nrrdHeader, error) {
	magic, err := r.ReadString('\n')
	if err != nil {
		return nil, verrors.Wrap(err, verrors.KindSourceFormat,
			"cannot read header of raster source %q", path)
	}
	if !strings.HasPrefix(magic, "NRRD") {
		return nil, verrors.New(verrors.KindSourceFormat,
			"raster source %q is not an NRRD file", path)
	}

	header := &nrrdHeader{encoding: "raw"}
	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, verrors.Wrap(err, verrors.KindSourceFormat,
				"cannot read header of raster source %q", path)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err == io.EOF {
				return nil, verrors.New(verrors.KindSourceFormat,
					"raster source %q has no data section", path)
			}
			return header, nil
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, ":=") {
			// key:=value metadata, not needed by the pipeline
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, verrors.New(verrors.KindSourceFormat,
				"raster source %q has malformed header line %q", path, line)
		}
		if err := header.setField(strings.ToLower(strings.TrimSpace(name)), strings.TrimSpace(value)); err != nil {
			return nil, verrors.Wrap(err, verrors.KindSourceFormat,
				"raster source %q has invalid header field %q", path, name)
		}
	}
}

func (h *nrrdHeader) setField(name, value string) error {
	var err error
	switch name {
	case "dimension":
		h.dimension, err = strconv.Atoi(value)
	case "sizes":
		for _, tok := range strings.Fields(value) {
			size, convErr := strconv.Atoi(tok)
			if convErr != nil {
				return fmt.Errorf("bad size %q: %w", tok, convErr)
			}
			h.sizes = append(h.sizes, size)
		}
	case "type":
		h.valueType = value
	case "encoding":
		h.encoding = strings.ToLower(value)
	case "endian":
		h.bigEndian = strings.EqualFold(value, "big")
	case "spacings":
		h.spacings, err = parseFloats(strings.Fields(value))
	case "space directions":
		tokens, tokErr := splitVectors(value)
		if tokErr != nil {
			return tokErr
		}
		for _, tok := range tokens {
			if strings.EqualFold(tok, "none") {
				continue
			}
			vec, vecErr := parseVector(tok)
			if vecErr != nil {
				return vecErr
			}
			h.directions = append(h.directions, vec)
		}
	case "space origin":
		h.origin, err = parseVector(value)
		h.hasOrigin = err == nil
	case "data file", "datafile":
		h.dataFile = value
	}
	return err
}

// voxelSize derives the per-axis physical cell size: the norm of each
// space direction vector when given, else the spacings, else 1.
func (h *nrrdHeader) voxelSize() [3]float64 {
	size := [3]float64{1, 1, 1}
	if len(h.directions) == 3 {
		for axis, dir := range h.directions {
			var sum float64
			for _, c := range dir {
				sum += c * c
			}
			if norm := math.Sqrt(sum); norm > 0 {
				size[axis] = norm
			}
		}
		return size
	}
	for axis := 0; axis < 3 && axis < len(h.spacings); axis++ {
		if s := h.spacings[axis]; s > 0 && !math.IsNaN(s) {
			size[axis] = s
		}
	}
	return size
}

// splitVectors tokenizes a space directions value into "none" tokens and
// parenthesized vectors. Vectors may contain whitespace after the commas,
// so the value cannot be split on whitespace alone.
func splitVectors(value string) ([]string, error) {
	var tokens []string
	rest := strings.TrimSpace(value)
	for rest != "" {
		if strings.HasPrefix(rest, "(") {
			end := strings.IndexByte(rest, ')')
			if end < 0 {
				return nil, fmt.Errorf("unbalanced vector in %q", value)
			}
			tokens = append(tokens, rest[:end+1])
			rest = strings.TrimSpace(rest[end+1:])
			continue
		}
		word := rest
		if idx := strings.IndexAny(rest, " \t"); idx >= 0 {
			word, rest = rest[:idx], strings.TrimSpace(rest[idx+1:])
		} else {
			rest = ""
		}
		tokens = append(tokens, word)
	}
	return tokens, nil
}

func parseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("bad vector %q", s)
	}
	return parseFloats(strings.Split(s[1:len(s)-1], ","))
}

func parseFloats(tokens []string) ([]float64, error) {
	out := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q: %w", tok, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// decodePayload turns the encoded data section into n float64 cell values.
func decodePayload(h *nrrdHeader, payload []byte, n int) ([]float64, error) {
	switch h.encoding {
	case "raw":
		return decodeRaw(h, payload, n)
	case "gzip", "gz":
		zr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer zr.Close()
		raw, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return decodeRaw(h, raw, n)
	case "text", "txt", "ascii":
		fields := strings.Fields(string(payload))
		if len(fields) < n {
			return nil, fmt.Errorf("text data has %d values, expected %d", len(fields), n)
		}
		return parseFloats(fields[:n])
	default:
		return nil, fmt.Errorf("unsupported encoding %q", h.encoding)
	}
}

// nrrdTypeWidths maps the NRRD type names the reader accepts to their byte
// widths. Aliases follow the NRRD specification.
var nrrdTypeWidths = map[string]int{
	"int8": 1, "signed char": 1, "int8_t": 1,
	"uint8": 1, "uchar": 1, "unsigned char": 1, "uint8_t": 1,
	"int16": 2, "short": 2, "short int": 2, "signed short": 2, "int16_t": 2,
	"uint16": 2, "ushort": 2, "unsigned short": 2, "uint16_t": 2,
	"int32": 4, "int": 4, "signed int": 4, "int32_t": 4,
	"uint32": 4, "uint": 4, "unsigned int": 4, "uint32_t": 4,
	"int64": 8, "long long": 8, "signed long long": 8, "int64_t": 8,
	"uint64": 8, "ulonglong": 8, "unsigned long long": 8, "uint64_t": 8,
	"float": 4, "double": 8,
}

func decodeRaw(h *nrrdHeader, raw []byte, n int) ([]float64, error) {
	width, ok := nrrdTypeWidths[strings.ToLower(h.valueType)]
	if !ok {
		return nil, fmt.Errorf("unsupported value type %q", h.valueType)
	}
	if len(raw) < n*width {
		return nil, fmt.Errorf("data section has %d bytes, expected %d", len(raw), n*width)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if h.bigEndian {
		order = binary.BigEndian
	}

	valueType := strings.ToLower(h.valueType)
	out := make([]float64, n)
	for idx := 0; idx < n; idx++ {
		chunk := raw[idx*width:]
		switch {
		case valueType == "float":
			out[idx] = float64(math.Float32frombits(order.Uint32(chunk)))
		case valueType == "double":
			out[idx] = math.Float64frombits(order.Uint64(chunk))
		case width == 1 && isSigned(valueType):
			out[idx] = float64(int8(chunk[0]))
		case width == 1:
			out[idx] = float64(chunk[0])
		case width == 2 && isSigned(valueType):
			out[idx] = float64(int16(order.Uint16(chunk)))
		case width == 2:
			out[idx] = float64(order.Uint16(chunk))
		case width == 4 && isSigned(valueType):
			out[idx] = float64(int32(order.Uint32(chunk)))
		case width == 4:
			out[idx] = float64(order.Uint32(chunk))
		case width == 8 && isSigned(valueType):
			out[idx] = float64(int64(order.Uint64(chunk)))
		default:
			out[idx] = float64(order.Uint64(chunk))
		}
	}
	return out, nil
}

func isSigned(valueType string) bool {
	switch valueType {
	case "int8", "signed char", "int8_t",
		"int16", "short", "short int", "signed short", "int16_t",
		"int32", "int", "signed int", "int32_t",
		"int64", "long long", "signed long long", "int64_t":
		return true
	}
	return false
}

// Save writes the volume to path as an NRRD file with double values.
// Encoding must be one of raw, gzip or text. Used for exports and test
// fixtures; the pipeline itself only reads.
func Save(path string, v *Volume, encoding string) error {
	f, err := os.Create(path)
	if err != nil {
		return verrors.Wrap(err, verrors.KindSourceNotFound,
			"cannot create raster file %q", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "NRRD0004")
	fmt.Fprintln(w, "type: double")
	fmt.Fprintln(w, "dimension: 3")
	fmt.Fprintf(w, "sizes: %d %d %d\n", v.Shape[0], v.Shape[1], v.Shape[2])
	fmt.Fprintf(w, "spacings: %g %g %g\n", v.VoxelSize[0], v.VoxelSize[1], v.VoxelSize[2])
	fmt.Fprintf(w, "space origin: (%g,%g,%g)\n", v.Origin[0], v.Origin[1], v.Origin[2])
	fmt.Fprintln(w, "endian: little")
	fmt.Fprintf(w, "encoding: %s\n", encoding)
	fmt.Fprintln(w)

	switch encoding {
	case "raw":
		if err := writeRaw(w, v.data); err != nil {
			return err
		}
	case "gzip", "gz":
		zw := gzip.NewWriter(w)
		if err := writeRaw(zw, v.data); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
	case "text", "txt", "ascii":
		for idx, value := range v.data {
			if idx > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprintf(w, "%g", value)
		}
		fmt.Fprintln(w)
	default:
		return verrors.New(verrors.KindSourceFormat, "unsupported encoding %q", encoding)
	}
	return w.Flush()
}

func writeRaw(w io.Writer, data []float64) error {
	buf := make([]byte, 8)
	for _, value := range data {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(value))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
