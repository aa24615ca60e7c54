package volume

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrUnreadableVolume reports that a volume file could not be parsed.
// Every reader failure wraps it, so callers can classify any load
// failure with a single errors.Is check.
var ErrUnreadableVolume = errors.New("unreadable volume file")

// avsMagic is the signature every AVS field file starts with.
const avsMagic = "# AVS"

// avsHeader collects the declarations parsed from an AVS field header.
type avsHeader struct {
	// ndim is the declared number of dimensions, only 3 is supported
	ndim int

	// dims holds the grid size per axis as declared by dim1..dim3
	dims [3]int

	// veclen is the declared samples per grid point, only 1 is supported
	veclen int

	// bytesPerSample is 1 for byte data and 2 for short data
	bytesPerSample int

	// field is the declared field layout, only uniform is supported
	field string
}

// ReadAVS parses an AVS field file into a Volume.
//
// The format is an ASCII header terminated by a form feed pair followed
// by the raw sample payload. The header must declare a uniform field of
// three dimensions with one byte or little-endian short sample per grid
// point. Byte samples widen unsigned; short samples keep their sign.
//
// Parameters:
//   - r: Source of the raw field file bytes
//
// Returns:
//   - The parsed volume
//   - An error wrapping ErrUnreadableVolume if the file cannot be parsed
func ReadAVS(r io.Reader) (*Volume, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableVolume, err)
	}
	if len(raw) < len(avsMagic) || string(raw[:len(avsMagic)]) != avsMagic {
		return nil, fmt.Errorf("%w: missing %q signature", ErrUnreadableVolume, avsMagic)
	}
	sep := bytes.IndexByte(raw, '\f')
	if sep < 0 || sep+1 >= len(raw) || raw[sep+1] != '\f' {
		return nil, fmt.Errorf("%w: header is not terminated by a form feed pair", ErrUnreadableVolume)
	}

	hdr, err := parseAVSHeader(string(raw[:sep]))
	if err != nil {
		return nil, err
	}

	n := hdr.dims[0] * hdr.dims[1] * hdr.dims[2]
	payload := raw[sep+2:]
	if want := n * hdr.bytesPerSample; len(payload) < want {
		return nil, fmt.Errorf("%w: payload holds %d bytes, need %d", ErrUnreadableVolume, len(payload), want)
	}

	data := make([]int16, n)
	switch hdr.bytesPerSample {
	case 1:
		for i := range data {
			data[i] = int16(payload[i])
		}
	case 2:
		for i := range data {
			data[i] = int16(binary.LittleEndian.Uint16(payload[2*i:]))
		}
	}

	vol, err := New(data, hdr.dims[0], hdr.dims[1], hdr.dims[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableVolume, err)
	}
	return vol, nil
}

// LoadAVS reads an AVS field file from disk. Files compressed with gzip
// are detected by their magic bytes and decompressed transparently.
//
// Parameters:
//   - path: Path to the .fld or gzip-compressed .fld file
//
// Returns:
//   - The parsed volume
//   - An error if the file cannot be opened or parsed
func LoadAVS(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableVolume, err)
		}
		defer gz.Close()
		return ReadAVS(gz)
	}
	return ReadAVS(br)
}

// parseAVSHeader parses the ASCII header section of an AVS field file
// and validates that every required declaration is present and
// supported.
func parseAVSHeader(header string) (avsHeader, error) {
	var h avsHeader
	for _, line := range strings.Split(header, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Trailing comments may follow a declaration on the same line.
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return h, fmt.Errorf("%w: malformed header line %q", ErrUnreadableVolume, line)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "ndim":
			d, convErr := strconv.Atoi(value)
			if convErr != nil || d != 3 {
				return h, fmt.Errorf("%w: unsupported ndim %q", ErrUnreadableVolume, value)
			}
			h.ndim = d
		case "dim1", "dim2", "dim3":
			d, convErr := strconv.Atoi(value)
			if convErr != nil || d <= 0 {
				return h, fmt.Errorf("%w: invalid %s value %q", ErrUnreadableVolume, key, value)
			}
			h.dims[key[3]-'1'] = d
		case "veclen":
			if value != "1" {
				return h, fmt.Errorf("%w: unsupported veclen %q", ErrUnreadableVolume, value)
			}
			h.veclen = 1
		case "data":
			switch value {
			case "byte":
				h.bytesPerSample = 1
			case "short":
				h.bytesPerSample = 2
			default:
				return h, fmt.Errorf("%w: unsupported data type %q", ErrUnreadableVolume, value)
			}
		case "field":
			if value != "uniform" {
				return h, fmt.Errorf("%w: unsupported field type %q", ErrUnreadableVolume, value)
			}
			h.field = value
		case "nspace", "min_ext", "max_ext", "variable", "label", "unit", "min_val", "max_val":
			// Accepted for compatibility, not used.
		default:
			return h, fmt.Errorf("%w: unknown header token %q", ErrUnreadableVolume, key)
		}
	}

	if h.ndim != 3 {
		return h, fmt.Errorf("%w: missing ndim declaration", ErrUnreadableVolume)
	}
	for i, d := range h.dims {
		if d <= 0 {
			return h, fmt.Errorf("%w: missing dim%d declaration", ErrUnreadableVolume, i+1)
		}
	}
	if h.veclen != 1 {
		return h, fmt.Errorf("%w: missing veclen declaration", ErrUnreadableVolume)
	}
	if h.bytesPerSample == 0 {
		return h, fmt.Errorf("%w: missing data declaration", ErrUnreadableVolume)
	}
	if h.field == "" {
		return h, fmt.Errorf("%w: missing field declaration", ErrUnreadableVolume)
	}
	return h, nil
}
