package volume

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// buildAVS assembles a field file from a header body and a raw payload,
// inserting the form feed pair that separates them
func buildAVS(header string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString("# AVS field file\n")
	buf.WriteString(header)
	buf.WriteString("\f\f")
	buf.Write(payload)
	return buf.Bytes()
}

// TestReadAVSShortData verifies parsing of little-endian short samples,
// including negative densities
func TestReadAVSShortData(t *testing.T) {
	header := "ndim=3\ndim1=2\ndim2=2\ndim3=1\nveclen=1\ndata=short\nfield=uniform\n"
	payload := []byte{
		0x01, 0x00, // 1
		0x00, 0x01, // 256
		0xff, 0xff, // -1
		0x00, 0x80, // -32768
	}
	vol, err := ReadAVS(bytes.NewReader(buildAVS(header, payload)))
	if err != nil {
		t.Fatalf("Failed to read short field: %v", err)
	}

	nx, ny, nz := vol.Dims()
	if nx != 2 || ny != 2 || nz != 1 {
		t.Fatalf("Expected dimensions 2x2x1, got %dx%dx%d", nx, ny, nz)
	}
	want := []int16{1, 256, -1, -32768}
	for i, w := range want {
		if got := vol.Sample(i%2, i/2, 0); got != w {
			t.Errorf("Expected sample %d at index %d, got %d", w, i, got)
		}
	}
}

// TestReadAVSByteData verifies that byte samples widen unsigned
func TestReadAVSByteData(t *testing.T) {
	header := "ndim=3\ndim1=2\ndim2=1\ndim3=1\nveclen=1\ndata=byte\nfield=uniform\n"
	payload := []byte{200, 15}
	vol, err := ReadAVS(bytes.NewReader(buildAVS(header, payload)))
	if err != nil {
		t.Fatalf("Failed to read byte field: %v", err)
	}
	if got := vol.Sample(0, 0, 0); got != 200 {
		t.Errorf("Expected unsigned widening to 200, got %d", got)
	}
	if got := vol.Sample(1, 0, 0); got != 15 {
		t.Errorf("Expected sample 15, got %d", got)
	}
}

// TestReadAVSBenignTokens verifies that extent and labeling tokens plus
// trailing comments are accepted without affecting the result
func TestReadAVSBenignTokens(t *testing.T) {
	header := "ndim=3\n" +
		"dim1=1 # voxels along x\n" +
		"dim2=1\n" +
		"dim3=1\n" +
		"nspace=3\n" +
		"veclen=1\n" +
		"data=byte\n" +
		"field=uniform\n" +
		"min_ext=0.0 0.0 0.0\n" +
		"max_ext=1.0 1.0 1.0\n" +
		"label=density\n" +
		"# a full comment line\n"
	vol, err := ReadAVS(bytes.NewReader(buildAVS(header, []byte{42})))
	if err != nil {
		t.Fatalf("Failed to read field with benign tokens: %v", err)
	}
	if got := vol.Sample(0, 0, 0); got != 42 {
		t.Errorf("Expected sample 42, got %d", got)
	}
}

// TestReadAVSErrors verifies that malformed files are rejected and that
// every failure wraps ErrUnreadableVolume
func TestReadAVSErrors(t *testing.T) {
	valid := "ndim=3\ndim1=1\ndim2=1\ndim3=1\nveclen=1\ndata=byte\nfield=uniform\n"
	cases := []struct {
		name string
		raw  []byte
	}{
		{"missing signature", append([]byte("NOT AVS\f\f"), 0)},
		{"no form feed pair", []byte("# AVS field file\nndim=3\n")},
		{"single form feed", append([]byte("# AVS\nndim=3\f"), 0)},
		{"unknown token", buildAVS("ndim=3\ndim1=1\ndim2=1\ndim3=1\nveclen=1\ndata=byte\nfield=uniform\nshear=4\n", []byte{0})},
		{"malformed line", buildAVS("ndim=3\nnonsense\n"+valid, []byte{0})},
		{"wrong ndim", buildAVS("ndim=2\ndim1=1\ndim2=1\ndim3=1\nveclen=1\ndata=byte\nfield=uniform\n", []byte{0})},
		{"missing dim", buildAVS("ndim=3\ndim1=1\ndim2=1\nveclen=1\ndata=byte\nfield=uniform\n", []byte{0})},
		{"negative dim", buildAVS("ndim=3\ndim1=-1\ndim2=1\ndim3=1\nveclen=1\ndata=byte\nfield=uniform\n", []byte{0})},
		{"wrong veclen", buildAVS("ndim=3\ndim1=1\ndim2=1\ndim3=1\nveclen=3\ndata=byte\nfield=uniform\n", []byte{0})},
		{"unsupported data type", buildAVS("ndim=3\ndim1=1\ndim2=1\ndim3=1\nveclen=1\ndata=float\nfield=uniform\n", []byte{0})},
		{"non-uniform field", buildAVS("ndim=3\ndim1=1\ndim2=1\ndim3=1\nveclen=1\ndata=byte\nfield=rectilinear\n", []byte{0})},
		{"missing data declaration", buildAVS("ndim=3\ndim1=1\ndim2=1\ndim3=1\nveclen=1\nfield=uniform\n", []byte{0})},
		{"truncated payload", buildAVS("ndim=3\ndim1=2\ndim2=2\ndim3=2\nveclen=1\ndata=short\nfield=uniform\n", make([]byte, 7))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadAVS(bytes.NewReader(tc.raw))
			if err == nil {
				t.Fatalf("Expected error, got none")
			}
			if !errors.Is(err, ErrUnreadableVolume) {
				t.Errorf("Expected error to wrap ErrUnreadableVolume, got: %v", err)
			}
		})
	}
}

// TestLoadAVS verifies loading from disk for both plain and
// gzip-compressed field files
func TestLoadAVS(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "volviz-avs-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	header := "ndim=3\ndim1=2\ndim2=1\ndim3=1\nveclen=1\ndata=byte\nfield=uniform\n"
	raw := buildAVS(header, []byte{7, 9})

	plainPath := filepath.Join(tempDir, "plain.fld")
	if err := os.WriteFile(plainPath, raw, 0644); err != nil {
		t.Fatalf("Failed to write plain field file: %v", err)
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(raw); err != nil {
		t.Fatalf("Failed to compress field file: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("Failed to finish compression: %v", err)
	}
	gzPath := filepath.Join(tempDir, "compressed.fld")
	if err := os.WriteFile(gzPath, compressed.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write compressed field file: %v", err)
	}

	for _, path := range []string{plainPath, gzPath} {
		vol, err := LoadAVS(path)
		if err != nil {
			t.Fatalf("Failed to load %s: %v", filepath.Base(path), err)
		}
		if got := vol.Sample(1, 0, 0); got != 9 {
			t.Errorf("Expected sample 9 from %s, got %d", filepath.Base(path), got)
		}
	}

	if _, err := LoadAVS(filepath.Join(tempDir, "missing.fld")); err == nil {
		t.Errorf("Expected error for missing file, got none")
	}
}
