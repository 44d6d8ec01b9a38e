package rimage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"image"
	// register the png decoder for 16-bit depth images.
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// depthMagic starts every depth map file. The header is newline separated text:
// magic, bytes per pixel, meters per unit, width, height, capture time in unix nanoseconds and
// sensor id. Row-major little-endian uint16 samples follow.
const depthMagic = "SANDDEPTH"

// maxDepthMapSide bounds each side of a decoded depth map.
const maxDepthMapSide = 8192

// ParseDepthMap reads a depth map from a file, decompressing it when the name ends in .gz. A .png
// file must be a 16-bit greyscale image in millimeters.
func ParseDepthMap(fn string) (*DepthMap, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	if strings.EqualFold(filepath.Ext(fn), ".png") {
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, errors.Wrapf(err, "error decoding depth image %q", fn)
		}
		dm, err := ConvertImageToDepthMap(img)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading depth image %q", fn)
		}
		dm.SensorID = strings.TrimSuffix(filepath.Base(fn), filepath.Ext(fn))
		return dm, nil
	}

	var r io.Reader = f
	if filepath.Ext(fn) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer utils.UncheckedErrorFunc(gz.Close)
		r = gz
	}

	dm, err := ReadDepthMap(bufio.NewReader(r))
	if err != nil {
		return nil, errors.Wrapf(err, "error reading depth map %q", fn)
	}
	return dm, nil
}

func readHeaderLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readHeaderInt(r *bufio.Reader, what string) (int64, error) {
	s, err := readHeaderLine(r)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bad %s", what)
	}
	return v, nil
}

// ReadDepthMap decodes a depth map written by WriteDepthMap.
func ReadDepthMap(r *bufio.Reader) (*DepthMap, error) {
	magic, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}
	if magic != depthMagic {
		return nil, errors.Errorf("not a depth map, got header %q", magic)
	}

	bytesPerPixel, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}
	if bytesPerPixel != "2" {
		return nil, errors.Errorf("i only know how to handle 2 bytes per pixel, not %s", bytesPerPixel)
	}

	unitsString, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}
	units, err := strconv.ParseFloat(unitsString, 64)
	if err != nil {
		return nil, errors.Wrap(err, "bad units")
	}
	if units <= 0 || math.IsInf(units, 0) || math.IsNaN(units) {
		return nil, errors.Errorf("meters per unit must be positive and finite, got %v", unitsString)
	}
	units *= 1000 // m to mm

	width, err := readHeaderInt(r, "width")
	if err != nil {
		return nil, err
	}
	height, err := readHeaderInt(r, "height")
	if err != nil {
		return nil, err
	}
	if width <= 0 || width > maxDepthMapSide || height <= 0 || height > maxDepthMapSide {
		return nil, errors.Errorf("bad width or height for depth map %v %v", width, height)
	}
	nanos, err := readHeaderInt(r, "timestamp")
	if err != nil {
		return nil, err
	}
	sensor, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}

	// rows are read one at a time so a truncated body only costs the rows it holds
	row := make([]uint16, width)
	var data []Depth
	for y := int64(0); y < height; y++ {
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return nil, errors.Wrapf(err, "short depth data at row %d of %d", y, height)
		}
		for _, v := range row {
			mm := units * float64(v)
			if mm > float64(MaxDepth) {
				mm = 0
			}
			data = append(data, Depth(mm+0.5))
		}
	}

	dm, err := NewDepthMapFromSlice(int(width), int(height), data)
	if err != nil {
		return nil, err
	}
	dm.Timestamp = time.Unix(0, nanos)
	dm.SensorID = sensor
	return dm, nil
}

// WriteDepthMap encodes the depth map in millimeter units.
func WriteDepthMap(out io.Writer, dm *DepthMap) error {
	w := bufio.NewWriter(out)
	nanos := int64(0)
	if !dm.Timestamp.IsZero() {
		nanos = dm.Timestamp.UnixNano()
	}
	if _, err := fmt.Fprintf(w, "%s\n2\n0.001\n%d\n%d\n%d\n%s\n",
		depthMagic, dm.width, dm.height, nanos, dm.SensorID); err != nil {
		return err
	}
	raw := make([]uint16, len(dm.data))
	for i, d := range dm.data {
		raw[i] = uint16(d)
	}
	if err := binary.Write(w, binary.LittleEndian, raw); err != nil {
		return err
	}
	return w.Flush()
}

// WriteToFile writes the depth map to fn, gzipped when the name ends in .gz.
func (dm *DepthMap) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	var out io.Writer = f
	var gout *gzip.Writer
	if filepath.Ext(fn) == ".gz" {
		gout = gzip.NewWriter(f)
		out = gout
	}

	if err := WriteDepthMap(out, dm); err != nil {
		return err
	}
	if gout != nil {
		if err := gout.Close(); err != nil {
			return err
		}
	}
	return f.Sync()
}
