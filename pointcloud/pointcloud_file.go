package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
)

// colorToPCDInt packs a color as 0x00RRGGBB. Uncolored points are written red.
func colorToPCDInt(p Point) uint32 {
	if !p.HasColor {
		return 255 << 16
	}
	r, g, b := p.Color.Clamped().RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

// ToPCD writes the cloud in the PCD v0.7 format, positions in meters.
func ToPCD(cloud *PointCloud, out io.Writer, outputType PCDType) error {
	if _, err := fmt.Fprintf(out, "VERSION .7\n"); err != nil {
		return err
	}
	hasColor := cloud.MetaData().HasColor
	var err error
	if hasColor {
		_, err = fmt.Fprintf(out, "FIELDS x y z rgb\n"+
			"SIZE 4 4 4 4\n"+
			"TYPE F F F I\n"+
			"COUNT 1 1 1 1\n")
	} else {
		_, err = fmt.Fprintf(out, "FIELDS x y z\n"+
			"SIZE 4 4 4\n"+
			"TYPE F F F\n"+
			"COUNT 1 1 1\n")
	}
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n",
		cloud.Size(),
		1,
		cloud.Size()); err != nil {
		return err
	}

	switch outputType {
	case PCDBinary:
		_, err = fmt.Fprintf(out, "DATA binary\n")
	case PCDAscii:
		_, err = fmt.Fprintf(out, "DATA ascii\n")
	default:
		return errors.Errorf("unknown pcd type %d", outputType)
	}
	if err != nil {
		return err
	}
	return writePCDData(cloud, out, outputType, hasColor)
}

func writePCDData(cloud *PointCloud, out io.Writer, pcdtype PCDType, hasColor bool) error {
	var err error
	buf := make([]byte, 16)
	cloud.Iterate(func(_ int, p Point) bool {
		x, y, z := p.Position.X, p.Position.Y, p.Position.Z
		switch pcdtype {
		case PCDBinary:
			binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(x)))
			binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(y)))
			binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(z)))
			if hasColor {
				binary.LittleEndian.PutUint32(buf[12:], colorToPCDInt(p))
				_, err = out.Write(buf)
			} else {
				_, err = out.Write(buf[:12])
			}
		case PCDAscii:
			if hasColor {
				_, err = fmt.Fprintf(out, "%f %f %f %d\n", x, y, z, colorToPCDInt(p))
			} else {
				_, err = fmt.Fprintf(out, "%f %f %f\n", x, y, z)
			}
		}
		return err == nil
	})
	return err
}

// WriteToPCDFile writes the cloud to fn, binary unless the extension is ".txt".
func WriteToPCDFile(cloud *PointCloud, fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	pcdType := PCDBinary
	if filepath.Ext(fn) == ".txt" {
		pcdType = PCDAscii
	}
	if err := ToPCD(cloud, w, pcdType); err != nil {
		return err
	}
	return w.Flush()
}
