package tiffio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// rationalDenominator is the fixed denominator used when encoding resolutions.
const rationalDenominator = 10000

// WriteStack writes data as an uncompressed 16-bit grayscale multi-page TIFF.
// Samples are expected in [0, 1] and are scaled to the full 16-bit range.
// Resolution tags are written to every page when res has positive X and Y.
func WriteStack(w io.Writer, data []float64, width, height, depth int, res Resolution) error {
	if width <= 0 || height <= 0 || depth < 0 {
		return fmt.Errorf("tiffio: invalid stack dimensions %dx%dx%d", width, height, depth)
	}
	if len(data) != width*height*depth {
		return fmt.Errorf("tiffio: %d samples for a %dx%dx%d stack", len(data), width, height, depth)
	}

	order := binary.LittleEndian
	withRes := res.X > 0 && res.Y > 0
	if res.Unit == 0 {
		res.Unit = UnitInch
	}

	type entry struct {
		tag, typ uint16
		count    uint32
		value    uint32
	}

	pageBytes := uint32(width * height * 2)
	numEntries := 9
	if withRes {
		numEntries += 3
	}
	ifdSize := uint32(2 + numEntries*12 + 4)
	extraSize := uint32(0)
	if withRes {
		extraSize = 16
	}

	bw := bufio.NewWriter(w)
	put16 := func(v uint16) { _ = binary.Write(bw, order, v) }
	put32 := func(v uint32) { _ = binary.Write(bw, order, v) }

	// Header: byte order, magic, offset of the first IFD.
	bw.WriteString("II")
	put16(42)
	first := uint32(0)
	if depth > 0 {
		first = 8
	}
	put32(first)

	offset := uint32(8)
	for z := 0; z < depth; z++ {
		ifdOff := offset
		extraOff := ifdOff + ifdSize
		pixOff := extraOff + extraSize
		next := uint32(0)
		if z < depth-1 {
			next = pixOff + pageBytes
		}

		entries := []entry{
			{tagImageWidth, dtLong, 1, uint32(width)},
			{tagImageLength, dtLong, 1, uint32(height)},
			{tagBitsPerSample, dtShort, 1, 16},
			{tagCompression, dtShort, 1, 1},
			{tagPhotometric, dtShort, 1, 1},
			{tagStripOffsets, dtLong, 1, pixOff},
			{tagSamplesPerPixel, dtShort, 1, 1},
			{tagRowsPerStrip, dtLong, 1, uint32(height)},
			{tagStripByteCounts, dtLong, 1, pageBytes},
		}
		if withRes {
			entries = append(entries,
				entry{tagXResolution, dtRational, 1, extraOff},
				entry{tagYResolution, dtRational, 1, extraOff + 8},
				entry{tagResolutionUnit, dtShort, 1, uint32(res.Unit)},
			)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

		put16(uint16(len(entries)))
		for _, e := range entries {
			put16(e.tag)
			put16(e.typ)
			put32(e.count)
			if e.typ == dtShort {
				// SHORT values are left-justified in the value field.
				put16(uint16(e.value))
				put16(0)
			} else {
				put32(e.value)
			}
		}
		put32(next)

		if withRes {
			put32(uint32(math.Round(res.X * rationalDenominator)))
			put32(rationalDenominator)
			put32(uint32(math.Round(res.Y * rationalDenominator)))
			put32(rationalDenominator)
		}

		plane := data[z*width*height : (z+1)*width*height]
		for _, v := range plane {
			put16(uint16(math.Round(math.Max(0, math.Min(1, v)) * 65535)))
		}

		offset = pixOff + pageBytes
	}

	return bw.Flush()
}

// WriteStackFile writes the stack to path, replacing any existing file only
// once the new content is complete.
func WriteStackFile(path string, data []float64, width, height, depth int, res Resolution) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tiffio-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := WriteStack(tmp, data, width, height, depth, res); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ResolutionFromSpacing converts a per-pixel distance in millimeters into
// pixels per inch.
func ResolutionFromSpacing(rowMM, colMM float64) (Resolution, error) {
	if !(rowMM > 0) || !(colMM > 0) {
		return Resolution{}, errors.New("tiffio: spacing must be positive")
	}
	return Resolution{X: MillimetersPerInch / colMM, Y: MillimetersPerInch / rowMM, Unit: UnitInch}, nil
}

// MillimetersPerInch converts inch-based resolutions into millimeters.
const MillimetersPerInch = 25.4

// MillimetersPerCentimeter converts centimeter-based resolutions into millimeters.
const MillimetersPerCentimeter = 10.0

// MillimetersPerUnit returns the length of one resolution unit in mm.
// Files without an absolute unit are treated as inches.
func MillimetersPerUnit(u ResolutionUnit) float64 {
	if u == UnitCentimeter {
		return MillimetersPerCentimeter
	}
	return MillimetersPerInch
}
