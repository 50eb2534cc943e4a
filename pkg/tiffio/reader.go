// Package tiffio reads and writes multi-page TIFF stacks together with the
// physical resolution tags of their first page.
//
// Pixel decoding is delegated to golang.org/x/image/tiff, which only decodes
// the first image of a file. Every further page is decoded by presenting the
// decoder a view of the file whose header points at that page's IFD.
package tiffio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"golang.org/x/image/tiff"
)

// TIFF tags used by this package.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagXResolution     = 282
	tagYResolution     = 283
	tagResolutionUnit  = 296
)

// TIFF field types.
const (
	dtShort    = 3
	dtLong     = 4
	dtRational = 5
)

// maxPages guards against IFD cycles in malformed files.
const maxPages = 1 << 16

var (
	// ErrFormat is returned for files that are not classic TIFF.
	ErrFormat = errors.New("tiffio: not a TIFF file")

	// ErrNoResolution is returned when XResolution or YResolution is missing.
	ErrNoResolution = errors.New("tiffio: resolution tags missing")

	// ErrPageSize is returned when the pages of a stack differ in size.
	ErrPageSize = errors.New("tiffio: pages differ in size")
)

// ResolutionUnit is the value of the ResolutionUnit tag.
type ResolutionUnit uint16

const (
	UnitNone       ResolutionUnit = 1
	UnitInch       ResolutionUnit = 2
	UnitCentimeter ResolutionUnit = 3
)

// Resolution holds the pixels-per-unit values of a page.
type Resolution struct {
	X    float64
	Y    float64
	Unit ResolutionUnit
}

// Stack is a decoded multi-page TIFF.
type Stack struct {
	// Data holds the pages in plane-major, row-major order in the native
	// intensity scale of the file (0-255 for 8-bit, 0-65535 for 16-bit).
	Data []float64

	Width, Height, Depth int
}

// ReadResolution returns the resolution tags of the first page of path.
func ReadResolution(path string) (Resolution, error) {
	f, err := os.Open(path)
	if err != nil {
		return Resolution{}, err
	}
	defer f.Close()

	return DecodeResolution(f)
}

// DecodeResolution returns the resolution tags of the first page in r.
func DecodeResolution(r io.ReaderAt) (Resolution, error) {
	order, first, err := readHeader(r)
	if err != nil {
		return Resolution{}, err
	}
	if first == 0 {
		return Resolution{}, ErrNoResolution
	}
	entries, _, err := readIFD(r, order, first)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{Unit: UnitInch}
	var haveX, haveY bool
	for _, e := range entries {
		switch e.tag {
		case tagXResolution:
			res.X, err = readRational(r, order, e)
			haveX = err == nil
		case tagYResolution:
			res.Y, err = readRational(r, order, e)
			haveY = err == nil
		case tagResolutionUnit:
			if e.typ == dtShort {
				res.Unit = ResolutionUnit(order.Uint16(e.value[:2]))
			}
		}
		if err != nil {
			return Resolution{}, err
		}
	}
	if !haveX || !haveY {
		return Resolution{}, ErrNoResolution
	}
	return res, nil
}

// ReadStack decodes every page of the TIFF at path.
func ReadStack(path string) (*Stack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return DecodeStack(f, info.Size())
}

// DecodeStack decodes every page of the TIFF held in r.
func DecodeStack(r io.ReaderAt, size int64) (*Stack, error) {
	order, first, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	offsets, err := pageOffsets(r, order, first)
	if err != nil {
		return nil, err
	}

	stack := &Stack{Depth: len(offsets)}
	for i, off := range offsets {
		view := &pageView{base: r, order: order, ifd: off}
		view.SectionReader = io.NewSectionReader(view, 0, size)
		img, err := tiff.Decode(view)
		if err != nil {
			return nil, fmt.Errorf("decoding page %d: %w", i, err)
		}

		b := img.Bounds()
		if i == 0 {
			stack.Width, stack.Height = b.Dx(), b.Dy()
			stack.Data = make([]float64, 0, stack.Width*stack.Height*stack.Depth)
		} else if b.Dx() != stack.Width || b.Dy() != stack.Height {
			return nil, fmt.Errorf("page %d is %dx%d, want %dx%d: %w",
				i, b.Dx(), b.Dy(), stack.Width, stack.Height, ErrPageSize)
		}
		stack.Data = appendPixels(stack.Data, img)
	}
	return stack, nil
}

// appendPixels appends the luminance of every pixel of img in row-major order.
func appendPixels(dst []float64, img image.Image) []float64 {
	b := img.Bounds()
	switch src := img.(type) {
	case *image.Gray16:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst = append(dst, float64(src.Gray16At(x, y).Y))
			}
		}
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst = append(dst, float64(src.GrayAt(x, y).Y))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				dst = append(dst, float64(g.Y))
			}
		}
	}
	return dst
}

// pageView exposes the underlying file with bytes 4..8 of the header
// replaced by the offset of one page's IFD.
type pageView struct {
	*io.SectionReader
	base  io.ReaderAt
	order binary.ByteOrder
	ifd   uint32
}

func (p *pageView) ReadAt(b []byte, off int64) (int, error) {
	n, err := p.base.ReadAt(b, off)
	var patch [4]byte
	p.order.PutUint32(patch[:], p.ifd)
	for i := 0; i < n; i++ {
		pos := off + int64(i)
		if pos >= 4 && pos < 8 {
			b[i] = patch[pos-4]
		}
	}
	return n, err
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	value [4]byte
}

func readHeader(r io.ReaderAt) (binary.ByteOrder, uint32, error) {
	var hdr [8]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	var order binary.ByteOrder
	switch string(hdr[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, 0, ErrFormat
	}
	if order.Uint16(hdr[2:4]) != 42 {
		return nil, 0, ErrFormat
	}
	return order, order.Uint32(hdr[4:8]), nil
}

func readIFD(r io.ReaderAt, order binary.ByteOrder, off uint32) ([]ifdEntry, uint32, error) {
	var cnt [2]byte
	if _, err := r.ReadAt(cnt[:], int64(off)); err != nil {
		return nil, 0, fmt.Errorf("%w: reading IFD at %d: %v", ErrFormat, off, err)
	}
	n := int(order.Uint16(cnt[:]))
	buf := make([]byte, n*12+4)
	if _, err := r.ReadAt(buf, int64(off)+2); err != nil {
		return nil, 0, fmt.Errorf("%w: reading IFD at %d: %v", ErrFormat, off, err)
	}
	entries := make([]ifdEntry, n)
	for i := range entries {
		b := buf[i*12:]
		entries[i] = ifdEntry{
			tag:   order.Uint16(b[0:2]),
			typ:   order.Uint16(b[2:4]),
			count: order.Uint32(b[4:8]),
		}
		copy(entries[i].value[:], b[8:12])
	}
	return entries, order.Uint32(buf[n*12:]), nil
}

func pageOffsets(r io.ReaderAt, order binary.ByteOrder, first uint32) ([]uint32, error) {
	var offsets []uint32
	seen := make(map[uint32]bool)
	for off := first; off != 0; {
		if seen[off] || len(offsets) >= maxPages {
			return nil, fmt.Errorf("%w: IFD chain loops at offset %d", ErrFormat, off)
		}
		seen[off] = true
		offsets = append(offsets, off)
		_, next, err := readIFD(r, order, off)
		if err != nil {
			return nil, err
		}
		off = next
	}
	return offsets, nil
}

func readRational(r io.ReaderAt, order binary.ByteOrder, e ifdEntry) (float64, error) {
	if e.typ != dtRational || e.count < 1 {
		return 0, fmt.Errorf("%w: tag %d has type %d, want RATIONAL", ErrFormat, e.tag, e.typ)
	}
	var b [8]byte
	if _, err := r.ReadAt(b[:], int64(order.Uint32(e.value[:]))); err != nil {
		return 0, fmt.Errorf("%w: reading tag %d: %v", ErrFormat, e.tag, err)
	}
	num, den := order.Uint32(b[0:4]), order.Uint32(b[4:8])
	if den == 0 {
		return 0, nil
	}
	return float64(num) / float64(den), nil
}
