package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/chewxy/math32"
	"github.com/soypat/glgl/math/ms3"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	stlHeaderSize   = 84
	stlTriangleSize = 50
	// trianglesInBuffer is the number of triangles encoded per write.
	trianglesInBuffer = 1 << 10
)

// ErrSuspectTriangle is reported by ReadSTL for triangles that are degenerate
// in float32 or whose stored normal disagrees with their winding. Fine meshes
// produce a few of these; the triangles are still returned.
var ErrSuspectTriangle = errors.New("suspect STL triangle")

// CreateSTL renders all triangles of r into a binary STL file at path.
// An existing file is overwritten.
func CreateSTL(path string, r Renderer) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	err = writeSTLSeeker(file, r)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// writeSTLSeeker streams triangles after a blank header and fills in
// the triangle count once the renderer is exhausted.
func writeSTLSeeker(ws io.WriteSeeker, r Renderer) error {
	if _, err := ws.Seek(stlHeaderSize, io.SeekStart); err != nil {
		return err
	}
	rd := &stlReader{r: r}
	n, err := io.CopyBuffer(ws, rd, make([]byte, stlTriangleSize*trianglesInBuffer))
	if err != nil {
		return err
	}
	count := n / stlTriangleSize
	if count == 0 {
		return errors.New("renderer produced no triangles")
	}
	if count > math.MaxUint32 {
		return errors.New("amount of triangles in model exceeds STL design limits")
	}
	if _, err = ws.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var header [stlHeaderSize]byte
	stlHeader{Count: uint32(count)}.put(header[:])
	_, err = ws.Write(header[:])
	return err
}

// WriteSTL writes model triangles to a writer in binary STL file format.
func WriteSTL(w io.Writer, model []Triangle3) error {
	if len(model) == 0 {
		return errors.New("empty triangle slice")
	}
	if int64(len(model)) > math.MaxUint32 {
		return errors.New("amount of triangles in model exceeds STL design limits")
	}
	var buf [stlHeaderSize]byte
	stlHeader{Count: uint32(len(model))}.put(buf[:])
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	for _, triangle := range model {
		stlTriangleFrom(triangle).put(buf[:])
		if _, err := w.Write(buf[:stlTriangleSize]); err != nil {
			return err
		}
	}
	return nil
}

// ReadSTL reads a binary STL. Suspect triangles are returned and reported
// with an error wrapping ErrSuspectTriangle.
func ReadSTL(r io.Reader) (output []Triangle3, readErr error) {
	var hbuf [stlHeaderSize]byte
	if _, err := io.ReadFull(r, hbuf[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, errors.New("encountered EOF while reading STL header")
		}
		return nil, fmt.Errorf("STL header read failed: %w", err)
	}
	count := binary.LittleEndian.Uint32(hbuf[80:])
	if count == 0 {
		return nil, errors.New("STL header indicates 0 triangles present")
	}
	var (
		buf     [stlTriangleSize]byte
		d       stlTriangle
		i       int
		suspect int
	)
	defer func() {
		if readErr != nil && !errors.Is(readErr, ErrSuspectTriangle) {
			readErr = fmt.Errorf("%d/%d STL triangles read: %w", i+1, count, readErr)
		}
	}()
	output = make([]Triangle3, 0, count)
	for i = 0; i < int(count); i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, err
		}
		d.get(buf[:])
		if err := d.validate(); err != nil {
			if !errors.Is(err, ErrSuspectTriangle) {
				return nil, err
			}
			suspect++
			readErr = err
		}
		output = append(output, d.toTriangle3())
	}
	if suspect > 0 {
		readErr = fmt.Errorf("%d triangles: %w", suspect, ErrSuspectTriangle)
	}
	return output, readErr
}

// stlReader encodes triangles from a Renderer as STL records.
type stlReader struct {
	r   Renderer
	buf [trianglesInBuffer]Triangle3
	err error
}

func (rd *stlReader) Read(b []byte) (int, error) {
	if rd.err != nil {
		return 0, rd.err
	}
	ntMax := min(len(b)/stlTriangleSize, len(rd.buf))
	if ntMax == 0 {
		return 0, errors.New("stlReader requires at least 50 bytes to write a single triangle")
	}
	nt, err := rd.r.ReadTriangles(rd.buf[:ntMax])
	for i, triangle := range rd.buf[:nt] {
		stlTriangleFrom(triangle).put(b[i*stlTriangleSize:])
	}
	if err != nil {
		rd.err = err
		if nt > 0 && err == io.EOF {
			err = nil
		}
	}
	return nt * stlTriangleSize, err
}

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

func (h stlHeader) put(b []byte) {
	_ = b[83] // early bounds check
	for i := range b[:80] {
		b[i] = 0
	}
	binary.LittleEndian.PutUint32(b[80:], h.Count)
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal ms3.Vec
	Tri    ms3.Triangle
}

func stlTriangleFrom(t Triangle3) stlTriangle {
	var d stlTriangle
	for i, v := range t.V {
		d.Tri[i] = ms3.Vec{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
	}
	n := t.Normal()
	d.Normal = ms3.Vec{X: float32(n.X), Y: float32(n.Y), Z: float32(n.Z)}
	return d
}

func (t stlTriangle) put(b []byte) {
	_ = b[stlTriangleSize-1]
	putVec(b, t.Normal)
	putVec(b[12:], t.Tri[0])
	putVec(b[24:], t.Tri[1])
	putVec(b[36:], t.Tri[2])
	binary.LittleEndian.PutUint16(b[48:], 0) // Zero out attributes.
}

func (t *stlTriangle) get(b []byte) {
	_ = b[stlTriangleSize-1]
	t.Normal = getVec(b)
	t.Tri[0] = getVec(b[12:])
	t.Tri[1] = getVec(b[24:])
	t.Tri[2] = getVec(b[36:])
}

func putVec(b []byte, v ms3.Vec) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(v.Z))
}

func getVec(b []byte) ms3.Vec {
	_ = b[11] // early bounds check
	return ms3.Vec{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b)),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}

func badVec(v ms3.Vec) bool {
	return math32.IsNaN(v.X) || math32.IsInf(v.X, 0) ||
		math32.IsNaN(v.Y) || math32.IsInf(v.Y, 0) ||
		math32.IsNaN(v.Z) || math32.IsInf(v.Z, 0)
}

// equalWithin reports whether a and b differ by at most tol in every component.
func equalWithin(a, b ms3.Vec, tol float32) bool {
	return math32.Abs(a.X-b.X) <= tol &&
		math32.Abs(a.Y-b.Y) <= tol &&
		math32.Abs(a.Z-b.Z) <= tol
}

func (t stlTriangle) validate() error {
	const normTol = 5e-2
	if badVec(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	if badVec(t.Tri[0]) || badVec(t.Tri[1]) || badVec(t.Tri[2]) {
		return errors.New("inf/NaN STL triangle vertex")
	}
	if t.Tri.IsDegenerate(0) {
		return ErrSuspectTriangle
	}
	calc := ms3.Unit(t.Tri.Normal())
	if badVec(calc) || !equalWithin(calc, t.Normal, normTol) {
		return ErrSuspectTriangle
	}
	return nil
}

func (t stlTriangle) toTriangle3() Triangle3 {
	var out Triangle3
	for i, v := range t.Tri {
		out.V[i] = r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
	}
	return out
}
