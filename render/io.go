package render

import "io"

// RenderAll reads the full contents of a Renderer and returns the slice read.
// It does not return error on io.EOF, like the io.ReadAll implementation.
func RenderAll(r Renderer) ([]Triangle3, error) {
	var err error
	var nt int
	result := make([]Triangle3, 0, 1<<12)
	buf := make([]Triangle3, 1024)
	for {
		nt, err = r.ReadTriangles(buf)
		result = append(result, buf[:nt]...)
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

// triangle3Buffer holds triangles produced but not yet read.
type triangle3Buffer struct {
	buf []Triangle3
}

// Read reads from this buffer.
func (b *triangle3Buffer) Read(t []Triangle3) int {
	n := copy(t, b.buf)
	b.buf = b.buf[n:]
	if len(b.buf) == 0 {
		b.buf = b.buf[:0:0]
	}
	return n
}

// Write appends triangles to this buffer.
func (b *triangle3Buffer) Write(t []Triangle3) int {
	b.buf = append(b.buf, t...)
	return len(t)
}

func (b *triangle3Buffer) Len() int { return len(b.buf) }

// sliceRenderer serves an already rendered model through the Renderer interface.
type sliceRenderer struct {
	model []Triangle3
}

// NewSliceRenderer returns a Renderer that reads triangles from model.
func NewSliceRenderer(model []Triangle3) Renderer {
	return &sliceRenderer{model: model}
}

func (s *sliceRenderer) ReadTriangles(dst []Triangle3) (int, error) {
	if len(s.model) == 0 {
		return 0, io.EOF
	}
	n := copy(dst, s.model)
	s.model = s.model[n:]
	return n, nil
}
