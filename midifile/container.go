package midifile

// Container accumulates one track's output bytes before the track is framed
// with its MTrk header and length. Two interchangeable strategies exist;
// both must drain in the original Put order so the framed output is
// byte-identical whichever one the encoder was built with.
type Container interface {
	Put(b byte)
	Get() byte
	Size() int
	Done() bool
}

// VectorContainer appends to the end and reads forward.
type VectorContainer struct {
	buf  []byte
	next int
}

// NewVectorContainer returns an empty append-order container.
func NewVectorContainer() *VectorContainer {
	return &VectorContainer{}
}

// Put appends a byte.
func (v *VectorContainer) Put(b byte) {
	v.buf = append(v.buf, b)
}

// Get returns the next unread byte.
func (v *VectorContainer) Get() byte {
	if v.next >= len(v.buf) {
		return 0
	}
	b := v.buf[v.next]
	v.next++
	return b
}

// Size returns the number of bytes not yet drained.
func (v *VectorContainer) Size() int {
	return len(v.buf) - v.next
}

// Done reports whether every byte has been drained.
func (v *VectorContainer) Done() bool {
	return v.next >= len(v.buf)
}

// ListContainer pushes to the front and pops from the back, so the drain
// still yields bytes in Put order.
type ListContainer struct {
	buf []byte
}

// NewListContainer returns an empty prepend-order container.
func NewListContainer() *ListContainer {
	return &ListContainer{}
}

// Put pushes a byte onto the front.
func (l *ListContainer) Put(b byte) {
	l.buf = append([]byte{b}, l.buf...)
}

// Get pops the oldest byte off the back.
func (l *ListContainer) Get() byte {
	if len(l.buf) == 0 {
		return 0
	}
	b := l.buf[len(l.buf)-1]
	l.buf = l.buf[:len(l.buf)-1]
	return b
}

// Size returns the number of bytes still queued.
func (l *ListContainer) Size() int {
	return len(l.buf)
}

// Done reports whether the container is empty.
func (l *ListContainer) Done() bool {
	return len(l.buf) == 0
}
