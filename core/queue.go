package core

// ByteQueue is a circular byte buffer that grows (by doubling, up to Max)
// and shrinks (by halving, down to its initial size) as needed.
//
// PopDirective extracts complete statements as they arrive, even
// when a statement spans several Pushes.
//
// A ByteQueue is not safe for concurrent use.
type ByteQueue struct {
	buf     []byte
	head, n int

	initial int

	// Max is the largest the buffer may grow.
	Max int

	scan scanState
}

// scanState is where PopDirective left off.
type scanState struct {
	pos      int
	depth    int
	inString bool
	escape   bool
	comment  int
	prev     byte
}

const (
	noComment = iota
	lineComment
	blockComment
)

// NewByteQueue makes a ByteQueue with the given initial and maximum sizes.
func NewByteQueue(initial, max int) *ByteQueue {
	if initial <= 0 {
		initial = 16
	}
	if max < initial {
		max = initial
	}
	return &ByteQueue{
		buf:     make([]byte, initial),
		initial: initial,
		Max:     max,
	}
}

// Len is the number of bytes in the queue.
func (q *ByteQueue) Len() int {
	return q.n
}

// Cap is the current size of the buffer.
func (q *ByteQueue) Cap() int {
	return len(q.buf)
}

func (q *ByteQueue) at(i int) byte {
	return q.buf[(q.head+i)%len(q.buf)]
}

// resize moves the contents into a buffer of the given size.
func (q *ByteQueue) resize(size int) {
	buf := make([]byte, size)
	q.copyOut(buf, q.n)
	q.buf = buf
	q.head = 0
}

// copyOut copies the first k bytes into dst.
func (q *ByteQueue) copyOut(dst []byte, k int) {
	first := len(q.buf) - q.head
	if k <= first {
		copy(dst, q.buf[q.head:q.head+k])
		return
	}
	copy(dst, q.buf[q.head:])
	copy(dst[first:], q.buf[:k-first])
}

// Push appends data.  If the data doesn't fit even at the maximum
// size, Push returns ErrQueueOverflow and the queue is unchanged.
func (q *ByteQueue) Push(data []byte) error {
	need := q.n + len(data)
	if q.Max < need {
		return ErrQueueOverflow
	}
	if len(q.buf) < need {
		size := len(q.buf)
		for size < need {
			size *= 2
		}
		if q.Max < size {
			size = q.Max
		}
		q.resize(size)
	}
	tail := (q.head + q.n) % len(q.buf)
	for _, b := range data {
		q.buf[tail] = b
		tail++
		if tail == len(q.buf) {
			tail = 0
		}
	}
	q.n = need
	return nil
}

// Pop removes and returns the first k bytes (or all of them, if
// there are fewer).
func (q *ByteQueue) Pop(k int) []byte {
	if q.n < k {
		k = q.n
	}
	out := make([]byte, k)
	q.copyOut(out, k)
	q.head = (q.head + k) % len(q.buf)
	q.n -= k
	if q.scan.pos <= k {
		q.scan = scanState{}
	} else {
		q.scan.pos -= k
	}
	q.shrink()
	return out
}

// Blank reports whether everything buffered is white space.
func (q *ByteQueue) Blank() bool {
	for i := 0; i < q.n; i++ {
		switch q.at(i) {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}

func (q *ByteQueue) shrink() {
	size := len(q.buf)
	for q.initial < size && q.n < size/4 && q.initial <= size/2 {
		size /= 2
	}
	if size != len(q.buf) {
		q.resize(size)
	}
}

// PopDirective returns the next complete statement: everything up to
// and including the first ';' or ',' that isn't nested in brackets,
// a string or a comment.  Returns false if there's no complete
// statement yet.
func (q *ByteQueue) PopDirective() ([]byte, bool) {
	s := &q.scan
	for ; s.pos < q.n; s.pos++ {
		c := q.at(s.pos)

		switch s.comment {
		case lineComment:
			if c == '\n' {
				s.comment = noComment
			}
			continue
		case blockComment:
			if s.prev == '*' && c == '/' {
				s.comment = noComment
				s.prev = 0
			} else {
				s.prev = c
			}
			continue
		}

		if s.inString {
			switch {
			case s.escape:
				s.escape = false
			case c == '\\':
				s.escape = true
			case c == '"':
				s.inString = false
			}
			continue
		}

		switch c {
		case '"':
			s.inString = true
		case '#':
			s.comment = lineComment
		case '/':
			if s.prev == '/' {
				s.comment = lineComment
				s.prev = 0
				continue
			}
		case '*':
			if s.prev == '/' {
				s.comment = blockComment
				s.prev = 0
				continue
			}
		case '(', '[', '{':
			s.depth++
		case ')', ']', '}':
			if 0 < s.depth {
				s.depth--
			}
		case ';', ',':
			if s.depth == 0 {
				k := s.pos + 1
				q.scan = scanState{}
				return q.Pop(k), true
			}
		}
		s.prev = c
	}
	return nil, false
}
