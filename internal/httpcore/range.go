package httpcore

import (
	"strconv"
	"strings"

	"github.com/dev-harsh1998/irondrop/internal/errors"
)

// Range is a validated half-open byte interval [Start, End) with
// 0 <= Start < End <= size.
type Range struct {
	Start int64
	End   int64
}

// Length returns the number of bytes the range covers.
func (r Range) Length() int64 {
	return r.End - r.Start
}

// ContentRange renders the Content-Range header value for a 206 response.
func (r Range) ContentRange(size int64) string {
	return "bytes " + strconv.FormatInt(r.Start, 10) + "-" +
		strconv.FormatInt(r.End-1, 10) + "/" + strconv.FormatInt(size, 10)
}

// UnsatisfiableContentRange renders the header value for a 416 response.
func UnsatisfiableContentRange(size int64) string {
	return "bytes */" + strconv.FormatInt(size, 10)
}

// ParseRange validates a `Range: bytes=a-b` header against a file of the
// given size. Multi-range requests and empty or inverted intervals fail
// with RangeNotSatisfiable.
func ParseRange(header string, size int64) (*Range, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, errors.RangeNotSatisfiable("unsupported range unit")
	}
	if strings.ContainsRune(spec, ',') {
		return nil, errors.RangeNotSatisfiable("multi-range is not supported")
	}

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return nil, errors.RangeNotSatisfiable("malformed range")
	}
	first := strings.TrimSpace(spec[:dash])
	last := strings.TrimSpace(spec[dash+1:])

	var start, end int64
	switch {
	case first == "" && last == "":
		return nil, errors.RangeNotSatisfiable("malformed range")

	case first == "":
		// Suffix form -b: the final b bytes.
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return nil, errors.RangeNotSatisfiable("malformed suffix range")
		}
		if n > size {
			n = size
		}
		start = size - n
		end = size

	default:
		a, err := strconv.ParseInt(first, 10, 64)
		if err != nil || a < 0 {
			return nil, errors.RangeNotSatisfiable("malformed range start")
		}
		start = a
		if last == "" {
			end = size
		} else {
			b, err := strconv.ParseInt(last, 10, 64)
			if err != nil || b < a {
				return nil, errors.RangeNotSatisfiable("malformed range end")
			}
			end = b + 1
			if end > size {
				end = size
			}
		}
	}

	if start >= size || end <= start {
		return nil, errors.RangeNotSatisfiable("range outside file bounds")
	}
	return &Range{Start: start, End: end}, nil
}
