package search

import (
	"fmt"
	"math/bits"
	"path/filepath"
	"sort"
	"strings"
)

// ModeUltraCompact labels the 11-byte-per-entry index used for large trees.
const ModeUltraCompact = "ultra_compact"

// Each record packs into 11 bytes:
//
//	bytes 0-2   name offset into the string pool (u24)
//	bytes 3-5   parent entry id (u24)
//	byte  6     size as a log2 bucket
//	bytes 7-10  packed u32: bit 0 directory flag, bits 1-8 name length,
//	            bits 9-12 extension class, bits 13-31 modified hours
const recordSize = 11

const (
	maxPoolOffset = 1<<24 - 1
	maxParentID   = 1<<24 - 1
	maxModHours   = 1<<19 - 1

	// epoch2000 anchors the packed modification time; hour granularity in
	// 19 bits covers through 2059.
	epoch2000 = 946684800
)

// compactIndex holds interned names plus a flat record arena. Entry 0 is
// the root.
type compactIndex struct {
	pool    []byte
	records []byte
	count   int
}

// compactBuilder accumulates the pool with binary-search deduplication over
// a sorted offset table. The table is build-time only; records address the
// pool by byte offset.
type compactBuilder struct {
	pool    []byte
	offsets []uint32 // sorted by the name bytes they reference
	lens    []uint8  // parallel to offsets
	records []byte
	count   int
}

func newCompactBuilder(capacity int) *compactBuilder {
	return &compactBuilder{
		records: make([]byte, 0, capacity*recordSize),
	}
}

// nameAt slices a pool name during build.
func (b *compactBuilder) nameAt(i int) string {
	off := b.offsets[i]
	return string(b.pool[off : off+uint32(b.lens[i])])
}

// intern returns the pool offset for name, appending it only when unseen.
func (b *compactBuilder) intern(name string) (uint32, error) {
	i := sort.Search(len(b.offsets), func(i int) bool {
		return b.nameAt(i) >= name
	})
	if i < len(b.offsets) && b.nameAt(i) == name {
		return b.offsets[i], nil
	}

	off := uint32(len(b.pool))
	if int(off)+len(name) > maxPoolOffset {
		return 0, fmt.Errorf("name pool exceeds %d bytes", maxPoolOffset)
	}
	b.pool = append(b.pool, name...)

	b.offsets = append(b.offsets, 0)
	copy(b.offsets[i+1:], b.offsets[i:])
	b.offsets[i] = off
	b.lens = append(b.lens, 0)
	copy(b.lens[i+1:], b.lens[i:])
	b.lens[i] = uint8(len(name))

	return off, nil
}

// add appends one record. Names longer than 255 bytes or parents beyond u24
// cannot be represented and are rejected.
func (b *compactBuilder) add(we walkEntry) error {
	if len(we.name) > 255 {
		return fmt.Errorf("name %q exceeds 255 bytes", we.name[:32])
	}
	if we.parent > maxParentID {
		return fmt.Errorf("parent id %d exceeds u24", we.parent)
	}

	off, err := b.intern(we.name)
	if err != nil {
		return err
	}

	var rec [recordSize]byte
	putU24(rec[0:3], off)
	putU24(rec[3:6], we.parent)
	rec[6] = sizeLog2(we.size)

	packed := uint32(0)
	if we.isDir {
		packed |= 1
	}
	packed |= uint32(len(we.name)) << 1
	packed |= uint32(classifyExt(we.name)) << 9
	packed |= modHours(we.modTime.Unix()) << 13
	rec[7] = byte(packed)
	rec[8] = byte(packed >> 8)
	rec[9] = byte(packed >> 16)
	rec[10] = byte(packed >> 24)

	b.records = append(b.records, rec[:]...)
	b.count++
	return nil
}

func (b *compactBuilder) finish() *compactIndex {
	return &compactIndex{pool: b.pool, records: b.records, count: b.count}
}

// buildCompact packs a walk into the compact layout. Entries that cannot be
// represented stop the build at the bound already packed; the index stays
// usable for everything before them.
func buildCompact(walk []walkEntry) *compactIndex {
	b := newCompactBuilder(len(walk))
	for _, we := range walk {
		if err := b.add(we); err != nil {
			break
		}
	}
	return b.finish()
}

func putU24(dst []byte, v uint32) {
	dst[0] = byte(v >> 16)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v)
}

func getU24(src []byte) uint32 {
	return uint32(src[0])<<16 | uint32(src[1])<<8 | uint32(src[2])
}

// sizeLog2 buckets a byte size: 0 for empty, otherwise bit length.
func sizeLog2(size int64) uint8 {
	if size <= 0 {
		return 0
	}
	return uint8(bits.Len64(uint64(size)))
}

// approxSize inverts sizeLog2 to the bucket floor.
func approxSize(l uint8) int64 {
	if l == 0 {
		return 0
	}
	return 1 << (l - 1)
}

func modHours(unix int64) uint32 {
	h := (unix - epoch2000) / 3600
	if h < 0 {
		h = 0
	}
	if h > maxModHours {
		h = maxModHours
	}
	return uint32(h)
}

// Extension classes packed into 4 bits.
const (
	extNone = iota
	extText
	extImage
	extAudio
	extVideo
	extArchive
	extCode
	extBinary
)

func classifyExt(name string) uint8 {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "":
		return extNone
	case "txt", "md", "pdf", "doc", "docx", "rtf", "csv", "log":
		return extText
	case "jpg", "jpeg", "png", "gif", "webp", "svg", "bmp", "ico":
		return extImage
	case "mp3", "wav", "ogg", "flac", "m4a":
		return extAudio
	case "mp4", "mkv", "webm", "avi", "mov":
		return extVideo
	case "zip", "tar", "gz", "bz2", "xz", "7z", "rar":
		return extArchive
	case "go", "rs", "c", "h", "py", "js", "ts", "java", "sh", "html", "css", "json", "xml", "yaml", "yml", "toml", "ini":
		return extCode
	default:
		return extBinary
	}
}

// record field accessors

func (ix *compactIndex) nameOf(id uint32) string {
	rec := ix.records[id*recordSize : id*recordSize+recordSize]
	off := getU24(rec[0:3])
	packed := uint32(rec[7]) | uint32(rec[8])<<8 | uint32(rec[9])<<16 | uint32(rec[10])<<24
	length := (packed >> 1) & 0xff
	return string(ix.pool[off : off+length])
}

func (ix *compactIndex) parentOf(id uint32) uint32 {
	return getU24(ix.records[id*recordSize+3 : id*recordSize+6])
}

func (ix *compactIndex) isDir(id uint32) bool {
	return ix.records[id*recordSize+7]&1 == 1
}

func (ix *compactIndex) sizeOf(id uint32) int64 {
	return approxSize(ix.records[id*recordSize+6])
}

func (ix *compactIndex) modEpochOf(id uint32) int64 {
	rec := ix.records[id*recordSize : id*recordSize+recordSize]
	packed := uint32(rec[7]) | uint32(rec[8])<<8 | uint32(rec[9])<<16 | uint32(rec[10])<<24
	return epoch2000 + int64(packed>>13)*3600
}

func (ix *compactIndex) Mode() string { return ModeUltraCompact }

// Len reports indexed entries, excluding the synthetic root.
func (ix *compactIndex) Len() int { return ix.count - 1 }

func (ix *compactIndex) reconstruct(id uint32) string {
	if id == 0 {
		return "/"
	}
	var segs []string
	for cur := id; cur != 0; cur = ix.parentOf(cur) {
		segs = append(segs, ix.nameOf(cur))
	}
	var b strings.Builder
	for i := len(segs) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(segs[i])
	}
	return b.String()
}

func (ix *compactIndex) scan(q scanQuery) []Result {
	var lowerBuf []byte

	var results []Result
	for i := 1; i < ix.count; i++ {
		id := uint32(i)
		display := ix.nameOf(id)

		name := display
		if !q.caseSensitive {
			lowerBuf = appendLowerASCII(lowerBuf[:0], display)
			name = string(lowerBuf)
		}

		score := scoreName(q.q, q.tokens, name, ix.isDir(id))
		if score == 0 {
			continue
		}

		path := ix.reconstruct(id)
		if q.pathPrefix != "" && !strings.HasPrefix(path, q.pathPrefix) {
			continue
		}

		results = append(results, Result{
			Name:         display,
			Path:         path,
			Size:         ix.sizeOf(id),
			FileType:     fileType(ix.isDir(id)),
			Score:        score,
			LastModified: ix.modEpochOf(id),
		})
	}
	return results
}

// appendLowerASCII lower-cases into a reused buffer to keep the scan
// allocation-free for the common ASCII case.
func appendLowerASCII(dst []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		dst = append(dst, c)
	}
	return dst
}
