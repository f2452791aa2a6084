package kmerindex

// Base2Bnt maps a nucleotide letter to its 2-bit code, A=0 C=1 G=2 T=3.
// Every other byte maps to AmbiguousBnt.
var Base2Bnt [256]uint8

// BitNtCharUp maps a 2-bit code back to its upper case letter.
var BitNtCharUp = [4]byte{'A', 'C', 'G', 'T'}

const AmbiguousBnt = 4

func init() {
	for i := range Base2Bnt {
		Base2Bnt[i] = AmbiguousBnt
	}
	for i, c := range "ACGT" {
		Base2Bnt[c] = uint8(i)
		Base2Bnt[c+'a'-'A'] = uint8(i)
	}
}

// KmerMask returns the mask keeping the low 2k bits of a code.
func KmerMask(k int) uint64 {
	return 1<<(2*uint(k)) - 1
}

// Roller keeps the forward and reverse complement codes of the last K bases
// pushed into it. An ambiguous base empties the window.
type Roller struct {
	K     int
	Fwd   uint64
	Rev   uint64
	count int
	mask  uint64
	shift uint
}

func NewRoller(k int) Roller {
	return Roller{K: k, mask: KmerMask(k), shift: 2 * uint(k-1)}
}

// Push adds one base and reports whether the window holds K valid bases.
func (r *Roller) Push(base byte) bool {
	c := Base2Bnt[base]
	if c == AmbiguousBnt {
		r.Reset()
		return false
	}
	r.PushBnt(c)
	return r.count >= r.K
}

// PushBnt adds one already encoded base (0..3).
func (r *Roller) PushBnt(c uint8) {
	r.Fwd = (r.Fwd<<2 | uint64(c)) & r.mask
	r.Rev = r.Rev>>2 | uint64(3-c)<<r.shift
	if r.count < r.K {
		r.count++
	}
}

func (r *Roller) Full() bool {
	return r.count >= r.K
}

func (r *Roller) Reset() {
	r.Fwd, r.Rev, r.count = 0, 0, 0
}

// ForEachKmer calls fn for every window of k unambiguous bases in seq with
// the 0-based start position of the window.
func ForEachKmer(seq []byte, k int, fn func(pos int, fwd, rev uint64)) {
	r := NewRoller(k)
	for i, b := range seq {
		if r.Push(b) {
			fn(i-k+1, r.Fwd, r.Rev)
		}
	}
}

// Encode packs the 2-bit codes of seq, most significant base first.
// ok is false if seq holds an ambiguous base.
func Encode(seq []byte) (code uint64, ok bool) {
	for _, b := range seq {
		c := Base2Bnt[b]
		if c == AmbiguousBnt {
			return 0, false
		}
		code = code<<2 | uint64(c)
	}
	return code, true
}

// RevComp returns the reverse complement of a k-mer code.
func RevComp(code uint64, k int) (rc uint64) {
	for i := 0; i < k; i++ {
		rc = rc<<2 | (3 - code&3)
		code >>= 2
	}
	return rc
}
