// Package bitarray implements a dense array of fixed width (1, 2, 4 or 8 bit)
// slots packed into a byte buffer.
package bitarray

import (
	"encoding/binary"
	"io"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrBitWidth     = errors.New("bits per slot must be one of 1, 2, 4, 8")
	ErrOutOfRange   = errors.New("slot index out of range")
	ErrValueRange   = errors.New("slot value larger than mask")
	ErrSizeMismatch = errors.New("bit array size mismatch")
	ErrCorrupt      = errors.New("corrupt bit array stream")
)

// BitArray stores Size slots of Nbit bits each.
type BitArray struct {
	Size uint64 // logical slot count
	Nbit int    // bits per slot
	Mask uint8  // (1<<Nbit)-1
	Data []byte // len == RealCols(Size, Nbit)
}

func validWidth(nbit int) bool {
	return nbit == 1 || nbit == 2 || nbit == 4 || nbit == 8
}

// RealCols returns the number of bytes backing size slots of nbit bits.
func RealCols(size uint64, nbit int) uint64 {
	return (size*uint64(nbit) + 7) / 8
}

func New(size uint64, nbit int) (*BitArray, error) {
	if !validWidth(nbit) {
		return nil, errors.Wrapf(ErrBitWidth, "nbit: %d", nbit)
	}
	ba := &BitArray{
		Size: size,
		Nbit: nbit,
		Mask: uint8(1<<uint(nbit) - 1),
		Data: make([]byte, RealCols(size, nbit)),
	}
	return ba, nil
}

func (ba *BitArray) locate(i uint64) (uint64, uint) {
	bits := i * uint64(ba.Nbit)
	return bits / 8, uint(bits % 8)
}

// Lookup returns slot i without a bound check, the caller guarantees i < Size.
func (ba *BitArray) Lookup(i uint64) uint8 {
	b, off := ba.locate(i)
	return (ba.Data[b] >> off) & ba.Mask
}

// Store sets slot i without checks, the caller guarantees i < Size and v <= Mask.
func (ba *BitArray) Store(i uint64, v uint8) {
	b, off := ba.locate(i)
	ba.Data[b] = ba.Data[b]&^(ba.Mask<<off) | (v&ba.Mask)<<off
}

func (ba *BitArray) Get(i uint64) (uint8, error) {
	if i >= ba.Size {
		return 0, errors.Wrapf(ErrOutOfRange, "get %d of %d", i, ba.Size)
	}
	return ba.Lookup(i), nil
}

func (ba *BitArray) Set(i uint64, v uint8) error {
	if i >= ba.Size {
		return errors.Wrapf(ErrOutOfRange, "set %d of %d", i, ba.Size)
	}
	if v > ba.Mask {
		return errors.Wrapf(ErrValueRange, "value %d mask %d", v, ba.Mask)
	}
	ba.Store(i, v)
	return nil
}

func (ba *BitArray) Clone() *BitArray {
	nb := *ba
	nb.Data = make([]byte, len(ba.Data))
	copy(nb.Data, ba.Data)
	return &nb
}

func (ba *BitArray) Equal(o *BitArray) bool {
	if ba.Size != o.Size || ba.Nbit != o.Nbit || len(ba.Data) != len(o.Data) {
		return false
	}
	for i := range ba.Data {
		if ba.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// orChunk is the minimum number of bytes handed to one goroutine in Or.
const orChunk = 1 << 20

// Or merges o into ba byte by byte, splitting large buffers across CPUs.
func (ba *BitArray) Or(o *BitArray) error {
	if ba.Size != o.Size || ba.Nbit != o.Nbit {
		return errors.Wrapf(ErrSizeMismatch, "size %d/%d nbit %d/%d", ba.Size, o.Size, ba.Nbit, o.Nbit)
	}
	n := len(ba.Data)
	numCPU := runtime.GOMAXPROCS(0)
	if n < orChunk*2 || numCPU < 2 {
		orBytes(ba.Data, o.Data)
		return nil
	}
	step := (n + numCPU - 1) / numCPU
	if step < orChunk {
		step = orChunk
	}
	var wg sync.WaitGroup
	for start := 0; start < n; start += step {
		end := start + step
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			orBytes(ba.Data[s:e], o.Data[s:e])
		}(start, end)
	}
	wg.Wait()
	return nil
}

func orBytes(dst, src []byte) {
	for i := range dst {
		dst[i] |= src[i]
	}
}

// Count returns the number of non-zero slots.
func (ba *BitArray) Count() (c uint64) {
	if ba.Nbit == 1 {
		for _, b := range ba.Data {
			c += uint64(popcount[b])
		}
		return c
	}
	for i := uint64(0); i < ba.Size; i++ {
		if ba.Lookup(i) > 0 {
			c++
		}
	}
	return c
}

var popcount [256]uint8

func init() {
	for i := 1; i < 256; i++ {
		popcount[i] = popcount[i/2] + uint8(i&1)
	}
}

// header layout: size u64, mask u8, nbit i32, realCols u64
type header struct {
	Size     uint64
	Mask     uint8
	Nbit     int32
	RealCols uint64
}

// WriteTo writes the header followed by the raw buffer.
func (ba *BitArray) WriteTo(w io.Writer) (int64, error) {
	h := header{Size: ba.Size, Mask: ba.Mask, Nbit: int32(ba.Nbit), RealCols: uint64(len(ba.Data))}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return 0, errors.Wrap(err, "write bit array header")
	}
	n, err := w.Write(ba.Data)
	if err != nil {
		return int64(binary.Size(h) + n), errors.Wrap(err, "write bit array data")
	}
	return int64(binary.Size(h) + n), nil
}

// ReadFrom reads a stream written by WriteTo, rejecting inconsistent headers
// and truncated payloads.
func ReadFrom(r io.Reader) (*BitArray, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrap(ErrCorrupt, "read header: "+err.Error())
	}
	nbit := int(h.Nbit)
	if !validWidth(nbit) {
		return nil, errors.Wrapf(ErrCorrupt, "nbit: %d", h.Nbit)
	}
	if h.Mask != uint8(1<<uint(nbit)-1) {
		return nil, errors.Wrapf(ErrCorrupt, "mask %d for nbit %d", h.Mask, nbit)
	}
	if h.RealCols != RealCols(h.Size, nbit) {
		return nil, errors.Wrapf(ErrCorrupt, "realCols %d for size %d", h.RealCols, h.Size)
	}
	ba := &BitArray{Size: h.Size, Nbit: nbit, Mask: h.Mask, Data: make([]byte, h.RealCols)}
	if _, err := io.ReadFull(r, ba.Data); err != nil {
		return nil, errors.Wrap(ErrCorrupt, "read data: "+err.Error())
	}
	return ba, nil
}
