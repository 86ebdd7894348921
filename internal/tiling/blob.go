package tiling

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/born-ml/tilekit/internal/tensor"
)

// Blob format constants. The layout is shared bit-for-bit by the host writer
// and the device reader: any field change bumps BlobVersion on both sides.
const (
	BlobMagic    = "TILE"
	BlobVersion  = 1
	ChecksumSize = sha256.Size
)

// blobHeader is the fixed-width plan header, little-endian.
type blobHeader struct {
	Magic     [4]byte
	Version   uint16
	NumInputs uint8
	Rank      uint8
	Key       uint32
	SplitAxis uint8
	Attr      uint8
	_         [2]byte

	BlockFormer    int64
	BlockTail      int64
	TileFormer     int64
	TileTail       int64
	ColFormer      int64
	ColTail        int64
	UsedCoreCount  int64
	UBBytes        int64
	DiagonalOffset int64
}

// blobOperand is one operand record: output, then each input in order.
type blobOperand struct {
	Shape   [tensor.MaxRank]int64
	Strides [tensor.MaxRank]int64
	Offset  int64
	FanIn   int64
}

var (
	headerSize  = binary.Size(blobHeader{})
	operandSize = binary.Size(blobOperand{})
)

// BlobSize returns the encoded size of a plan with numInputs inputs.
func BlobSize(numInputs int) int {
	return headerSize + (1+numInputs)*operandSize + ChecksumSize
}

// Encode serializes p into the fixed-layout tiling blob followed by a
// SHA-256 checksum of everything before it.
func Encode(p *Plan) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	h := blobHeader{
		Version:        BlobVersion,
		NumInputs:      uint8(len(p.Inputs)),
		Rank:           uint8(p.Rank()),
		Key:            uint32(p.Key),
		SplitAxis:      uint8(p.SplitAxis),
		Attr:           uint8(p.Attr),
		BlockFormer:    int64(p.BlockFormer),
		BlockTail:      int64(p.BlockTail),
		TileFormer:     int64(p.TileFormer),
		TileTail:       int64(p.TileTail),
		ColFormer:      int64(p.ColFormer),
		ColTail:        int64(p.ColTail),
		UsedCoreCount:  int64(p.UsedCoreCount),
		UBBytes:        int64(p.UBBytes),
		DiagonalOffset: int64(p.DiagonalOffset),
	}
	copy(h.Magic[:], BlobMagic)

	var buf bytes.Buffer
	buf.Grow(BlobSize(len(p.Inputs)))
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrap(err, "write blob header")
	}
	for _, op := range append([]Operand{p.Out}, p.Inputs...) {
		rec := encodeOperand(op)
		if err := binary.Write(&buf, binary.LittleEndian, &rec); err != nil {
			return nil, errors.Wrap(err, "write blob operand")
		}
	}
	sum := sha256.Sum256(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes(), nil
}

// Decode parses and validates a tiling blob.
func Decode(blob []byte) (*Plan, error) {
	if len(blob) < BlobSize(0) {
		return nil, errors.Wrapf(ErrTruncated, "%d bytes, need at least %d", len(blob), BlobSize(0))
	}

	r := bytes.NewReader(blob)
	var h blobHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, errors.Wrap(err, "read blob header")
	}
	if string(h.Magic[:]) != BlobMagic {
		return nil, errors.Wrapf(ErrInvalidMagic, "got %q", h.Magic[:])
	}
	if h.Version != BlobVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", h.Version)
	}
	if int(h.NumInputs) > MaxInputs || int(h.Rank) > tensor.MaxRank {
		return nil, errors.Wrapf(ErrInvalidPlan, "%d inputs, rank %d", h.NumInputs, h.Rank)
	}
	size := BlobSize(int(h.NumInputs))
	if len(blob) != size {
		return nil, errors.Wrapf(ErrTruncated, "%d bytes, want %d", len(blob), size)
	}

	body := blob[:size-ChecksumSize]
	var stored [ChecksumSize]byte
	copy(stored[:], blob[size-ChecksumSize:])
	if sha256.Sum256(body) != stored {
		return nil, ErrChecksumMismatch
	}

	p := &Plan{
		Key:            Key(h.Key),
		Attr:           Attr(h.Attr),
		SplitAxis:      int(h.SplitAxis),
		BlockFormer:    int(h.BlockFormer),
		BlockTail:      int(h.BlockTail),
		TileFormer:     int(h.TileFormer),
		TileTail:       int(h.TileTail),
		ColFormer:      int(h.ColFormer),
		ColTail:        int(h.ColTail),
		UsedCoreCount:  int(h.UsedCoreCount),
		UBBytes:        int(h.UBBytes),
		DiagonalOffset: int(h.DiagonalOffset),
	}
	rank := int(h.Rank)
	for i := 0; i <= int(h.NumInputs); i++ {
		var rec blobOperand
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return nil, errors.Wrapf(err, "read blob operand %d", i)
		}
		op := decodeOperand(rec, rank)
		if i == 0 {
			p.Out = op
		} else {
			p.Inputs = append(p.Inputs, op)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func encodeOperand(op Operand) blobOperand {
	var rec blobOperand
	for i := 0; i < op.Shape.Rank; i++ {
		rec.Shape[i] = int64(op.Shape.V[i])
		rec.Strides[i] = int64(op.Strides.V[i])
	}
	rec.Offset = int64(op.Offset)
	rec.FanIn = int64(op.FanIn)
	return rec
}

func decodeOperand(rec blobOperand, rank int) Operand {
	op := Operand{Offset: int(rec.Offset), FanIn: int(rec.FanIn)}
	op.Shape.Rank = rank
	op.Strides.Rank = rank
	for i := 0; i < rank; i++ {
		op.Shape.V[i] = int(rec.Shape[i])
		op.Strides.V[i] = int(rec.Strides[i])
	}
	return op
}
