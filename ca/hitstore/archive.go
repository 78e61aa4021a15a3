package hitstore

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/klauspost/compress/s2"
	"github.com/minio/highwayhash"

	"github.com/cbm-reco/catrack/ca/pars"
)

// archiveKey is a fixed 256-bit key for the HighwayHash integrity
// checksum appended to every archive. The checksum exists purely to turn
// a truncated/corrupted archive into a detectable decode error (spec.md
// §7 "Serialization: file missing / corrupt: Fails the ingest"); it is
// not a cryptographic authentication mechanism, so a fixed key is fine.
var archiveKey = [32]byte{
	0x63, 0x61, 0x74, 0x72, 0x61, 0x63, 0x6b, 0x2d,
	0x61, 0x72, 0x63, 0x68, 0x69, 0x76, 0x65, 0x2d,
	0x68, 0x69, 0x74, 0x73, 0x74, 0x6f, 0x72, 0x65,
	0x2d, 0x68, 0x6b, 0x65, 0x79, 0x2d, 0x76, 0x31,
}

const checksumSize = 32

// Encode serialises s as {Vector<Hit>, Vector<StreamStart>,
// Vector<StreamStop>, int nHitKeys} in that order, little-endian, each
// vector length-prefixed (spec.md §6), then S2-compresses the payload
// and appends a HighwayHash checksum of the uncompressed bytes so Decode
// can detect corruption before trying to interpret garbage as hit data.
func Encode(w io.Writer, s *HitStore) error {
	var buf bytes.Buffer

	writeU32 := func(v uint32) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	writeI32 := func(v int32) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	writeF64 := func(v float64) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	writeU32(uint32(len(s.hits)))
	for _, h := range s.hits {
		writeI32(h.ID)
		writeI32(h.Station)
		writeF64(h.X)
		writeF64(h.Y)
		writeF64(h.Z)
		writeF64(h.T)
		writeF64(h.DX2)
		writeF64(h.DY2)
		writeF64(h.DXY)
		writeF64(h.DT2)
		writeF64(h.RangeX)
		writeF64(h.RangeY)
		writeF64(h.RangeT)
		writeI32(h.FrontKey)
		writeI32(h.BackKey)
	}

	writeU32(uint32(len(s.streamStart)))
	for _, v := range s.streamStart {
		writeI32(v)
	}

	writeU32(uint32(len(s.streamStop)))
	for _, v := range s.streamStop {
		writeI32(v)
	}

	writeI32(int32(s.nHitKeys))

	sum := highwayhash.Sum(buf.Bytes(), archiveKey[:])

	compressed := s2.Encode(nil, buf.Bytes())
	if _, err := w.Write(compressed); err != nil {
		return errors.E(errors.Other, err, "hitstore.Encode: writing compressed archive")
	}
	if _, err := w.Write(sum[:]); err != nil {
		return errors.E(errors.Other, err, "hitstore.Encode: writing checksum")
	}
	return nil
}

// Decode reads an archive produced by Encode, verifying the checksum
// before interpreting the payload (spec.md §8 property 5: round-trip
// must be exact elementwise).
func Decode(r io.Reader) (*HitStore, error) {
	all, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.E(errors.Other, err, "hitstore.Decode: reading archive")
	}
	if len(all) < checksumSize {
		return nil, errors.E(errors.Invalid, "hitstore.Decode: archive truncated")
	}
	body, wantSum := all[:len(all)-checksumSize], all[len(all)-checksumSize:]

	payload, err := s2.Decode(nil, body)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "hitstore.Decode: corrupt archive (decompression failed)")
	}

	gotSum := highwayhash.Sum(payload, archiveKey[:])
	if !bytes.Equal(gotSum[:], wantSum) {
		return nil, errors.E(errors.Invalid, "hitstore.Decode: corrupt archive (checksum mismatch)")
	}

	buf := bytes.NewReader(payload)
	readU32 := func() (uint32, error) {
		var v uint32
		err := binary.Read(buf, binary.LittleEndian, &v)
		return v, err
	}
	readI32 := func() (int32, error) {
		var v int32
		err := binary.Read(buf, binary.LittleEndian, &v)
		return v, err
	}
	readF64 := func() (float64, error) {
		var v float64
		err := binary.Read(buf, binary.LittleEndian, &v)
		return v, err
	}

	nHits, err := readU32()
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "hitstore.Decode: reading hit count")
	}
	hits := make([]pars.Hit, nHits)
	for i := range hits {
		var h pars.Hit
		var rerr error
		readAll := func(fields ...*float64) {
			for _, f := range fields {
				if rerr == nil {
					*f, rerr = readF64()
				}
			}
		}
		if h.ID, rerr = readI32(); rerr != nil {
			return nil, errors.E(errors.Invalid, rerr, "hitstore.Decode: corrupt hit record")
		}
		if h.Station, rerr = readI32(); rerr != nil {
			return nil, errors.E(errors.Invalid, rerr, "hitstore.Decode: corrupt hit record")
		}
		readAll(&h.X, &h.Y, &h.Z, &h.T, &h.DX2, &h.DY2, &h.DXY, &h.DT2, &h.RangeX, &h.RangeY, &h.RangeT)
		if rerr != nil {
			return nil, errors.E(errors.Invalid, rerr, "hitstore.Decode: corrupt hit record")
		}
		if h.FrontKey, rerr = readI32(); rerr != nil {
			return nil, errors.E(errors.Invalid, rerr, "hitstore.Decode: corrupt hit record")
		}
		if h.BackKey, rerr = readI32(); rerr != nil {
			return nil, errors.E(errors.Invalid, rerr, "hitstore.Decode: corrupt hit record")
		}
		hits[i] = h
	}

	nStart, err := readU32()
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "hitstore.Decode: reading stream-start count")
	}
	streamStart := make([]int32, nStart)
	for i := range streamStart {
		if streamStart[i], err = readI32(); err != nil {
			return nil, errors.E(errors.Invalid, err, "hitstore.Decode: corrupt stream-start array")
		}
	}

	nStop, err := readU32()
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "hitstore.Decode: reading stream-stop count")
	}
	streamStop := make([]int32, nStop)
	for i := range streamStop {
		if streamStop[i], err = readI32(); err != nil {
			return nil, errors.E(errors.Invalid, err, "hitstore.Decode: corrupt stream-stop array")
		}
	}

	nHitKeys, err := readI32()
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "hitstore.Decode: reading nHitKeys")
	}

	return &HitStore{
		hits:        hits,
		streamStart: streamStart,
		streamStop:  streamStop,
		nHitKeys:    int(nHitKeys),
	}, nil
}
