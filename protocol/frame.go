// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket frame header encoding/decoding and masking.

package protocol

import (
	"encoding/binary"

	"github.com/momentics/rcom/api"
)

// FrameHeader is the decoded fixed part of one frame.
type FrameHeader struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	Length  uint64
	MaskKey [4]byte
}

// AppendHeader encodes h onto dst. Lengths up to 125 use the 7-bit form,
// up to 65535 the 16-bit form, anything larger the 64-bit form.
func AppendHeader(dst []byte, h FrameHeader) []byte {
	b0 := byte(h.Opcode) & 0x0F
	if h.Fin {
		b0 |= FinBit
	}
	var maskBit byte
	if h.Masked {
		maskBit = MaskBit
	}
	switch {
	case h.Length <= 125:
		dst = append(dst, b0, maskBit|byte(h.Length))
	case h.Length <= 0xFFFF:
		dst = append(dst, b0, maskBit|126)
		dst = binary.BigEndian.AppendUint16(dst, uint16(h.Length))
	default:
		dst = append(dst, b0, maskBit|127)
		dst = binary.BigEndian.AppendUint64(dst, h.Length)
	}
	if h.Masked {
		dst = append(dst, h.MaskKey[:]...)
	}
	return dst
}

// ReadHeader reads one frame header, including extended length and mask key.
func ReadHeader(sock api.Socket) (FrameHeader, error) {
	var h FrameHeader
	var b [8]byte
	if err := sock.Read(b[:2]); err != nil {
		return h, err
	}
	h.Fin = b[0]&FinBit != 0
	h.Opcode = Opcode(b[0] & 0x0F)
	h.Masked = b[1]&MaskBit != 0
	switch n := b[1] & 0x7F; n {
	case 126:
		if err := sock.Read(b[:2]); err != nil {
			return h, err
		}
		h.Length = uint64(binary.BigEndian.Uint16(b[:2]))
	case 127:
		if err := sock.Read(b[:8]); err != nil {
			return h, err
		}
		h.Length = binary.BigEndian.Uint64(b[:8])
	default:
		h.Length = uint64(n)
	}
	if h.Masked {
		if err := sock.Read(h.MaskKey[:]); err != nil {
			return h, err
		}
	}
	return h, nil
}

// Mask XORs src with key into dst, starting at key position pos, and
// returns the position to continue from. dst and src may be the same slice.
// Applying it twice with the same key restores the input.
func Mask(dst, src []byte, key [4]byte, pos int) int {
	for i := range src {
		dst[i] = src[i] ^ key[(pos+i)&3]
	}
	return (pos + len(src)) & 3
}
