package responder

import "bytes"

// defaultReply is sent to every client regardless of what it wrote.
var defaultReply = [...]byte{
	0xcc, 0xdd, 0xee, 0xff, 0x63, 0x27, 0x00, 0x00,
	0xe5, 0x12, 0x69, 0x00, 0x36, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x30, 0x56, 0x63,
	0x34, 0x6f, 0x88, 0xb0, 0x76, 0x37, 0xba, 0x75,
	0xe5, 0x14, 0x50, 0x9d, 0x04, 0x4d, 0x57, 0xe1,
	0xc6, 0xdd, 0x18, 0x48, 0x0c, 0x42, 0x09, 0xf4,
	0x9e, 0xc3, 0x5b, 0x47, 0xca, 0x36,
}

// DefaultReply returns a copy of the built-in 54-byte reply.
func DefaultReply() []byte {
	b := make([]byte, len(defaultReply))
	copy(b, defaultReply[:])
	return b
}

// Trim strips leading and trailing ASCII whitespace and control bytes.
// The result shares memory with b.
func Trim(b []byte) []byte {
	return bytes.TrimFunc(b, func(r rune) bool {
		return r <= 0x20 || r == 0x7f
	})
}
