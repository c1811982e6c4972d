package battle

import "math/rand/v2"

// codeAlphabet excludes visually ambiguous characters (0/O, 1/I) so codes
// survive being read aloud or scribbled on a whiteboard.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

func newRoomCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}
