package crypto

import "crypto/subtle"

// XorInplace sets l = l ^ r and returns l. Both slices must have the same length.
func XorInplace(l []byte, r []byte) []byte {
	if len(l) != len(r) {
		panic("xor of mismatched lengths")
	}
	subtle.XORBytes(l, l, r)
	return l
}
