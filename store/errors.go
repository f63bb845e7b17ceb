package store

import "fmt"

func errOutOfRange(k, count int) error {
	return fmt.Errorf("chunk index %d out of range [0,%d)", k, count)
}

func errShortDst(got, want int) error {
	return fmt.Errorf("destination buffer has %d bytes, need at least %d", got, want)
}

func errMismatchedChunkSize(got, want int) error {
	return fmt.Errorf("chunk size %d does not match store chunk size %d", got, want)
}
