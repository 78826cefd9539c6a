package raster

import (
	"image"

	"github.com/corona10/goimagehash"
)

// Fingerprint is a perceptual hash of a frame. Identical inputs give
// identical fingerprints; visually close frames give close ones.
func Fingerprint(img image.Image) (uint64, error) {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, err
	}
	return h.GetHash(), nil
}

// Distance is the Hamming distance between two frames' perceptual hashes.
func Distance(a, b image.Image) (int, error) {
	ha, err := goimagehash.PerceptionHash(a)
	if err != nil {
		return 0, err
	}
	hb, err := goimagehash.PerceptionHash(b)
	if err != nil {
		return 0, err
	}
	return ha.Distance(hb)
}
