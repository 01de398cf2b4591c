//go:build !darwin && !linux

package audio

func playTone(string) bool { return false }
