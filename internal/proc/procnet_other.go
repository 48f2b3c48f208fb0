//go:build !linux

package proc

const procfsAvailable = false
