//go:build linux

package proc

const procfsAvailable = true
