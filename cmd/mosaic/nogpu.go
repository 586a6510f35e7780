//go:build nogpu

package main

func useSPIRV(bool) {}
