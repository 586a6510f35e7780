//go:build !nogpu

package main

import "github.com/gogpu/mosaic/gpu"

func useSPIRV(enabled bool) { gpu.UseSPIRV(enabled) }
