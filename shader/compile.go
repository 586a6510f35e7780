package shader

import (
	"fmt"
	"sync"

	"github.com/gogpu/naga"
)

var (
	compileOnce  sync.Once
	compiledCode []uint32
	compileErr   error
)

// Compile translates Source to SPIR-V words with naga. The result is cached
// since the source is static.
func Compile() ([]uint32, error) {
	compileOnce.Do(func() {
		compiledCode, compileErr = CompileWGSL(Source)
	})
	return compiledCode, compileErr
}

// CompileWGSL compiles arbitrary WGSL to SPIR-V little-endian words.
func CompileWGSL(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("shader: compile wgsl: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("shader: spir-v length %d is not a multiple of 4", len(spirvBytes))
	}

	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}
