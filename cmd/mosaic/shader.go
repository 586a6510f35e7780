package main

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/codegangsta/cli"
	"github.com/dustin/go-humanize"
	"github.com/gogpu/mosaic"
	"github.com/gogpu/mosaic/shader"
)

func shaderCommand() cli.Command {
	return cli.Command{
		Name:  "shader",
		Usage: "Print the effect program as WGSL, or write it as SPIR-V.",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "spirv",
				Usage: "Compile with naga and write SPIR-V to `FILE`.",
			},
		},
		Action: runShader,
	}
}

func runShader(c *cli.Context) error {
	out := c.String("spirv")
	if out == "" {
		_, err := io.WriteString(c.App.Writer, shader.Source)
		return err
	}

	words, err := shader.Compile()
	if err != nil {
		return err
	}
	data := spirvBytes(words)
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	mosaic.Logger().Info("wrote SPIR-V", "file", out, "words", len(words),
		"bytes", humanize.Bytes(uint64(len(data))))
	return nil
}

// spirvBytes encodes SPIR-V words in little-endian order.
func spirvBytes(words []uint32) []byte {
	data := make([]byte, 0, len(words)*4)
	for _, w := range words {
		data = binary.LittleEndian.AppendUint32(data, w)
	}
	return data
}
