// Command gnamec compresses and decompresses streams of read names.
//
// Usage:
//
//	gnamec [-x4] [-zstd] < names.txt > names.gnm
//	gnamec -d < names.gnm > names.txt
//	gnamec -raw < file > file.gnm
//	gnamec -raw -d < file.gnm > file
package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/jkbonfield/gnamec/pkg/blockdriver"
)

var (
	decode  = flag.Bool("d", false, "decode instead of encode")
	raw     = flag.Bool("raw", false, "treat input as an arbitrary byte stream, not newline-delimited names")
	allowX4 = flag.Bool("x4", true, "allow the meta-codec's 4-way deinterleave candidate")
	zstd    = flag.Bool("zstd", false, "allow the meta-codec's zstd fallback tier")
	verbose = flag.Bool("v", false, "log block-boundary events to stderr")
	help    = flag.Bool("h", false, "display this help")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *help {
		usage()
		os.Exit(0)
	}

	logger := zerolog.Nop()
	if *verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	opts := []blockdriver.Option{
		blockdriver.WithAllowX4(*allowX4),
		blockdriver.WithAllowZstd(*zstd),
		blockdriver.WithLogger(logger),
	}

	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		fatal("reading stdin: %v", err)
	}

	var out []byte
	if *raw {
		out, err = runRaw(input, *decode, opts)
	} else {
		out, err = runNames(input, *decode, opts)
	}
	if err != nil {
		fatal("%v", err)
	}

	if _, err := os.Stdout.Write(out); err != nil {
		fatal("writing stdout: %v", err)
	}
}

func runRaw(input []byte, decode bool, opts []blockdriver.Option) ([]byte, error) {
	if decode {
		return blockdriver.DecodeStandalone(input)
	}
	return blockdriver.EncodeStandalone(input, opts...)
}

// runNames implements the name-stream form: encode reads newline-
// delimited names and writes a uint32_le line count followed by the
// block-framed bytes; decode reverses it, one name per output line.
func runNames(input []byte, decode bool, opts []blockdriver.Option) ([]byte, error) {
	if decode {
		if len(input) < 4 {
			return nil, fmt.Errorf("gnamec: input shorter than its line-count header")
		}
		nLines := int(binary.LittleEndian.Uint32(input))
		names, err := blockdriver.DecodeBlock(input[4:], nLines, opts...)
		if err != nil {
			return nil, err
		}
		var out []byte
		for _, name := range names {
			out = append(out, name...)
			out = append(out, '\n')
		}
		return out, nil
	}

	names := splitLines(input)
	blob, err := blockdriver.EncodeBlock(names, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4, 4+len(blob))
	binary.LittleEndian.PutUint32(out, uint32(len(names)))
	return append(out, blob...), nil
}

func splitLines(input []byte) [][]byte {
	var names [][]byte
	sc := bufio.NewScanner(bytes.NewReader(input))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		name := make([]byte, len(line))
		copy(name, line)
		names = append(names, name)
	}
	return names
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: gnamec [-x4] [-zstd] [-v] < names.txt > names.gnm
       gnamec -d [-v] < names.gnm > names.txt
       gnamec -raw [-zstd] < file > file.gnm
       gnamec -raw -d < file.gnm > file

Compress or decompress a stream of read names via the block tokeniser
and meta-codec, or (with -raw) an arbitrary byte stream via the
meta-codec alone.

Options:
  -d        decode instead of encode
  -raw      treat input as an arbitrary byte stream, not names
  -x4       allow the 4-way deinterleave candidate (default true)
  -zstd     allow the zstd fallback tier (default false)
  -v        log block-boundary events to stderr
  -h        display this help

`)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "gnamec: "+format+"\n", args...)
	os.Exit(1)
}
