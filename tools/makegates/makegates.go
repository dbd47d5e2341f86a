package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
)

// The number of entries in the interrupt descriptor table.
const numGates = 256

// errorCodeVectors lists the exceptions for which the CPU pushes an error
// code before invoking the handler.
var errorCodeVectors = map[int]bool{
	8: true, 10: true, 11: true, 12: true, 13: true, 14: true,
	17: true, 21: true, 29: true, 30: true,
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[makegates] error: %s\n", err.Error())
	os.Exit(1)
}

// genGateEntries returns the assembly source for the gate entrypoints and
// the table holding their addresses.
func genGateEntries() []byte {
	var buf bytes.Buffer

	fmt.Fprint(&buf, "// Code generated by makegates; DO NOT EDIT.\n\n")
	fmt.Fprint(&buf, "#include \"textflag.h\"\n\n")
	fmt.Fprint(&buf, "// Each gate entry pushes a zero error code unless the CPU already pushed one,\n")
	fmt.Fprint(&buf, "// pushes its interrupt number and jumps to gateCommon.\n")

	for num := 0; num < numGates; num++ {
		fmt.Fprintf(&buf, "TEXT ·gateEntry%d(SB),NOSPLIT|NOFRAME,$0\n", num)
		if !errorCodeVectors[num] {
			fmt.Fprint(&buf, "\tPUSHQ $0\n")
		}
		fmt.Fprintf(&buf, "\tPUSHQ $%d\n", num)
		fmt.Fprint(&buf, "\tJMP ·gateCommon(SB)\n\n")
	}

	fmt.Fprint(&buf, "// gateEntryTable holds the address of each gate entry.\n")
	for num := 0; num < numGates; num++ {
		fmt.Fprintf(&buf, "DATA ·gateEntryTable+%d(SB)/8, $·gateEntry%d(SB)\n", num*8, num)
	}
	fmt.Fprintf(&buf, "GLOBL ·gateEntryTable(SB), RODATA, $%d\n", numGates*8)

	return buf.Bytes()
}

func runTool() error {
	output := flag.String("out", "-", "a file to write the generated assembly or - to output to STDOUT")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, "makegates: generate the interrupt gate entrypoints\n\n")
		fmt.Fprint(os.Stderr, "Usage: makegates [options]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 0 {
		return errors.New("unexpected arguments")
	}

	src := genGateEntries()
	if *output == "-" {
		_, err := os.Stdout.Write(src)
		return err
	}

	return ioutil.WriteFile(*output, src, 0644)
}

func main() {
	if err := runTool(); err != nil {
		exit(err)
	}
}
