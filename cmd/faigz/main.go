package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/waveygang/faigz"
)

const wrapWidth = 60

func main() {
	var (
		fastqFlag, qualFlag, verboseFlag bool
	)

	flag.BoolVar(&fastqFlag, "fastq", false, "treat the input as FASTQ")
	flag.BoolVar(&qualFlag, "q", false, "fetch quality bytes instead of sequence (FASTQ only)")
	flag.BoolVar(&verboseFlag, "v", false, "be verbose")

	flag.Parse()

	var err error
	var logger *zap.Logger
	if verboseFlag {
		logger, err = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}
	if err != nil {
		log.Fatal("failed to initialize logger", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-fastq] [-q] [-v] <file> [region ...]\n", os.Args[0])
		os.Exit(1)
	}

	format := faigz.FormatFasta
	if fastqFlag || qualFlag {
		format = faigz.FormatFastq
	}

	meta, err := faigz.Load(flag.Arg(0), format, faigz.WithCreate(), faigz.WithLogger(logger))
	if err != nil {
		fmt.Fprintln(os.Stderr, "faigz:", err)
		os.Exit(1)
	}
	defer meta.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	if flag.NArg() == 1 {
		for i := 0; i < meta.NSeq(); i++ {
			name, _ := meta.SeqName(i)
			length, _ := meta.SeqLen(name)
			fmt.Fprintf(out, "%s\t%d\n", name, length)
		}
		return
	}

	reader, err := faigz.NewReader(meta)
	if err != nil {
		fmt.Fprintln(os.Stderr, "faigz:", err)
		os.Exit(1)
	}
	defer reader.Close()

	for _, region := range flag.Args()[1:] {
		id, beg, end, err := meta.ParseRegion(region)
		if err != nil {
			fmt.Fprintln(os.Stderr, "faigz:", err)
			os.Exit(1)
		}
		name, err := meta.SeqName(id)
		if err != nil {
			fmt.Fprintln(os.Stderr, "faigz:", err)
			os.Exit(1)
		}

		fetch := reader.FetchSeq
		if qualFlag {
			fetch = reader.FetchQual
		}

		payload, err := fetch(name, beg, end-1)
		if err != nil {
			fmt.Fprintln(os.Stderr, "faigz:", err)
			os.Exit(1)
		}

		fmt.Fprintf(out, ">%s:%d-%d\n", name, beg+1, end)
		for len(payload) > wrapWidth {
			out.Write(payload[:wrapWidth])
			out.WriteByte('\n')
			payload = payload[wrapWidth:]
		}
		out.Write(payload)
		out.WriteByte('\n')
	}
}
