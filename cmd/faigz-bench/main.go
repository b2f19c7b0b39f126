package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/waveygang/faigz"
)

func main() {
	var (
		threadsFlag, countFlag, lengthFlag int
		outputFlag                         string
		seedFlag                           int64
		verboseFlag                        bool
	)

	flag.IntVar(&threadsFlag, "t", 4, "number of worker threads")
	flag.IntVar(&countFlag, "n", 1000, "number of sequences to fetch per thread")
	flag.IntVar(&lengthFlag, "l", 100, "length of each fetched sequence")
	flag.StringVar(&outputFlag, "o", "", "output fetched sequences to file")
	flag.Int64Var(&seedFlag, "s", 42, "random seed")
	flag.BoolVar(&verboseFlag, "v", false, "be verbose")

	flag.Parse()

	var err error
	var logger *zap.Logger
	if verboseFlag {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal("failed to initialize logger", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if flag.NArg() != 1 {
		logger.Fatal("exactly one fasta file must be given")
	}
	if threadsFlag < 1 || countFlag < 1 || lengthFlag < 1 {
		logger.Fatal("thread count, fetch count and fetch length must all be >= 1")
	}

	meta, err := faigz.Load(flag.Arg(0), faigz.FormatFasta, faigz.WithCreate(), faigz.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to load index", zap.Error(err))
	}
	defer meta.Close()

	nseq := meta.NSeq()
	if nseq == 0 {
		logger.Fatal("index holds no sequences")
	}

	names := make([]string, nseq)
	lengths := make([]int64, nseq)
	for i := range names {
		if names[i], err = meta.SeqName(i); err != nil {
			logger.Fatal("failed to resolve sequence name", zap.Int("id", i), zap.Error(err))
		}
		if lengths[i], err = meta.SeqLen(names[i]); err != nil {
			logger.Fatal("failed to resolve sequence length", zap.String("name", names[i]), zap.Error(err))
		}
	}

	var outputMu sync.Mutex
	var output *os.File
	if outputFlag != "" {
		output, err = os.OpenFile(outputFlag, os.O_TRUNC|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			logger.Fatal("failed to open output", zap.Error(err))
		}
		defer output.Close()
	}

	logger.Info("starting benchmark",
		zap.String("file", flag.Arg(0)),
		zap.Int("threads", threadsFlag),
		zap.Int("fetchesPerThread", countFlag),
		zap.Int("fetchLength", lengthFlag),
		zap.Bool("compressed", meta.IsCompressed()))

	bar := progressbar.Default(int64(threadsFlag*countFlag), "fetching")
	bases := make([]uint64, threadsFlag)
	digests := make([]uint64, threadsFlag)

	start := time.Now()
	g := new(errgroup.Group)
	for i := 0; i < threadsFlag; i++ {
		i := i
		g.Go(func() error {
			reader, err := faigz.NewReader(meta)
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			defer reader.Close()

			rng := rand.New(rand.NewSource(seedFlag + int64(i)))
			digest := xxhash.New()

			for j := 0; j < countFlag; j++ {
				pick := rng.Intn(nseq)
				if lengths[pick] == 0 {
					_ = bar.Add(1)
					continue
				}

				beg := rng.Int63n(lengths[pick])
				seq, err := reader.FetchSeq(names[pick], beg, beg+int64(lengthFlag)-1)
				if err != nil {
					return fmt.Errorf("worker %d: fetch %s:%d: %w", i, names[pick], beg, err)
				}

				_, _ = digest.Write(seq)
				bases[i] += uint64(len(seq))

				if output != nil {
					outputMu.Lock()
					_, err = fmt.Fprintf(output, ">%s:%d-%d\n%s\n", names[pick], beg+1, beg+int64(len(seq)), seq)
					outputMu.Unlock()
					if err != nil {
						return fmt.Errorf("worker %d: write output: %w", i, err)
					}
				}

				_ = bar.Add(1)
			}

			digests[i] = digest.Sum64()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatal("benchmark failed", zap.Error(err))
	}
	elapsed := time.Since(start)

	var total uint64
	for i, n := range bases {
		total += n
		logger.Info("worker done",
			zap.Int("worker", i),
			zap.Uint64("bases", n),
			zap.Uint64("digest", digests[i]))
	}

	logger.Info("benchmark complete",
		zap.Int("fetches", threadsFlag*countFlag),
		zap.Uint64("bases", total),
		zap.Duration("elapsed", elapsed),
		zap.Float64("basesPerSec", float64(total)/elapsed.Seconds()))
}
