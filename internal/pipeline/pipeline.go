package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/data"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/logger"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/writer"
)

type result[T any] struct {
	path string
	data T
	err  error
}

type writeResult[T any] struct {
	mu       sync.Mutex
	writes   map[string]T
	failures map[string]error
}

type Clients struct {
	validator *Validator
	writer    *writer.CSVWriter[data.Record]
}

type contextKey string

const clientsKey contextKey = "all_my_clients"

const outputFileKey contextKey = "output_file"

// RunBatch validates every image file in directory and appends one CSV row per
// accepted document to outputFile. Rejected and failed files are returned in
// failures keyed by path; "pipeline_error" collects errors not tied to a file.
func RunBatch(ctx context.Context, v *Validator, directory, outputFile string) (writes map[string]data.Record, failures map[string]error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	logger.DebugLog("Batch started with directory=%s, output=%s, workers=%d", directory, outputFile, v.Workers())

	clients := &Clients{
		validator: v,
		writer:    writer.NewCSVWriter(data.MapCSVRecord, data.GetCSVHeader),
	}

	ctx = context.WithValue(ctx, clientsKey, clients)
	ctx = context.WithValue(ctx, outputFileKey, outputFile)

	workers := v.Workers()
	errChan := make(chan error, 10)
	files := make(chan imageFile)
	loaded := make(chan loadedImage, workers)
	throttledChan := make(chan struct{}, workers)
	validated := make(chan result[data.Record], 10)
	results := &writeResult[data.Record]{
		writes:   make(map[string]data.Record),
		failures: make(map[string]error),
	}

	go func() {
		defer close(files)
		logger.DebugLog("Starting [walkFiles] goroutine")
		walkFiles(ctx, directory, files, errChan)
		defer logger.DebugLog("[walkFiles] goroutine finished")
	}()

	go func() {
		defer close(loaded)
		logger.DebugLog("Starting [loadImage] goroutine")
		loadImage(ctx, files, loaded, throttledChan, errChan)
		defer logger.DebugLog("[loadImage] goroutine finished")
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			logger.DebugLog("Starting [validateImages] worker #%d", worker+1)
			defer logger.DebugLog("[validateImages] worker #%d finished", worker+1)
			return validateImages(gctx, loaded, validated)
		})
	}
	go func() {
		if err := g.Wait(); err != nil {
			errChan <- err
		}
		logger.DebugLog("All [validateImages] workers finished, closing validated")
		close(validated)
	}()

	var writeWg sync.WaitGroup
	writeWg.Add(1)
	go func() {
		defer writeWg.Done()
		logger.DebugLog("Starting [writeOutput] goroutine")
		writeOutput(ctx, validated, results, errChan)
		defer logger.DebugLog("[writeOutput] goroutine finished")
	}()

	writeWg.Wait()
	// unblock the loader if the workers stopped early
	cancel()
	for range loaded {
	}
	logger.DebugLog("All [writeOutput] finished, closing errChan")
	close(errChan)
	for err := range errChan {
		if err != nil {
			logger.DebugLog("Error received in errChan: %v", err)
			results.addFailure("pipeline_error", err)
		}
	}

	logger.DebugLog("Batch finished: %d written, %d failed", len(results.writes), len(results.failures))
	return results.writes, results.failures
}
