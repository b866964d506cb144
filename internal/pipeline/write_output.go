package pipeline

import (
	"context"
	"fmt"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/data"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/logger"
)

func writeOutput(ctx context.Context,
	validated <-chan result[data.Record],
	results *writeResult[data.Record],
	errChan chan<- error) {
	defer func() {
		// keep the workers unblocked whatever happened above
		for range validated {
		}
	}()

	proc, ok := ctx.Value(clientsKey).(*Clients)
	if !ok {
		logger.DebugLog("[writeOutput]: missing clients in context")
		errChan <- fmt.Errorf("[writeOutput]: missing clients in context")
		return
	}
	writer := proc.writer
	defer func() {
		logger.DebugLog("[writeOutput]: closing CSV writer")
		writer.Close()
	}()

	output, _ := ctx.Value(outputFileKey).(string)

	for res := range validated {
		if res.err != nil {
			logger.DebugLog("[writeOutput]: failure for %s: %v", res.path, res.err)
			results.addFailure(res.path, res.err)
			continue
		}

		logger.DebugLog("[writeOutput]: writing data for %s", res.path)
		if err := writer.WriteToFile([]data.Record{res.data}, output); err != nil {
			logger.DebugLog("[writeOutput]: error writing to file %s: %v", output, err)
			results.addFailure(res.path, fmt.Errorf("writing to file %s: %w", output, err))
			continue
		}

		logger.DebugLog("[writeOutput]: successfully wrote data for %s", res.path)
		results.addWrite(res.path, res.data)
	}
}

func (r *writeResult[T]) addWrite(path string, data T) {
	r.mu.Lock()
	r.writes[path] = data
	r.mu.Unlock()
}

func (r *writeResult[T]) addFailure(path string, err error) {
	r.mu.Lock()
	r.failures[path] = err
	r.mu.Unlock()
}
