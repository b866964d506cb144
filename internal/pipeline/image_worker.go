package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/logger"
)

type loadedImage struct {
	path    string
	req     Request
	err     error
	release func()
}

// loadImage reads files into requests. A permit from throttledChan is held from
// the read until the validation worker releases it, bounding the image bytes in
// memory to the number of workers.
func loadImage(ctx context.Context, files <-chan imageFile, results chan<- loadedImage, throttledChan chan struct{}, errChan chan<- error) {
	if _, ok := ctx.Value(clientsKey).(*Clients); !ok {
		logger.DebugLog("[loadImage]: missing clients in context")
		errChan <- fmt.Errorf("[loadImage]: missing clients in context")
		return
	}

	for file := range files {
		if ctx.Err() != nil {
			logger.DebugLog("[loadImage]: context cancelled")
			return
		}

		select {
		case throttledChan <- struct{}{}:
		case <-ctx.Done():
			logger.DebugLog("[loadImage]: context done before acquiring semaphore for %s", file.path)
			return
		}
		release := func() { <-throttledChan }

		logger.DebugLog("[loadImage]: reading file %s (in-flight permits=%d)", file.path, len(throttledChan))
		item := loadedImage{path: file.path, release: release}
		bytes, err := os.ReadFile(file.path)
		if err != nil {
			logger.DebugLog("[loadImage]: error reading %s: %v", file.path, err)
			item.err = fmt.Errorf("reading image %s: %w", file.path, err)
		} else {
			item.req = Request{ImageBytes: bytes, MIMEType: file.mimeType}
		}

		select {
		case results <- item:
		case <-ctx.Done():
			logger.DebugLog("[loadImage]: context done while sending %s", file.path)
			release()
			return
		}
	}
}
