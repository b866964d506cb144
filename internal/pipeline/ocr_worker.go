package pipeline

import (
	"context"
	"fmt"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/data"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/logger"
)

// validateImages runs the validator over loaded images. Per-file failures travel
// as results; only a broken setup stops the worker with an error.
func validateImages(ctx context.Context, images <-chan loadedImage, results chan<- result[data.Record]) error {
	proc, ok := ctx.Value(clientsKey).(*Clients)
	if !ok {
		logger.DebugLog("[validateImages]: missing clients in context")
		return fmt.Errorf("[validateImages]: missing clients in context")
	}
	validator := proc.validator

	for img := range images {
		if ctx.Err() != nil {
			img.release()
			logger.DebugLog("[validateImages]: context cancelled")
			return nil
		}

		res := validateOne(ctx, validator, img)
		img.release()

		logger.DebugLog("[validateImages]: sending result for %s (err=%v)", img.path, res.err)
		select {
		case results <- res:
		case <-ctx.Done():
			logger.DebugLog("[validateImages]: context done while sending result for %s", img.path)
			return nil
		}
	}
	return nil
}

func validateOne(ctx context.Context, v *Validator, img loadedImage) result[data.Record] {
	res := result[data.Record]{path: img.path}
	if img.err != nil {
		res.err = img.err
		return res
	}

	logger.DebugLog("[validateImages]: validating %s", img.path)
	resp, err := v.Validate(ctx, img.req)
	switch {
	case err != nil:
		res.err = err
	case !resp.Success:
		res.err = domain.LowConfidenceError(resp.ConfidenceScore, v.MinConfidence())
	default:
		res.data = *resp.Data
		res.data.Filename = img.path
	}
	return res
}
