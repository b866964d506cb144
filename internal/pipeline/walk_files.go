package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/logger"
)

// imageTypes maps the accepted file extensions to their MIME types.
var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
}

type imageFile struct {
	path     string
	mimeType string
}

func walkFiles(ctx context.Context, directory string, results chan<- imageFile, errChan chan<- error) {
	files, err := os.ReadDir(directory)
	if err != nil {
		logger.DebugLog("[walkFiles]: failed to read directory %s: %v", directory, err)
		errChan <- fmt.Errorf("[walkFiles]: reading directory %s: %w", directory, err)
		return
	}

	for _, file := range files {
		if ctx.Err() != nil {
			logger.DebugLog("[walkFiles]: context cancelled")
			return
		}

		fileName := file.Name()
		mimeType, ok := MIMEType(fileName)
		if file.IsDir() || !ok {
			continue
		}
		fullPath := filepath.Join(directory, fileName)
		logger.DebugLog("[walkFiles]: sending file %s", fullPath)
		select {
		case results <- imageFile{path: fullPath, mimeType: mimeType}:
		case <-ctx.Done():
			logger.DebugLog("[walkFiles]: context done while sending file %s", fullPath)
			return
		}
	}
}

// MIMEType returns the image MIME type for filename's extension.
func MIMEType(filename string) (string, bool) {
	mimeType, ok := imageTypes[strings.ToLower(filepath.Ext(filename))]
	return mimeType, ok
}
