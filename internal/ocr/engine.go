package ocr

import (
	"fmt"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/config"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/ocr/engine"
)

func NewEngine(cfg config.OCRConfig) (Engine, error) {
	var e Engine
	var err error

	switch cfg.Engine {
	case "ollama":
		e = engine.NewOllamaEngine(cfg.OllamaURL, cfg.Model)
	case "gosseract", "tesseract", "":
		e, err = engine.NewGosseractEngine(engine.GosseractOptions{
			Languages:   cfg.Languages,
			Whitelist:   cfg.Whitelist,
			SingleBlock: cfg.PageMode == "single_block",
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown engine type: %s", cfg.Engine)
	}

	return e, nil
}

// Factory builds engines for a Pool from configuration.
func Factory(cfg config.OCRConfig) func() (Engine, error) {
	return func() (Engine, error) {
		return NewEngine(cfg)
	}
}
