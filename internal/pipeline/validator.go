package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/guillermolam/alberguecarcalejo-sub000/internal/checksum"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/config"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/data"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/document"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/domain"
	imgproc "github.com/guillermolam/alberguecarcalejo-sub000/internal/image"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/logger"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/ocr"
	"github.com/guillermolam/alberguecarcalejo-sub000/internal/score"
)

// State is a step of a validation request. States only move forward.
type State string

const (
	StateReceived              State = "received"
	StatePreprocessed          State = "preprocessed"
	StateClassified            State = "classified"
	StateTextExtracted         State = "text_extracted"
	StateFieldsExtracted       State = "fields_extracted"
	StateChecksumChecked       State = "checksum_checked"
	StateScored                State = "scored"
	StateAccepted              State = "accepted"
	StateLowConfidenceRejected State = "low_confidence_rejected"
)

// Request is one document photograph to validate.
type Request struct {
	ImageBytes       []byte
	MIMEType         string
	DocumentTypeHint string
	SideHint         string
}

// Response is always returned, also alongside a fatal error.
type Response struct {
	Success          bool                `json:"success"`
	DocumentType     domain.DocumentType `json:"document_type"`
	Data             *data.Record        `json:"data,omitempty"`
	Error            string              `json:"error,omitempty"`
	ConfidenceScore  float64             `json:"confidence_score"`
	DetectedFields   []string            `json:"detected_fields"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
	RequestID        string              `json:"request_id"`
	Skew             float64             `json:"skew_degrees"`
	Warnings         []string            `json:"warnings,omitempty"`
}

// Validator runs the extraction pipeline. It holds no per-request state and is
// safe for concurrent use; concurrency is bounded by the engine pool.
type Validator struct {
	preprocessor *imgproc.Preprocessor
	classifier   *document.Classifier
	pool         *ocr.Pool
	extractor    *data.Extractor
	scorer       *score.Scorer
}

type Option func(*Validator)

// WithClock sets the reference time for MRZ century decoding.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.extractor.WithClock(now)
	}
}

func NewValidator(cfg *config.Config, pool *ocr.Pool, opts ...Option) *Validator {
	v := &Validator{
		preprocessor: imgproc.NewPreprocessor(cfg.Image),
		classifier:   document.NewClassifier(cfg.Classifier),
		pool:         pool,
		extractor:    data.NewExtractor(cfg.Regions, cfg.MRZ),
		scorer:       score.NewScorer(cfg.Scoring),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Workers is the number of requests that can hold an engine at once.
func (v *Validator) Workers() int {
	return v.pool.Size()
}

// MinConfidence is the score below which a document is rejected.
func (v *Validator) MinConfidence() float64 {
	return v.scorer.MinConfidence()
}

// Validate extracts and checks the identity data in req. Fatal failures (bad
// image, unknown type hint, OCR engine down or timed out) return an error together
// with a Response carrying the message. A low score is not an error: the Response
// has Success=false and the partial data.
func (v *Validator) Validate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	id := uuid.NewString()
	log := logger.L().With().Str("request_id", id).Logger()

	resp := &Response{RequestID: id, DocumentType: domain.Other, DetectedFields: []string{}}
	defer func() {
		resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	}()
	fail := func(err error) (*Response, error) {
		resp.Error = err.Error()
		log.Warn().Err(err).Msg("validation failed")
		return resp, err
	}
	transition(log, StateReceived).Int("bytes", len(req.ImageBytes)).Msg("request received")

	hinted, hasHint, err := document.ParseHint(req.DocumentTypeHint, req.SideHint)
	if err != nil {
		return fail(err)
	}

	processed, err := v.preprocessor.Process(ctx, &imgproc.DocumentImage{Bytes: req.ImageBytes, MIMEType: req.MIMEType})
	if err != nil {
		return fail(err)
	}
	resp.Skew = processed.Skew
	transition(log, StatePreprocessed).Float64("skew", processed.Skew).Msg("preprocessed")

	t := hinted
	if !hasHint {
		t = v.classifier.Classify(processed.Binary, processed.Gray)
		t = document.ApplySide(t, req.SideHint)
	}
	transition(log, StateClassified).Stringer("document_type", t).Msg("classified")

	lease, err := v.pool.Acquire(ctx)
	if err != nil {
		return fail(err)
	}
	defer lease.Release()

	text, engineConf, err := lease.ExtractTextWithConfidence(ctx, processed.Binary)
	if err != nil {
		return fail(err)
	}
	if !hasHint {
		t = document.RefineWithText(t, text)
	}
	transition(log, StateTextExtracted).
		Int("chars", len(text)).
		Float64("engine_confidence", engineConf).
		Stringer("document_type", t).
		Msg("text extracted")

	regions := regionReader{reader: lease, img: processed.Binary}
	out := v.evaluate(ctx, t, text, regions, log)

	if !hasHint && !v.scorer.Accepted(out.score.Total) {
		alt := document.Alternate(t)
		retry := v.evaluate(ctx, alt, text, regions, log)
		log.Debug().
			Stringer("primary", t).Float64("primary_score", out.score.Total).
			Stringer("alternate", alt).Float64("alternate_score", retry.score.Total).
			Msg("re-extracted with alternate family")
		if retry.score.Total > out.score.Total {
			t, out = alt, retry
		}
	}

	total := out.score.Total
	resp.DocumentType = t
	resp.ConfidenceScore = total
	resp.DetectedFields = out.fields.Present()
	resp.Data = &data.Record{
		DocumentType:    t,
		ExtractedFields: out.fields,
		ValidationResult: domain.ValidationResult{
			FormatValid:   v.scorer.FormatValid(total),
			ChecksumValid: out.checksumValid,
			Confidence:    total,
		},
	}
	if out.mismatch != nil {
		resp.Warnings = append(resp.Warnings, out.mismatch.Error())
	}

	if !v.scorer.Accepted(total) {
		resp.Error = domain.LowConfidenceError(total, v.scorer.MinConfidence()).Message
		transition(log, StateLowConfidenceRejected).Float64("confidence", total).Msg(resp.Error)
		return resp, nil
	}

	resp.Success = true
	transition(log, StateAccepted).Float64("confidence", total).Strs("fields", resp.DetectedFields).Msg("accepted")
	return resp, nil
}

type evaluation struct {
	fields        domain.ExtractedFields
	checksumValid bool
	mismatch      *domain.Error
	score         score.Score
}

// evaluate runs the total stages: field extraction, checksum and scoring.
func (v *Validator) evaluate(ctx context.Context, t domain.DocumentType, text string, regions data.RegionReader, log zerolog.Logger) evaluation {
	var ev evaluation
	ev.fields = v.extractor.Extract(ctx, t, text, regions)
	transition(log, StateFieldsExtracted).Stringer("document_type", t).Strs("fields", ev.fields.Present()).Msg("fields extracted")

	ev.checksumValid, ev.mismatch = verifyChecksum(t, text, ev.fields)
	transition(log, StateChecksumChecked).Bool("checksum_valid", ev.checksumValid).Msg("checksum checked")

	ev.score = v.scorer.Score(ev.fields, ev.checksumValid, t)
	transition(log, StateScored).Float64("confidence", ev.score.Total).Msg("scored")
	return ev
}

// verifyChecksum checks mod-23 letters for DNI/NIE numbers and MRZ check digits.
// A mismatch is recorded, never returned as an error.
func verifyChecksum(t domain.DocumentType, text string, f domain.ExtractedFields) (bool, *domain.Error) {
	numberValid := func() (bool, *domain.Error) {
		if f.DocumentNumber == "" {
			return false, nil
		}
		if !checksum.ValidDocumentNumber(f.DocumentNumber) {
			return false, domain.ChecksumMismatchError(domain.FieldDocumentNumber, f.DocumentNumber)
		}
		return true, nil
	}

	switch t {
	case domain.DniFront, domain.NieFront:
		return numberValid()
	case domain.DniBack, domain.NieBack:
		td, ok := data.FindTD1(data.Lines(text))
		if !ok {
			return numberValid()
		}
		if !checksum.ValidTD1(td.Line1, td.Line2) {
			return false, domain.ChecksumMismatchError("mrz", td.Line1)
		}
		if f.DocumentNumber == "" {
			return true, nil
		}
		return numberValid()
	case domain.Passport:
		td, ok := data.FindTD3(data.Lines(text))
		if !ok {
			return false, nil
		}
		if !checksum.ValidTD3(td.Line2) {
			return false, domain.ChecksumMismatchError("mrz", td.Line2)
		}
		return true, nil
	case domain.Other:
		return false, nil
	}
	return false, nil
}

func transition(log zerolog.Logger, s State) *zerolog.Event {
	return log.Debug().Str("state", string(s))
}

// regionReader OCRs crops of the processed image with the request's lease.
type regionReader struct {
	reader ocr.TextReader
	img    *image.Gray
}

func (r regionReader) ReadRegion(ctx context.Context, region config.Region) (string, error) {
	text, err := r.reader.ExtractText(ctx, imgproc.Crop(r.img, region))
	if err != nil {
		return "", fmt.Errorf("reading region %+v: %w", region, err)
	}
	return text, nil
}
