package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories of the extraction core.
type ErrorKind string

const (
	KindImageDecode             ErrorKind = "image_decode"
	KindImageTooLarge           ErrorKind = "image_too_large"
	KindOCREngine               ErrorKind = "ocr_engine"
	KindUnsupportedDocumentType ErrorKind = "unsupported_document_type"
	KindLowConfidence           ErrorKind = "low_confidence"
	KindChecksumMismatch        ErrorKind = "checksum_mismatch"
)

// Fatal reports whether errors of this kind abort a request.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindImageDecode, KindImageTooLarge, KindOCREngine, KindUnsupportedDocumentType:
		return true
	}
	return false
}

// Pipeline stage names used in Error.Stage.
const (
	StagePreprocess = "preprocess"
	StageClassify   = "classify"
	StageOCR        = "ocr"
	StageExtract    = "extract"
	StageChecksum   = "checksum"
	StageScore      = "score"
)

// Error carries the kind and structured context of a failure.
type Error struct {
	Kind    ErrorKind
	Stage   string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Stage != "" {
		msg = fmt.Sprintf("[%s/%s] %s", e.Kind, e.Stage, e.Message)
	}
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a new domain error
func NewError(kind ErrorKind, stage, message string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Err: err}
}

func ImageDecodeError(message string, err error) *Error {
	return NewError(KindImageDecode, StagePreprocess, message, err)
}

func ImageTooLargeError(message string, err error) *Error {
	return NewError(KindImageTooLarge, StagePreprocess, message, err)
}

func OCREngineError(message string, err error) *Error {
	return NewError(KindOCREngine, StageOCR, message, err)
}

func UnsupportedDocumentTypeError(hint string) *Error {
	return &Error{
		Kind:    KindUnsupportedDocumentType,
		Stage:   StageClassify,
		Field:   "document_type_hint",
		Message: fmt.Sprintf("unsupported document type %q", hint),
	}
}

func LowConfidenceError(confidence, floor float64) *Error {
	return NewError(KindLowConfidence, StageScore,
		fmt.Sprintf("low quality image: confidence %.2f below %.2f", confidence, floor), nil)
}

func ChecksumMismatchError(field, value string) *Error {
	return &Error{
		Kind:    KindChecksumMismatch,
		Stage:   StageChecksum,
		Field:   field,
		Message: fmt.Sprintf("check character mismatch for %q", value),
	}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// IsFatal reports whether err aborts a request. Errors without a kind are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	kind, ok := KindOf(err)
	if !ok {
		return true
	}
	return kind.Fatal()
}
