package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("domain: not found")

// FailureKind classifies why a pipeline run failed.
type FailureKind string

const (
	InputError             FailureKind = "INPUT_ERROR"
	UnsupportedFormat      FailureKind = "UNSUPPORTED_FORMAT"
	DecodeFailure          FailureKind = "DECODE_FAILURE"
	FeatureExtractionError FailureKind = "FEATURE_EXTRACTION_ERROR"
	InferenceError         FailureKind = "INFERENCE_ERROR"
	InvalidClassIndex      FailureKind = "INVALID_CLASS_INDEX"
)

// Stage names a step of the classification state machine.
type Stage string

const (
	StageReceived          Stage = "received"
	StageDecoded           Stage = "decoded"
	StageFeaturesExtracted Stage = "features_extracted"
	StageClassified        Stage = "classified"
	StageDone              Stage = "done"
)

// Sentinels that stage implementations wrap so the orchestrator can map them
// to a FailureKind with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrDecodeFailure     = errors.New("audio decode failed")
	ErrExtractionFailed  = errors.New("feature extraction failed")
	ErrInference         = errors.New("inference failed")
	ErrInvalidClassIndex = errors.New("invalid class index")
)

// PipelineError is the Failed(kind) outcome of a pipeline run.
type PipelineError struct {
	Kind  FailureKind
	Stage Stage // last stage successfully entered
	Err   error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Message is the short, client-safe description of the failure.
func (e *PipelineError) Message() string {
	switch e.Kind {
	case InputError:
		return "Invalid audio input"
	case UnsupportedFormat:
		return "Unsupported audio format"
	case DecodeFailure:
		return "Audio could not be decoded"
	case FeatureExtractionError:
		return "Feature extraction failed"
	case InferenceError:
		return "Model inference failed"
	case InvalidClassIndex:
		return "Classifier produced an unknown class"
	default:
		return "Audio classification failed"
	}
}

// KindOf maps an error returned by a stage to its FailureKind. Errors that
// wrap none of the known sentinels fall back to def.
func KindOf(err error, def FailureKind) FailureKind {
	var pe *PipelineError
	switch {
	case errors.As(err, &pe):
		return pe.Kind
	case errors.Is(err, ErrUnsupportedFormat):
		return UnsupportedFormat
	case errors.Is(err, ErrDecodeFailure):
		return DecodeFailure
	case errors.Is(err, ErrExtractionFailed):
		return FeatureExtractionError
	case errors.Is(err, ErrInvalidClassIndex):
		return InvalidClassIndex
	case errors.Is(err, ErrInference):
		return InferenceError
	case errors.Is(err, ErrEmptyWaveform), errors.Is(err, ErrInvalidSampleRate):
		return DecodeFailure
	case errors.Is(err, ErrFeatureLength):
		return InferenceError
	}
	return def
}
