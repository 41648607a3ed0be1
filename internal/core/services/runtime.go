package services

import (
	"errors"
	"fmt"

	"github.com/ewilliams-labs/soundwatch/internal/core/ports"
)

// Runtime holds the stage implementations shared by every pipeline run. It is
// built once at start-up and never mutated afterwards.
type Runtime struct {
	Ingestor   ports.Ingestor
	Extractor  ports.FeatureExtractor
	Classifier ports.Classifier
	Labels     ports.LabelDecoder
}

var ErrRuntimeMismatch = errors.New("service: classifier output does not match label count")

// Validate checks that every stage is present and that the classifier and the
// label mapping agree on the number of classes.
func (r Runtime) Validate() error {
	switch {
	case r.Ingestor == nil:
		return errors.New("service: runtime has no ingestor")
	case r.Extractor == nil:
		return errors.New("service: runtime has no feature extractor")
	case r.Classifier == nil:
		return errors.New("service: runtime has no classifier")
	case r.Labels == nil:
		return errors.New("service: runtime has no label decoder")
	}
	if out, n := r.Classifier.OutputSize(), len(r.Labels.Classes()); out != n {
		return fmt.Errorf("%w: model emits %d scores, %d labels loaded", ErrRuntimeMismatch, out, n)
	}
	return nil
}
