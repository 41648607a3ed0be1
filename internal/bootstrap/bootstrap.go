// Package bootstrap wires configuration into the runtime objects shared by
// the API server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ewilliams-labs/soundwatch/internal/adapters/artifact"
	"github.com/ewilliams-labs/soundwatch/internal/adapters/mysql"
	"github.com/ewilliams-labs/soundwatch/internal/adapters/sqlite"
	"github.com/ewilliams-labs/soundwatch/internal/audio/ingest"
	"github.com/ewilliams-labs/soundwatch/internal/audio/mfcc"
	"github.com/ewilliams-labs/soundwatch/internal/config"
	"github.com/ewilliams-labs/soundwatch/internal/core/domain"
	"github.com/ewilliams-labs/soundwatch/internal/core/ports"
	"github.com/ewilliams-labs/soundwatch/internal/core/services"
	"github.com/ewilliams-labs/soundwatch/internal/labels"
	"github.com/ewilliams-labs/soundwatch/internal/logging"
	"github.com/ewilliams-labs/soundwatch/internal/model"
	"github.com/sirupsen/logrus"
)

var ErrArtifactMismatch = errors.New("bootstrap: model and label artifacts disagree")

// Artifacts are the immutable, process-lifetime model and label table.
type Artifacts struct {
	Model  *model.Network
	Labels *labels.Encoder
}

// LoadArtifacts fetches and parses the model and label artifacts and checks
// that they fit together and match the feature vector length.
func LoadArtifacts(ctx context.Context, cfg *config.Config) (Artifacts, error) {
	loader := artifact.NewLoader(artifact.Options{
		HTTPClient:   &http.Client{Timeout: 5 * time.Minute},
		MaxRetries:   cfg.ArtifactMaxRetries,
		RetryBackoff: cfg.ArtifactRetryBackoff,
		S3:           artifact.NewS3Client(cfg.S3Region, cfg.S3Endpoint),
	})

	raw, err := loader.Load(ctx, cfg.ModelPath)
	if err != nil {
		return Artifacts{}, fmt.Errorf("bootstrap: load model: %w", err)
	}
	net, err := model.Parse(raw, artifact.Name(cfg.ModelPath))
	if err != nil {
		return Artifacts{}, fmt.Errorf("bootstrap: parse model %s: %w", cfg.ModelPath, err)
	}

	raw, err = loader.Load(ctx, cfg.LabelsPath)
	if err != nil {
		return Artifacts{}, fmt.Errorf("bootstrap: load labels: %w", err)
	}
	enc, err := labels.Parse(raw, artifact.Name(cfg.LabelsPath))
	if err != nil {
		return Artifacts{}, fmt.Errorf("bootstrap: parse labels %s: %w", cfg.LabelsPath, err)
	}

	if net.InputSize() != domain.FeatureLength {
		return Artifacts{}, fmt.Errorf("%w: model expects %d inputs, features have %d", ErrArtifactMismatch, net.InputSize(), domain.FeatureLength)
	}
	if net.OutputSize() != enc.Len() {
		return Artifacts{}, fmt.Errorf("%w: model scores %d classes, label table has %d", ErrArtifactMismatch, net.OutputSize(), enc.Len())
	}

	logging.With(logging.CategoryModel, logrus.Fields{
		"model":   net.Name(),
		"layers":  len(net.Summary()),
		"classes": enc.Len(),
	}).Info("artifacts loaded")
	return Artifacts{Model: net, Labels: enc}, nil
}

// NewRuntime assembles the pipeline stages around loaded artifacts.
func NewRuntime(cfg *config.Config, a Artifacts) services.Runtime {
	return services.Runtime{
		Ingestor: ingest.New(ingest.Config{
			TempDir:   cfg.TempDir,
			FFmpegBin: cfg.FFmpegBin,
		}),
		Extractor:  mfcc.NewDefault(),
		Classifier: a.Model,
		Labels:     a.Labels,
	}
}

// OpenRepository opens the incident store selected by cfg.StorageDriver. The
// returned func closes it.
func OpenRepository(ctx context.Context, cfg *config.Config) (ports.IncidentRepository, func() error, error) {
	switch cfg.StorageDriver {
	case "sqlite":
		a, err := sqlite.NewAdapter(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: sqlite: %w", err)
		}
		logging.Info(logging.CategoryStore, "incidents stored in sqlite at %s", cfg.SQLitePath)
		return a, a.Close, nil
	case "mysql":
		a, err := mysql.NewAdapter(ctx, mysql.Config{
			Host:     cfg.MySQL.Host,
			Port:     cfg.MySQL.Port,
			User:     cfg.MySQL.User,
			Password: cfg.MySQL.Password,
			Database: cfg.MySQL.Database,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: mysql: %w", err)
		}
		logging.Info(logging.CategoryStore, "incidents stored in mysql database %s on %s", cfg.MySQL.Database, cfg.MySQL.Host)
		return a, a.Close, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown storage driver %q", cfg.StorageDriver)
	}
}
