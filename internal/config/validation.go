package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/templui/sharebox/internal/validation"
)

var validate = validator.New()

// Validate checks struct tags first, then the rules tags cannot express.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err != nil {
		return formatValidationError(err)
	}

	if cfg.IsProduction() && cfg.ResendAPIKey == "" {
		return errors.New("production deployment requires RESEND_API_KEY (set APP_ENV=development to log emails instead)")
	}

	if len(cfg.DefaultGroups) == 0 {
		return errors.New("DEFAULT_GROUPS: at least one default group is required")
	}

	if cfg.UploadMaxChunkBytes > 1<<30 {
		return fmt.Errorf("UPLOAD_MAX_CHUNK_BYTES: %d exceeds the 1GB limit", cfg.UploadMaxChunkBytes)
	}

	return validateStaging(cfg.SharedFolder, cfg.UploadStagingPath)
}

// validateStaging keeps the staging area and the shared folder disjoint, so
// staged chunks never show up in listings and the janitor never touches
// shared files.
func validateStaging(shared, staging string) error {
	sharedAbs, err := filepath.Abs(shared)
	if err != nil {
		return fmt.Errorf("SHARED_FOLDER: %w", err)
	}
	stagingAbs, err := filepath.Abs(staging)
	if err != nil {
		return fmt.Errorf("UPLOAD_STAGING_PATH: %w", err)
	}

	if validation.Within(stagingAbs, sharedAbs) || validation.Within(sharedAbs, stagingAbs) {
		return fmt.Errorf("UPLOAD_STAGING_PATH: %s overlaps SHARED_FOLDER %s", stagingAbs, sharedAbs)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
