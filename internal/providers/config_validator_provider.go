package providers

import (
	"fmt"
	"time"

	"github.com/gookit/validate"

	"github.com/wikimedia/research-similar-users/internal/structures"
)

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) *CnfValidator {
	return &CnfValidator{conf: conf}
}

func (cv *CnfValidator) Validate() error {
	v := validate.Struct(cv.conf)
	if !v.Validate() {
		return fmt.Errorf("invalid configuration: %s", v.Errors.One())
	}

	// Cross-field checks validate tags cannot express.
	if _, err := time.Parse(time.RFC3339, cv.conf.Similarity.DefaultStart); err != nil {
		return fmt.Errorf("invalid configuration: similarity.defaultStart: %w", err)
	}
	if _, err := time.Parse(time.RFC3339, cv.conf.Similarity.EarliestStart); err != nil {
		return fmt.Errorf("invalid configuration: similarity.earliestStart: %w", err)
	}
	if cv.conf.Similarity.DefaultK > cv.conf.Similarity.MaxK {
		return fmt.Errorf("invalid configuration: similarity.defaultK exceeds similarity.maxK")
	}
	if len(cv.conf.Similarity.TemporalOffsets) == 0 {
		return fmt.Errorf("invalid configuration: similarity.temporalOffsets must not be empty")
	}
	return nil
}
