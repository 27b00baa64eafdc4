package providers

import (
	"fmt"
	"time"

	"github.com/gookit/validate"

	"ytmon/internal/structures"
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
		return v.Errors
	}
	if _, err := time.LoadLocation(cv.conf.Source.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cv.conf.Source.Timezone, err)
	}
	return nil
}
