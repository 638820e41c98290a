package server

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"buildtrack/internal/date"
	"buildtrack/internal/gantt"
)

var validatorsOnce sync.Once

// registerValidators adds the custom binding tags used by request structs:
// viewmode (days, weeks or months) and isodate (YYYY-MM-DD).
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("viewmode", func(fl validator.FieldLevel) bool {
			_, err := gantt.ParseViewMode(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			_, err := date.Parse(fl.Field().String())
			return err == nil
		})
	})
}
