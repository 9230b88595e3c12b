package shared

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/melodiemoment/api/internal/service"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 注册自定义校验标签
func RegisterValidators() error {
	var regErr error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			regErr = errors.New("gin validator engine is not validator/v10")
			return
		}
		rules := map[string]func(string) bool{
			"occasion":     service.IsValidOccasion,
			"package_type": service.IsValidPackage,
			"bundle":       service.IsValidBundle,
		}
		for tag, check := range rules {
			check := check
			if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				return check(strings.ToLower(strings.TrimSpace(fl.Field().String())))
			}); err != nil {
				regErr = fmt.Errorf("register %s: %w", tag, err)
				return
			}
		}
	})
	return regErr
}

// BindError 将绑定错误转换为参数错误，并指出首个出错字段
func BindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0]
		switch field.Tag() {
		case "occasion":
			return fmt.Errorf("%w: %s", service.ErrOccasionInvalid, field.Field())
		case "package_type":
			return fmt.Errorf("%w: %s", service.ErrPackageInvalid, field.Field())
		case "bundle":
			return fmt.Errorf("%w: %s", service.ErrBundleInvalid, field.Field())
		}
		return fmt.Errorf("%w: %s failed %s", service.ErrInvalidInput, field.Field(), field.Tag())
	}
	return fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
}
