package handler

import (
	"errors"
	"log"
	"net/http"
	"reflect"
	"strings"

	"crm/internal/apperr"
	"crm/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// UseJSONFieldNames makes binding errors report json field names instead of Go ones.
func UseJSONFieldNames() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	}
}

// respondError writes err using the status its kind maps to. Unknown errors
// are logged and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	var bindErrs validator.ValidationErrors
	if errors.As(err, &bindErrs) {
		details := make(map[string]string, len(bindErrs))
		for _, fe := range bindErrs {
			details[fe.Field()] = bindingMessage(fe)
		}
		c.JSON(http.StatusBadRequest, response.ValidationError(http.StatusBadRequest, "validation failed", details))
		return
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		for field, fe := range fieldErrs {
			details[field] = fe.Error()
		}
		c.JSON(http.StatusBadRequest, response.ValidationError(http.StatusBadRequest, "validation failed", details))
		return
	}

	ae := apperr.From(err)
	status := ae.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Printf("ERROR %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(status, response.Error(status, "Internal server error"))
		return
	}
	if len(ae.Fields()) > 0 {
		c.JSON(status, response.ValidationError(status, ae.Message, ae.Fields()))
		return
	}
	c.JSON(status, response.Error(status, ae.Message))
}

func bindingMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "cannot be blank"
	case "email":
		return "must be a valid email address"
	default:
		return "failed on the '" + fe.Tag() + "' rule"
	}
}

// bindJSON decodes the body into req and writes a 400 when it cannot.
func bindJSON(c *gin.Context, req interface{}) bool {
	return bindResult(c, c.ShouldBindJSON(req))
}

func bindResult(c *gin.Context, err error) bool {
	if err == nil {
		return true
	}
	var bindErrs validator.ValidationErrors
	if errors.As(err, &bindErrs) {
		respondError(c, err)
	} else {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
	}
	return false
}

// pathID parses the named path parameter as a UUID.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperr.Validation("validation failed", map[string]string{name: "must be a valid UUID"}))
		return uuid.Nil, false
	}
	return id, true
}
