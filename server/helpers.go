package server

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/leebenson/conform"
	errs "github.com/techagentng/collabhub/errors"
)

var validate = validator.New()

// decode binds the JSON body into v, normalizes its strings and validates it.
func decode(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return errs.Wrap(errs.ErrBadRequest, "invalid request body: %v", err)
	}
	if err := conform.Strings(v); err != nil {
		return errs.Wrap(errs.ErrBadRequest, "%v", err)
	}
	if err := validate.Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return errs.Wrap(errs.ErrBadRequest, "%s failed on the %s rule", fe.Field(), fe.Tag())
		}
		return errs.Wrap(errs.ErrBadRequest, "%v", err)
	}
	return nil
}

func getUserIDFromContext(c *gin.Context) (string, error) {
	userID := c.GetString("userID")
	if userID == "" {
		return "", errs.ErrUnauthorized
	}
	return userID, nil
}
