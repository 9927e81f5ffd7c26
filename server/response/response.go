package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	errs "github.com/techagentng/collabhub/errors"
)

// JSON writes the standard response envelope. When err is set and status is zero
// the status is derived from the error.
func JSON(c *gin.Context, message string, status int, data interface{}, err error) {
	if status == 0 {
		status = http.StatusOK
		if err != nil {
			status = errs.StatusOf(err)
		}
	}
	errMessage := ""
	if err != nil {
		errMessage = err.Error()
	}
	responsedata := gin.H{
		"message":   message,
		"data":      data,
		"errors":    errMessage,
		"status":    http.StatusText(status),
		"timestamp": time.Now().Format(time.RFC850),
	}

	c.JSON(status, responsedata)
}

// Error writes err using the status it maps to.
func Error(c *gin.Context, err error) {
	JSON(c, "", errs.StatusOf(err), nil, err)
}
