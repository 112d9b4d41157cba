package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gamelend/internal/pkg/apperr"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// Failure renders an apperr-classified error. Local validation failures are
// rendered inline with field details; everything else carries the single
// user-visible notification.
func Failure(c *gin.Context, err error, notification any) {
	status, code := StatusFor(apperr.KindOf(err))

	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		ErrorWithDetails(c, status, code, apperr.UserMessage(err), fields)
		return
	}

	body := gin.H{
		"code":    code,
		"message": apperr.UserMessage(err),
	}
	if notification != nil {
		body["notification"] = notification
	}
	c.JSON(status, gin.H{"success": false, "error": body})
}

func StatusFor(kind apperr.Kind) (int, string) {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case apperr.KindAuthorization:
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case apperr.KindConflict:
		return http.StatusConflict, "CONFLICT"
	case apperr.KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case apperr.KindNetwork:
		return http.StatusBadGateway, "BACKEND_UNREACHABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
