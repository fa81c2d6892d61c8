package respond

import (
	"net/http"
	"time"

	"mini-app-service/common"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Message unified response structure
type Message struct {
	Code           int         `json:"code"`
	Message        string      `json:"message"`
	ProcessingTime int64       `json:"processingTime"`
	Data           interface{} `json:"data"`
}

// Response response structure (for Swagger)
// @Description Unified API response structure
type Response struct {
	Code           int         `json:"code" example:"0" description:"Response code: 0=success, 40000=malformed input, 40100=unauthenticated, 40300=forbidden, 40400=not found, 40900=conflict, 42200=verification failed, 42900=rate limited, 50300=storage unavailable, 50000=server error"`
	Message        string      `json:"message" example:"success" description:"Response message"`
	ProcessingTime int64       `json:"processingTime" example:"123" description:"Request processing time (milliseconds)"`
	Data           interface{} `json:"data" description:"Response data"`
}

// HTTP status code constants
const (
	CodeSuccess            = 0     // Success
	CodeInvalidParam       = 40000 // Parameter error
	CodeUnauthenticated    = 40100 // No current identity
	CodeForbidden          = 40300 // Admin role required
	CodeNotFound           = 40400 // Resource not found
	CodeConflict           = 40900 // Owned by another developer
	CodeVerificationFailed = 42200 // Signature or domain challenge failed
	CodeTooManyRequests    = 42900 // Rate limited
	CodeServerError        = 50000 // Server error
	CodeStorageUnavailable = 50300 // Storage down, retryable
)

// Success message constants
const (
	MsgSuccess = "success"
	MsgFailed  = "failed"
)

// Success return success response
func Success(c *gin.Context, data interface{}) {
	SuccessWithMsg(c, MsgSuccess, data)
}

// SuccessWithMsg return success response (custom message)
func SuccessWithMsg(c *gin.Context, message string, data interface{}) {
	processingTime := getProcessingTime(c)
	c.JSON(200, Message{
		Code:           CodeSuccess,
		Message:        message,
		ProcessingTime: processingTime,
		Data:           data,
	})
}

// Error return error response
func Error(c *gin.Context, code int, message string) {
	ErrorWithData(c, code, message, nil)
}

// ErrorWithData return error response (with data)
func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	processingTime := getProcessingTime(c)
	c.JSON(200, Message{
		Code:           code,
		Message:        message,
		ProcessingTime: processingTime,
		Data:           data,
	})
}

// InvalidParam return parameter error response
func InvalidParam(c *gin.Context, message string) {
	Error(c, CodeInvalidParam, message)
}

// NotFound return resource not found response
func NotFound(c *gin.Context, message string) {
	Error(c, CodeNotFound, message)
}

// ServerError return server error response
func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

// Unauthenticated return 401 with the envelope
func Unauthenticated(c *gin.Context, message string) {
	processingTime := getProcessingTime(c)
	c.JSON(http.StatusUnauthorized, Message{
		Code:           CodeUnauthenticated,
		Message:        message,
		ProcessingTime: processingTime,
	})
}

// Forbidden return forbidden response
func Forbidden(c *gin.Context, message string) {
	Error(c, CodeForbidden, message)
}

// TooManyRequests return 429 with the envelope
func TooManyRequests(c *gin.Context, message string) {
	processingTime := getProcessingTime(c)
	c.JSON(http.StatusTooManyRequests, Message{
		Code:           CodeTooManyRequests,
		Message:        message,
		ProcessingTime: processingTime,
	})
}

// CodeOf maps a service error onto a response code
func CodeOf(err error) int {
	switch {
	case errors.Is(err, common.ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, common.ErrForbidden):
		return CodeForbidden
	case errors.Is(err, common.ErrMalformedInput), errors.Is(err, common.ErrInvalidTransition):
		return CodeInvalidParam
	case errors.Is(err, common.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, common.ErrConflict):
		return CodeConflict
	case errors.Is(err, common.ErrInvalidSignature),
		errors.Is(err, common.ErrChallengeNotFound),
		errors.Is(err, common.ErrChallengeExpired),
		errors.Is(err, common.ErrContentMismatch),
		errors.Is(err, common.ErrFetchFailed):
		return CodeVerificationFailed
	case errors.Is(err, common.ErrStorageUnavailable):
		return CodeStorageUnavailable
	}
	return CodeServerError
}

// FromError write the envelope for a service error
func FromError(c *gin.Context, err error) {
	code := CodeOf(err)
	switch code {
	case CodeUnauthenticated:
		Unauthenticated(c, err.Error())
		return
	case CodeServerError, CodeStorageUnavailable:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	Error(c, code, err.Error())
}

// getProcessingTime calculate request processing time (milliseconds)
func getProcessingTime(c *gin.Context) int64 {
	if startTime, exists := c.Get("start_time"); exists {
		if t, ok := startTime.(time.Time); ok {
			return time.Since(t).Milliseconds()
		}
	}
	return 0
}

// TimingMiddleware timing middleware
func TimingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("start_time", time.Now())
		c.Next()
	}
}
