package middleware

import (
	"fmt"
	"net/http"

	pkgError "github.com/AzielCF/wa-gateway/pkg/error"
	"github.com/AzielCF/wa-gateway/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type retryAfter interface {
	RetryAfterSeconds() int
}

// Recovery turns panics into the JSON error envelope. Errors implementing
// pkgError.GenericError keep their status and code.
func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			err := recover()
			if err == nil {
				return
			}

			status := http.StatusInternalServerError
			res := utils.ErrorResponse{
				Code:    "INTERNAL_SERVER_ERROR",
				Message: fmt.Sprintf("%v", err),
			}

			if genericErr, ok := err.(pkgError.GenericError); ok {
				status = genericErr.StatusCode()
				res.Code = genericErr.ErrCode()
				res.Message = genericErr.Error()
			}
			if ra, ok := err.(retryAfter); ok {
				secs := ra.RetryAfterSeconds()
				res.RetryAfter = &secs
				ctx.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", secs))
			}
			res.Error = http.StatusText(status)

			if status >= http.StatusInternalServerError {
				logrus.WithFields(logrus.Fields{
					"path": ctx.Path(),
					"code": res.Code,
				}).Errorf("[REST] Panic recovered in middleware: %v", err)
			}

			_ = ctx.Status(status).JSON(res)
		}()

		return ctx.Next()
	}
}
