package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"
)

// RequestLogger logs one structured entry per request.  Responses with a
// status of 400 or above are logged at error level.
func RequestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }

            status := c.Response().Status
            entry := log.WithFields(logrus.Fields{
                "method":     c.Request().Method,
                "path":       c.Request().URL.Path,
                "route":      c.Path(),
                "status":     status,
                "duration":   time.Since(start),
                "client_ip":  c.RealIP(),
                "user_agent": c.Request().UserAgent(),
                "user_id":    currentUserID(c),
            })
            if status >= 400 {
                entry.Error("Request failed")
            } else {
                entry.Info("Request processed")
            }
            return nil
        }
    }
}
