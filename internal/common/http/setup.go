package http

import (
	"net/http"

	"github.com/pixfeed/pixfeed/backend/internal/common/constants"
	"github.com/pixfeed/pixfeed/backend/internal/common/httpmetrics"
	"github.com/pixfeed/pixfeed/backend/internal/common/logger"
)

func BuildBaseHandler(log *logger.Logger, handler http.Handler) http.Handler {
	metrics := httpmetrics.New()
	recovery := RecoveryMiddleware(log)
	traceID := TraceIDMiddleware
	maxRequestSize := MaxRequestSizeMiddleware(constants.DefaultMaxRequestSize)
	securityHeaders := SecurityHeadersMiddleware

	return securityHeaders(recovery(traceID(maxRequestSize(metrics.Wrap(handler)))))
}
