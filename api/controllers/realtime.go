package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dmarrero/fanlink-backend/api/middleware"
	"github.com/dmarrero/fanlink-backend/api/responses"
	pkgerrors "github.com/dmarrero/fanlink-backend/pkg/errors"
	"github.com/dmarrero/fanlink-backend/pkg/logger"
	"github.com/dmarrero/fanlink-backend/pkg/realtime"
)

// RealtimeSocket upgrades the request and streams the user's realtime frames.
func RealtimeSocket(gateway *realtime.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if gateway == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "realtime gateway unavailable"))
			return
		}

		userID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context"))
			return
		}

		// The upgrader writes its own handshake error response, so a failed
		// Serve is only logged here.
		if err := gateway.Serve(w, r, userID); err != nil && logg != nil {
			logg.Warn(ctx, "realtime session ended: "+err.Error())
		}
	}
}
