package router

import (
	"net/http"

	"go.uber.org/zap"

	"jttracker/internal/api/handler"
	"jttracker/internal/api/middleware"
	"jttracker/internal/core/service"
)

func NewRouter(
	deviceService service.DeviceService,
	positionService service.PositionService,
	apiSecret string,
	logger *zap.Logger,
) http.Handler {
	deviceHandler := handler.NewDeviceHandler(deviceService)
	positionHandler := handler.NewPositionHandler(positionService)
	authMiddleware := middleware.NewAuthMiddleware(apiSecret)

	// Requests that change state need a bearer token.
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.Authenticate(h).ServeHTTP
	}

	mux := http.NewServeMux()

	route := func(pattern string, methods map[string]http.HandlerFunc) {
		mux.Handle(pattern, middleware.LoggingMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h, ok := methods[r.Method]
			if !ok {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h(w, r)
		})))
	}

	route("/api/devices", map[string]http.HandlerFunc{
		http.MethodPost:   protected(deviceHandler.Create),
		http.MethodGet:    deviceHandler.GetDevices,
		http.MethodDelete: protected(deviceHandler.Delete),
	})
	route("/api/devices/get", map[string]http.HandlerFunc{
		http.MethodGet: deviceHandler.GetDevice,
	})
	route("/api/positions/list", map[string]http.HandlerFunc{
		http.MethodGet: positionHandler.GetPositions,
	})
	route("/api/positions/latest", map[string]http.HandlerFunc{
		http.MethodGet: positionHandler.GetLatestPosition,
	})
	route("/api/positions/raw", map[string]http.HandlerFunc{
		http.MethodPost: protected(positionHandler.ProcessRawData),
	})

	return mux
}
