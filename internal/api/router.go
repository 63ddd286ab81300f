package api

import (
	"github.com/danfarias/ytgrab/internal/api/controllers"
	"github.com/danfarias/ytgrab/internal/app"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	// A handler panic must cost one request, not the process.
	e.Use(middleware.Recover())

	mediaCtrl := &controllers.MediaController{App: app}

	e.GET("/", mediaCtrl.Index)

	e.POST("/api/get_info", mediaCtrl.GetInfo)
	e.POST("/api/download", mediaCtrl.StartDownload)
	e.GET("/api/status/:id", mediaCtrl.Status)
	e.GET("/api/my_downloads", mediaCtrl.MyDownloads)
	e.POST("/api/cleanup", mediaCtrl.Cleanup)
	e.GET("/api/stats", mediaCtrl.Stats)

	e.GET("/download/:filename", mediaCtrl.ServeFile)
}
