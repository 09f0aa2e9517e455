package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/joefoxing/lyriq/internal/core/service"
	"github.com/joefoxing/lyriq/internal/server/api/handlers"
)

type RouterConfig struct {
	Svc *service.Service
}

func SetupRouter(e *echo.Echo, cfg RouterConfig) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE"},
	}))
	e.Use(echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(20)))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	handlers.InitErrors()

	v1 := e.Group("/v1")
	config := huma.DefaultConfig("Lyriq API", "1.0.0")
	config.Servers = []*huma.Server{{URL: "/v1"}}
	config.Info.Description = "Asynchronous audio-to-lyrics extraction service"

	api := humaecho.NewWithGroup(e, v1, config)

	jobsHandler := handlers.NewJobsHandler(cfg.Svc)
	huma.Register(api, huma.Operation{
		OperationID:   "lyrics-submit",
		Method:        http.MethodPost,
		Path:          "/lyrics",
		Summary:       "Submit an audio source for lyrics extraction",
		Tags:          []string{"Lyrics"},
		DefaultStatus: http.StatusCreated,
	}, jobsHandler.Submit)

	huma.Register(api, huma.Operation{
		OperationID: "lyrics-get",
		Method:      http.MethodGet,
		Path:        "/lyrics/{id}",
		Summary:     "Get job status and result",
		Tags:        []string{"Lyrics"},
	}, jobsHandler.Get)

	huma.Register(api, huma.Operation{
		OperationID: "lyrics-list",
		Method:      http.MethodGet,
		Path:        "/lyrics",
		Summary:     "List jobs, newest first",
		Tags:        []string{"Lyrics"},
	}, jobsHandler.List)

	huma.Register(api, huma.Operation{
		OperationID: "lyrics-cancel",
		Method:      http.MethodDelete,
		Path:        "/lyrics/{id}",
		Summary:     "Cancel a job",
		Tags:        []string{"Lyrics"},
	}, jobsHandler.Cancel)

	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Job counts by status",
		Tags:        []string{"Stats"},
	}, jobsHandler.Stats)

	// Live progress is a raw SSE stream; it bypasses huma, which models
	// single-shot request/response bodies.
	eventsHandler := handlers.NewEventsHandler(cfg.Svc)
	v1.GET("/lyrics/:id/events", eventsHandler.Stream)
}
