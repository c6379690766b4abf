package movie

import (
	"errors"
	"net/http"

	"github.com/nimburion/movies/pkg/controller"
	"github.com/nimburion/movies/pkg/observability/logger"
	"github.com/nimburion/movies/pkg/server/router"
)

// Greeting is the body of GET /.
const Greeting = "Welcome to the Movies API"

// DeleteResponse is the body of a successful delete.
type DeleteResponse struct {
	Message string `json:"message"`
	Movie   *Movie `json:"movie"`
}

// Handler exposes the Service over HTTP.
type Handler struct {
	svc *Service
	log logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc *Service, log logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts the movie routes on r.
func (h *Handler) Register(r router.Router) {
	r.GET("/", h.Index)
	r.GET("/movies", h.List)
	r.GET("/movies/search", h.Search)
	r.GET("/movies/:id", h.Get)
	r.POST("/movies", h.Create)
	r.PUT("/movies/:id", h.Update)
	r.DELETE("/movies/:id", h.Delete)
}

// Index answers GET / with a plain greeting.
func (h *Handler) Index(c router.Context) error {
	return c.String(http.StatusOK, Greeting)
}

// List handles GET /movies.
func (h *Handler) List(c router.Context) error {
	page, err := h.svc.List(c.Request().Context(), c.QueryParams())
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, page)
}

// Search handles GET /movies/search.
func (h *Handler) Search(c router.Context) error {
	movies, err := h.svc.Search(c.Request().Context(), c.QueryParams())
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, movies)
}

// Get handles GET /movies/:id.
func (h *Handler) Get(c router.Context) error {
	m, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, m)
}

// Create handles POST /movies.
func (h *Handler) Create(c router.Context) error {
	payload, err := bindPayload(c)
	if err != nil {
		return h.fail(c, err)
	}
	m, err := h.svc.Create(c.Request().Context(), payload)
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Created(c, m)
}

// Update handles PUT /movies/:id.
func (h *Handler) Update(c router.Context) error {
	payload, err := bindPayload(c)
	if err != nil {
		return h.fail(c, err)
	}
	m, err := h.svc.Update(c.Request().Context(), c.Param("id"), payload)
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, m)
}

// Delete handles DELETE /movies/:id.
func (h *Handler) Delete(c router.Context) error {
	m, err := h.svc.Delete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return controller.Success(c, DeleteResponse{Message: "Movie deleted successfully", Movie: m})
}

func bindPayload(c router.Context) (map[string]any, error) {
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, controller.NewPayloadTooLargeError(tooLarge.Limit)
		}
		return nil, controller.NewValidationError("request body must be a JSON object", map[string]interface{}{"body": err.Error()})
	}
	if payload == nil {
		return nil, controller.NewValidationError("request body must be a JSON object", nil)
	}
	return payload, nil
}

// fail maps service errors onto the HTTP error taxonomy and writes the response.
func (h *Handler) fail(c router.Context, err error) error {
	var (
		validationErr *ValidationError
		queryErr      *QueryError
		storeErr      *StoreError
		appErr        *controller.AppError
	)

	switch {
	case errors.As(err, &appErr):
	case errors.As(err, &validationErr):
		appErr = controller.NewValidationError("movie validation failed", toDetails(validationErr.Fields))
	case errors.As(err, &queryErr):
		appErr = controller.NewValidationError("invalid query parameters", toDetails(queryErr.Params))
	case errors.Is(err, ErrInvalidID):
		appErr = controller.NewBadRequestError("Invalid movie id", err)
	case errors.Is(err, ErrNotFound):
		appErr = controller.NewNotFoundError("Movie not found")
	case errors.As(err, &storeErr):
		appErr = controller.NewStoreError("Movie store is unavailable", err)
	default:
		appErr = controller.NewInternalError("an unexpected error occurred", err)
	}

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(c.Request().Context()).Error("movie request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err,
		)
	}
	return controller.Error(c, appErr)
}

func toDetails(reasons map[string]string) map[string]interface{} {
	details := make(map[string]interface{}, len(reasons))
	for k, v := range reasons {
		details[k] = v
	}
	return details
}
