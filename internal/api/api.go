// Package api holds the HTTP wire types and the chi routing glue for the
// tile API. Handlers live in internal/server and implement ServerInterface.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// Defines values for HealthResponseStatus.
const (
	Healthy   HealthResponseStatus = "healthy"
	Unhealthy HealthResponseStatus = "unhealthy"
)

// HealthResponseStatus defines model for HealthResponse.Status.
type HealthResponseStatus string

// HealthResponse defines model for HealthResponse.
type HealthResponse struct {
	Status    HealthResponseStatus `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	Uptime    *int                 `json:"uptime,omitempty"`
	Version   *string              `json:"version,omitempty"`
}

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Details   *map[string]interface{} `json:"details,omitempty"`
	Error     string                  `json:"error"`
	Message   string                  `json:"message"`
	RequestId *string                 `json:"request_id,omitempty"`
}

// TilerParams defines model for TilerParams.
type TilerParams struct {
	AspectRatioHeight    float64  `json:"aspectRatioHeight"`
	AspectRatioWidth     float64  `json:"aspectRatioWidth"`
	OutputDimension      *int     `json:"outputDimension,omitempty"`
	OverlayWidthInMeters float64  `json:"overlayWidthInMeters"`
	RotationDegrees      *float64 `json:"rotationDegrees,omitempty"`
	TopLeftLat           float64  `json:"topLeftLat"`
	TopLeftLong          float64  `json:"topLeftLong"`
	X                    int      `json:"x"`
	Y                    int      `json:"y"`
	Zoom                 int      `json:"zoom"`
}

// EncodedTileRequest is the JSON document carried base64-encoded in the
// encoded tile route.
type EncodedTileRequest struct {
	Bucket      string      `json:"bucket"`
	Key         string      `json:"key"`
	TilerParams TilerParams `json:"tilerParams"`
}

// GetOverlayTileParams defines parameters for GetOverlayTile.
type GetOverlayTileParams struct {
	// Dimension is the output tile edge in pixels.
	Dimension *int `form:"dimension,omitempty" json:"dimension,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Service health
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// Render a tile described by a base64-encoded JSON request
	// (GET /tiles/{request})
	GetEncodedTile(w http.ResponseWriter, r *http.Request, request string)
	// Render a tile of a registered overlay
	// (GET /overlays/{overlayId}/{z}/{x}/{y})
	GetOverlayTile(w http.ResponseWriter, r *http.Request, overlayId string, z int, x int, y int, params GetOverlayTileParams)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetHealth(w, r)
	}))

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

// GetEncodedTile operation middleware
func (siw *ServerInterfaceWrapper) GetEncodedTile(w http.ResponseWriter, r *http.Request) {
	// The encoded request may contain '/' so it is matched as a wildcard.
	request := chi.URLParam(r, "*")
	if request == "" {
		siw.ErrorHandlerFunc(w, r, &RequiredParamError{ParamName: "request"})
		return
	}

	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetEncodedTile(w, r, request)
	}))

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

// GetOverlayTile operation middleware
func (siw *ServerInterfaceWrapper) GetOverlayTile(w http.ResponseWriter, r *http.Request) {
	var err error

	// ------------- Path parameter "overlayId" -------------
	var overlayId string

	err = runtime.BindStyledParameterWithOptions("simple", "overlayId", chi.URLParam(r, "overlayId"), &overlayId, runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "overlayId", Err: err})
		return
	}

	// ------------- Path parameter "z" -------------
	var z int

	err = runtime.BindStyledParameterWithOptions("simple", "z", chi.URLParam(r, "z"), &z, runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "z", Err: err})
		return
	}

	// ------------- Path parameter "x" -------------
	var x int

	err = runtime.BindStyledParameterWithOptions("simple", "x", chi.URLParam(r, "x"), &x, runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "x", Err: err})
		return
	}

	// ------------- Path parameter "y" -------------
	var y int

	err = runtime.BindStyledParameterWithOptions("simple", "y", chi.URLParam(r, "y"), &y, runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "y", Err: err})
		return
	}

	// Parameter object where we will unmarshal all parameters from the context
	var params GetOverlayTileParams

	// ------------- Optional query parameter "dimension" -------------

	err = runtime.BindQueryParameter("form", true, false, "dimension", r.URL.Query(), &params.Dimension)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "dimension", Err: err})
		return
	}

	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetOverlayTile(w, r, overlayId, z, x, y, params)
	}))

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

type RequiredParamError struct {
	ParamName string
}

func (e *RequiredParamError) Error() string {
	return fmt.Sprintf("Query argument %s is required, but not found", e.ParamName)
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// Handler creates http.Handler with the API routes mounted.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions creates http.Handler with additional options
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health", wrapper.GetHealth)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/tiles/*", wrapper.GetEncodedTile)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/overlays/{overlayId}/{z}/{x}/{y}", wrapper.GetOverlayTile)
	})

	return r
}
