package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kiesman99/drape/internal/api"
	"github.com/kiesman99/drape/internal/observability"
	"github.com/kiesman99/drape/internal/overlay"
	"github.com/kiesman99/drape/internal/store"
	"github.com/kiesman99/drape/internal/tiler"
	"github.com/kiesman99/drape/pkg/tile"
)

// TileResolver renders one tile.
type TileResolver interface {
	ResolveTile(ctx context.Context, req tile.Request, loc store.Locator) (*tiler.Result, error)
}

// Options configures a Server.
type Options struct {
	Version string
	Tiles   TileResolver
	// Overlays backs the overlay tile route. Nil means no overlays are
	// registered.
	Overlays         overlay.Repository
	DefaultDimension int
	Logger           *slog.Logger
}

// Server implements api.ServerInterface on top of a TileResolver.
type Server struct {
	startTime time.Time
	version   string
	tiles     TileResolver
	overlays  overlay.Repository
	dimension int
	log       *slog.Logger
}

// NewServer creates a new server instance
func NewServer(opts Options) *Server {
	s := &Server{
		startTime: time.Now(),
		version:   opts.Version,
		tiles:     opts.Tiles,
		overlays:  opts.Overlays,
		dimension: opts.DefaultDimension,
		log:       opts.Logger,
	}
	if s.overlays == nil {
		s.overlays = overlay.Chain{}
	}
	if s.dimension <= 0 {
		s.dimension = tile.DefaultDimension
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Routes builds the chi router: middleware, the metrics endpoint and the API
// mounted at /api/v1.
func (s *Server) Routes(timeout time.Duration, metrics *observability.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.log.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	// CORS middleware for browser map clients
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		api.HandlerWithOptions(s, api.ChiServerOptions{
			BaseRouter:       r,
			ErrorHandlerFunc: s.handleParamError,
		})
	})

	// Health endpoint without the /api/v1 prefix for load balancers.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/v1/health", http.StatusMovedPermanently)
	})

	return r
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	s.writeJSON(w, r, http.StatusOK, response)
}

// GetEncodedTile renders the tile described by a base64-encoded JSON request.
func (s *Server) GetEncodedTile(w http.ResponseWriter, r *http.Request, request string) {
	requestID := middleware.GetReqID(r.Context())

	encoded, err := DecodeTileRequest(request)
	if err != nil {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	loc := store.Locator{Bucket: encoded.Bucket, Key: encoded.Key}
	if err := loc.Validate(); err != nil {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	p := encoded.TilerParams
	t, err := tile.NewTile(p.X, p.Y, p.Zoom)
	if err != nil {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "INVALID_TILE", err.Error(), nil)
		return
	}

	req := tile.Request{
		Overlay: tile.OverlayDescriptor{
			Anchor:       tile.GeoPoint{Lat: p.TopLeftLat, Lng: p.TopLeftLong},
			WidthMeters:  p.OverlayWidthInMeters,
			AspectWidth:  p.AspectRatioWidth,
			AspectHeight: p.AspectRatioHeight,
		},
		Tile:            t,
		OutputDimension: s.dimension,
	}
	if p.RotationDegrees != nil {
		req.Overlay.RotationDegrees = *p.RotationDegrees
	}
	if p.OutputDimension != nil {
		req.OutputDimension = *p.OutputDimension
	}

	s.log.DebugContext(r.Context(), "encoded tile request",
		"request_id", requestID,
		"source", loc.String(),
		"tile", fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y),
	)
	s.renderTile(w, r, req, loc)
}

// GetOverlayTile renders a tile of a registered overlay.
func (s *Server) GetOverlayTile(w http.ResponseWriter, r *http.Request, overlayId string, z int, x int, y int, params api.GetOverlayTileParams) {
	t, err := tile.NewTile(x, y, z)
	if err != nil {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "INVALID_TILE", err.Error(), nil)
		return
	}

	o, err := s.overlays.Get(r.Context(), overlayId)
	if errors.Is(err, overlay.ErrNotFound) {
		s.writeErrorResponse(w, r, http.StatusNotFound, "OVERLAY_NOT_FOUND",
			fmt.Sprintf("No overlay registered as %q", overlayId), nil)
		return
	}
	if err != nil {
		s.log.ErrorContext(r.Context(), "overlay lookup failed", "overlay", overlayId, "error", err)
		s.writeErrorResponse(w, r, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Internal server error", nil)
		return
	}

	req := tile.Request{
		Overlay:         o.Descriptor,
		Tile:            t,
		OutputDimension: s.dimension,
	}
	if params.Dimension != nil {
		req.OutputDimension = *params.Dimension
	}

	s.renderTile(w, r, req, o.Source)
}

func (s *Server) renderTile(w http.ResponseWriter, r *http.Request, req tile.Request, loc store.Locator) {
	result, err := s.tiles.ResolveTile(r.Context(), req, loc)
	if err != nil {
		s.handleTileError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if result.Placeholder {
		w.Header().Set("X-Tile-Placeholder", "true")
	}
	s.setRequestID(w, r)

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		s.log.WarnContext(r.Context(), "writing tile response failed", "error", err)
	}
}

// handleTileError maps resolver failures to HTTP responses.
func (s *Server) handleTileError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status int
		code   string
		msg    string
	)
	switch {
	case errors.Is(err, tiler.ErrInvalidGeometry):
		status, code, msg = http.StatusBadRequest, "INVALID_GEOMETRY", err.Error()
	case errors.Is(err, tiler.ErrInvalidTile):
		status, code, msg = http.StatusBadRequest, "INVALID_TILE", err.Error()
	case errors.Is(err, store.ErrNotFound):
		status, code, msg = http.StatusNotFound, "SOURCE_NOT_FOUND", "Source image not found"
	case errors.Is(err, store.ErrAccessDenied):
		status, code, msg = http.StatusForbidden, "SOURCE_ACCESS_DENIED", "Source image access denied"
	case errors.Is(err, tiler.ErrDecodeFailure):
		status, code, msg = http.StatusUnprocessableEntity, "DECODE_FAILURE", "Source image could not be decoded"
	case errors.Is(err, context.DeadlineExceeded):
		status, code, msg = http.StatusGatewayTimeout, "SOURCE_TIMEOUT", "Source image request timed out"
	default:
		status, code, msg = http.StatusBadGateway, "SOURCE_ERROR", "Source image could not be fetched"
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.log.Log(r.Context(), level, "tile request failed",
		"request_id", middleware.GetReqID(r.Context()),
		"status", status,
		"error", err,
	)

	s.writeErrorResponse(w, r, status, code, msg, nil)
}

func (s *Server) handleParamError(w http.ResponseWriter, r *http.Request, err error) {
	details := map[string]interface{}{}
	var invalid *api.InvalidParamFormatError
	if errors.As(err, &invalid) {
		details["parameter"] = invalid.ParamName
	}
	s.writeErrorResponse(w, r, http.StatusBadRequest, "INVALID_PARAMETER", err.Error(), details)
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:   errorCode,
		Message: message,
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		response.RequestId = &id
	}
	if len(details) > 0 {
		response.Details = &details
	}

	s.writeJSON(w, r, statusCode, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	s.setRequestID(w, r)
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WarnContext(r.Context(), "encoding response failed", "error", err)
	}
}

func (s *Server) setRequestID(w http.ResponseWriter, r *http.Request) {
	if id := middleware.GetReqID(r.Context()); id != "" {
		w.Header().Set(middleware.RequestIDHeader, id)
	}
}

// DecodeTileRequest parses a base64-encoded JSON tile request. Standard and
// URL-safe alphabets are accepted, padded or not.
func DecodeTileRequest(encoded string) (*api.EncodedTileRequest, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("empty tile request")
	}

	var (
		raw []byte
		err error
	)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		if raw, err = enc.DecodeString(encoded); err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("tile request is not valid base64: %w", err)
	}

	var req api.EncodedTileRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("tile request is not valid JSON: %w", err)
	}
	return &req, nil
}
