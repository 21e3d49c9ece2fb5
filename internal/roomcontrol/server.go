// Package roomcontrol is the HTTP control plane: it hands out room tokens,
// registers debate parameters per room and starts one supervised debate per
// room.
package roomcontrol

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	orchestration "github.com/Invisible042/multi-ai-user-debates/core"
	"github.com/Invisible042/multi-ai-user-debates/core/personas"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/livekit/protocol/livekit"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultRoom = "main"

	humanIdentityPrefix = "human-"
	stopTimeout         = 15 * time.Second
)

// DefaultPersonas are seated when a join request names none.
var DefaultPersonas = []string{"AI Socrates", "AI Einstein", "AI Trump"}

type TokenIssuer interface {
	Issue(room, identity, name string) (string, error)
}

// RoomDeleter removes the room from the media server, e.g. a LiveKit
// RoomServiceClient.
type RoomDeleter interface {
	DeleteRoom(ctx context.Context, req *livekit.DeleteRoomRequest) (*livekit.DeleteRoomResponse, error)
}

type Defaults struct {
	Topic               string
	TurnDurationMinutes int
	TotalRounds         int
}

type Server struct {
	echo       *echo.Echo
	livekitURL string
	issuer     TokenIssuer
	catalog    *personas.Catalog
	registry   *Registry
	supervisor *Supervisor
	defaults   Defaults
	rooms      RoomDeleter
	now        func() time.Time
}

type ServerOption func(*Server)

func WithCatalog(catalog *personas.Catalog) ServerOption {
	return func(s *Server) {
		if catalog != nil {
			s.catalog = catalog
		}
	}
}

func WithDefaults(defaults Defaults) ServerOption {
	return func(s *Server) { s.defaults = defaults }
}

// WithRoomDeleter makes DELETE /rooms/:room also remove the media room.
func WithRoomDeleter(rooms RoomDeleter) ServerOption {
	return func(s *Server) { s.rooms = rooms }
}

func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// NewServer wires the routes. The supervisor's debates report back into the
// server's registry.
func NewServer(livekitURL string, issuer TokenIssuer, run RunFunc, opts ...ServerOption) *Server {
	s := &Server{
		echo:       echo.New(),
		livekitURL: livekitURL,
		issuer:     issuer,
		catalog:    personas.DefaultCatalog(),
		registry:   NewRegistry(),
		defaults:   Defaults{Topic: "AI Debate", TurnDurationMinutes: 3, TotalRounds: 4},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.supervisor = NewSupervisor(run, WithExitHandler(s.recordExit))

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(
		middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:  true,
			LogURI:     true,
			LogStatus:  true,
			LogLatency: true,
			LogError:   true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				logger.InfoContext(c.Request().Context(), "request",
					"method", v.Method, "uri", v.URI, "status", v.Status,
					"latency", v.Latency.String(), "error", v.Error)
				return nil
			},
		}),
		middleware.Recover(),
		middleware.CORS(),
	)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/", s.health)
	s.echo.POST("/join", s.join)
	s.echo.GET("/rooms", s.listRooms)
	s.echo.DELETE("/rooms/:room", s.deleteRoom)
	s.echo.GET("/personas", s.listPersonas)
}

func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Registry() *Registry { return s.registry }

func (s *Server) Supervisor() *Supervisor { return s.supervisor }

func (s *Server) Start(addr string) error {
	logger.Info("control plane listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server, then drains the running debates.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(
		s.echo.Shutdown(ctx),
		s.supervisor.Shutdown(ctx),
	)
}

func (s *Server) recordExit(room string, err error) {
	switch {
	case err == nil:
		s.registry.SetStatus(room, RoomFinished, nil)
	case errors.Is(err, orchestration.ErrDebateCancelled):
		s.registry.SetStatus(room, RoomCancelled, nil)
	default:
		s.registry.SetStatus(room, RoomFailed, err)
	}
}

type JoinRequest struct {
	Room          string   `json:"room"`
	User          string   `json:"user"`
	Topic         string   `json:"topic"`
	Personas      []string `json:"personas"`
	TurnDuration  *int     `json:"turnDuration"`
	NumberOfTurns *int     `json:"numberOfTurns"`
}

type JoinResponse struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) join(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "join room")
	defer span.End()

	fail := func(status int, err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return c.JSON(status, errorResponse{Detail: err.Error()})
	}

	req := new(JoinRequest)
	if err := c.Bind(req); err != nil {
		return fail(http.StatusBadRequest, fmt.Errorf("invalid join request: %w", err))
	}

	room := strings.TrimSpace(req.Room)
	if room == "" {
		room = DefaultRoom
	}
	span.SetAttributes(attribute.String("room.name", room))

	entry := RoomEntry{
		Topic:           req.Topic,
		Personas:        s.catalog.MapFrontendIDs(req.Personas),
		TurnDurationMin: s.defaults.TurnDurationMinutes,
		TotalRounds:     s.defaults.TotalRounds,
		CreatedAt:       s.now().UTC(),
		Status:          RoomRunning,
	}
	if entry.Topic == "" {
		entry.Topic = s.defaults.Topic
	}
	if len(entry.Personas) == 0 {
		entry.Personas = DefaultPersonas
	}
	if req.TurnDuration != nil {
		entry.TurnDurationMin = *req.TurnDuration
	}
	if req.NumberOfTurns != nil {
		entry.TotalRounds = *req.NumberOfTurns
	}

	config := orchestration.DebateConfig{
		Room:                room,
		Topic:               entry.Topic,
		PersonaIDs:          entry.Personas,
		TurnDurationSeconds: entry.TurnDurationMin * 60,
		TotalRounds:         entry.TotalRounds,
	}
	if err := config.Validate(); err != nil {
		return fail(http.StatusBadRequest, err)
	}

	if s.registry.Register(room, entry) {
		if err := s.supervisor.Start(config); err != nil {
			s.registry.Delete(room)
			status := http.StatusInternalServerError
			if errors.Is(err, ErrDraining) {
				status = http.StatusServiceUnavailable
			}
			return fail(status, fmt.Errorf("failed to start debate: %w", err))
		}
		logger.InfoContext(ctx, "debate registered",
			"room", room, "topic", entry.Topic, "personas", entry.Personas,
			"turn_duration_min", entry.TurnDurationMin, "total_rounds", entry.TotalRounds)
	}

	identity := strings.TrimSpace(req.User)
	if identity == "" {
		identity = humanIdentityPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	}
	token, err := s.issuer.Issue(room, identity, identity)
	if err != nil {
		return fail(http.StatusInternalServerError, fmt.Errorf("failed to join room: %w", err))
	}

	span.SetAttributes(attribute.String("participant.identity", identity))
	return c.JSON(http.StatusOK, JoinResponse{URL: s.livekitURL, Token: token})
}

type roomsResponse struct {
	Rooms       []string             `json:"rooms"`
	RoomDetails map[string]RoomEntry `json:"room_details"`
}

func (s *Server) listRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, roomsResponse{
		Rooms:       s.registry.Names(),
		RoomDetails: s.registry.Snapshot(),
	})
}

func (s *Server) deleteRoom(c echo.Context) error {
	room := c.Param("room")
	ctx, span := tracer.Start(c.Request().Context(), "delete room", trace.WithAttributes(attribute.String("room.name", room)))
	defer span.End()

	if _, ok := s.registry.Get(room); !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Detail: "Room not found"})
	}

	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := s.supervisor.Stop(stopCtx, room); err != nil && !errors.Is(err, ErrUnknownJob) {
		span.RecordError(err)
		logger.WarnContext(ctx, "debate did not stop in time", "room", room, "error", err)
	}
	s.registry.Delete(room)

	if s.rooms != nil {
		if _, err := s.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: room}); err != nil {
			span.RecordError(err)
			logger.WarnContext(ctx, "failed to delete media room", "room", room, "error", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"message": fmt.Sprintf("Room %s deleted", room)})
}

func (s *Server) listPersonas(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]personas.Definition{"personas": s.catalog.List()})
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}
