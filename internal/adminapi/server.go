// Package adminapi provides a read-only HTTP surface over a running
// gsession.Server and its audit trail, grounded on the teacher's Echo
// wiring (api.go: HideBanner, middleware.Recover(), a JSON error
// handler) with the read/write room-settings routes replaced by
// read-only Facade-backed endpoints appropriate to an operator console.
package adminapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"netcore.dev/gameserver/gsession"
	"netcore.dev/gameserver/internal/store"
)

// Server is the admin HTTP surface for one gsession.Server.
type Server struct {
	game  *gsession.Server
	audit *store.Store
	echo  *echo.Echo
}

// New constructs a Server and registers every route. audit may be nil,
// in which case /api/audit always returns an empty list.
func New(game *gsession.Server, audit *store.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = jsonErrorHandler

	s := &Server{game: game, audit: audit, echo: e}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/status", s.handleStatus)
	s.echo.GET("/api/players", s.handlePlayers)
	s.echo.GET("/api/player/:idOrName", s.handlePlayer)
	s.echo.GET("/api/rooms/:id", s.handleRoom)
	s.echo.GET("/api/audit", s.handleAudit)
}

// Run starts the admin HTTP server on addr and blocks until ctx is
// cancelled, then shuts it down gracefully.
func (s *Server) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Errorf("admin api server error: %v", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		s.echo.Logger.Errorf("admin api shutdown: %v", err)
	}
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Players int    `json:"players"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Players: s.game.Status().Players,
	})
}

// StatusResponse is the payload for GET /api/status.
type StatusResponse struct {
	Players        int    `json:"players"`
	Claimed        int    `json:"claimed"`
	Unclaimed      int    `json:"unclaimed"`
	Rooms          int    `json:"rooms"`
	GlobalRoom     int    `json:"global_room"`
	BroadcastBytes uint64 `json:"broadcast_bytes"`
	BroadcastHuman string `json:"broadcast_human"`
	Maintenance    bool   `json:"maintenance"`
}

func (s *Server) handleStatus(c echo.Context) error {
	st := s.game.Status()
	return c.JSON(http.StatusOK, StatusResponse{
		Players:        st.Players,
		Claimed:        st.Claimed,
		Unclaimed:      st.Unclaimed,
		Rooms:          st.Rooms,
		GlobalRoom:     st.GlobalRoom,
		BroadcastBytes: st.BroadcastBytes,
		BroadcastHuman: humanize.Bytes(st.BroadcastBytes),
		Maintenance:    st.Maintenance,
	})
}

// PlayersResponse is the payload for GET /api/players.
type PlayersResponse struct {
	Players []gsession.PlayerPreview `json:"players"`
}

func (s *Server) handlePlayers(c echo.Context) error {
	players := s.game.AllPlayerPreviews()
	if players == nil {
		players = []gsession.PlayerPreview{}
	}
	return c.JSON(http.StatusOK, PlayersResponse{Players: players})
}

func (s *Server) handlePlayer(c echo.Context) error {
	query := c.Param("idOrName")
	preview, ok := s.lookupPreview(query)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "player not found")
	}
	return c.JSON(http.StatusOK, preview)
}

func (s *Server) lookupPreview(query string) (gsession.PlayerPreview, bool) {
	sess := s.game.FindUser(query)
	if sess == nil {
		return gsession.PlayerPreview{}, false
	}
	return s.game.GetPlayerPreviewByID(sess.AccountID())
}

// RoomResponse is the payload for GET /api/rooms/:id.
type RoomResponse struct {
	RoomID  uint32                       `json:"room_id"`
	Players []gsession.PlayerRoomPreview `json:"players"`
}

func (s *Server) handleRoom(c echo.Context) error {
	id, err := parseUint32(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid room id")
	}
	if _, ok := s.game.RoomPlayerCount(id); !ok {
		return echo.NewHTTPError(http.StatusNotFound, "room not found")
	}
	players := s.game.PlayerPreviewsInRoomWithLevel(int32(id))
	if players == nil {
		players = []gsession.PlayerRoomPreview{}
	}
	return c.JSON(http.StatusOK, RoomResponse{RoomID: id, Players: players})
}

// AuditResponse is the payload for GET /api/audit.
type AuditResponse struct {
	Entries []store.AuditEntry `json:"entries"`
}

func (s *Server) handleAudit(c echo.Context) error {
	if s.audit == nil {
		return c.JSON(http.StatusOK, AuditResponse{Entries: []store.AuditEntry{}})
	}
	kind := c.QueryParam("kind")
	limit := 100
	entries, err := s.audit.RecentAuditLog(c.Request().Context(), kind, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []store.AuditEntry{}
	}
	return c.JSON(http.StatusOK, AuditResponse{Entries: entries})
}

func parseUint32(s string) (uint32, error) {
	var n uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		n = n*10 + uint64(r-'0')
		if n > 0xFFFFFFFF {
			return 0, echo.NewHTTPError(http.StatusBadRequest, "id out of range")
		}
	}
	if s == "" {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "missing id")
	}
	return uint32(n), nil
}

// jsonErrorHandler ensures all error responses have a consistent JSON
// body: {"error": "message"}.
func jsonErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			c.NoContent(code) //nolint:errcheck
		} else {
			c.JSON(code, map[string]string{"error": msg}) //nolint:errcheck
		}
	}
}
