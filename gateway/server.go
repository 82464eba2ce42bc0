package gateway

import (
	"chat-gateway/auth"
	"chat-gateway/contract"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const userKey = "user_id"

type ServerConfig struct {
	JWTSecret            string
	AllowedOrigins       []string
	ConnectionBufferSize int
	MaxFrameBytes        int64
	PingInterval         time.Duration
	ReadTimeout          time.Duration
}

// Server accepts websocket connections on /ws and feeds their frames to the Handler.
type Server struct {
	log      *slog.Logger
	cfg      ServerConfig
	handler  *Handler
	registry contract.IPresenceRegistry
	upgrader websocket.Upgrader
	sessions sync.WaitGroup
	inflight sync.WaitGroup

	mu      sync.Mutex
	conns   map[string]*Connection
	closing bool
}

func NewServer(log *slog.Logger, cfg ServerConfig, handler *Handler, registry contract.IPresenceRegistry) *Server {
	s := &Server{log: log, cfg: cfg, handler: handler, registry: registry, conns: make(map[string]*Connection)}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowMethods:    []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Authorization", auth.UserIDHeader},
		AllowWebSockets: true,
	}
	if s.allowAllOrigins() {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.cfg.AllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", RequireUser(s.cfg.JWTSecret), s.ServeWS)
	return router
}

// RequireUser refuses the handshake before the upgrade when no identity can be established.
func RequireUser(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.UserFromRequest(c.Request, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Set(userKey, userID)
		c.Next()
	}
}

func (s *Server) ServeWS(c *gin.Context) {
	s.sessions.Add(1)
	defer s.sessions.Done()
	userID := c.GetString(userKey)
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the response.
		s.log.Debug("Upgrade failed", "user_id", userID, "error", err)
		return
	}

	conn := NewConnection(ws, userID, s.log, s.cfg.ConnectionBufferSize, s.cfg.PingInterval, s.cfg.ReadTimeout)
	session := NewSession(conn.ID, userID)
	s.registry.Attach(conn.ID, conn)
	s.track(conn)
	defer s.untrack(conn)
	conn.Start()
	s.log.Info("Client connected", "connection_id", conn.ID, "user_id", userID)

	err = conn.ReadLoop(s.cfg.MaxFrameBytes, func(frame []byte) {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.handler.Dispatch(session, frame)
		}()
	})
	if err != nil {
		s.log.Debug("Read loop ended", "connection_id", conn.ID, "error", err)
	}

	s.handler.Disconnect(session)
	conn.Close(websocket.CloseNormalClosure, "session closed")
	s.log.Info("Client disconnected", "connection_id", conn.ID, "user_id", userID)
}

// Shutdown closes every live websocket, http.Server.Shutdown leaves hijacked
// connections alone. It returns once every read loop ended and every frame
// already handed to the Handler is processed. Call it after http.Server.Shutdown.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closing = true
	conns := lo.Values(s.conns)
	s.mu.Unlock()
	for _, conn := range conns {
		conn.Close(websocket.CloseGoingAway, "server shutting down")
	}
	s.sessions.Wait()
	s.inflight.Wait()
}

func (s *Server) track(conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		conn.Close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	s.conns[conn.ID] = conn
}

func (s *Server) untrack(conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn.ID)
}

func (s *Server) allowAllOrigins() bool {
	return len(s.cfg.AllowedOrigins) == 0 || lo.Contains(s.cfg.AllowedOrigins, "*")
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.allowAllOrigins() || lo.Contains(s.cfg.AllowedOrigins, origin)
}
