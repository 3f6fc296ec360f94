package network

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pancake/protocol"
	"pancake/session"
)

const (
	readLimit = 1 << 16
	pongWait  = 60 * time.Second
	pingEvery = 25 * time.Second
	writeWait = 10 * time.Second
	sendQueue = 16

	leaderboardSize    = 10
	maxLeaderboardSize = 100
)

type Options struct {
	AllowedOrigins  []string // empty allows any origin
	DropRate        float64  // drops per second per connection
	DropBurst       int
	TickInterval    time.Duration
	PublishInterval time.Duration
	BoardWidth      float64
	Logger          *zap.Logger
}

// Server relays websocket players into a session.Registry.
type Server struct {
	reg      *session.Registry
	opts     Options
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewServer(reg *session.Registry, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DropRate <= 0 {
		opts.DropRate = 10
	}
	if opts.DropBurst < 1 {
		opts.DropBurst = 5
	}
	s := &Server{reg: reg, opts: opts, log: opts.Logger}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(opts.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(opts.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return s
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	r.GET("/health", func(ctx *gin.Context) { ctx.String(http.StatusOK, "healthy") })
	r.GET("/leaderboard", s.handleLeaderboard)
	r.GET("/ws", s.handleWS)
	return r
}

func (s *Server) handleLeaderboard(ctx *gin.Context) {
	n := leaderboardSize
	if q := ctx.Query("limit"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 1 || v > maxLeaderboardSize {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and " + strconv.Itoa(maxLeaderboardSize)})
			return
		}
		n = v
	}

	top := s.reg.Leaderboard(n)
	out := protocol.Leaderboard{Scores: make([]protocol.LeaderboardEntry, 0, len(top))}
	for i, sc := range top {
		out.Scores = append(out.Scores, protocol.LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: sc.Player,
			Score:    sc.Score,
			At:       sc.At.UTC().Format(time.RFC3339),
		})
	}
	ctx.JSON(http.StatusOK, out)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		s.log.Debug("http request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.Request.URL.Path),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) handleWS(ctx *gin.Context) {
	player := ctx.Query("player")
	anonymous := player == ""
	if anonymous {
		player = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(player, conn, s.opts, s.log)
	go c.writePump()
	defer c.close()

	unsubscribe := s.reg.Subscribe(player, c.publish)
	if anonymous {
		// nobody can reconnect to a generated id
		defer s.reg.Remove(player)
	} else {
		defer unsubscribe()
	}

	s.log.Info("player connected", zap.String("player", player))
	c.sendMessage(protocol.MsgWelcome, protocol.Welcome{
		V:          protocol.Version,
		PlayerID:   player,
		TickMs:     s.opts.TickInterval.Milliseconds(),
		PublishMs:  s.opts.PublishInterval.Milliseconds(),
		BoardWidth: s.opts.BoardWidth,
	})
	if snap, ok := s.reg.Get(player); ok {
		c.sendMessage(protocol.MsgState, protocol.NewState(snap))
	}

	c.readLoop(s.reg)
	s.log.Info("player disconnected", zap.String("player", player))
}

var (
	ErrBackpressure = errors.New("client send queue full")
	errClosed       = errors.New("client closed")
)
