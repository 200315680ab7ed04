package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/LJTian/MovieCast/internal/scheduler"
	"github.com/LJTian/MovieCast/internal/storage"
	"github.com/gin-gonic/gin"
)

// Runner 是 API 需要的调度器能力
type Runner interface {
	RunOnce(ctx context.Context, force bool) (scheduler.Report, error)
	LastReport() (scheduler.Report, bool)
	LastCheck() (scheduler.Report, bool)
	Window() scheduler.PublishWindow
}

type Server struct {
	store      storage.PostedStore
	runner     Runner
	runTimeout time.Duration
}

func NewServer(store storage.PostedStore, runner Runner, runTimeout time.Duration) *Server {
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	return &Server{store: store, runner: runner, runTimeout: runTimeout}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/status", s.status)
		v1.GET("/posted", s.listPosted)
		v1.POST("/run", s.run)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	w := s.runner.Window()
	data := gin.H{
		"publishHours": w.Hours(),
		"timezone":     w.Location().String(),
		"currentHour":  w.HourAt(time.Now()),
	}
	if rep, ok := s.runner.LastReport(); ok {
		data["lastRun"] = rep
	}
	if rep, ok := s.runner.LastCheck(); ok {
		data["lastCheck"] = rep
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func (s *Server) listPosted(c *gin.Context) {
	limitStr := c.DefaultQuery("limit", "20")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 20
	}

	items, err := s.store.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
	})
}

// run 手动触发一次发布；force=true 时忽略时间窗口。客户端断开不会中断周期。
func (s *Server) run(c *gin.Context) {
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.runTimeout)
	defer cancel()

	rep, err := s.runner.RunOnce(ctx, force)
	switch {
	case errors.Is(err, scheduler.ErrCycleRunning):
		c.JSON(http.StatusConflict, gin.H{
			"code":    "busy",
			"message": err.Error(),
		})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{
			"code":    "cycle_failed",
			"message": err.Error(),
			"data":    rep,
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"code":    "ok",
			"message": "success",
			"data":    rep,
		})
	}
}

// BasicAuthMiddleware 为整个站点增加一个简单的 Basic Auth 访问密码。
// /health 不做认证，便于健康检查。
func BasicAuthMiddleware(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
