package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/tldr/internal/pkg/response"
)

// Pinger is a dependency whose reachability is reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type logItem struct {
	Size     string `json:"size"`
	Filename string `json:"filename"`
	Created  int64  `json:"created"`
}

// Options configures the health routes. Nil pingers are skipped.
type Options struct {
	Database Pinger
	Redis    Pinger
	LogDir   string
	Started  time.Time
	Timeout  time.Duration
}

// RegisterRoutes mounts GET /health publicly and GET /health/logs behind authMW.
func RegisterRoutes(rg *gin.RouterGroup, opts Options, authMW gin.HandlerFunc) {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Started.IsZero() {
		opts.Started = time.Now()
	}

	rg.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), opts.Timeout)
		defer cancel()

		body := gin.H{"status": "ok", "uptime": int64(time.Since(opts.Started).Seconds())}
		code := http.StatusOK
		check := func(name string, p Pinger) {
			if p == nil {
				return
			}
			ok := p.Ping(ctx) == nil
			body[name] = ok
			if !ok {
				body["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		check("database", opts.Database)
		check("redis", opts.Redis)
		c.JSON(code, body)
	})

	rg.GET("/health/logs", authMW, func(c *gin.Context) {
		if opts.LogDir == "" {
			response.OK(c, []logItem{})
			return
		}
		entries, err := os.ReadDir(opts.LogDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				response.OK(c, []logItem{})
				return
			}
			response.BadRequest(c, "log dir not readable")
			return
		}

		items := make([]logItem, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			items = append(items, logItem{
				Size:     formatByteSize(info.Size()),
				Filename: entry.Name(),
				Created:  info.ModTime().UnixMilli(),
			})
		}
		sort.Slice(items, func(i, j int) bool {
			return items[i].Created > items[j].Created
		})
		response.OK(c, items)
	})
}

func formatByteSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
