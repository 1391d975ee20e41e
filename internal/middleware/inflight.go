package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RequestKeyHeader lets a client name its own request; otherwise the key is a
// digest of method, url, body and actor.
const RequestKeyHeader = "x-idempotence"

// inFlightLease bounds how long a crashed request can block its replays.
const inFlightLease = 60 * time.Second

// InFlightGuard answers 409 to a replay of a generate request while the first
// copy is still running. The lease is released when the handler returns, so
// sequential repeats always go through. Redis errors let the request pass.
func InFlightGuard(rdb *redis.Client, prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := requestKey(c)
		if err != nil {
			c.Next()
			return
		}
		lease := prefix + "inflight:" + key
		ctx := c.Request.Context()

		acquired, err := rdb.SetNX(ctx, lease, time.Now().UnixMilli(), inFlightLease).Result()
		if err != nil {
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"ok":      0,
				"code":    http.StatusConflict,
				"message": "identical request is still being processed",
			})
			return
		}
		defer rdb.Del(context.WithoutCancel(ctx), lease)

		c.Next()
	}
}

func requestKey(c *gin.Context) (string, error) {
	if hdr := c.GetHeader(RequestKeyHeader); hdr != "" {
		return hdr, nil
	}
	var body []byte
	if c.Request.Body != nil {
		b, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return "", err
		}
		body = b
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	h := sha256.New()
	for _, part := range [][]byte{[]byte(c.Request.Method), []byte(c.Request.URL.String()), body, []byte(ActorKey(c))} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
