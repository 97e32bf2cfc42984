package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/scholarhub/pkg/logger"
)

// RequestLog はリクエストごとにメソッド、パス、ステータス、処理時間を記録するGinミドルウェアを返す。
// クエリ文字列にはメールアドレスが含まれるため記録しない。
func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= 500:
			logger.Errorf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, latency)
		case status >= 400:
			logger.Warningf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, latency)
		default:
			logger.Infof("%s %s %d %s", c.Request.Method, c.Request.URL.Path, status, latency)
		}
	}
}
