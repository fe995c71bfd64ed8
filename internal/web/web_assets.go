package web

import (
	"bytes"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// FaviconPath is the URL the favicon is served on
const FaviconPath = "/favicon.ico"

// Favicon serves the icon at filePath on /favicon.ico and stops the chain.
// The file is read once; a missing file only logs a warning.
func Favicon(filePath string) gin.HandlerFunc {
	icon, err := os.ReadFile(filePath)
	if err != nil {
		log.WithError(err).Warnf("favicon %s not available", filePath)
	}
	modTime := time.Now()

	return func(c *gin.Context) {
		if c.Request.URL.Path != FaviconPath {
			c.Next()
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Header("Allow", "GET, HEAD, OPTIONS")
			status := http.StatusMethodNotAllowed
			if c.Request.Method == http.MethodOptions {
				status = http.StatusOK
			}
			c.AbortWithStatus(status)
			return
		}
		if icon == nil {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.Header("Cache-Control", "public, max-age=86400") // browser caches a day
		c.Header("Content-Type", "image/x-icon")
		http.ServeContent(c.Writer, c.Request, FaviconPath, modTime, bytes.NewReader(icon))
		c.Abort()
	}
}

// Static serves files below dir on the URL root and stops the chain for
// every hit. Misses fall through to the rest of the middleware.
func Static(dir string) gin.HandlerFunc {
	return static.Serve("/", static.LocalFile(dir, false))
}
