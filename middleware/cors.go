// api/middleware/cors.go
package middleware

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the dashboard origins to call the API with
// credentials. publicPaths (the tracker endpoints) are embedded on arbitrary
// customer sites, so they accept any origin but never cookies.
func CORSMiddleware(origins []string, publicPaths ...string) gin.HandlerFunc {
	dashboard := cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "X-API-KEY", "X-Requested-With", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
	public := cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-API-KEY"},
		MaxAge:          12 * time.Hour,
	})

	return func(c *gin.Context) {
		if slices.Contains(publicPaths, c.Request.URL.Path) {
			public(c)
			return
		}
		dashboard(c)
	}
}
