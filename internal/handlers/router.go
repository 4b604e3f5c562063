package handlers

import (
	"strings"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	constants "github.com/CodeAndHammer/learngames/internal/constants"
	"github.com/CodeAndHammer/learngames/internal/middleware"
	models "github.com/CodeAndHammer/learngames/internal/models"
	util "github.com/CodeAndHammer/learngames/internal/util"
)

// NewRouter builds the gin engine serving the JSON API and, when the
// directory exists, the static UI.
func NewRouter(app *models.App) *gin.Engine {
	if app.Config.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(app))
	router.Use(middleware.SecurityHeaders())

	router.Use(middleware.CSRF(app))
	router.Use(middleware.ValidateCSRF())

	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif", ".mp3", ".mp4"})))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		app.Log.Warn("Failed to set trusted proxies", "error", err)
	}

	router.Use(func(c *gin.Context) {
		applyCacheHeaders(app, c)
	})

	if util.DirExists(app.Config.StaticDir) {
		app.Log.Info("Serving static assets", "dir", app.Config.StaticDir)
		router.Static("/static", app.Config.StaticDir)
	}

	limit := middleware.RateLimit(app)
	h := func(fn func(*models.App, *gin.Context)) gin.HandlerFunc {
		return func(c *gin.Context) { fn(app, c) }
	}

	router.GET(constants.RouteHealthz, h(HealthzHandler))
	router.GET(constants.RouteSession, h(SessionHandler))

	router.GET(constants.RouteLock, h(LockStatusHandler))
	router.POST(constants.RouteLock, limit, h(RecordActionHandler))
	router.GET(constants.RouteLockChallenge, h(ChallengeHandler))
	router.POST(constants.RouteLockChallenge, limit, h(ChallengeAnswerHandler))

	router.GET(constants.RouteMathProblem, h(ProblemHandler))
	router.POST(constants.RouteMathAnswer, limit, h(AnswerHandler))
	router.GET(constants.RouteMathStats, h(StatsHandler))
	router.POST(constants.RouteProgressReset, limit, h(ResetProgressHandler))

	router.GET(constants.RouteWallet, h(WalletHandler))
	router.POST(constants.RouteWalletSpend, limit, h(SpendHandler))
	router.POST(constants.RouteGameComplete, limit, h(GameCompleteHandler))

	return router
}

func applyCacheHeaders(app *models.App, c *gin.Context) {
	if app.Config.IsProduction && strings.HasPrefix(c.Request.URL.Path, "/static/") {
		cachecontrol.New(cachecontrol.Config{
			Public: true,
			MaxAge: cachecontrol.Duration(app.Config.StaticCacheAge),
		})(c)
		c.Header("Vary", "Accept-Encoding")
		return
	}
	cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})(c)
}
