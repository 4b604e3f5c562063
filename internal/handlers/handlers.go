package handlers

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeAndHammer/learngames/internal/apierr"
	constants "github.com/CodeAndHammer/learngames/internal/constants"
	"github.com/CodeAndHammer/learngames/internal/mathgame"
	models "github.com/CodeAndHammer/learngames/internal/models"
	"github.com/CodeAndHammer/learngames/internal/progress"
	session "github.com/CodeAndHammer/learngames/internal/session"
	"github.com/CodeAndHammer/learngames/internal/throttle"
	util "github.com/CodeAndHammer/learngames/internal/util"
)

type answerRequest struct {
	ProblemID string `json:"problemId" binding:"required"`
	Answer    *int   `json:"answer" binding:"required"`
}

type spendRequest struct {
	Amount int `json:"amount" binding:"required"`
}

// problemView is a problem as sent to the client, without its answer.
type problemView struct {
	ProblemID  string              `json:"problemId"`
	Problem    string              `json:"problem"`
	Num1       int                 `json:"num1"`
	Num2       int                 `json:"num2"`
	Operation  mathgame.Operation  `json:"operation"`
	Difficulty mathgame.Difficulty `json:"difficulty"`
	Attempt    int                 `json:"attempt,omitempty"`
}

func newProblemView(id string, p mathgame.Problem, d mathgame.Difficulty) problemView {
	return problemView{
		ProblemID:  id,
		Problem:    p.String(),
		Num1:       p.Num1,
		Num2:       p.Num2,
		Operation:  p.Operation,
		Difficulty: d,
	}
}

// respondError maps service errors onto API errors and writes them.
func respondError(app *models.App, c *gin.Context, err error) {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		switch {
		case errors.Is(err, mathgame.ErrInvalidDifficulty):
			apiErr = apierr.BadRequest(constants.ErrorCodeInvalidDifficulty, err)
		case errors.Is(err, progress.ErrInsufficientCoins):
			apiErr = apierr.Conflict(constants.ErrorCodeInsufficientCoins, err)
		case errors.Is(err, progress.ErrInvalidAmount), errors.Is(err, progress.ErrInvalidGame):
			apiErr = apierr.BadRequest(constants.ErrorCodeInvalidRequest, err)
		default:
			apiErr = apierr.Internal(constants.ErrorCodeStoreUnavailable, err)
		}
	}
	if apiErr.Status >= http.StatusInternalServerError {
		app.Log.Error("Request failed", "path", c.FullPath(), "code", apiErr.Code, "error", err)
	} else {
		app.Log.Debug("Request rejected", "path", c.FullPath(), "code", apiErr.Code, "error", err)
	}
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr.Code, "message": apiErr.Error()})
}

func currentProfile(app *models.App, c *gin.Context) (*models.Session, *models.Profile) {
	sessionID := session.GetOrCreateSession(app, c)
	return session.GetSession(app, sessionID, "")
}

func actionParam(c *gin.Context) (string, error) {
	action := c.Param("action")
	if !throttle.ValidName(action) {
		return "", apierr.BadRequest(constants.ErrorCodeInvalidRequest, errors.New("invalid action name"))
	}
	return action, nil
}

func lockStatus(c *gin.Context, t *throttle.Throttle) gin.H {
	ctx := c.Request.Context()
	snap := t.Snapshot(ctx)
	return gin.H{
		"locked":      t.IsLocked(ctx),
		"lockEndTime": t.LockEndTime(ctx),
		"remainingMs": t.Remaining(ctx).Milliseconds(),
		"count":       snap.Count,
		"actionLimit": t.Policy().ActionLimit,
	}
}

func SessionHandler(app *models.App, c *gin.Context) {
	ctx := c.Request.Context()
	profileID := ""
	if q := c.Query("profile"); q != "" {
		id, ok := session.NormalizeProfile(q)
		if !ok {
			respondError(app, c, apierr.BadRequest(constants.ErrorCodeInvalidRequest, errors.New("invalid profile name")))
			return
		}
		profileID = id
	}
	sessionID := session.GetOrCreateSession(app, c)
	_, prof := session.GetSession(app, sessionID, profileID)

	stats := prof.Tracker.Stats(ctx)
	csrfToken, _ := c.Get(constants.CSRFCookieName)
	c.JSON(http.StatusOK, gin.H{
		"profile":    prof.ID,
		"difficulty": stats.Difficulty,
		"stats":      stats,
		"coins":      prof.Rewards.Get(ctx).Coins,
		"csrfToken":  csrfToken,
	})
}

func LockStatusHandler(app *models.App, c *gin.Context) {
	action, err := actionParam(c)
	if err != nil {
		respondError(app, c, err)
		return
	}
	_, prof := currentProfile(app, c)
	t := app.Throttles.Get(c.Request.Context(), prof.ID, action)
	if _, err := t.ReconcileExpiry(c.Request.Context()); err != nil {
		respondError(app, c, err)
		return
	}
	c.JSON(http.StatusOK, lockStatus(c, t))
}

func RecordActionHandler(app *models.App, c *gin.Context) {
	action, err := actionParam(c)
	if err != nil {
		respondError(app, c, err)
		return
	}
	_, prof := currentProfile(app, c)
	t := app.Throttles.Get(c.Request.Context(), prof.ID, action)

	locked, err := t.RecordAction(c.Request.Context())
	if err != nil {
		respondError(app, c, err)
		return
	}
	if locked {
		app.Log.Info("Action locked", "profile", prof.ID, "action", action)
	}
	c.JSON(http.StatusOK, lockStatus(c, t))
}

func ChallengeHandler(app *models.App, c *gin.Context) {
	action, err := actionParam(c)
	if err != nil {
		respondError(app, c, err)
		return
	}
	sess, prof := currentProfile(app, c)
	t := app.Throttles.Get(c.Request.Context(), prof.ID, action)
	if !t.IsLocked(c.Request.Context()) {
		respondError(app, c, apierr.Conflict(constants.ErrorCodeNotLocked, errors.New("action is not locked")))
		return
	}

	attempt := session.NextChallengeAttempt(app, sess, action)
	d := mathgame.DifficultyForAttempt(attempt)
	p := prof.Tracker.GenerateProgressiveProblem(attempt)
	id := session.AddPending(app, sess, p, d, action)

	view := newProblemView(id, p, d)
	view.Attempt = attempt
	c.JSON(http.StatusOK, view)
}

func ChallengeAnswerHandler(app *models.App, c *gin.Context) {
	action, err := actionParam(c)
	if err != nil {
		respondError(app, c, err)
		return
	}
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(app, c, apierr.BadRequest(constants.ErrorCodeInvalidRequest, err))
		return
	}

	ctx := c.Request.Context()
	sess, prof := currentProfile(app, c)
	t := app.Throttles.Get(c.Request.Context(), prof.ID, action)

	pending, ok := session.TakePending(app, sess, req.ProblemID, action)
	if !ok {
		respondError(app, c, apierr.New(http.StatusNotFound, constants.ErrorCodeUnknownProblem, errors.New("unknown or already answered problem")))
		return
	}
	if !t.IsLocked(ctx) {
		session.ClearChallenge(app, sess, action)
		respondError(app, c, apierr.Conflict(constants.ErrorCodeNotLocked, errors.New("action is not locked")))
		return
	}

	if *req.Answer != pending.Problem.Answer {
		attempts := session.FailChallenge(app, sess, action)
		c.JSON(http.StatusOK, gin.H{"correct": false, "unlocked": false, "attempts": attempts})
		return
	}

	if err := t.Reset(ctx); err != nil {
		session.RestorePending(app, sess, req.ProblemID, pending)
		respondError(app, c, err)
		return
	}
	session.ClearChallenge(app, sess, action)
	app.Log.Info("Lock cleared by challenge", "profile", prof.ID, "action", action)
	c.JSON(http.StatusOK, gin.H{"correct": true, "unlocked": true})
}

func ProblemHandler(app *models.App, c *gin.Context) {
	ctx := c.Request.Context()
	sess, prof := currentProfile(app, c)

	var (
		p   mathgame.Problem
		d   mathgame.Difficulty
		err error
	)
	if q := c.Query("difficulty"); q != "" {
		if d, err = mathgame.ParseDifficulty(q); err != nil {
			respondError(app, c, err)
			return
		}
		if p, err = prof.Tracker.GenerateProblemAt(d); err != nil {
			respondError(app, c, err)
			return
		}
	} else {
		d = prof.Tracker.Difficulty(ctx)
		p = prof.Tracker.GenerateProblem(ctx)
	}

	id := session.AddPending(app, sess, p, d, "")
	c.JSON(http.StatusOK, newProblemView(id, p, d))
}

func AnswerHandler(app *models.App, c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(app, c, apierr.BadRequest(constants.ErrorCodeInvalidRequest, err))
		return
	}

	ctx := c.Request.Context()
	sess, prof := currentProfile(app, c)
	pending, ok := session.TakePending(app, sess, req.ProblemID, "")
	if !ok {
		respondError(app, c, apierr.New(http.StatusNotFound, constants.ErrorCodeUnknownProblem, errors.New("unknown or already answered problem")))
		return
	}

	correct := *req.Answer == pending.Problem.Answer
	rec, err := prof.Tracker.RecordAnswer(ctx, pending.Problem.String(), correct)
	if err != nil {
		session.RestorePending(app, sess, req.ProblemID, pending)
		respondError(app, c, err)
		return
	}

	earned := 0
	coins := prof.Rewards.Get(ctx).Coins
	if correct {
		earned = progress.CoinsFor(pending.Difficulty)
		if coins, err = prof.Rewards.Earn(ctx, earned, "math"); err != nil {
			respondError(app, c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"correct":       correct,
		"correctAnswer": pending.Problem.Answer,
		"difficulty":    rec.Difficulty,
		"stats":         rec.Stats(),
		"coinsEarned":   earned,
		"coins":         coins,
	})
}

func StatsHandler(app *models.App, c *gin.Context) {
	_, prof := currentProfile(app, c)
	c.JSON(http.StatusOK, prof.Tracker.Stats(c.Request.Context()))
}

func ResetProgressHandler(app *models.App, c *gin.Context) {
	_, prof := currentProfile(app, c)
	if err := prof.Rewards.ResetProgress(c.Request.Context()); err != nil {
		respondError(app, c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func WalletHandler(app *models.App, c *gin.Context) {
	_, prof := currentProfile(app, c)
	c.JSON(http.StatusOK, prof.Rewards.Get(c.Request.Context()))
}

func SpendHandler(app *models.App, c *gin.Context) {
	var req spendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(app, c, apierr.BadRequest(constants.ErrorCodeInvalidRequest, err))
		return
	}
	_, prof := currentProfile(app, c)
	balance, err := prof.Rewards.Spend(c.Request.Context(), req.Amount)
	if err != nil {
		respondError(app, c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coins": balance})
}

func GameCompleteHandler(app *models.App, c *gin.Context) {
	_, prof := currentProfile(app, c)
	game := c.Param("game")
	n, err := prof.Rewards.CompleteGame(c.Request.Context(), game)
	if err != nil {
		respondError(app, c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": game, "completed": n})
}

func HealthzHandler(app *models.App, c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := app.Clock.Now().Sub(app.StartTime)

	app.SessionMutex.RLock()
	sessionCount := len(app.Sessions)
	profileCount := len(app.Profiles)
	app.SessionMutex.RUnlock()

	app.LimiterMutex.RLock()
	limiterCount := len(app.LimiterMap)
	app.LimiterMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"env":             app.Config.Env,
		"store_driver":    app.Config.Store.Driver,
		"active_sessions": sessionCount,
		"active_profiles": profileCount,
		"active_limiters": limiterCount,
		"throttles":       app.Throttles.Len(),
		"memory_alloc_mb": m.Alloc / 1024 / 1024,
		"memory_gc_count": m.NumGC,
		"uptime":          util.FormatUptime(uptime),
		"timestamp":       app.Clock.Now().UTC().Format(time.RFC3339),
	})
}
