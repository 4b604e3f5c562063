package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	constants "github.com/CodeAndHammer/learngames/internal/constants"
	"github.com/CodeAndHammer/learngames/internal/mathgame"
	models "github.com/CodeAndHammer/learngames/internal/models"
	"github.com/CodeAndHammer/learngames/internal/throttle"
)

// NormalizeProfile lowercases and validates a profile id.
func NormalizeProfile(id string) (string, bool) {
	return throttle.NormalizeName(id)
}

func GetOrCreateSession(app *models.App, c *gin.Context) string {
	sessionID, err := c.Cookie(constants.SessionCookieName)
	if err != nil || len(sessionID) < 10 {
		sessionID = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		secure := app.Config.IsProduction
		c.SetCookie(constants.SessionCookieName, sessionID, int(app.Config.CookieMaxAge.Seconds()), "/", "", secure, true)
		app.Log.Debug("Created new session", "session", sessionID)
	}
	return sessionID
}

// GetSession returns the state of sessionID, creating it bound to profileID
// (or the configured default profile when profileID is empty).
func GetSession(app *models.App, sessionID, profileID string) (*models.Session, *models.Profile) {
	now := app.Clock.Now()

	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()

	sess, ok := app.Sessions[sessionID]
	if !ok {
		if profileID == "" {
			profileID = app.Config.DefaultProfile
		}
		sess = &models.Session{
			ID:                sessionID,
			ProfileID:         profileID,
			Pending:           make(map[string]*models.PendingProblem),
			ChallengeAttempts: make(map[string]int),
		}
		app.Sessions[sessionID] = sess
		app.Log.Info("Session bound to profile", "session", sessionID, "profile", profileID)
	} else if profileID != "" && profileID != sess.ProfileID {
		sess.ProfileID = profileID
		clear(sess.Pending)
		sess.PendingOrder = nil
		clear(sess.ChallengeAttempts)
		app.Log.Info("Session switched profile", "session", sessionID, "profile", profileID)
	}
	sess.LastAccessTime = now

	prof, ok := app.Profiles[sess.ProfileID]
	if !ok {
		prof = app.NewProfile(sess.ProfileID)
		app.Profiles[sess.ProfileID] = prof
	}
	return sess, prof
}

// AddPending stores p under a new id and evicts the oldest entries past
// MaxPendingProblems.
func AddPending(app *models.App, sess *models.Session, p mathgame.Problem, d mathgame.Difficulty, action string) string {
	id := uuid.NewString()
	putPending(app, sess, id, &models.PendingProblem{Problem: p, Difficulty: d, Action: action, IssuedAt: app.Clock.Now()})
	return id
}

// RestorePending puts back a problem taken by TakePending whose answer could
// not be recorded, so the client can submit it again.
func RestorePending(app *models.App, sess *models.Session, id string, p *models.PendingProblem) {
	putPending(app, sess, id, p)
}

func putPending(app *models.App, sess *models.Session, id string, p *models.PendingProblem) {
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()

	if _, ok := sess.Pending[id]; !ok {
		sess.PendingOrder = append(sess.PendingOrder, id)
	}
	sess.Pending[id] = p
	for len(sess.PendingOrder) > constants.MaxPendingProblems {
		delete(sess.Pending, sess.PendingOrder[0])
		sess.PendingOrder = sess.PendingOrder[1:]
	}
}

// TakePending removes and returns the problem id if it was issued for action.
// A problem is consumed by its first answer.
func TakePending(app *models.App, sess *models.Session, id, action string) (*models.PendingProblem, bool) {
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()

	p, ok := sess.Pending[id]
	if !ok || p.Action != action {
		return nil, false
	}
	delete(sess.Pending, id)
	sess.PendingOrder = lo.Without(sess.PendingOrder, id)
	return p, true
}

// NextChallengeAttempt returns the 1-based attempt number of the next unlock
// challenge for action.
func NextChallengeAttempt(app *models.App, sess *models.Session, action string) int {
	app.SessionMutex.RLock()
	defer app.SessionMutex.RUnlock()
	return sess.ChallengeAttempts[action] + 1
}

// FailChallenge counts a wrong unlock answer.
func FailChallenge(app *models.App, sess *models.Session, action string) int {
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()
	sess.ChallengeAttempts[action]++
	return sess.ChallengeAttempts[action]
}

// ClearChallenge forgets the attempts for action after an unlock.
func ClearChallenge(app *models.App, sess *models.Session, action string) {
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()
	delete(sess.ChallengeAttempts, action)
}

// CleanupExpiredSessions drops sessions idle longer than SessionTTL, and the
// cached profiles and throttles no remaining session uses. It returns the
// number of sessions removed.
func CleanupExpiredSessions(app *models.App) int {
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()

	cutoff := app.Clock.Now().Add(-app.Config.SessionTTL)
	expired := lo.PickBy(app.Sessions, func(_ string, s *models.Session) bool {
		return s.LastAccessTime.Before(cutoff)
	})
	for id := range expired {
		delete(app.Sessions, id)
	}

	inUse := lo.SliceToMap(lo.Values(app.Sessions), func(s *models.Session) (string, struct{}) {
		return s.ProfileID, struct{}{}
	})
	for id := range app.Profiles {
		if _, ok := inUse[id]; ok {
			continue
		}
		delete(app.Profiles, id)
		app.Throttles.Forget(throttle.ProfilePrefix(id))
	}

	if len(expired) > 0 {
		app.Log.Info("Cleaned up expired sessions", "count", len(expired), "remaining", len(app.Sessions))
	}
	return len(expired)
}
