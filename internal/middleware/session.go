package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sistema-escolar/escuela-backend/internal/session"
)

// ContextKeySession is the Gin context key for the resolved session record.
const ContextKeySession = "session"

// LoadSession resolves the session cookie, records activity and rotates the
// id of authenticated sessions once SESSION_ROTATE_EVERY has passed. Forged
// cookies and sessions that expire on this request are cleared. An id that
// simply no longer resolves is left alone. In every case the request
// continues as anonymous.
func LoadSession(sessions *session.Manager, cookies *session.CookieCodec, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("component", "session_middleware").Logger()

	return func(c *gin.Context) {
		id, ok := cookies.Read(c.Request)
		if !ok {
			if _, err := c.Request.Cookie(cookies.Name()); err == nil {
				cookies.Clear(c.Writer, c.Request)
			}
			c.Next()
			return
		}

		ctx := c.Request.Context()
		rec, err := sessions.Resolve(ctx, id)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrExpired):
				cookies.Clear(c.Writer, c.Request)
			case errors.Is(err, session.ErrNotFound):
				// Possibly a request racing a rotation; clearing here could
				// overwrite the browser's newer cookie.
			default:
				log.Error().Err(err).Msg("Failed to resolve session")
			}
			c.Next()
			return
		}

		if sessions.NeedsRotation(rec) {
			newID, err := sessions.Regenerate(ctx, rec.ID)
			switch {
			case err == nil:
				if werr := cookies.Write(c.Writer, c.Request, newID); werr != nil {
					log.Error().Err(werr).Msg("Failed to write rotated session cookie")
				}
				rec.ID = newID
				rec.RotatedAt = sessions.Now()
			case errors.Is(err, session.ErrNotFound):
				// A concurrent request rotated or destroyed it first.
				c.Next()
				return
			default:
				log.Warn().Err(err).Msg("Failed to rotate session id")
			}
		}

		if err := sessions.Touch(ctx, rec.ID); err != nil && !errors.Is(err, session.ErrNotFound) {
			log.Warn().Err(err).Msg("Failed to touch session")
		}
		rec.LastActivity = sessions.Now()

		c.Set(ContextKeySession, rec)
		c.Next()
	}
}

// GetSession extracts the session record from the Gin context.
func GetSession(c *gin.Context) *session.Record {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	rec, ok := val.(*session.Record)
	if !ok {
		return nil
	}
	return rec
}

// SessionID returns the id of the request's live session, or "".
func SessionID(c *gin.Context) string {
	if rec := GetSession(c); rec != nil {
		return rec.ID
	}
	return ""
}
