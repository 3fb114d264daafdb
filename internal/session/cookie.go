package session

import (
	"net/http"

	"github.com/gorilla/securecookie"
)

// CookieCodec carries the session id in an HMAC-signed, encrypted cookie.
type CookieCodec struct {
	name   string
	secure bool
	sc     *securecookie.SecureCookie
}

// NewCookieCodec creates a codec. Empty keys are replaced by random ones, so
// cookies issued before a restart stop decoding.
func NewCookieCodec(name string, secure bool, hashKey, blockKey []byte) *CookieCodec {
	if len(hashKey) == 0 {
		hashKey = securecookie.GenerateRandomKey(64)
	}
	if len(blockKey) == 0 {
		blockKey = securecookie.GenerateRandomKey(32)
	}

	// Expiry is enforced server-side by the idle timeout.
	sc := securecookie.New(hashKey, blockKey).MaxAge(0)

	return &CookieCodec{name: name, secure: secure, sc: sc}
}

// Name returns the cookie name.
func (c *CookieCodec) Name() string {
	return c.name
}

// Read returns the session id carried by the request, if any.
func (c *CookieCodec) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return "", false
	}

	var id string
	if err := c.sc.Decode(c.name, cookie.Value, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

// Write sets the session cookie.
func (c *CookieCodec) Write(w http.ResponseWriter, r *http.Request, id string) error {
	encoded, err := c.sc.Encode(c.name, id)
	if err != nil {
		return err
	}

	http.SetCookie(w, c.cookie(r, encoded, 0))
	return nil
}

// Clear expires the session cookie on the client.
func (c *CookieCodec) Clear(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, c.cookie(r, "", -1))
}

func (c *CookieCodec) cookie(r *http.Request, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
}
