package cookie

import (
	"net/http"
	"strings"
	"time"
)

// Write signs sid and sets it as the session cookie with MaxAge equal to ttl.
func (m *Manager) Write(w http.ResponseWriter, sid string, ttl time.Duration) error {
	value, err := m.Issue(sid, ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.Name,
		Value:    value,
		Path:     m.config.Path,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: m.sameSite(),
	})
	return nil
}

// Read returns the session id carried by the request cookie. Missing,
// tampered and expired cookies all report false.
func (m *Manager) Read(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(m.config.Name)
	if err != nil || c == nil {
		return "", false
	}
	value := strings.TrimSpace(c.Value)
	if value == "" {
		return "", false
	}
	sid, err := m.Parse(value)
	if err != nil {
		return "", false
	}
	return sid, true
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.Name,
		Value:    "",
		Path:     m.config.Path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: m.sameSite(),
	})
}

func (m *Manager) sameSite() http.SameSite {
	if m.config.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return m.config.SameSite
}
