package session

import "net/http"

// CookieName carries the opaque session id
const CookieName = "mr_session"

// SetCookie writes the session cookie. HTTP-only with the session's absolute
// 7-day lifetime; never refreshed on activity.
func SetCookie(w http.ResponseWriter, record *Record, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    record.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(DefaultTTL.Seconds()),
	})
}

// ClearCookie expires the session cookie
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// IDFromRequest extracts the session id from the request cookie, or ""
func IDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
