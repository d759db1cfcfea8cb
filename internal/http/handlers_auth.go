package http

import (
	"net/http"

	"dindion/internal/log"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentialsJSON
	if err := DecodeJSON(r, &in); err != nil {
		s.fail(w, r, err, log.OpParse, "")
		return
	}
	id, token, err := s.auth.Register(r.Context(), in.Email, in.Password)
	if err != nil {
		s.fail(w, r, err, log.OpCreate, "could not create account")
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Cookie(s.sessionCookie(r, token)).
		Body(sessionJSON{User: toIdentityJSON(id), Token: token}).
		Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentialsJSON
	if err := DecodeJSON(r, &in); err != nil {
		s.fail(w, r, err, log.OpParse, "")
		return
	}
	id, token, err := s.auth.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		s.fail(w, r, err, log.OpRead, "could not sign in")
		return
	}
	NewResponse().
		Cookie(s.sessionCookie(r, token)).
		Body(sessionJSON{User: toIdentityJSON(id), Token: token}).
		Write(w)
}

// handleLogout revokes the token; open event streams of the session end
// with a signout event.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context(), SessionToken(r)); err != nil {
		s.fail(w, r, err, log.OpDelete, "could not sign out")
		return
	}
	expired := s.sessionCookie(r, "")
	expired.MaxAge = -1
	NoContent().Cookie(expired).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	NewResponse().Body(toIdentityJSON(identityFrom(r.Context()))).Write(w)
}

func (s *Server) sessionCookie(r *http.Request, token string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.opts.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	}
}
