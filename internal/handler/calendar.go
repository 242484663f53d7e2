package handler

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/itinerary/internal/calendar"
	"github.com/pkordes/itinerary/internal/domain"
)

const calendarContentType = "text/calendar; charset=utf-8"

// ExportGroupCalendar handles GET /groups/{key}/calendar as a download.
// ?method= selects request (default), update, or cancel.
func (s *Server) ExportGroupCalendar(w http.ResponseWriter, r *http.Request) {
	m, err := calendar.ParseMethod(r.URL.Query().Get("method"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, name, err := s.calendar.ExportGroup(r.Context(), owner(r), pathKey(r), m)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", calendarContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": downloadName(name) + ".ics",
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, body)
}

// GetCalendarFeed handles GET /calendar/{token}.ics, the unauthenticated
// subscription feed. The token is the only credential.
func (s *Server) GetCalendarFeed(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutSuffix(chi.URLParam(r, "file"), ".ics")
	if !ok {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	body, err := s.calendar.Feed(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", calendarContentType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, body)
}

// downloadName keeps letters, digits, spaces and dashes of a trip name.
func downloadName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '-' || r == '_':
			return r
		case r < 0x20, strings.ContainsRune(`/\:*?"<>|`, r):
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if clean == "" {
		return "trip"
	}
	return clean
}
