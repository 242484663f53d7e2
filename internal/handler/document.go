package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/service"
)

// DocumentRequest is the body of POST /documents: the text of an uploaded
// PDF or a pasted confirmation.
type DocumentRequest struct {
	Subject  string `json:"subject" validate:"max=500"`
	Text     string `json:"text" validate:"required"`
	Source   string `json:"source" validate:"omitempty,oneof=manual pdf_upload other_automatic"`
	SkipPast bool   `json:"skip_past"`
}

// IngestDocument handles POST /documents.
func (s *Server) IngestDocument(w http.ResponseWriter, r *http.Request) {
	var body DocumentRequest
	if err := s.decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	src := domain.Source(body.Source)
	if src == domain.SourceUnset {
		src = domain.SourcePDFUpload
	}

	res, err := s.ingest.Ingest(r.Context(), owner(r), service.Document{
		Subject:  body.Subject,
		Text:     body.Text,
		Source:   src,
		SkipPast: body.SkipPast,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.IDs == nil {
		res.IDs = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, res)
}
