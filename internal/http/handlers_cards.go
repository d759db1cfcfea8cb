package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"dindion/internal/log"
)

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.cards.List(r.Context(), identityFrom(r.Context()).UID)
	if err != nil {
		s.fail(w, r, err, log.OpList, "could not load credit cards")
		return
	}
	NewResponse().Body(map[string]any{"cards": toCardsJSON(cards)}).Write(w)
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var in newCardJSON
	if err := DecodeJSON(r, &in); err != nil {
		s.fail(w, r, err, log.OpParse, "")
		return
	}
	card, err := s.cards.Add(r.Context(), identityFrom(r.Context()).UID, in.Name)
	if err != nil {
		s.fail(w, r, err, log.OpCreate, "could not save credit card")
		return
	}
	NewResponse().Status(http.StatusCreated).Body(cardJSON{ID: card.ID, Name: card.Name}).Write(w)
}

// handleRemoveCard deletes a card; ?cascade=true also deletes its expenses.
func (s *Server) handleRemoveCard(w http.ResponseWriter, r *http.Request) {
	cascade, err := ParseBoolParam(r.URL.Query(), "cascade")
	if err != nil {
		s.fail(w, r, err, log.OpParse, "")
		return
	}
	if err := s.cards.Remove(r.Context(), identityFrom(r.Context()).UID, mux.Vars(r)["id"], cascade); err != nil {
		s.fail(w, r, err, log.OpDelete, "could not remove credit card")
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleCardExpenses(w http.ResponseWriter, r *http.Request) {
	summary, err := s.cards.Expenses(r.Context(), identityFrom(r.Context()).UID, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err, log.OpRead, "could not load card expenses")
		return
	}
	NewResponse().Body(toCardSummaryJSON(summary)).Write(w)
}
