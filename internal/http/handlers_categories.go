package http

import (
	"net/http"

	"ledgerly/internal/core"
	applog "ledgerly/internal/log"
)

type categoryRequest struct {
	Name  string `json:"name"`
	Limit any    `json:"limit"`
}

func (req categoryRequest) toCategory() (core.Category, error) {
	limit, err := parseNonNegative(req.Limit)
	if err != nil {
		return core.Category{}, err
	}
	return core.Category{Name: sanitizeInput(req.Name), Limit: limit}, nil
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories.List(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err, applog.OpList)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewResponse().JSON(cats).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := readCategory(w, r, applog.OpCreate)
	if !ok {
		return
	}
	created, err := s.svc.Categories.Create(r.Context(), userID(r), c)
	if err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(created).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := readCategory(w, r, applog.OpUpdate)
	if !ok {
		return
	}
	updated, err := s.svc.Categories.Update(r.Context(), userID(r), r.PathValue("id"), c)
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	NewResponse().JSON(updated).Write(w)
}

// handleSetCategoryLimit updates the limit of the named category, creating
// the category when the user has none by that name.
func (s *Server) handleSetCategoryLimit(w http.ResponseWriter, r *http.Request) {
	c, ok := readCategory(w, r, applog.OpUpdate)
	if !ok {
		return
	}
	updated, err := s.svc.Categories.SetLimit(r.Context(), userID(r), c.Name, c.Limit)
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	NewResponse().JSON(updated).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Categories.Delete(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeError(w, r, err, applog.OpDelete)
		return
	}
	NoContent().Write(w)
}

func readCategory(w http.ResponseWriter, r *http.Request, op string) (core.Category, bool) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, op)
		return core.Category{}, false
	}
	c, err := req.toCategory()
	if err != nil {
		writeError(w, r, err, op)
		return core.Category{}, false
	}
	return c, true
}
