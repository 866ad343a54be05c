package stableapi

import (
	"net/http"
	"strings"

	serverops "github.com/hoofbeat/stableops/apiframework"
	"github.com/hoofbeat/stableops/horseservice"
	"github.com/hoofbeat/stableops/stabletypes"
)

func AddHorseRoutes(mux *http.ServeMux, service horseservice.Service) {
	s := &horseAPI{service: service}

	mux.HandleFunc("POST /horses", s.create)
	mux.HandleFunc("GET /horses", s.list)
	mux.HandleFunc("GET /horses/{id}", s.get)
	mux.HandleFunc("PUT /horses/{id}", s.update)
	mux.HandleFunc("DELETE /horses/{id}", s.delete)

	mux.HandleFunc("POST /horse-groups", s.createGroup)
	mux.HandleFunc("GET /horse-groups", s.listGroups)
	mux.HandleFunc("GET /horse-groups/{id}", s.getGroup)
	mux.HandleFunc("DELETE /horse-groups/{id}", s.deleteGroup)
}

type horseAPI struct {
	service horseservice.Service
}

// Adds a horse to a stable's roster.
func (s *horseAPI) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	horse, err := serverops.Decode[stabletypes.Horse](r) // @request stabletypes.Horse
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.CreateOperation)
		return
	}
	if err := s.service.Create(ctx, &horse); err != nil {
		_ = serverops.Error(w, r, err, serverops.CreateOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusCreated, horse) // @response stabletypes.Horse
}

// Lists horses for a stable.
//
// With ids or groupIds query parameters the list narrows accordingly;
// a bare stableId returns the active roster.
func (s *horseAPI) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stableID := serverops.GetQueryParam(r, "stableId", "", "The stable whose roster to list.")
	idsParam := serverops.GetQueryParam(r, "ids", "", "Optional comma-separated horse IDs.")
	groupsParam := serverops.GetQueryParam(r, "groupIds", "", "Optional comma-separated group IDs.")

	var horses []*stabletypes.Horse
	var err error
	switch {
	case idsParam != "":
		horses, err = s.service.ListByIDs(ctx, strings.Split(idsParam, ","))
	case groupsParam != "":
		horses, err = s.service.ListByGroups(ctx, stableID, strings.Split(groupsParam, ","))
	default:
		horses, err = s.service.ListForStable(ctx, stableID)
	}
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ListOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, horses) // @response []stabletypes.Horse
}

// Retrieves a horse by ID.
func (s *horseAPI) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the horse.")

	horse, err := s.service.Get(ctx, id)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.GetOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, horse) // @response stabletypes.Horse
}

// Updates a horse.
func (s *horseAPI) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the horse.")

	horse, err := serverops.Decode[stabletypes.Horse](r) // @request stabletypes.Horse
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}
	horse.ID = id
	if err := s.service.Update(ctx, &horse); err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, horse) // @response stabletypes.Horse
}

// Removes a horse from the roster.
func (s *horseAPI) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the horse.")

	if err := s.service.Delete(ctx, id); err != nil {
		_ = serverops.Error(w, r, err, serverops.DeleteOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, "horse removed") // @response string
}

// Creates a horse group.
func (s *horseAPI) createGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	group, err := serverops.Decode[stabletypes.HorseGroup](r) // @request stabletypes.HorseGroup
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.CreateOperation)
		return
	}
	if err := s.service.CreateGroup(ctx, &group); err != nil {
		_ = serverops.Error(w, r, err, serverops.CreateOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusCreated, group) // @response stabletypes.HorseGroup
}

// Lists horse groups for a stable.
func (s *horseAPI) listGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stableID := serverops.GetQueryParam(r, "stableId", "", "The stable whose groups to list.")

	groups, err := s.service.ListGroups(ctx, stableID)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.ListOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, groups) // @response []stabletypes.HorseGroup
}

// Retrieves a horse group by ID.
func (s *horseAPI) getGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the horse group.")

	group, err := s.service.GetGroup(ctx, id)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.GetOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, group) // @response stabletypes.HorseGroup
}

// Deletes a horse group.
func (s *horseAPI) deleteGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := serverops.GetPathParam(r, "id", "The unique identifier for the horse group.")

	if err := s.service.DeleteGroup(ctx, id); err != nil {
		_ = serverops.Error(w, r, err, serverops.DeleteOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, "group removed") // @response string
}
