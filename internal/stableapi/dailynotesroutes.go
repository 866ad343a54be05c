package stableapi

import (
	"net/http"

	serverops "github.com/hoofbeat/stableops/apiframework"
	"github.com/hoofbeat/stableops/dailynotesservice"
	"github.com/hoofbeat/stableops/stabletypes"
)

func AddDailyNotesRoutes(mux *http.ServeMux, service dailynotesservice.Service) {
	s := &dailyNotesAPI{service: service}

	mux.HandleFunc("PUT /daily-notes/{stableId}/{date}", s.set)
	mux.HandleFunc("GET /daily-notes/{stableId}/{date}", s.get)
}

type dailyNotesAPI struct {
	service dailynotesservice.Service
}

// Writes the whole notes document for one stable and day.
func (s *dailyNotesAPI) set(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stableID := serverops.GetPathParam(r, "stableId", "The stable the notes belong to.")
	date := serverops.GetPathParam(r, "date", "The day, YYYY-MM-DD.")

	notes, err := serverops.Decode[stabletypes.DailyNotes](r) // @request stabletypes.DailyNotes
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}
	notes.StableID = stableID
	notes.Date = date
	if err := s.service.Set(ctx, &notes); err != nil {
		_ = serverops.Error(w, r, err, serverops.UpdateOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, notes) // @response stabletypes.DailyNotes
}

// Reads the notes document for one stable and day.
//
// A day with no notes returns an empty document, not a 404.
func (s *dailyNotesAPI) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stableID := serverops.GetPathParam(r, "stableId", "The stable the notes belong to.")
	date := serverops.GetPathParam(r, "date", "The day, YYYY-MM-DD.")

	notes, err := s.service.Get(ctx, stableID, date)
	if err != nil {
		_ = serverops.Error(w, r, err, serverops.GetOperation)
		return
	}

	_ = serverops.Encode(w, r, http.StatusOK, notes) // @response stabletypes.DailyNotes
}
