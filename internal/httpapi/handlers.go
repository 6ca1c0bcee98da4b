package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kmacleod/hockey-draft-backend/internal/draft"
	"github.com/kmacleod/hockey-draft-backend/internal/hub"
	"github.com/kmacleod/hockey-draft-backend/internal/scoring"
	"github.com/kmacleod/hockey-draft-backend/internal/session"
	"github.com/kmacleod/hockey-draft-backend/internal/types"
)

type createDraftRequest struct {
	LeagueID    string   `json:"leagueId"`
	TeamIDs     []string `json:"teamIds"`
	RosterSlots int      `json:"rosterSlots"`
	Snake       bool     `json:"snake"`
}

type makePickRequest struct {
	TeamID string                 `json:"teamId"`
	Player draft.PlayerDescriptor `json:"player"`
}

type registerRosterRequest struct {
	RosterID string `json:"rosterId"`
	TeamName string `json:"teamName"`
}

func CreateDraft(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createDraftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid json body")
			return
		}
		if req.LeagueID == "" || len(req.TeamIDs) == 0 || req.RosterSlots <= 0 {
			badRequest(w, "leagueId, teamIds and rosterSlots are required")
			return
		}

		pickOrder := req.TeamIDs
		if req.Snake {
			pickOrder = draft.SnakeOrder(req.TeamIDs)
		}

		reply := make(chan hub.CreateResult, 1)
		h.Inbox() <- hub.CreateDraft{
			LeagueID:   req.LeagueID,
			PickOrder:  pickOrder,
			TotalPicks: req.RosterSlots * len(req.TeamIDs),
			Reply:      reply,
		}
		res := <-reply
		if res.Err != nil {
			writeError(w, res.Err)
			return
		}
		writeJSON(w, http.StatusCreated, res.State)
	}
}

func GetDraft(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := ensureSession(h, chi.URLParam(r, "draftID"))
		if err != nil {
			writeError(w, err)
			return
		}
		reply := make(chan draft.State, 1)
		st, err := session.Request(sess, session.GetState{Reply: reply}, reply)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func StartDraft(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := ensureSession(h, chi.URLParam(r, "draftID"))
		if err != nil {
			writeError(w, err)
			return
		}
		reply := make(chan session.Result, 1)
		res, err := session.Request(sess, session.Start{Reply: reply}, reply)
		if err != nil {
			writeError(w, err)
			return
		}
		if res.Err != nil {
			writeError(w, res.Err)
			return
		}
		writeJSON(w, http.StatusOK, res.State)
	}
}

func MakePick(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req makePickRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid json body")
			return
		}
		sess, err := ensureSession(h, chi.URLParam(r, "draftID"))
		if err != nil {
			writeError(w, err)
			return
		}
		reply := make(chan session.Result, 1)
		res, err := session.Request(sess, session.MakePick{TeamID: req.TeamID, Player: req.Player, Reply: reply}, reply)
		if err != nil {
			writeError(w, err)
			return
		}
		if res.Err != nil {
			writeError(w, res.Err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Pick  *draft.Pick `json:"pick"`
			Draft draft.State `json:"draft"`
		}{Pick: res.Pick, Draft: res.State})
	}
}

func ScoringSummary(agg *scoring.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, agg.GetSummary(chi.URLParam(r, "leagueID")))
	}
}

func IngestScoringEvent(agg *scoring.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev scoring.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			badRequest(w, "invalid json body")
			return
		}
		ev.LeagueID = chi.URLParam(r, "leagueID")
		total, applied, err := agg.ApplyEvent(ev)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Applied     bool    `json:"applied"`
			TotalPoints float64 `json:"totalPoints"`
		}{Applied: applied, TotalPoints: total})
	}
}

func RegisterRoster(agg *scoring.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRosterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RosterID == "" {
			badRequest(w, "rosterId required")
			return
		}
		agg.UpsertRoster(chi.URLParam(r, "leagueID"), req.RosterID, req.TeamName)
		w.WriteHeader(http.StatusNoContent)
	}
}

func ResetScoringPeriod(agg *scoring.Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agg.ResetPeriod(chi.URLParam(r, "leagueID"))
		w.WriteHeader(http.StatusNoContent)
	}
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func ensureSession(h *hub.Hub, draftID string) (*session.Session, error) {
	reply := make(chan hub.SessionResult, 1)
	h.Inbox() <- hub.EnsureSession{DraftID: draftID, Reply: reply}
	res := <-reply
	return res.Session, res.Err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, struct {
		Error types.ErrorPayload `json:"error"`
	}{Error: types.ErrorPayload{Kind: types.KindInternal, Message: msg}})
}

// writeError maps domain errors to HTTP statuses: lifecycle and turn-order
// rejections are the caller's fault (400), unknown ids are 404, lost write
// races are 409.
func writeError(w http.ResponseWriter, err error) {
	payload := types.Classify(err)
	status := http.StatusInternalServerError
	switch payload.Kind {
	case types.KindInvalidState, types.KindOutOfTurn, types.KindDuplicatePick:
		status = http.StatusBadRequest
	case types.KindNotFound:
		status = http.StatusNotFound
	case types.KindStaleState:
		status = http.StatusConflict
	}
	writeJSON(w, status, struct {
		Error types.ErrorPayload `json:"error"`
	}{Error: payload})
}
