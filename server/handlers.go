package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jhaldar/sprout/models"
	"github.com/jhaldar/sprout/report"
	"github.com/jhaldar/sprout/reporter"
	"github.com/jhaldar/sprout/server/auth"
	contextKey "github.com/jhaldar/sprout/server/context_key"
	storage "github.com/jhaldar/sprout/storage/persistent"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// API holds the handlers' dependencies. The routes in Start map onto its
// methods.
type API struct {
	store     storage.StorageInterface
	auth      *auth.Auth
	reporters *reporter.Manager
}

// NewAPI wires the REST handlers to their storage backend, auth service, and
// the reporter manager. reporters may be nil when background reporting is not
// wanted, as in tests.
func NewAPI(store storage.StorageInterface, authService *auth.Auth, reporters *reporter.Manager) *API {
	return &API{store: store, auth: authService, reporters: reporters}
}

type errorResponse struct {
	Error string `json:"error"`
}

type tokenResponse struct {
	AuthToken    string `json:"auth_token"`
	RefreshToken string `json:"refresh_token"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("error encoding response:", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// accountID extracts the authenticated account's ID that jwtMiddleware put in
// the request context.
func accountID(r *http.Request) (primitive.ObjectID, error) {
	if err, ok := r.Context().Value(contextKey.JwtErrorKey).(error); ok && err != nil {
		return primitive.NilObjectID, err
	}
	id, ok := r.Context().Value(contextKey.UserIDKey).(string)
	if !ok || id == "" {
		return primitive.NilObjectID, errors.New("not authenticated")
	}
	return primitive.ObjectIDFromHex(id)
}

// profileFor loads the family profile owned by the request's account. Any
// successful load keeps the profile's background reporter running.
func (api *API) profileFor(r *http.Request) (*models.Profile, error) {
	id, err := accountID(r)
	if err != nil {
		return nil, err
	}
	profile, err := api.store.FindProfile(r.Context(), bson.M{"account_id": id})
	if err != nil {
		return nil, err
	}
	if api.reporters != nil {
		api.reporters.EnsureRunning(profile.ID)
	}
	return profile, nil
}

// SignUp registers a parent account and its family profile.
func (api *API) SignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username       string `json:"username"`
		Email          string `json:"email"`
		Password       string `json:"password"`
		FamilyName     string `json:"family_name"`
		FirstChildName string `json:"first_child_name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	authToken, refreshToken, err := api.auth.SignUp(r.Context(), body.Username, body.Email, body.Password, body.FamilyName, body.FirstChildName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{AuthToken: authToken, RefreshToken: refreshToken})
}

// SignIn authenticates a parent and returns a token pair.
func (api *API) SignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	authToken, refreshToken, err := api.auth.SignIn(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AuthToken: authToken, RefreshToken: refreshToken})
}

// Refresh exchanges a valid refresh token for a new token pair. The account
// ID comes from the (possibly expired) access token in the Authorization
// header.
func (api *API) Refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	id, ok := r.Context().Value(contextKey.UserIDKey).(string)
	if !ok || id == "" {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	authToken, refreshToken, err := api.auth.RefreshToken(id, body.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AuthToken: authToken, RefreshToken: refreshToken})
}

// UpdateAccount changes the authenticated account's credentials.
func (api *API) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var body struct {
		CurrentPassword string `json:"current_password"`
		NewUsername     string `json:"new_username"`
		NewEmail        string `json:"new_email"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := api.auth.UpdateAccount(r.Context(), id.Hex(), body.CurrentPassword, body.NewUsername, body.NewEmail, body.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetProfile returns the family profile: children, behavior catalog, and
// reporting settings.
func (api *API) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := api.profileFor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// replaceProfile persists an edited profile value wholesale.
func (api *API) replaceProfile(w http.ResponseWriter, r *http.Request, profile models.Profile) {
	updated, err := api.store.ReplaceProfile(r.Context(), bson.M{"_id": profile.ID}, &profile)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save profile")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// AddChild appends a new child to the profile.
func (api *API) AddChild(w http.ResponseWriter, r *http.Request) {
	profile, err := api.profileFor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "a child name is required")
		return
	}
	next, _ := profile.WithChild(body.Name)
	api.replaceProfile(w, r, next)
}

// RenameChild changes a child's display name. History keys on the child ID,
// so renames never touch recorded points.
func (api *API) RenameChild(w http.ResponseWriter, r *http.Request) {
	profile, err := api.profileFor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	next, err := profile.WithChildRenamed(mux.Vars(r)["childID"], body.Name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	api.replaceProfile(w, r, next)
}

// RemoveChild removes a child from the profile. The last child cannot be
// removed; the child's day records stay in storage.
func (api *API) RemoveChild(w http.ResponseWriter, r *http.Request) {
	profile, err := api.profileFor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	next, err := profile.WithChildRemoved(mux.Vars(r)["childID"])
	if err != nil {
		if errors.Is(err, models.ErrLastChild) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	api.replaceProfile(w, r, next)
}

// AddBehavior appends a new enabled behavior to the catalog.
func (api *API) AddBehavior(w http.ResponseWriter, r *http.Request) {
	profile, err := api.profileFor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var body struct {
		Label string `json:"label"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Label == "" {
		writeError(w, http.StatusBadRequest, "a behavior label is required")
		return
	}
	next, _ := profile.WithBehavior(body.Label)
	api.replaceProfile(w, r, next)
}

// SetBehaviorEnabled toggles a behavior's enabled flag. Disabling hides the
// behavior from scoring but keeps its recorded history counting.
func (api *API) SetBehaviorEnabled(w http.ResponseWriter, r *http.Request) {
	profile, err := api.profileFor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	next, err := profile.WithBehaviorEnabled(mux.Vars(r)["behaviorID"], body.Enabled)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	api.replaceProfile(w, r, next)
}

// SetPoint records one behavior's point value for a child on a date. Values
// outside {-1, 0, +1} are rejected; the storage layer creates the day record
// on first write.
func (api *API) SetPoint(w http.ResponseWriter, r *http.Request) {
	profile, err := api.profileFor(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	var body struct {
		ChildID    string `json:"child_id"`
		BehaviorID string `json:"behavior_id"`
		Date       string `json:"date"`
		Value      int    `json:"value"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Value < -1 || body.Value > 1 {
		writeError(w, http.StatusBadRequest, "point value must be -1, 0, or +1")
		return
	}
	if _, ok := profile.ChildByID(body.ChildID); !ok {
		writeError(w, http.StatusNotFound, "no such child")
		return
	}
	enabled := false
	for _, b := range profile.EnabledBehaviors() {
		if b.ID == body.BehaviorID {
			enabled = true
			break
		}
	}
	if !enabled {
		writeError(w, http.StatusBadRequest, "behavior is not enabled for scoring")
		return
	}

	record, err := api.store.SetPoint(r.Context(), profile.ID, body.ChildID, body.Date, body.BehaviorID, body.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type reportResponse struct {
	Report report.Report `json:"report"`
	Tier   *report.Tier  `json:"tier,omitempty"`
}

// resolveReport computes a child's report for the requested period from the
// profile's stored day records. Query parameters: child (required), mode
// (day, week, month, or year; default month), anchor (YYYY-MM-DD; default
// today).
func (api *API) resolveReport(r *http.Request) (*models.Profile, models.Child, report.Report, error) {
	profile, err := api.profileFor(r)
	if err != nil {
		return nil, models.Child{}, report.Report{}, errors.New("not authenticated")
	}

	q := r.URL.Query()
	child, ok := profile.ChildByID(q.Get("child"))
	if !ok {
		return nil, models.Child{}, report.Report{}, errors.New("no such child")
	}

	modeParam := q.Get("mode")
	if modeParam == "" {
		modeParam = string(report.ModeMonth)
	}
	mode, err := report.ParseMode(modeParam)
	if err != nil {
		return nil, models.Child{}, report.Report{}, err
	}

	anchor := time.Now().UTC()
	if a := q.Get("anchor"); a != "" {
		anchor, err = report.ParseDate(a)
		if err != nil {
			return nil, models.Child{}, report.Report{}, err
		}
	}

	rng, err := report.Resolve(mode, anchor, time.Weekday(profile.WeekStartDay))
	if err != nil {
		return nil, models.Child{}, report.Report{}, err
	}

	records, err := api.store.FindDayRecords(r.Context(), bson.M{
		"profile_id": profile.ID,
		"child_id":   child.ID,
		"date":       bson.M{"$gte": report.FormatDate(rng.Start), "$lte": report.FormatDate(rng.End)},
	})
	if err != nil {
		return nil, models.Child{}, report.Report{}, errors.New("failed to load day records")
	}

	return profile, child, report.Build(records, child.ID, rng), nil
}

// GetReport returns a child's period report as JSON, with the reached reward
// tier if any.
func (api *API) GetReport(w http.ResponseWriter, r *http.Request) {
	_, _, rep, err := api.resolveReport(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := reportResponse{Report: rep}
	if tier, ok := report.Evaluate(rep.Total, report.DefaultTiers()); ok {
		resp.Tier = &tier
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExportReport returns a child's period report rendered as a CSV download.
func (api *API) ExportReport(w http.ResponseWriter, r *http.Request) {
	profile, child, rep, err := api.resolveReport(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rendered, err := report.ExportCSV(rep, child.Name, profile.EnabledBehaviors())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+report.ExportFilename(rep.Label))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(rendered)); err != nil {
		log.Println("error writing export:", err)
	}
}
