package planapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/planhub/planhub/internal/app/identity"
	"github.com/planhub/planhub/internal/app/plans"
	platformauth "github.com/planhub/planhub/internal/platform/auth"
	"github.com/planhub/planhub/internal/wizard"
)

type Handler struct {
	Identity      *identity.Service
	Plans         *plans.Service
	Wizards       *wizard.Store
	AllowedOrigin string
}

func NewHandler(identitySvc *identity.Service, plansSvc *plans.Service, wizards *wizard.Store, allowedOrigin string) *Handler {
	return &Handler{
		Identity:      identitySvc,
		Plans:         plansSvc,
		Wizards:       wizards,
		AllowedOrigin: allowedOrigin,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.corsMiddleware)
	r.Options("/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/api/v1/auth/register", h.handleRegister)
	r.Post("/api/v1/auth/login", h.handleLogin)
	r.Post("/api/v1/auth/refresh", h.handleRefresh)
	r.Post("/api/v1/auth/logout", h.handleLogout)

	r.Group(func(authR chi.Router) {
		authR.Use(h.authMiddleware)
		authR.Get("/api/v1/orgs", h.handleListOrgs)
		authR.Post("/api/v1/orgs", h.handleCreateOrg)
		authR.Post("/api/v1/orgs/{orgID}/members", h.handleAddMember)
		authR.Get("/api/v1/orgs/{orgID}/workspaces", h.handleListWorkspaces)
		authR.Post("/api/v1/orgs/{orgID}/workspaces", h.handleCreateWorkspace)
		authR.Post("/api/v1/workspaces/{workspaceID}/select", h.handleSelectWorkspace)

		authR.Group(func(wsR chi.Router) {
			wsR.Use(h.workspaceMiddleware)

			wsR.Post("/api/v1/wizard", h.handleCreateWizard)
			wsR.Get("/api/v1/wizard/{wizardID}", h.handleGetWizard)
			wsR.Put("/api/v1/wizard/{wizardID}/draft", h.handleApplyDraft)
			wsR.Post("/api/v1/wizard/{wizardID}/clear-reference", h.handleClearReference)
			wsR.Post("/api/v1/wizard/{wizardID}/undo", h.handleUndo)
			wsR.Post("/api/v1/wizard/{wizardID}/redo", h.handleRedo)
			wsR.Post("/api/v1/wizard/{wizardID}/reset", h.handleReset)
			wsR.Post("/api/v1/wizard/{wizardID}/tab", h.handleMoveTab)
			wsR.Put("/api/v1/wizard/{wizardID}/tickets", h.handleEditTickets)
			wsR.Get("/api/v1/wizard/{wizardID}/suggestions", h.handleSuggestions)
			wsR.Post("/api/v1/wizard/{wizardID}/submit", h.handleSubmit)
			wsR.Delete("/api/v1/wizard/{wizardID}", h.handleAbandonWizard)

			wsR.Get("/api/v1/plans", h.handleListPlans)
			wsR.Get("/api/v1/plans/{planID}", h.handleGetPlan)
			wsR.Patch("/api/v1/plans/{planID}/general", h.handleUpdateGeneral)
			wsR.Patch("/api/v1/plans/{planID}/location", h.handleUpdateLocation)
			wsR.Patch("/api/v1/plans/{planID}/timeslots", h.handleUpdateTimeSlots)
			wsR.Delete("/api/v1/plans/{planID}", h.handleDeletePlan)

			wsR.Post("/api/v1/posts", h.handleCreatePost)
			wsR.Delete("/api/v1/posts/{postID}", h.handleDeletePost)
		})
	})

	return r
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type createOrgRequest struct {
	Name string `json:"name"`
}

type addMemberRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type createWorkspaceRequest struct {
	Name string `json:"name"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	sess, err := h.Identity.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrUsernameTaken):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	sess, err := h.Identity.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	sess, err := h.Identity.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidRefresh) {
			h.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.Identity.Logout(r.Context(), req.RefreshToken); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListOrgs(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	memberships, err := h.Identity.ListOrganizations(r.Context(), claims.Subject)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"organizations": memberships})
}

func (h *Handler) handleCreateOrg(w http.ResponseWriter, r *http.Request) {
	var req createOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims := claimsFromContext(r.Context())
	org, err := h.Identity.CreateOrganization(r.Context(), claims.Subject, req.Name)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidInput) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusCreated, org)
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims := claimsFromContext(r.Context())
	err := h.Identity.AddMember(r.Context(), claims.Subject, orgID, req.Username, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrForbidden):
			h.writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, identity.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "user not found")
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	claims := claimsFromContext(r.Context())
	workspaces, err := h.Identity.ListWorkspaces(r.Context(), claims.Subject, orgID)
	if err != nil {
		if errors.Is(err, identity.ErrForbidden) {
			h.writeError(w, http.StatusForbidden, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"workspaces": workspaces})
}

func (h *Handler) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	var req createWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims := claimsFromContext(r.Context())
	ws, err := h.Identity.CreateWorkspace(r.Context(), claims.Subject, orgID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrForbidden):
			h.writeError(w, http.StatusForbidden, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, ws)
}

func (h *Handler) handleSelectWorkspace(w http.ResponseWriter, r *http.Request) {
	workspaceID := chi.URLParam(r, "workspaceID")
	claims := claimsFromContext(r.Context())
	sess, err := h.Identity.SelectWorkspace(r.Context(), claims.Subject, workspaceID)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "workspace not found")
		case errors.Is(err, identity.ErrForbidden):
			h.writeError(w, http.StatusForbidden, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

type createWizardRequest struct {
	PlanTypeID string `json:"plan_type_id"`
	FromPlanID string `json:"from_plan_id,omitempty"`
}

type capacityView struct {
	State     string `json:"state"`
	Remaining int    `json:"remaining,omitempty"`
}

type wizardView struct {
	ID          string       `json:"id"`
	Draft       wizard.Draft `json:"draft"`
	Tab         wizard.Tab   `json:"tab"`
	CanUndo     bool         `json:"can_undo"`
	CanRedo     bool         `json:"can_redo"`
	IsComplete  bool         `json:"is_complete"`
	IsFormEmpty bool         `json:"is_form_empty"`
	Capacity    capacityView `json:"capacity"`
}

func capacityStateName(state wizard.CapacityState) string {
	switch state {
	case wizard.CapacityStateExceeded:
		return "exceeded"
	case wizard.CapacityStateExact:
		return "exact"
	case wizard.CapacityStateRemaining:
		return "remaining"
	default:
		return "unset"
	}
}

func viewOf(session *wizard.Session) wizardView {
	draft := session.Draft()
	check := wizard.CheckCapacity(draft)
	return wizardView{
		ID:          session.ID,
		Draft:       draft,
		Tab:         session.Tab(),
		CanUndo:     session.CanUndo(),
		CanRedo:     session.CanRedo(),
		IsComplete:  draft.IsComplete(),
		IsFormEmpty: draft.IsFormEmpty(),
		Capacity:    capacityView{State: capacityStateName(check.State), Remaining: check.Remaining},
	}
}

func (h *Handler) handleCreateWizard(w http.ResponseWriter, r *http.Request) {
	var req createWizardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.PlanTypeID) == "" && req.FromPlanID == "" {
		h.writeError(w, http.StatusBadRequest, "plan_type_id is required")
		return
	}
	claims := claimsFromContext(r.Context())

	if req.FromPlanID != "" {
		plan, err := h.Plans.Get(r.Context(), actorFromClaims(claims), req.FromPlanID)
		if err != nil {
			if errors.Is(err, plans.ErrNotFound) {
				h.writeError(w, http.StatusNotFound, "plan not found")
				return
			}
			h.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		session := h.Wizards.CreateSeeded(claims.Subject, draftFromPlan(plan), plan.ID)
		h.writeJSON(w, http.StatusCreated, viewOf(session))
		return
	}

	session := h.Wizards.Create(claims.Subject, strings.TrimSpace(req.PlanTypeID))
	h.writeJSON(w, http.StatusCreated, viewOf(session))
}

func draftFromPlan(plan plans.Plan) wizard.Draft {
	draft := wizard.DefaultDraft(plan.PlanTypeID)
	draft.Name = plan.Name
	draft.Description = plan.Description
	draft.Days = plan.Days
	draft.TimeSlots = plan.TimeSlots
	draft.Capacity = plan.Capacity
	draft.Location = plan.Location
	return draft.WithTickets(plan.Tickets)
}

func (h *Handler) wizardSession(w http.ResponseWriter, r *http.Request) (*wizard.Session, bool) {
	claims := claimsFromContext(r.Context())
	session, err := h.Wizards.Get(chi.URLParam(r, "wizardID"), claims.Subject)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "wizard not found")
		return nil, false
	}
	return session, true
}

func (h *Handler) handleGetWizard(w http.ResponseWriter, r *http.Request) {
	session, ok := h.wizardSession(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, viewOf(session))
}

type applyDraftRequest struct {
	Draft wizard.Draft `json:"draft"`
}

func (h *Handler) handleApplyDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.wizardSession(w, r)
	if !ok {
		return
	}
	var req applyDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if _, err := session.Apply(func(wizard.Draft) wizard.Draft { return req.Draft }); err != nil {
		if errors.Is(err, wizard.ErrDraftLocked) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, viewOf(session))
}

func (h *Handler) handleClearReference(w http.ResponseWriter, r *http.Request) {
	session, ok := h.wizardSession(w, r)
	if !ok {
		return
	}
	session.ClearReference()
	h.writeJSON(w, http.StatusOK, viewOf(session))
}

func (h *Handler) handleUndo(w http.ResponseWriter, r *http.Request) {
	session, ok := h.wizardSession(w, r)
	if !ok {
		return
	}
	session.Undo()
	h.writeJSON(w, http.StatusOK, viewOf(session))
}

func (h *Handler) handleRedo(w http.ResponseWriter, r *http.Request) {
	session, ok := h.wizardSession(w, r)
	if !ok {
		return
	}
	session.Redo()
	h.writeJSON(w, http.StatusOK, viewOf(session))
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	session, ok := h.wizardSession(w, r)
	if !ok {
		return
	}
	session.Reset()
	h.writeJSON(w, http.StatusOK, viewOf(session))
}

type moveTabRequest struct {
	Direction string `json:"direction"`
}

func (h *Handler) handleMoveTab(w http.ResponseWriter, r *http.Request) {
	session, ok := h.wizardSession(w, r)
	if !ok {
		return
	}
	var req moveTabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	direction, err := wizard.ParseDirection(req.Direction)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session.Move(direction)
	h.writeJSON(w, http.StatusOK, viewOf(session))
}

type editTicketsRequest struct {
	Tickets     []wizard.Ticket `json:"tickets"`
	EditedIndex int             `json:"edited_index"`
}

// handleEditTickets replaces the ticket list. The edited line is checked
// against its pool's remaining allowance and the whole edit is rejected on
// overflow; quantities are never clamped.
func (h *Handler) handleEditTickets(w http.ResponseWriter, r *http.Request) {
	session, ok := h.wizardSession(w, r)
	if !ok {
		return
	}
	var req editTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.EditedIndex < 0 || req.EditedIndex >= len(req.Tickets) {
		h.writeError(w, http.StatusBadRequest, "edited_index out of range")
		return
	}
	edited := req.Tickets[req.EditedIndex]
	if edited.Quantity < 0 {
		h.writeError(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	draft := session.Draft()
	if draft.Capacity.Type == wizard.CapacityNone {
		h.writeError(w, http.StatusConflict, "declare a capacity before adding tickets")
		return
	}
	others := wizard.OthersExcluding(req.Tickets, req.EditedIndex)
	if allowed := wizard.RemainingAllowed(edited, others, draft.Capacity); edited.Quantity > allowed {
		h.writeError(w, http.StatusConflict, "ticket quantity exceeds remaining capacity")
		return
	}

	if _, err := session.Apply(func(d wizard.Draft) wizard.Draft { return d.WithTickets(req.Tickets) }); err != nil {
		if errors.Is(err, wizard.ErrDraftLocked) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, viewOf(session))
}

func (h *Handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	session, ok := h.wizardSession(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = session.Draft().Name
	}

	claims := claimsFromContext(r.Context())
	existing, err := h.Plans.List(r.Context(), actorFromClaims(claims))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	names := make([]string, 0, len(existing))
	for _, plan := range existing {
		names = append(names, plan.Name)
	}
	suggestions := wizard.SuggestNames(name, names)
	if suggestions == nil {
		suggestions = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// handleSubmit creates the plan exactly once: the session's submit latch
// rejects a second in-flight submit with 409.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.wizardSession(w, r)
	if !ok {
		return
	}
	if err := session.BeginSubmit(); err != nil {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}

	claims := claimsFromContext(r.Context())
	plan, err := h.Plans.Create(r.Context(), actorFromClaims(claims), session.Draft())
	if err != nil {
		session.EndSubmit()
		switch {
		case errors.Is(err, plans.ErrIncompleteDraft):
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, wizard.ErrInvalidCapacity),
			errors.Is(err, wizard.ErrInvalidLocation),
			errors.Is(err, wizard.ErrDayOrder),
			errors.Is(err, wizard.ErrSlotOrder),
			errors.Is(err, wizard.ErrInvalidDay):
			h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.Wizards.Drop(session.ID)
	h.writeJSON(w, http.StatusCreated, plan)
}

func (h *Handler) handleAbandonWizard(w http.ResponseWriter, r *http.Request) {
	session, ok := h.wizardSession(w, r)
	if !ok {
		return
	}
	h.Wizards.Drop(session.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	list, err := h.Plans.List(r.Context(), actorFromClaims(claims))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"plans": list})
}

func (h *Handler) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	plan, err := h.Plans.Get(r.Context(), actorFromClaims(claims), chi.URLParam(r, "planID"))
	if err != nil {
		if errors.Is(err, plans.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) handleUpdateGeneral(w http.ResponseWriter, r *http.Request) {
	var req plans.GeneralUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims := claimsFromContext(r.Context())
	plan, err := h.Plans.UpdateGeneral(r.Context(), actorFromClaims(claims), chi.URLParam(r, "planID"), req)
	if err != nil {
		h.writePlanUpdateError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	var location wizard.Location
	if err := json.NewDecoder(r.Body).Decode(&location); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims := claimsFromContext(r.Context())
	plan, err := h.Plans.UpdateLocation(r.Context(), actorFromClaims(claims), chi.URLParam(r, "planID"), location)
	if err != nil {
		h.writePlanUpdateError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) handleUpdateTimeSlots(w http.ResponseWriter, r *http.Request) {
	var slots map[wizard.DateKey]map[wizard.SlotKey]wizard.Interval
	if err := json.NewDecoder(r.Body).Decode(&slots); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims := claimsFromContext(r.Context())
	plan, err := h.Plans.UpdateTimeSlots(r.Context(), actorFromClaims(claims), chi.URLParam(r, "planID"), slots)
	if err != nil {
		h.writePlanUpdateError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, plan)
}

func (h *Handler) writePlanUpdateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, plans.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "plan not found")
	case errors.Is(err, plans.ErrInvalidInput),
		errors.Is(err, wizard.ErrInvalidLocation),
		errors.Is(err, wizard.ErrSlotOrder),
		errors.Is(err, wizard.ErrInvalidDay):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	err := h.Plans.Delete(r.Context(), actorFromClaims(claims), chi.URLParam(r, "planID"))
	if err != nil {
		if errors.Is(err, plans.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createPostRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	PlanID string `json:"plan_id,omitempty"`
}

func (h *Handler) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	claims := claimsFromContext(r.Context())
	post, err := h.Plans.CreatePost(r.Context(), actorFromClaims(claims), req.Title, req.Body, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, plans.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, plans.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "plan not found")
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	err := h.Plans.DeletePost(r.Context(), actorFromClaims(claims), chi.URLParam(r, "postID"))
	if err != nil {
		if errors.Is(err, plans.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "post not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actorFromClaims(claims platformauth.Claims) plans.Actor {
	return plans.Actor{
		UserID:      claims.Subject,
		Username:    claims.Username,
		WorkspaceID: claims.WorkspaceID,
	}
}

func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin, Access-Control-Request-Headers")
		origin := strings.TrimSpace(h.AllowedOrigin)
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		requestHeaders := strings.TrimSpace(r.Header.Get("Access-Control-Request-Headers"))
		if requestHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", requestHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		next.ServeHTTP(w, r)
	})
}

type claimsContextKey struct{}

// authMiddleware gates on a valid access token. Unauthenticated requests get
// a redirect hint alongside the 401 so the frontend can route to login.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := platformauth.BearerToken(r.Header.Get("Authorization"))
		if token == "" {
			h.writeErrorRedirect(w, http.StatusUnauthorized, "missing bearer token", "/login")
			return
		}
		claims, err := h.Identity.Auth.Parse(token)
		if err != nil {
			h.writeErrorRedirect(w, http.StatusUnauthorized, "invalid token", "/login")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithClaims(r.Context(), claims)))
	})
}

// workspaceMiddleware requires a workspace-scoped token. Tokens without one
// mean the user hasn't finished setup yet.
func (h *Handler) workspaceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims.OrgID == "" || claims.WorkspaceID == "" {
			h.writeErrorRedirect(w, http.StatusConflict, "no workspace selected", "/setup")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) writeErrorRedirect(w http.ResponseWriter, status int, msg, redirect string) {
	h.writeJSON(w, status, map[string]string{"error": msg, "redirect": redirect})
}

func contextWithClaims(ctx context.Context, claims platformauth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func claimsFromContext(ctx context.Context) platformauth.Claims {
	claims, _ := ctx.Value(claimsContextKey{}).(platformauth.Claims)
	return claims
}
