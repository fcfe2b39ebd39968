// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/constants"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/middleware"
	requestutil "github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/request"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/respond"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/validate"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/users/auth"
)

// Handler implements the HTTP layer for profile and session management.
//
// # Security
//
// Every route runs behind [middleware.RequireActiveSession], so a closed
// session loses access immediately even while its access token is unexpired.
type Handler struct {
	accountService *Service
	sessions       middleware.SessionToucher
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service, sessions middleware.SessionToucher) *Handler {
	return &Handler{accountService: service, sessions: sessions}
}

// Routes returns a [chi.Router] configured with the account endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireActiveSession(handler.sessions))

	// Profile
	router.Get("/", handler.getMe)
	router.Patch("/", handler.updateMe)

	// Session Security
	router.Get("/sessions", handler.listSessions)
	router.Delete("/sessions", handler.closeOtherSessions)
	router.Delete("/sessions/{id}", handler.closeSession)

	router.Get("/devices", handler.listDevices)

	return router
}

// # Profile Endpoints

/*
GET /api/v1/me.

Description: Retrieves the private profile of the authenticated account.

Response:
  - 200: Account: Hydrated profile
  - 401: Authentication required
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accountService.GetProfile(request.Context(), claims.AccountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

// updateMeRequest defines the expected JSON payload for profile updates.
type updateMeRequest struct {
	Handle *string `json:"handle"`
	Phone  *string `json:"phone"`
}

/*
PATCH /api/v1/me.

Description: Applies partial updates to the authenticated account's profile.

Request:
  - body: updateMeRequest (Partial JSON)

Response:
  - 200: Account: The updated profile
  - 400: Invalid JSON or validation failure
  - 409: HANDLE_TAKEN
*/
func (handler *Handler) updateMe(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateMeRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	if input.Handle != nil {
		handle := strings.TrimSpace(*input.Handle)
		v.MinLen(auth.FieldHandle, handle, auth.HandleMinLength).
			MaxLen(auth.FieldHandle, handle, auth.HandleMaxLength).
			Handle(auth.FieldHandle, handle)
	}
	if input.Phone != nil {
		v.Phone(auth.FieldPhone, strings.TrimSpace(*input.Phone))
	}

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.accountService.UpdateProfile(request.Context(), claims.AccountID, UpdateProfileInput{
		Handle: input.Handle,
		Phone:  input.Phone,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, account)
}

// # Session Security Endpoints

/*
GET /api/v1/me/sessions.

Description: Enumerates the sessions currently signed in to the account.

Response:
  - 200: []SessionView
*/
func (handler *Handler) listSessions(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessions, err := handler.accountService.ListSessions(request.Context(), claims.AccountID, claims.SessionID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.List(writer, sessions, len(sessions))
}

/*
DELETE /api/v1/me/sessions/{id}.

Description: Signs out one session identified by its ID.

Response:
  - 204: No Content
  - 404: Session not found or owned by another account
*/
func (handler *Handler) closeSession(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessionID := requestutil.Param(request, "id")

	v := &validate.Validator{}
	if err := v.UUID("id", sessionID).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.CloseSession(request.Context(), claims.AccountID, sessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
DELETE /api/v1/me/sessions.

Description: Signs out every session except the one making the request.

Response:
  - 200: {"closed": n}
*/
func (handler *Handler) closeOtherSessions(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	closed, err := handler.accountService.CloseOtherSessions(request.Context(), claims.AccountID, claims.SessionID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		"closed":                closed,
		constants.FieldMessage: "Signed out of all other sessions",
	})
}

// GET /api/v1/me/devices.
func (handler *Handler) listDevices(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	devices, err := handler.accountService.ListDevices(request.Context(), claims.AccountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.List(writer, devices, len(devices))
}
