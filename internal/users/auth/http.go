// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/middleware"
	requestutil "github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/request"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/respond"
	"github.com/AlgorithmxTech/DIY-Internal-Backend/internal/platform/validate"
)

// # Definitions & Constructors

// HandlerConfig holds transport-level settings.
type HandlerConfig struct {
	// Debug exposes the verification link in the register response.
	Debug bool
	// FrontendURL hosts the verification result pages.
	FrontendURL string
}

// Handler implements the credential HTTP endpoints.
//
// # Scope
//
// Registration, login, email verification, forgot/reset password and the
// authenticated password change and logout.
type Handler struct {
	authService  *Service
	verification *VerificationManager
	resets       *ResetManager
	sessions     middleware.SessionToucher
	config       HandlerConfig
}

// NewHandler constructs a new [Handler] with its service dependencies.
func NewHandler(
	service *Service,
	verification *VerificationManager,
	resets *ResetManager,
	sessions middleware.SessionToucher,
	config HandlerConfig,
) *Handler {
	return &Handler{
		authService:  service,
		verification: verification,
		resets:       resets,
		sessions:     sessions,
		config:       config,
	}
}

// Routes returns a [chi.Router] configured with credential routes.
//
// # Endpoints
//   - POST /register                : Creates a new account.
//   - POST /login                   : Authenticates and returns a JWT.
//   - POST /verify-email            : Confirms a verification token (JSON).
//   - GET  /verify-email/confirm    : Confirms from the emailed link and redirects.
//   - POST /forgot-password         : Starts a password reset.
//   - POST /reset-password          : Redeems a reset token.
//   - POST /verify-email/resend     : Sends a new verification link (auth).
//   - POST /change-password         : Changes the password (auth).
//   - POST /logout                  : Closes the current session (auth).
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/verify-email", handler.verifyEmail)
	router.Get("/verify-email/confirm", handler.confirmEmailLink)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireActiveSession(handler.sessions))
		r.Post("/verify-email/resend", handler.resendVerification)
		r.Post("/change-password", handler.changePassword)
		r.Post("/logout", handler.logout)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Email           string `json:"email"`
	Handle          string `json:"handle"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Phone           string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Token string `json:"token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Messages shared by responses that must not differ between outcomes.
const (
	messageResetRequested = "Password reset instructions have been sent to your email if an account exists with this email address."
	messageRegistered     = "Registration successful. Please check your email to verify your account."
)

/*
Register handles the creation of a new account.

POST /api/v1/auth/register

Description: Validates input, checks for identity conflicts, persists the
account and starts email verification.

Request:
  - Body: registerRequest (Email, Handle, Password, PasswordConfirm, Phone)

Response:
  - 201: Account, email delivery status and, in debug mode, the link
  - 400: Validation failure or PASSWORD_MISMATCH
  - 409: EMAIL_TAKEN or HANDLE_TAKEN
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		MaxLen(FieldEmail, input.Email, EmailMaxLength).
		Email(FieldEmail, input.Email).
		Required(FieldHandle, input.Handle).
		MinLen(FieldHandle, strings.TrimSpace(input.Handle), HandleMinLength).
		MaxLen(FieldHandle, input.Handle, HandleMaxLength).
		Handle(FieldHandle, strings.TrimSpace(input.Handle)).
		Phone(FieldPhone, input.Phone).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, validate.MinPasswordLength).
		Required(FieldPasswordConfirm, input.PasswordConfirm)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	registration, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:           input.Email,
		Handle:          input.Handle,
		Password:        input.Password,
		PasswordConfirm: input.PasswordConfirm,
		Phone:           input.Phone,
		IPAddress:       requestutil.ClientIP(request),
		UserAgent:       requestutil.UserAgent(request),
		Device:          requestutil.DeviceFingerprint(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	emailStatus := "sent"
	if !registration.EmailDelivered {
		emailStatus = "failed"
	}

	body := map[string]any{
		FieldMessage:     messageRegistered,
		FieldEmailStatus: emailStatus,
		FieldAccount:     registration.Account,
	}
	if !registration.EmailDelivered {
		body["error"] = registration.DeliveryDetail
	}
	if handler.config.Debug && registration.VerificationLink != "" {
		body[FieldDebugInfo] = map[string]string{"verification_link": registration.VerificationLink}
	}

	respond.Created(writer, body)
}

/*
Login authenticates an account and opens a session.

POST /api/v1/auth/login

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: Access token, session id and account
  - 401: INVALID_CREDENTIALS or TOO_MANY_ATTEMPTS
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), LoginInput{
		Email:     input.Email,
		Password:  input.Password,
		IPAddress: requestutil.ClientIP(request),
		UserAgent: requestutil.UserAgent(request),
		Device:    requestutil.DeviceFingerprint(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		FieldAccessToken: session.AccessToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   int64(session.ExpiresAt.Sub(handler.authService.clock.Now()).Seconds()),
		FieldSessionID:   session.SessionID,
		FieldAccount:     session.Account,
	})
}

/*
VerifyEmail confirms email ownership from a token in the body.

POST /api/v1/auth/verify-email

Response:
  - 200: Status "verified" or "already_verified"
  - 400: INVALID_OR_EXPIRED_TOKEN
  - 404: ACCOUNT_NOT_FOUND
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input verifyEmailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Token == "" {
		respond.Error(writer, request, validate.RequiredError(FieldToken, "This field is required"))
		return
	}

	status, err := handler.verification.Confirm(request.Context(), input.Token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	message := "Email verified successfully"
	if status == StatusAlreadyVerified {
		message = "Email already verified"
	}

	respond.OK(writer, map[string]string{
		"status":     string(status),
		FieldMessage: message,
	})
}

/*
ConfirmEmailLink handles the verification link click.

GET /api/v1/auth/verify-email/confirm?token=...

Response:
  - 302: Redirect to {FRONTEND_URL}/verification/{success|already-verified|error}
*/
func (handler *Handler) confirmEmailLink(writer http.ResponseWriter, request *http.Request) {
	page := "error"

	if token := request.URL.Query().Get(FieldToken); token != "" {
		status, err := handler.verification.Confirm(request.Context(), token)
		switch {
		case err != nil:
		case status == StatusAlreadyVerified:
			page = "already-verified"
		default:
			page = "success"
		}
	}

	target := strings.TrimRight(handler.config.FrontendURL, "/") + "/verification/" + page
	http.Redirect(writer, request, target, http.StatusFound)
}

/*
ResendVerification sends a new verification link to the authenticated account.

POST /api/v1/auth/verify-email/resend

Response:
  - 200: Email delivery status
*/
func (handler *Handler) resendVerification(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	delivery, err := handler.authService.ResendVerification(request.Context(), claims.AccountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if delivery == nil {
		respond.OK(writer, map[string]string{FieldMessage: "Email already verified"})
		return
	}

	emailStatus := "sent"
	if !delivery.Delivered {
		emailStatus = "failed"
	}

	body := map[string]any{
		FieldMessage:     "Verification email sent",
		FieldEmailStatus: emailStatus,
	}
	if handler.config.Debug {
		body[FieldDebugInfo] = map[string]string{"verification_link": delivery.Link}
	}
	respond.OK(writer, body)
}

/*
ForgotPassword initiates the password recovery flow.

POST /api/v1/auth/forgot-password

Description: The response is identical whether or not the email belongs to
an account.

Response:
  - 200: Generic acknowledgment
  - 400: Invalid email format
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.resets.RequestReset(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: messageResetRequested,
	})
}

/*
ResetPassword completes the password recovery flow.

POST /api/v1/auth/reset-password

Response:
  - 200: Password updated
  - 400: PASSWORD_MISMATCH or INVALID_OR_EXPIRED_TOKEN
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldToken, input.Token).
		Required(FieldNewPassword, input.NewPassword).
		MinLen(FieldNewPassword, input.NewPassword, validate.MinPasswordLength).
		Required(FieldConfirmPassword, input.ConfirmPassword)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.resets.Redeem(request.Context(), input.Token, input.NewPassword, input.ConfirmPassword); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password has been reset successfully.",
	})
}

/*
ChangePassword updates the authenticated account's password.

POST /api/v1/auth/change-password

Description: Every other session of the account is closed afterwards.

Response:
  - 200: Password changed
  - 400: PASSWORD_MISMATCH, SAME_AS_OLD, WEAK_PASSWORD or WRONG_CURRENT_PASSWORD
  - 401: Session invalid or authentication required
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword).
		Required(FieldConfirmPassword, input.ConfirmPassword)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.authService.ChangePassword(request.Context(), claims.AccountID, ChangePasswordInput{
		CurrentPassword:  input.CurrentPassword,
		NewPassword:      input.NewPassword,
		ConfirmPassword:  input.ConfirmPassword,
		CurrentSessionID: claims.SessionID,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password successfully changed",
	})
}

/*
Logout closes the session bound to the access token.

POST /api/v1/auth/logout

Response:
  - 204: No Content: Session terminated
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), claims.SessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
