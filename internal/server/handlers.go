package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"authflow/internal/auth"
	"authflow/internal/middleware"
	"authflow/internal/utils"
)

type handler struct {
	svc        *auth.Service
	production bool
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "API is running")
}

// signUp handles POST /api/user/sign-up.
func (h *handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	user, err := h.svc.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrValidation):
			utils.Error(w, http.StatusBadRequest, "All fields are required")
		case errors.Is(err, auth.ErrEmailTaken):
			utils.Error(w, http.StatusConflict, "User already exists")
		default:
			utils.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	utils.JSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "User registered successfully, please verify your email",
		Data:    map[string]interface{}{"user": user},
	})
}

// verifyEmail handles GET /api/user/verify/{token}. Success renders a plain
// HTML confirmation page since the link is opened in a browser.
func (h *handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	tokenStr := mux.Vars(r)["token"]
	if err := h.svc.VerifyEmail(r.Context(), tokenStr); err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			utils.Error(w, http.StatusNotFound, "User not found")
		case errors.Is(err, auth.ErrInvalidToken):
			utils.Error(w, http.StatusBadRequest, "Invalid or expired token")
		default:
			utils.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<html>
  <head><title>Email Verified</title></head>
  <body style="font-family:sans-serif; text-align:center; padding:50px;">
    <h1>Email verified successfully!</h1>
    <p>You can now close this window and log in.</p>
  </body>
</html>`)
}

// signIn handles POST /api/user/sign-in. The session token is set as an
// HTTP-only cookie and also returned in the body.
func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	result, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrValidation):
			utils.Error(w, http.StatusBadRequest, "All fields are required")
		case errors.Is(err, auth.ErrUserNotFound):
			utils.Error(w, http.StatusNotFound, "User not found")
		case errors.Is(err, auth.ErrNotVerified):
			utils.Error(w, http.StatusForbidden, "Please verify your email before logging in")
		case errors.Is(err, auth.ErrInvalidCredentials):
			utils.Error(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			utils.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	h.setSessionCookie(w, result.Token)
	utils.JSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "User logged in successfully",
		Data: map[string]interface{}{
			"user":  result.User,
			"token": result.Token,
		},
	})
}

// logout handles POST /api/user/logout. There is no server-side revocation
// list; logout clears the cookie and the client discards its copy.
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	utils.JSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}

// forgotPassword handles POST /api/user/forgot-password. Unknown emails get
// the same response as known ones.
func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		if errors.Is(err, auth.ErrValidation) {
			utils.Error(w, http.StatusBadRequest, "Email is required")
			return
		}
		utils.Error(w, http.StatusInternalServerError, "Error processing forgot password request")
		return
	}
	utils.JSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "If an account with this email exists, we've sent a password reset OTP",
	})
}

// verifyOTP handles POST /api/user/verify-otp.
func (h *handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	resetToken, err := h.svc.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrValidation):
			utils.Error(w, http.StatusBadRequest, "Email and OTP are required")
		case errors.Is(err, auth.ErrInvalidOTP):
			utils.Error(w, http.StatusBadRequest, "Invalid or expired OTP")
		default:
			utils.Error(w, http.StatusInternalServerError, "Error verifying OTP")
		}
		return
	}
	utils.JSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "OTP verified successfully",
		Data:    map[string]interface{}{"verificationToken": resetToken},
	})
}

// resetPassword handles POST /api/user/reset-password. The reset token
// travels as an Authorization bearer header, never as the session cookie.
func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	resetToken := bearerToken(r)
	if resetToken == "" {
		utils.Error(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.svc.ResetPassword(r.Context(), resetToken, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			utils.Error(w, http.StatusUnauthorized, "Invalid or expired token")
		case errors.Is(err, auth.ErrValidation):
			utils.Error(w, http.StatusBadRequest, "New password is required")
		case errors.Is(err, auth.ErrUserNotFound):
			utils.Error(w, http.StatusNotFound, "User not found")
		default:
			utils.Error(w, http.StatusInternalServerError, "Error resetting password")
		}
		return
	}
	utils.JSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Password reset successful",
	})
}

// me handles GET /api/user/me behind the session middleware.
func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		utils.Error(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	utils.JSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Data:    map[string]interface{}{"user": u.Public()},
	})
}

func (h *handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, h.sessionCookie(token, int(auth.SessionTokenTTL.Seconds())))
}

func (h *handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, h.sessionCookie("", -1))
}

func (h *handler) sessionCookie(value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteStrictMode
	if h.production {
		// cross-site front end in production requires SameSite=None + Secure
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.production,
		SameSite: sameSite,
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
