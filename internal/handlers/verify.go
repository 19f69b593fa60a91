package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/klicktape/backend/internal/errors"
	"github.com/klicktape/backend/internal/logger"
	"github.com/klicktape/backend/internal/verification"
	"go.uber.org/zap"
)

type verifyEmailRequest struct {
	Token string `json:"token" binding:"required"`
	Type  string `json:"type"`
}

type pendingReferralRequest struct {
	ReferralCode string `json:"referral_code" binding:"required"`
}

// VerifyEmail exchanges a one-time email token for a confirmed account.
// On success a pending referral, if any, is completed in the background.
func (h *Handlers) VerifyEmail(c *gin.Context) {
	userID := c.GetString("user_id")

	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.ValidationError("token", "a verification token is required"))
		return
	}

	result, err := h.verifier.Verify(c.Request.Context(), req.Token, req.Type)
	if err != nil {
		var verr *verification.Error
		if errors.As(err, &verr) {
			switch verr.Kind {
			case verification.KindExpired:
				respondError(c, apierrors.Forbidden("verification link has expired, request a new one").
					WithDetails(string(verr.Kind)))
			case verification.KindInvalid:
				respondError(c, apierrors.BadRequest("verification link is invalid or already used").
					WithDetails(string(verr.Kind)))
			default:
				respondError(c, apierrors.InternalError("verification failed, please try again").
					WithDetails(string(verr.Kind)))
			}
			return
		}

		logger.Log.Error("Verification request failed",
			logger.WithViewerID(userID),
			zap.Error(err))
		respondError(c, apierrors.ServiceUnavailable("verification service"))
		return
	}

	// Independent of the response; failures are logged, never surfaced
	h.verifier.CompleteReferralAsync(userID)

	c.JSON(http.StatusOK, gin.H{"verified": result.Verified})
}

// SetPendingReferral stores a referral code to redeem once the
// account is verified.
func (h *Handlers) SetPendingReferral(c *gin.Context) {
	userID := c.GetString("user_id")

	var req pendingReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apierrors.ValidationError("referral_code", "a referral code is required"))
		return
	}

	if err := h.referrals.Set(c.Request.Context(), userID, req.ReferralCode); err != nil {
		logger.Log.Error("Failed to store pending referral",
			logger.WithViewerID(userID),
			zap.Error(err))
		respondError(c, apierrors.InternalError("failed to store referral code"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"stored": true})
}
