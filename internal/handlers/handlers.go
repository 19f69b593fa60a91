package handlers

import (
	"github.com/gin-gonic/gin"
	apierrors "github.com/klicktape/backend/internal/errors"
	"github.com/klicktape/backend/internal/feedcache"
	"github.com/klicktape/backend/internal/verification"
	"github.com/klicktape/backend/internal/views"
)

// Handlers contains all HTTP handlers for the API. Feed reads go through
// the page cache, which owns the underlying selector via its fetch func.
type Handlers struct {
	pageCache *feedcache.PageCache
	tracker   *views.Tracker
	verifier  *verification.Client
	referrals *verification.PendingReferralStore
}

// NewHandlers creates a new handlers instance
func NewHandlers(pageCache *feedcache.PageCache, tracker *views.Tracker) *Handlers {
	return &Handlers{
		pageCache: pageCache,
		tracker:   tracker,
	}
}

// SetVerificationClient wires the hosted-auth verification client
func (h *Handlers) SetVerificationClient(client *verification.Client, referrals *verification.PendingReferralStore) {
	h.verifier = client
	h.referrals = referrals
}

// respondError writes a typed API error as JSON
func respondError(c *gin.Context, apiErr *apierrors.APIError) {
	c.JSON(apiErr.Status, gin.H{"error": apiErr})
}
