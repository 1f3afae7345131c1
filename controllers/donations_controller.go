package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/karunya/aid-bridge-go/config"
	core "github.com/karunya/aid-bridge-go/core"
	middleware "github.com/karunya/aid-bridge-go/middleware"
	models "github.com/karunya/aid-bridge-go/models"
	utils "github.com/karunya/aid-bridge-go/utils"
)

// ---------------- CREATE ----------------
func CreateDonation(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input core.CreateDonationInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": CodeBadRequest, "error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		d, err := cfg.Engine.CreateDonation(ctx, middleware.ActorFrom(c), input)
		if err != nil {
			respondError(c, err)
			return
		}

		middleware.Transitions.WithLabelValues("donation", "create").Inc()
		c.JSON(http.StatusCreated, d)
	}
}

// ---------------- LIST ----------------
func ListDonations(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFrom(c)

		view := core.View(c.Query("view"))
		if view == "" {
			switch actor.Role {
			case models.RoleVolunteer:
				view = core.ViewOpenDonations
			default:
				view = core.ViewMine
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		items, err := cfg.Engine.ListVisible(ctx, actor, view)
		if err != nil {
			respondError(c, err)
			return
		}

		donations := []models.Donation{}
		ids := []primitive.ObjectID{}
		for _, it := range items {
			if it.Donation != nil {
				donations = append(donations, *it.Donation)
				ids = append(ids, it.Donation.ID)
			}
		}

		if len(donations) > 0 {
			setListCacheHeaders(c, ids, latestDonation(donations).UpdatedAt)
			if c.IsAborted() {
				return
			}
		}
		c.JSON(http.StatusOK, donations)
	}
}

// ---------------- GET ----------------
func GetDonation(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": CodeBadRequest, "error": "invalid donation id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		d, err := cfg.Engine.GetDonation(ctx, middleware.ActorFrom(c), oid)
		if err != nil {
			respondError(c, err)
			return
		}

		etag := utils.GenerateETag(d.ID, d.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, d)
	}
}

// ---------------- TRANSITIONS ----------------
func AcceptDonation(cfg *config.Config) gin.HandlerFunc {
	return transitionDonation(cfg, core.DonationAccept)
}

func PassDonation(cfg *config.Config) gin.HandlerFunc {
	return transitionDonation(cfg, core.DonationPass)
}

func MarkDonationPicked(cfg *config.Config) gin.HandlerFunc {
	return transitionDonation(cfg, core.DonationPicked)
}

func MarkDonationDelivered(cfg *config.Config) gin.HandlerFunc {
	return transitionDonation(cfg, core.DonationDelivered)
}

func CompleteDonation(cfg *config.Config) gin.HandlerFunc {
	return transitionDonation(cfg, core.DonationComplete)
}

func transitionDonation(cfg *config.Config, action core.DonationAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": CodeBadRequest, "error": "invalid donation id"})
			return
		}

		var data core.TransitionData
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&data); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"code": CodeBadRequest, "error": err.Error()})
				return
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		actor := middleware.ActorFrom(c)

		// A completion proof may replace an earlier one; remember the old
		// URL so its hosted image can be cleaned up after the write.
		var priorProof string
		if action == core.DonationComplete && strings.TrimSpace(data.ProofURL) != "" {
			if prev, err := cfg.Store.GetDonation(ctx, oid); err == nil {
				priorProof = prev.ProofURL
			}
		}

		d, err := cfg.Engine.TransitionDonation(ctx, actor, oid, action, data)
		if err != nil {
			respondError(c, err)
			return
		}

		middleware.Transitions.WithLabelValues("donation", string(action)).Inc()
		if action == core.DonationComplete {
			reapSupersededProof(priorProof, d.ProofURL)
			notifyDonationCompleted(cfg, d)
		}
		c.JSON(http.StatusOK, d)
	}
}

// reapSupersededProof destroys the previously hosted proof image once a
// completion replaced it. Best-effort; the transition already committed.
func reapSupersededProof(prior, current string) {
	if prior == "" || prior == current {
		return
	}
	go func() {
		if err := utils.DeleteFromCloudinary(prior); err != nil {
			log.Warn().Err(err).Msg("superseded proof cleanup failed")
		}
	}()
}

// notifyDonationCompleted tells the original beneficiary their request was
// fulfilled. Direct donations have no source request and no one to notify.
func notifyDonationCompleted(cfg *config.Config, d *models.Donation) {
	if d.SourceRequestID.IsZero() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := cfg.Store.GetRequest(ctx, d.SourceRequestID)
	if err != nil {
		return
	}
	body := "<p>The " + d.Initiative + " donation for your request has been delivered and confirmed.</p>"
	utils.NotifyLifecycle(r.BeneficiaryContact, r.BeneficiaryName, "Your request has been fulfilled", body)
}

func latestDonation(ds []models.Donation) models.Donation {
	latest := ds[0]
	for _, d := range ds {
		if d.UpdatedAt.After(latest.UpdatedAt) {
			latest = d
		}
	}
	return latest
}
