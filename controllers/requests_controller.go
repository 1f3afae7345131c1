package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	config "github.com/karunya/aid-bridge-go/config"
	core "github.com/karunya/aid-bridge-go/core"
	middleware "github.com/karunya/aid-bridge-go/middleware"
	models "github.com/karunya/aid-bridge-go/models"
	utils "github.com/karunya/aid-bridge-go/utils"
)

// ---------------- CREATE ----------------
func CreateRequest(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input core.CreateRequestInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": CodeBadRequest, "error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		r, err := cfg.Engine.CreateRequest(ctx, middleware.ActorFrom(c), input)
		if err != nil {
			respondError(c, err)
			return
		}

		middleware.Transitions.WithLabelValues("request", "create").Inc()
		c.JSON(http.StatusCreated, r)
	}
}

// ---------------- LIST ----------------
// The view defaults per role: volunteers see the open location-scoped
// queue, community members their own requests, donors the claimable set.
// ?view=mine lets a donor fetch claim history instead.
func ListRequests(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFrom(c)

		view := core.View(c.Query("view"))
		if view == "" {
			switch actor.Role {
			case models.RoleVolunteer:
				view = core.ViewOpenRequests
			case models.RoleDonor:
				view = core.ViewClaimable
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

		requests := []models.Request{}
		ids := []primitive.ObjectID{}
		for _, it := range items {
			if it.Request != nil {
				requests = append(requests, *it.Request)
				ids = append(ids, it.Request.ID)
			}
		}

		if len(requests) > 0 {
			setListCacheHeaders(c, ids, latestRequest(requests).UpdatedAt)
			if c.IsAborted() {
				return
			}
		}
		c.JSON(http.StatusOK, requests)
	}
}

// ---------------- GET ----------------
func GetRequest(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": CodeBadRequest, "error": "invalid request id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		r, err := cfg.Engine.GetRequest(ctx, middleware.ActorFrom(c), oid)
		if err != nil {
			respondError(c, err)
			return
		}

		etag := utils.GenerateETag(r.ID, r.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, r)
	}
}

// ---------------- TRANSITIONS ----------------
// One handler per route, all going through the same engine table.
func AcceptRequest(cfg *config.Config) gin.HandlerFunc {
	return transitionRequest(cfg, core.RequestAccept)
}

func DenyRequest(cfg *config.Config) gin.HandlerFunc {
	return transitionRequest(cfg, core.RequestDeny)
}

func MarkRequestReached(cfg *config.Config) gin.HandlerFunc {
	return transitionRequest(cfg, core.RequestReached)
}

func ApproveRequest(cfg *config.Config) gin.HandlerFunc {
	return transitionRequest(cfg, core.RequestApprove)
}

func RejectRequest(cfg *config.Config) gin.HandlerFunc {
	return transitionRequest(cfg, core.RequestReject)
}

func ClaimRequest(cfg *config.Config) gin.HandlerFunc {
	return transitionRequest(cfg, core.RequestClaim)
}

func transitionRequest(cfg *config.Config, action core.RequestAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": CodeBadRequest, "error": "invalid request id"})
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

		r, err := cfg.Engine.TransitionRequest(ctx, middleware.ActorFrom(c), oid, action, data)
		if err != nil {
			respondError(c, err)
			return
		}

		middleware.Transitions.WithLabelValues("request", string(action)).Inc()
		notifyRequester(r, action)
		c.JSON(http.StatusOK, r)
	}
}

// notifyRequester tells the beneficiary about transitions they care about.
// Best-effort; the transition already committed.
func notifyRequester(r *models.Request, action core.RequestAction) {
	var subject, body string
	switch action {
	case core.RequestAccept:
		subject = "A volunteer accepted your request"
		body = "<p>A volunteer in " + r.Location + " accepted your " + r.Initiative + " request and will reach out soon.</p>"
	case core.RequestApprove:
		subject = "Your request was approved"
		body = "<p>Your " + r.Initiative + " request was verified and is now visible to donors.</p>"
	case core.RequestReject:
		subject = "Your request could not be verified"
		body = "<p>Your " + r.Initiative + " request was closed: " + r.RejectReason + "</p>"
	case core.RequestClaim:
		subject = "A donor is fulfilling your request"
		body = "<p>A donor has committed to your " + r.Initiative + " request.</p>"
	default:
		return
	}
	utils.NotifyLifecycle(r.BeneficiaryContact, r.BeneficiaryName, subject, body)
}

func latestRequest(rs []models.Request) models.Request {
	latest := rs[0]
	for _, r := range rs {
		if r.UpdatedAt.After(latest.UpdatedAt) {
			latest = r
		}
	}
	return latest
}

// setListCacheHeaders emits ETag/Last-Modified for a list response and
// short-circuits on If-None-Match. The ETag covers membership as well as
// the freshest updated_at: a record leaving the queue must invalidate the
// tag even though no surviving record changed.
func setListCacheHeaders(c *gin.Context, ids []primitive.ObjectID, latest time.Time) {
	etag := utils.GenerateListETag(ids, latest)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.AbortWithStatus(http.StatusNotModified)
		return
	}
	c.Header("ETag", etag)
	c.Header("Last-Modified", latest.UTC().Format(http.TimeFormat))
}
