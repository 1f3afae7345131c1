package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	config "github.com/karunya/aid-bridge-go/config"
	core "github.com/karunya/aid-bridge-go/core"
	middleware "github.com/karunya/aid-bridge-go/middleware"
)

// ListTasks returns a volunteer's unified open queue: pending requests and
// pending donations in their location, folded into one list, minus
// anything they passed on. ?view=my-work returns the records they already
// picked up instead.
func ListTasks(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		view := core.ViewTasks
		if c.Query("view") == string(core.ViewMyWork) {
			view = core.ViewMyWork
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		items, err := cfg.Engine.ListVisible(ctx, middleware.ActorFrom(c), view)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}
