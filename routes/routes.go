package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	config "github.com/karunya/aid-bridge-go/config"
	controllers "github.com/karunya/aid-bridge-go/controllers"
	middleware "github.com/karunya/aid-bridge-go/middleware"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config) {
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())
	r.Use(cors.Default())

	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// protected
	auth := middleware.AuthMiddleware(cfg)

	requests := r.Group("/requests")
	requests.Use(auth)
	{
		requests.POST("", controllers.CreateRequest(cfg))
		requests.GET("", controllers.ListRequests(cfg))
		requests.GET("/:id", controllers.GetRequest(cfg))
		requests.POST("/:id/accept", controllers.AcceptRequest(cfg))
		requests.POST("/:id/deny", controllers.DenyRequest(cfg))
		requests.POST("/:id/reached", controllers.MarkRequestReached(cfg))
		requests.POST("/:id/approve", controllers.ApproveRequest(cfg))
		requests.POST("/:id/reject", controllers.RejectRequest(cfg))
		requests.POST("/:id/claim", controllers.ClaimRequest(cfg))
	}

	donations := r.Group("/donations")
	donations.Use(auth)
	{
		donations.POST("", controllers.CreateDonation(cfg))
		donations.GET("", controllers.ListDonations(cfg))
		donations.GET("/:id", controllers.GetDonation(cfg))
		donations.POST("/:id/accept", controllers.AcceptDonation(cfg))
		donations.POST("/:id/pass", controllers.PassDonation(cfg))
		donations.POST("/:id/picked", controllers.MarkDonationPicked(cfg))
		donations.POST("/:id/delivered", controllers.MarkDonationDelivered(cfg))
		donations.POST("/:id/complete", controllers.CompleteDonation(cfg))
	}

	tasks := r.Group("/tasks")
	tasks.Use(auth)
	{
		tasks.GET("", controllers.ListTasks(cfg))
	}

	uploads := r.Group("/uploads")
	uploads.Use(auth)
	{
		uploads.POST("/proof", controllers.UploadProof(cfg))
	}
}
