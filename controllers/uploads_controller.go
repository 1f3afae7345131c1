package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	config "github.com/karunya/aid-bridge-go/config"
	utils "github.com/karunya/aid-bridge-go/utils"
)

// UploadProof hosts a delivery proof image and returns its URL. The caller
// passes the URL back verbatim when completing a donation; the lifecycle
// core never interprets it.
func UploadProof(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, header, err := c.Request.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": CodeBadRequest, "error": "image file is required"})
			return
		}
		defer file.Close()

		url, err := utils.UploadProofToCloudinary(file, header)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": CodeInternal, "error": "could not upload image"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}
