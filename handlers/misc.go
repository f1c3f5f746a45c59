// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonathanwmaddison/jonabot/prompts"
)

// HandleHealth answers liveness probes.
func HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleResume serves the structured resume plus the downloadable formats.
func HandleResume(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "View or download Jonathan's resume",
		"resume":  prompts.Resume,
		"links": gin.H{
			"interactive": "/resume",
			"pdf":         "/jonathan-maddison-resume.pdf",
		},
	})
}

// HandleFeedback accepts widget feedback. Stored nowhere yet; the log line
// is the record.
//
// TODO: persist feedback once a destination is picked (sink table or mail).
func HandleFeedback(c *gin.Context) {
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Email == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and message are required."})
		return
	}

	slog.Info("Feedback received",
		"name", req.Name, "email", req.Email, "message", req.Message)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Feedback received successfully",
	})
}
