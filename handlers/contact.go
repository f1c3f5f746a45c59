// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/smtp"
	"os"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/jonathanwmaddison/jonabot/middleware"
)

// =============================================================================
// Contact Form
// =============================================================================

const (
	// MinContactMessageLen and MaxContactMessageLen bound the message body.
	MinContactMessageLen = 10
	MaxContactMessageLen = 1000
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// ContactMessage is one submitted contact-form entry.
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Mailer dispatches a contact message to its destination.
type Mailer interface {
	Send(ctx context.Context, msg ContactMessage) error
}

// smtpMailer sends contact mail through an SMTP relay (Gmail by default).
type smtpMailer struct {
	host     string
	port     string
	username string
	password string
	to       string
}

// NewSMTPMailerFromEnv builds a mailer from GMAIL_USER / GMAIL_APP_PASSWORD
// (optionally SMTP_HOST / SMTP_PORT for non-Gmail relays).
func NewSMTPMailerFromEnv() (Mailer, error) {
	user := os.Getenv("GMAIL_USER")
	pass := os.Getenv("GMAIL_APP_PASSWORD")
	if user == "" || pass == "" {
		return nil, fmt.Errorf("GMAIL_USER and GMAIL_APP_PASSWORD must be set")
	}
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		host = "smtp.gmail.com"
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	return &smtpMailer{
		host:     host,
		port:     port,
		username: user,
		password: pass,
		to:       user,
	}, nil
}

// Send implements the Mailer interface.
func (m *smtpMailer) Send(_ context.Context, msg ContactMessage) error {
	name := msg.Name
	if name == "" {
		name = "Anonymous"
	}
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: New Contact from JonaBot: %s\r\n\r\nName: %s\nEmail: %s\nMessage: %s\r\n",
		m.username, m.to, name, name, msg.Email, msg.Message)

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	addr := m.host + ":" + m.port
	if err := smtp.SendMail(addr, auth, m.username, []string{m.to}, []byte(body)); err != nil {
		return fmt.Errorf("send contact mail: %w", err)
	}
	return nil
}

// HandleContact returns the handler for POST /api/contact.
//
// # Description
//
// Validation mirrors the widget: email and message required, email must
// match a basic pattern, message between 10 and 1000 characters. The
// limiter keys on client IP and answers 429 when the hourly budget is
// spent; the attempt is only counted for requests that pass validation.
func HandleContact(limiter middleware.RateLimiter, mailer Mailer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg ContactMessage
		if err := c.ShouldBindJSON(&msg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if msg.Email == "" || msg.Message == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email and message are required."})
			return
		}
		if !emailPattern.MatchString(msg.Email) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format."})
			return
		}
		if len(msg.Message) < MinContactMessageLen || len(msg.Message) > MaxContactMessageLen {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message must be between 10 and 1000 characters."})
			return
		}

		if !limiter.Allow(c.ClientIP()) {
			slog.Warn("Contact rate limit exceeded", "ip", c.ClientIP())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests. Please try again later.",
			})
			return
		}

		if err := mailer.Send(c.Request.Context(), msg); err != nil {
			slog.Error("Failed to send contact mail", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to send message. Please try again.",
			})
			return
		}

		slog.Info("Contact message sent", "from", msg.Email)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Message sent successfully",
		})
	}
}
