// Copyright (C) 2025 Jonathan Maddison (jonathanwm84@gmail.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/jonathanwmaddison/jonabot/datatypes"
	"github.com/jonathanwmaddison/jonabot/handlers"
	"github.com/jonathanwmaddison/jonabot/llm"
	"github.com/jonathanwmaddison/jonabot/middleware"
	"github.com/jonathanwmaddison/jonabot/observability"
	"github.com/jonathanwmaddison/jonabot/prompts"
	"github.com/jonathanwmaddison/jonabot/sessionlog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps carries the wired collaborators for the route table.
type Deps struct {
	Chat    *handlers.ChatHandler
	Store   sessionlog.Store
	Limiter middleware.RateLimiter
	Mailer  handlers.Mailer

	// Params applies to every chat origin; per-origin overrides go on the
	// ChatStreamConfig at registration if they ever diverge.
	Params llm.GenerationParams
}

// SetupRoutes registers the full HTTP surface.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/chat", deps.Chat.HandleChatStream(handlers.ChatStreamConfig{
			Origin:       datatypes.OriginGeneralChat,
			Endpoint:     observability.EndpointGeneralChat,
			SystemPrompt: prompts.BasePrompt,
			Params:       deps.Params,
		}))
		api.POST("/huggingface-chat", deps.Chat.HandleChatStream(handlers.ChatStreamConfig{
			Origin:       datatypes.OriginHuggingFace,
			Endpoint:     observability.EndpointHuggingFaceChat,
			SystemPrompt: prompts.HuggingFacePrompt,
			Params:       deps.Params,
		}))
		api.POST("/energyhub-chat", deps.Chat.HandleChatStream(handlers.ChatStreamConfig{
			Origin:       datatypes.OriginEnergyHub,
			Endpoint:     observability.EndpointEnergyHubChat,
			SystemPrompt: prompts.EnergyHubPrompt,
			Params:       deps.Params,
		}))
		api.POST("/renew-chat", deps.Chat.HandleChatStream(handlers.ChatStreamConfig{
			Origin:       datatypes.OriginRenewJob,
			Endpoint:     observability.EndpointRenewChat,
			SystemPrompt: prompts.RenewJobPrompt,
			Params:       deps.Params,
		}))

		api.POST("/log-conversation", handlers.HandleLogConversation(deps.Store))
		api.POST("/end-session", handlers.HandleEndSession(deps.Store))
		api.POST("/contact", handlers.HandleContact(deps.Limiter, deps.Mailer))
		api.POST("/feedback", handlers.HandleFeedback)
		api.GET("/resume", handlers.HandleResume)
	}
}
