package routes

import (
	"github.com/gin-gonic/gin"

	tickethandler "ticketd/internal/interfaces/http/handlers/ticket"
)

// SetupTicketRoutes mounts the ticket API. Literal paths register before the
// parameterised ones so "count" and "range" are not captured as ids.
func SetupTicketRoutes(router *gin.Engine, handler *tickethandler.TicketHandler) {
	router.GET("/healthz", handler.Health)

	api := router.Group("/api/v1")
	{
		tickets := api.Group("/tickets")
		{
			tickets.POST("", handler.CreateTicket)
			tickets.GET("", handler.ListTickets)
			tickets.GET("/count", handler.CountTickets)
			tickets.GET("/range", handler.TicketsByDateRange)
			tickets.GET("/:id", handler.GetTicket)
			tickets.PUT("/:id", handler.UpdateTicket)
			tickets.PATCH("/:id/status", handler.UpdateTicketStatus)
			tickets.DELETE("/:id", handler.DeleteTicket)
			tickets.GET("/:id/attachments/:attachmentId", handler.GetAttachment)
			tickets.DELETE("/:id/attachments/:attachmentId", handler.DeleteAttachment)
		}
	}
}
