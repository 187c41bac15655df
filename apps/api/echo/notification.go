package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/carosello75/courseconnect/core/notification"
)

type notificationApi struct {
	dispatcher *notification.Dispatcher
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, dispatcher *notification.Dispatcher) {
	api := notificationApi{dispatcher: dispatcher}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/read", api.markRead)
}

// Schemas

// MarkReadRequest marks the listed notifications read; all of them when IDs is omitted.
type MarkReadRequest struct {
	IDs []string `json:"ids"`
}

type MarkReadResponse struct {
	Updated int `json:"updated"`
}

type UnreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	ref, err := mustContextRef(ctx)
	if err != nil {
		return err
	}
	limit, err := bindLimit(ctx)
	if err != nil {
		return err
	}
	page, err := api.dispatcher.List(ctx.Request().Context(), ref, limit)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *notificationApi) unreadCount(ctx echo.Context) error {
	ref, err := mustContextRef(ctx)
	if err != nil {
		return err
	}
	n, err := api.dispatcher.UnreadCount(ctx.Request().Context(), ref)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, UnreadCountResponse{UnreadCount: n})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	ref, err := mustContextRef(ctx)
	if err != nil {
		return err
	}
	var data MarkReadRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkReadRequest")
	}
	n, err := api.dispatcher.MarkRead(ctx.Request().Context(), ref, data.IDs)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, MarkReadResponse{Updated: n})
}
