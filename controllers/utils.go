package controllers

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
)

func BoolPointer(b bool) *bool {
	return &b
}

func StrPointer(b string) *string {
	return &b
}

const timeLayout = "2006-01-02T15:04:05Z"

// processingDelay leaves the app time to upload the photo before the worker reads it.
const processingDelay = 20 * time.Second

func asynqClientFrom(c echo.Context) (*asynq.Client, bool) {
	client, ok := c.Get("__asynqclient").(*asynq.Client)
	return client, ok && client != nil
}
