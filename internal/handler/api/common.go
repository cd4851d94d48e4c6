package api

import (
	"github.com/labstack/echo/v4"
)

// Response is the envelope every API endpoint returns.
type Response struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Obj    interface{} `json:"obj"`
}

func successResponse(c echo.Context, code int, msg string, obj interface{}) error {
	return c.JSON(code, Response{
		Status: true,
		Msg:    msg,
		Obj:    obj,
	})
}

func errorResponse(c echo.Context, code int, msg string) error {
	return c.JSON(code, Response{
		Status: false,
		Msg:    msg,
		Obj:    nil,
	})
}
