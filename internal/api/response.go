package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every JSON reply. Code 0 is success.
type Response struct {
	Code int    `json:"code"`
	Data any    `json:"data"`
	Msg  string `json:"msg"`
}

const (
	codeOK           = 0
	codeActionFailed = 1001
	codeBadRequest   = 1002
	codeNotReady     = 1003
	codeForbidden    = 1004
)

func ok(data any, msg string, c *gin.Context) {
	c.JSON(http.StatusOK, Response{Code: codeOK, Data: data, Msg: msg})
}

func fail(status, code int, msg string, c *gin.Context) {
	c.JSON(status, Response{Code: code, Msg: msg})
}
