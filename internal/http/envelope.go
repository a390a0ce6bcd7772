package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope es la forma uniforme de todas las respuestas de la API.
// StatusCode es el estado logico; el transporte responde 200 salvo errores no previstos.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
	Errors     gin.H  `json:"errors"`
	Token      string `json:"token,omitempty"`
}

func newEnvelope(statusCode int, message string, data any, errs gin.H, token string) Envelope {
	if data == nil {
		data = gin.H{}
	}
	return Envelope{
		StatusCode: statusCode,
		Message:    message,
		Data:       data,
		Errors:     errs,
		Token:      token,
	}
}

func sendResponse(c *gin.Context, statusCode int, message string, data any, errs gin.H) {
	c.JSON(http.StatusOK, newEnvelope(statusCode, message, data, errs, ""))
}

func sendResponseWithToken(c *gin.Context, data any, token string) {
	c.JSON(http.StatusOK, newEnvelope(http.StatusOK, "success", data, nil, token))
}
