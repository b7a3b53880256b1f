package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Machine-readable error codes returned in the envelope. Clients treat
// TOKEN_EXPIRED as "retry after silent refresh"; every other auth code
// forces re-authentication.
const (
	CodeTokenMissing       = "TOKEN_MISSING"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeSessionInvalid     = "SESSION_INVALID"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeUserInactive       = "USER_INACTIVE"
	CodeInsufficientPerms  = "INSUFFICIENT_PERMISSIONS"
	CodeAccessDenied       = "ACCESS_DENIED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeNotFound           = "NOT_FOUND"
)

// Body is the standard API response envelope. Required and Current carry
// role or permission identifiers only, never internal detail.
type Body struct {
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
	Required string      `json:"required,omitempty"`
	Current  string      `json:"current,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with an error code.
func BadRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: code})
}

// Unauthorized sends 401 with an error code.
func Unauthorized(c *gin.Context, code string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: code})
}

// Forbidden sends 403 with an error code and the required vs current
// right so clients can explain the denial.
func Forbidden(c *gin.Context, code, required, current string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: code, Required: required, Current: current})
}

// NotFound sends 404 with an error code.
func NotFound(c *gin.Context, code string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: code})
}

// Conflict sends 409 with an error code.
func Conflict(c *gin.Context, code string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: code})
}

// Internal sends 500. Detail stays in server logs; clients only see the code.
func Internal(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: CodeInternal})
}
