package api

import (
	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/mine-game/internal/errors"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse 成功响应
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// respondBadRequest 请求体绑定失败的统一响应
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(400, ErrorResponse{
		Code:    int(apperrors.ErrInvalidParam),
		Message: "请求参数错误",
		Details: err.Error(),
	})
}

// respondError 把业务错误映射为HTTP响应
func respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		c.JSON(appErr.HTTPStatus(), ErrorResponse{
			Code:    int(appErr.Code),
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}
	c.JSON(500, ErrorResponse{
		Code:    int(apperrors.ErrUnknown),
		Message: "内部错误",
		Details: err.Error(),
	})
}
