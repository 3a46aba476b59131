package api

import (
	"errors"

	"github.com/orderbridge/internal/http/response"
	"github.com/orderbridge/internal/repository"
	"github.com/orderbridge/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var orderCommonErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "order request not found"},
	{target: service.ErrItemNotFound, code: response.CodeNotFound, msg: "order request item not found"},
	{target: service.ErrOrderClosed, code: response.CodeBadRequest, msg: "order request is closed"},
	{target: service.ErrOrderBlocked, code: response.CodeForbidden, msg: "order request is blocked by another actor"},
	{target: service.ErrExternalOrderWrongSide, code: response.CodeForbidden, msg: "operation not allowed from this tenant side"},
	{target: service.ErrForbidden, code: response.CodeForbidden, msg: "forbidden"},
	{target: service.ErrConcurrentUpdate, code: response.CodeTooManyRequests, msg: "concurrent update, please retry"},
	{target: service.ErrMirrorCounterpartMissing, code: response.CodeInternal, msg: "cross-tenant mirror counterpart not found"},
}

var orderMutationErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidStatus, code: response.CodeBadRequest, msg: "invalid status"},
	{target: service.ErrInvalidTransition, code: response.CodeBadRequest, msg: "invalid status transition"},
	{target: service.ErrEmptyStatusHistory, code: response.CodeBadRequest, msg: "status history is empty"},
	{target: service.ErrQuantityInvalid, code: response.CodeBadRequest, msg: "quantity is invalid"},
	{target: service.ErrReturnQuantityExceeded, code: response.CodeBadRequest, msg: "quantity returned exceeds quantity delivered"},
	{target: service.ErrItemNotDelivered, code: response.CodeBadRequest, msg: "item is not in delivered status"},
	{target: service.ErrExternalOrderReturn, code: response.CodeBadRequest, msg: "returns are not allowed on cross-tenant orders"},
	{target: service.ErrNoActiveTracking, code: response.CodeBadRequest, msg: "item has no active tracking legs"},
	{target: service.ErrCatalogNotFound, code: response.CodeNotFound, msg: "catalog item not found"},
	{target: service.ErrSiteNotFound, code: response.CodeNotFound, msg: "site not found"},
	{target: service.ErrContainerNotFound, code: response.CodeNotFound, msg: "shipping container not found"},
	{target: repository.ErrInsufficientStock, code: response.CodeBadRequest, msg: "insufficient stock at site"},
}

func respondOrderError(c *gin.Context, err error, fallbackMsg string) {
	respondWithMappedError(c, err,
		concatMappedHandlerErrors(orderCommonErrorRules, orderMutationErrorRules),
		response.CodeInternal, fallbackMsg)
}
