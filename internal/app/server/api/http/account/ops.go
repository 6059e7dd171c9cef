package account

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) registerOp() huma.Operation {
	return huma.Operation{
		OperationID:   "account-register",
		Method:        http.MethodPost,
		Path:          "/api/accounts",
		Summary:       "Регистрация учетной записи",
		Description:   "Создает учетную запись и возвращает токен устройства",
		Tags:          []string{"account"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}
