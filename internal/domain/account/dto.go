package account

// RegisterRequest запрос регистрации учетной записи
type RegisterRequest struct {
	Name        string `json:"name" minLength:"3" maxLength:"32" example:"alice"`
	DisplayName string `json:"display_name,omitempty" maxLength:"128" example:"Alice"`
}

// RegisterResponse результат регистрации; токен устройства возвращается один раз
type RegisterResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	AccountID int64  `json:"account_id,omitempty"`
	Token     string `json:"token,omitempty" doc:"Device token, shown once"`
}
