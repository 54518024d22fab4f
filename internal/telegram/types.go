package telegram

// Обёртка ответа Bot API
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

type inviteLinkResponse struct {
	apiResponse
	Result struct {
		InviteLink string `json:"invite_link"`
		Name       string `json:"name"`
	} `json:"result"`
}

type chatResponse struct {
	apiResponse
	Result struct {
		ID       int64  `json:"id"`
		Type     string `json:"type"`
		Username string `json:"username"`
	} `json:"result"`
}
