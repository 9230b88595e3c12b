package response

import "net/http"

const (
	CodeOK              = http.StatusOK
	CodeBadRequest      = http.StatusBadRequest
	CodeUnauthorized    = http.StatusUnauthorized
	CodeNotFound        = http.StatusNotFound
	CodeConflict        = http.StatusConflict
	CodeTooManyRequests = http.StatusTooManyRequests
	CodeInternal        = http.StatusInternalServerError
	CodeUnavailable     = http.StatusServiceUnavailable
)

// 固定提示信息
const (
	MsgUnauthorized    = "Nicht autorisiert. Bitte anmelden."
	MsgInternal        = "Interner Fehler. Bitte später erneut versuchen."
	MsgTooManyRequests = "Zu viele Anfragen. Bitte kurz warten."
	MsgNotFound        = "Nicht gefunden"
	MsgBadRequest      = "Ungültige Anfrage"
)
