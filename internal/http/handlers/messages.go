package handlers

import "voicehub/internal/middleware"

const (
	codeBadRequest        = "bad_request"
	codeUnauthorized      = "unauthorized"
	codeInvalidAmount     = "invalid_amount"
	codeInsufficientFunds = "insufficient_funds"
	codeUnknownPlan       = "unknown_plan"
	codeQuotaExceeded     = "quota_exceeded"
	codeTextTooLong       = "text_too_long"
	codeNotFound          = "not_found"
	codeUnavailable       = "storage_unavailable"
	codeInternal          = "internal"
	codeWebhookDisabled   = "webhook_disabled"
	codeInvalidSignature  = "invalid_signature"
)

var messages = map[string]map[string]string{
	codeBadRequest: {
		middleware.LocaleRU: "Некорректный запрос",
		middleware.LocaleEN: "Invalid request payload",
	},
	codeUnauthorized: {
		middleware.LocaleRU: "Требуется авторизация",
		middleware.LocaleEN: "Authentication required",
	},
	codeInvalidAmount: {
		middleware.LocaleRU: "Сумма должна быть положительной, не более двух знаков после запятой",
		middleware.LocaleEN: "Amount must be positive with at most two decimal places",
	},
	codeInsufficientFunds: {
		middleware.LocaleRU: "Недостаточно средств",
		middleware.LocaleEN: "Insufficient funds",
	},
	codeUnknownPlan: {
		middleware.LocaleRU: "Неизвестный тариф",
		middleware.LocaleEN: "Unknown plan",
	},
	codeQuotaExceeded: {
		middleware.LocaleRU: "Лимит символов на этот месяц исчерпан",
		middleware.LocaleEN: "Monthly character quota exceeded",
	},
	codeTextTooLong: {
		middleware.LocaleRU: "Текст слишком длинный для одного запроса",
		middleware.LocaleEN: "Text is too long for a single request",
	},
	codeNotFound: {
		middleware.LocaleRU: "Не найдено",
		middleware.LocaleEN: "Not found",
	},
	codeUnavailable: {
		middleware.LocaleRU: "Сервис временно недоступен, повторите попытку",
		middleware.LocaleEN: "Service temporarily unavailable, please retry",
	},
	codeInternal: {
		middleware.LocaleRU: "Внутренняя ошибка",
		middleware.LocaleEN: "Internal error",
	},
	codeWebhookDisabled: {
		middleware.LocaleRU: "Приём уведомлений не настроен",
		middleware.LocaleEN: "Webhook is not configured",
	},
	codeInvalidSignature: {
		middleware.LocaleRU: "Неверная подпись уведомления",
		middleware.LocaleEN: "Invalid webhook signature",
	},
}

func message(locale, code string) string {
	m, ok := messages[code]
	if !ok {
		return code
	}
	if s, ok := m[locale]; ok {
		return s
	}
	return m[middleware.LocaleEN]
}
