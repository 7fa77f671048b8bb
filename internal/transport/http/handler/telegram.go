package handler

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/taskboard-api/internal/application/bot"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramHandler receives Bot API webhook updates.
type TelegramHandler struct {
	svc    bot.Service
	secret string
}

func NewTelegramHandler(svc bot.Service, secret string) *TelegramHandler {
	return &TelegramHandler{svc: svc, secret: secret}
}

// Webhook always answers 200 to an authenticated update so Telegram does not redeliver it.
func (h *TelegramHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(telegramSecretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update")
		return
	}
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	if cmd := msg.Command(); cmd != "" {
		if err := h.svc.HandleCommand(r.Context(), msg.From.ID, msg.Chat.ID, cmd); err != nil {
			slog.ErrorContext(r.Context(), "telegram command failed", "command", cmd, "update_id", upd.UpdateID, "err", err)
		}
	}
	w.WriteHeader(http.StatusOK)
}
