package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskboard-api/internal/application/board"
	"github.com/taskboard-api/internal/domain"
	"github.com/taskboard-api/internal/pkg/id"
)

type BoardHandler struct {
	svc board.Service
}

func NewBoardHandler(svc board.Service) *BoardHandler { return &BoardHandler{svc: svc} }

func (h *BoardHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	boards, total, err := h.svc.List(r.Context(), uid)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BoardsEnvelope{Boards: boards, TotalBoards: total})
}

func (h *BoardHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	boardID := chi.URLParam(r, "boardUuid")
	if !id.IsULID(boardID) {
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: "invalid board id", ErrorCode: "bad_request"})
		return
	}
	var req domain.UpdateBoardRequest
	if !decode(w, r, &req) {
		return
	}
	b, err := h.svc.Update(r.Context(), uid, boardID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BoardEnvelope{UpdatedBoard: b})
}
