package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"inkwell.app/assistant/internal/http/dto"
	"inkwell.app/assistant/internal/http/middleware"
	"inkwell.app/assistant/internal/model"
	"inkwell.app/assistant/internal/service"
	"inkwell.app/assistant/internal/store"
)

// maxUploadBytes bounds grounding-file uploads.
const maxUploadBytes = 10 << 20

type ChatHandler struct {
	chatService service.ChatService
}

func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Create starts a conversation. A JSON body creates a plain chat; a
// multipart body with a file creates a file-grounded one.
func (h *ChatHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	user, _ := middleware.CurrentUser(c)

	req := service.CreateConversationRequest{}

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		req.Title = c.PostForm("title")

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required for a file-grounded chat"})
			return
		}
		if fileHeader.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}

		req.Kind = model.ConversationKindFileGrounded
		req.FileName = fileHeader.Filename
		req.FileData = data
	} else {
		var body dto.CreateChatRequest
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Title = body.Title
	}

	conv, err := h.chatService.CreateConversation(ctx, user.ID, req)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create chat", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
		return
	}

	c.JSON(http.StatusCreated, dto.ToChatResponse(conv))
}

func (h *ChatHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	user, _ := middleware.CurrentUser(c)

	convs, err := h.chatService.ListConversations(ctx, user.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list chats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": dto.ToChatResponses(convs)})
}

func (h *ChatHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	user, _ := middleware.CurrentUser(c)

	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}

	conv, rounds, err := h.chatService.GetConversation(ctx, user.ID, chatID)
	if err != nil {
		h.renderChatError(c, err, "failed to load chat")
		return
	}

	c.JSON(http.StatusOK, dto.ChatDetailResponse{
		Chat:   dto.ToChatResponse(conv),
		Rounds: dto.ToRoundResponses(rounds),
	})
}

func (h *ChatHandler) Rename(c *gin.Context) {
	ctx := c.Request.Context()
	user, _ := middleware.CurrentUser(c)

	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}

	var req dto.RenameChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	conv, err := h.chatService.RenameConversation(ctx, user.ID, chatID, req.Title)
	if err != nil {
		h.renderChatError(c, err, "failed to rename chat")
		return
	}

	c.JSON(http.StatusOK, dto.ToChatResponse(conv))
}

// Ask is the streaming round endpoint. Pre-flight failures are plain JSON
// responses; once the flight starts the connection is an event stream and
// every outcome, success or failure, ends with the terminal marker.
func (h *ChatHandler) Ask(c *gin.Context) {
	ctx := c.Request.Context()
	user, _ := middleware.CurrentUser(c)

	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}

	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	flight, err := h.chatService.StartRound(ctx, user.ID, chatID, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		case errors.Is(err, service.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "chat belongs to another user"})
		case errors.Is(err, service.ErrRoundInFlight):
			c.JSON(http.StatusConflict, gin.H{"error": "a round is already in flight for this chat"})
		default:
			slog.ErrorContext(ctx, "failed to start round", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start round"})
		}
		return
	}

	setSSEHeaders(c)

	if err := flight.Stream(ctx, newSSESink(c)); err != nil {
		slog.WarnContext(ctx, "round stream ended with error",
			"error", err,
			"round_id", flight.Round.ID)
	}
}

func (h *ChatHandler) Stop(c *gin.Context) {
	ctx := c.Request.Context()
	user, _ := middleware.CurrentUser(c)

	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}
	roundID, ok := pathID(c, "round_id")
	if !ok {
		return
	}

	aborted, err := h.chatService.StopRound(ctx, user.ID, chatID, roundID)
	if err != nil {
		h.renderChatError(c, err, "failed to stop round")
		return
	}

	c.JSON(http.StatusOK, dto.StopResponse{Aborted: aborted})
}

func (h *ChatHandler) renderChatError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "chat belongs to another user"})
	default:
		slog.ErrorContext(c.Request.Context(), fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
