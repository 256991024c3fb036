package server

import (
	"net/http"

	"github.com/messagram/messagram-server/internal/types"
)

const (
	// ConversationGlobal selects the shared broadcast conversation.
	ConversationGlobal = "global"
	// ConversationDirect selects the thread between two identities.
	ConversationDirect = "direct"
)

type ClientMessage struct {
	Id          int          `json:"id,omitempty"`
	Join        *Join        `json:"join,omitempty"`
	GetMessages *GetMessages `json:"get_messages,omitempty"`
	SendMessage *SendMessage `json:"send_message,omitempty"`
}

type Join struct {
	Username string `json:"username"`
}

type GetMessages struct {
	Kind string `json:"kind"`
	Me   string `json:"me"`
	Mate string `json:"mate"`
}

type SendMessage struct {
	Text     string `json:"text"`
	Sender   string `json:"sender_username"`
	Receiver string `json:"receiver_username,omitempty"`
	Kind     string `json:"type,omitempty"`
	FileUrl  string `json:"file_url,omitempty"`
}

type ServerMessage struct {
	Id       int             `json:"id,omitempty"`
	Response *Response       `json:"response,omitempty"`
	Message  *types.Message  `json:"message,omitempty"`
	History  []types.Message `json:"history,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ErrBadRequest(id int, reason string) *ServerMessage {
	return &ServerMessage{
		Id: id,
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        reason,
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		Id: id,
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		Id: id,
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}
