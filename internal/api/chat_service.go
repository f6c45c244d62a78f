package api

import (
	"context"

	"github.com/matheus3301/wppbridge/internal/api/wppv1"
	"github.com/matheus3301/wppbridge/internal/bridge"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ChatService implements the ChatService gRPC service.
type ChatService struct {
	wppv1.UnimplementedChatServiceServer

	bridge *bridge.Service
}

// NewChatService creates a new chat service.
func NewChatService(svc *bridge.Service) *ChatService {
	return &ChatService{bridge: svc}
}

func (s *ChatService) ListChats(ctx context.Context, _ *wppv1.ListChatsRequest) (*wppv1.ListChatsResponse, error) {
	chats, err := s.bridge.ListChats(ctx)
	if err != nil {
		return nil, err
	}
	resp := &wppv1.ListChatsResponse{Chats: make([]wppv1.Chat, 0, len(chats))}
	for _, c := range chats {
		resp.Chats = append(resp.Chats, chatToWire(c))
	}
	return resp, nil
}

func (s *ChatService) GetChat(ctx context.Context, req *wppv1.GetChatRequest) (*wppv1.GetChatResponse, error) {
	if req.ChatID == "" {
		return nil, status.Error(codes.InvalidArgument, "chat_id is required")
	}
	sum, err := s.bridge.GetChat(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}
	return &wppv1.GetChatResponse{Chat: chatToWire(*sum), MessageCount: sum.MessageCount}, nil
}

func (s *ChatService) GetMessages(ctx context.Context, req *wppv1.GetMessagesRequest) (*wppv1.GetMessagesResponse, error) {
	if req.ChatID == "" {
		return nil, status.Error(codes.InvalidArgument, "chat_id is required")
	}
	page, err := s.bridge.GetChatMessages(ctx, req.ChatID, req.Limit, req.Before)
	if err != nil {
		return nil, err
	}
	resp := &wppv1.GetMessagesResponse{
		Messages: make([]wppv1.Message, 0, len(page.Messages)),
		HasMore:  page.HasMore,
		Cursor:   page.Cursor,
	}
	for _, m := range page.Messages {
		resp.Messages = append(resp.Messages, messageToWire(m))
	}
	return resp, nil
}

func (s *ChatService) SendMessage(ctx context.Context, req *wppv1.SendMessageRequest) (*wppv1.SendMessageResponse, error) {
	m, err := s.bridge.SendMessage(ctx, req.To, req.Body)
	if err != nil {
		return nil, err
	}
	return &wppv1.SendMessageResponse{Message: messageToWire(*m)}, nil
}

func (s *ChatService) MarkRead(ctx context.Context, req *wppv1.MarkReadRequest) (*wppv1.MarkReadResponse, error) {
	if req.ChatID == "" {
		return nil, status.Error(codes.InvalidArgument, "chat_id is required")
	}
	if err := s.bridge.MarkRead(ctx, req.ChatID); err != nil {
		return nil, err
	}
	return &wppv1.MarkReadResponse{}, nil
}

func (s *ChatService) SearchMessages(ctx context.Context, req *wppv1.SearchMessagesRequest) (*wppv1.SearchMessagesResponse, error) {
	results, err := s.bridge.SearchMessages(ctx, req.Query, req.ChatID, req.Limit)
	if err != nil {
		return nil, err
	}
	resp := &wppv1.SearchMessagesResponse{Results: make([]wppv1.SearchResult, 0, len(results))}
	for _, r := range results {
		resp.Results = append(resp.Results, wppv1.SearchResult{Message: messageToWire(r.Message), Snippet: r.Snippet})
	}
	return resp, nil
}
