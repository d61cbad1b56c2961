package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidConversation = errors.New("invalid conversation")
	ErrEmptyMessage        = errors.New("message text is empty")
	ErrStreamClosed        = errors.New("stream closed")
	ErrSummaryUpdate       = errors.New("conversation summary update failed")
	ErrViewNotFound        = errors.New("chat view not found")
	ErrViewClosed          = errors.New("chat view closed")
	ErrUnauthenticated     = errors.New("no signed-in user")
)
