package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const DefaultMaxMessageLength = 2000

var (
	ErrInvalidRequest = errors.New("invalid chat request")
	ErrMissingSession = fmt.Errorf("%w: sessionId es obligatorio", ErrInvalidRequest)
	ErrEmptyMessage   = fmt.Errorf("%w: El mensaje no puede estar vacío", ErrInvalidRequest)
	ErrMessageTooLong = fmt.Errorf("%w: El mensaje es demasiado largo (máximo %d caracteres)", ErrInvalidRequest, DefaultMaxMessageLength)
)

// ValidationMessage returns the user-facing copy of a request error.
func ValidationMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingSession):
		return "sessionId es obligatorio"
	case errors.Is(err, ErrEmptyMessage):
		return "El mensaje no puede estar vacío"
	case errors.Is(err, ErrMessageTooLong):
		var tooLong *messageTooLongError
		if errors.As(err, &tooLong) {
			return fmt.Sprintf("El mensaje es demasiado largo (máximo %d caracteres)", tooLong.max)
		}
		return fmt.Sprintf("El mensaje es demasiado largo (máximo %d caracteres)", DefaultMaxMessageLength)
	default:
		return "Solicitud no válida"
	}
}

type messageTooLongError struct {
	max int
}

func (e *messageTooLongError) Error() string {
	return fmt.Sprintf("message longer than %d characters", e.max)
}

func (e *messageTooLongError) Unwrap() error {
	return ErrMessageTooLong
}

// Price accepts either a JSON number or a JSON string.
type Price string

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Price(strings.TrimSpace(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("price: %w", err)
	}
	*p = Price(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// ProductContext describes the product page the user was on.
type ProductContext struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Price       Price  `json:"price"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type Request struct {
	SessionID      string          `json:"sessionId"`
	Message        string          `json:"message"`
	ConversationID string          `json:"conversationId,omitempty"`
	ProductContext *ProductContext `json:"productContext,omitempty"`
}

// Validate checks the preconditions of ProcessMessage. maxLength <= 0 means
// DefaultMaxMessageLength.
func (r Request) Validate(maxLength int) error {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return ErrMissingSession
	}
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(r.Message) > maxLength {
		return &messageTooLongError{max: maxLength}
	}
	return nil
}
